package domain

// Typed identifiers keep the core APIs honest about which entity an opaque
// string refers to. They are plain strings so seed data and JSON stay simple.

type (
	UserID       string
	RoleID       string
	PermissionID string
	AccountID    string
	DefinitionID string
	LevelID      string
	InstanceID   string
	ApprovalID   string
	EntryID      string
	AlertID      string
	MessageID    string
)

func (id UserID) IsNil() bool       { return id == "" }
func (id RoleID) IsNil() bool       { return id == "" }
func (id DefinitionID) IsNil() bool { return id == "" }
func (id InstanceID) IsNil() bool   { return id == "" }
func (id ApprovalID) IsNil() bool   { return id == "" }

func (id UserID) String() string       { return string(id) }
func (id RoleID) String() string       { return string(id) }
func (id PermissionID) String() string { return string(id) }
func (id AccountID) String() string    { return string(id) }
func (id DefinitionID) String() string { return string(id) }
func (id LevelID) String() string      { return string(id) }
func (id InstanceID) String() string   { return string(id) }
func (id ApprovalID) String() string   { return string(id) }
func (id EntryID) String() string      { return string(id) }
func (id AlertID) String() string      { return string(id) }
func (id MessageID) String() string    { return string(id) }
