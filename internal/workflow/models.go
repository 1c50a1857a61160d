// Package workflow implements the multi-level approval engine: definitions
// describe ordered approval levels with entry conditions and quorum rules,
// instances track one live process per business entity. Business outcomes are
// returned as Result values, never as errors.
package workflow

import (
	"time"

	"chronos/internal/condition"
	"chronos/pkg/domain"
)

// State of a workflow instance.
type State string

const (
	StateDraft     State = "borrador"
	StatePending   State = "pendiente"
	StateInReview  State = "en_revision"
	StateApproved  State = "aprobado"
	StateRejected  State = "rechazado"
	StateCancelled State = "cancelado"
	StateEscalated State = "escalado"
	StateCompleted State = "completado"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateApproved, StateRejected, StateCancelled, StateCompleted:
		return true
	}
	return false
}

// Kind categorizes a workflow definition.
type Kind string

const (
	KindSimple     Kind = "aprobacion_simple"
	KindSequential Kind = "aprobacion_secuencial"
	KindParallel   Kind = "aprobacion_paralela"
	KindReview     Kind = "revision_multiple"
	KindEscalation Kind = "escalamiento_automatico"
)

// ApproverType says how an approver descriptor resolves to people.
type ApproverType string

const (
	ApproverUser       ApproverType = "usuario"
	ApproverRole       ApproverType = "rol"
	ApproverSupervisor ApproverType = "superior_jerarquico"
	ApproverOwner      ApproverType = "propietario_entidad"
)

// Approver describes one required approver slot in a level.
type Approver struct {
	ID          string        `json:"id"`
	UserID      domain.UserID `json:"user_id,omitempty"`
	RoleID      domain.RoleID `json:"role_id,omitempty"`
	Type        ApproverType  `json:"type"`
	Name        string        `json:"name"`
	Email       string        `json:"email,omitempty"`
	CanDelegate bool          `json:"can_delegate"`
}

// Level is one ordered stage of a definition. Conditions select whether the
// level applies to a given instance, both on entry and when advancing.
type Level struct {
	ID                domain.LevelID        `json:"id"`
	Order             int                   `json:"order"`
	Name              string                `json:"name"`
	Description       string                `json:"description,omitempty"`
	Approvers         []Approver            `json:"approvers"`
	RequireAll        bool                  `json:"require_all"`
	TimeLimitHours    int                   `json:"time_limit_hours,omitempty"`
	AutoEscalate      bool                  `json:"auto_escalate"`
	EscalateToLevelID domain.LevelID        `json:"escalate_to_level_id,omitempty"`
	Conditions        []condition.Condition `json:"conditions,omitempty"`
}

// Config is the behavior block of a definition.
type Config struct {
	AllowCancel            bool          `json:"allow_cancel"`
	AllowModifyInFlight    bool          `json:"allow_modify_in_flight"`
	NotifyRequester        bool          `json:"notify_requester"`
	NotifyApprovers        bool          `json:"notify_approvers"`
	ReminderHours          int           `json:"reminder_hours,omitempty"`
	GlobalEscalationHours  int           `json:"global_escalation_hours,omitempty"`
	GlobalEscalationRoleID domain.RoleID `json:"global_escalation_role_id,omitempty"`
}

// Definition is a named template for one business-entity kind. Levels must
// have unique, ascending Order values and at least one level must exist.
type Definition struct {
	ID                domain.DefinitionID   `json:"id"`
	Name              string                `json:"name"`
	Description       string                `json:"description"`
	Kind              Kind                  `json:"kind"`
	Module            string                `json:"module"`
	Active            bool                  `json:"active"`
	Levels            []Level               `json:"levels"`
	InitialConditions []condition.Condition `json:"initial_conditions,omitempty"`
	Config            Config                `json:"config"`
	CreatedBy         domain.UserID         `json:"created_by"`
	CreatedAt         time.Time             `json:"created_at"`
	ModifiedBy        domain.UserID         `json:"modified_by,omitempty"`
	ModifiedAt        time.Time             `json:"modified_at,omitzero"`
}

// ApprovalStatus of one pending-approval row.
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pendiente"
	ApprovalApproved  ApprovalStatus = "aprobada"
	ApprovalRejected  ApprovalStatus = "rechazada"
	ApprovalDelegated ApprovalStatus = "delegada"
	ApprovalEscalated ApprovalStatus = "escalada"
	// ApprovalObsolete marks rows left behind when an any-quorum level
	// completes on a different approver's vote. They can no longer be
	// acted on.
	ApprovalObsolete ApprovalStatus = "obsoleta"
)

// PendingApproval is one row per (level, approver) pair. Delegation marks the
// original delegada and appends a fresh row for the delegate; rows are never
// deleted so the trail stays intact.
type PendingApproval struct {
	ID            domain.ApprovalID `json:"id"`
	LevelID       domain.LevelID    `json:"level_id"`
	LevelOrder    int               `json:"level_order"`
	LevelName     string            `json:"level_name"`
	ApproverID    domain.UserID     `json:"approver_id"`
	ApproverName  string            `json:"approver_name"`
	ApproverType  ApproverType      `json:"approver_type"`
	Status        ApprovalStatus    `json:"status"`
	DelegatedFrom string            `json:"delegated_from,omitempty"`
	Comments      string            `json:"comments,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	RespondedAt   time.Time         `json:"responded_at,omitzero"`
	Deadline      time.Time         `json:"deadline,omitzero"`
}

// ActionType tags history entries.
type ActionType string

const (
	ActionCreated   ActionType = "creado"
	ActionSubmitted ActionType = "enviado"
	ActionApproved  ActionType = "aprobado"
	ActionRejected  ActionType = "rechazado"
	ActionEscalated ActionType = "escalado"
	ActionDelegated ActionType = "delegado"
	ActionComment   ActionType = "comentario"
	ActionCancelled ActionType = "cancelado"
	ActionCompleted ActionType = "completado"
	ActionReverted  ActionType = "revertido"
)

// ActionRecord is one append-only history entry.
type ActionRecord struct {
	ID        string         `json:"id"`
	Type      ActionType     `json:"type"`
	UserID    domain.UserID  `json:"user_id"`
	UserName  string         `json:"user_name"`
	LevelID   domain.LevelID `json:"level_id,omitempty"`
	LevelName string         `json:"level_name,omitempty"`
	Comments  string         `json:"comments,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Instance is the live process for one concrete entity. The engine is the
// only mutator of History and Approvals.
type Instance struct {
	ID             domain.InstanceID   `json:"id"`
	DefinitionID   domain.DefinitionID `json:"definition_id"`
	DefinitionName string              `json:"definition_name"`
	RequesterID    domain.UserID       `json:"requester_id"`
	RequesterName  string              `json:"requester_name"`
	State          State               `json:"state"`
	CurrentLevel   int                 `json:"current_level"`
	EntityType     string              `json:"entity_type"`
	EntityID       string              `json:"entity_id"`
	EntityName     string              `json:"entity_name"`
	Payload        map[string]any      `json:"payload,omitempty"`
	Module         string              `json:"module"`
	Amount         *float64            `json:"amount,omitempty"`
	History        []ActionRecord      `json:"history"`
	Approvals      []PendingApproval   `json:"approvals"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	CompletedAt    time.Time           `json:"completed_at,omitzero"`
	CancelledAt    time.Time           `json:"cancelled_at,omitzero"`
	CancelReason   string              `json:"cancel_reason,omitempty"`
}

// Clone returns a deep enough copy for observers: mutating the copy's slices
// never touches engine state.
func (i *Instance) Clone() *Instance {
	cp := *i
	cp.History = append([]ActionRecord(nil), i.History...)
	cp.Approvals = append([]PendingApproval(nil), i.Approvals...)
	return &cp
}

// Result is the uniform outcome of every engine operation. Business failures
// (unknown ids, invalid states) set OK=false with a display-ready message.
type Result struct {
	OK       bool      `json:"ok"`
	Message  string    `json:"message"`
	Instance *Instance `json:"instance,omitempty"`
}

func failure(msg string) Result { return Result{OK: false, Message: msg} }

// Stats summarizes the instance population.
type Stats struct {
	Total    int            `json:"total"`
	Pending  int            `json:"pending"`
	Approved int            `json:"approved"`
	Rejected int            `json:"rejected"`
	ByModule map[string]int `json:"by_module"`
}
