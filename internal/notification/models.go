// Package notification keeps a per-user message feed with read, archive and
// pin state, user preferences with a quiet-hours window, and a synchronous
// per-user subscriber fan-out. Quiet hours only silence the sound and
// vibration hints; messages are always stored and delivered.
package notification

import (
	"time"

	"chronos/pkg/domain"
)

// Type classifies the message for icon and sound selection.
type Type string

const (
	TypeInfo     Type = "info"
	TypeSuccess  Type = "success"
	TypeWarning  Type = "warning"
	TypeError    Type = "error"
	TypeAlert    Type = "alert"
	TypeApproval Type = "aprobacion"
	TypeTask     Type = "tarea"
	TypeMessage  Type = "mensaje"
	TypeSystem   Type = "sistema"
	TypeFinance  Type = "financiero"
)

// Priority orders messages and drives the default vibration hint.
type Priority string

const (
	PriorityLow    Priority = "baja"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "alta"
	PriorityUrgent Priority = "urgente"
)

// Category groups messages for per-category user preferences.
type Category string

const (
	CategoryOperations Category = "operaciones"
	CategoryApprovals  Category = "aprobaciones"
	CategoryAlerts     Category = "alertas"
	CategorySystem     Category = "sistema"
	CategoryMessages   Category = "mensajes"
	CategoryTasks      Category = "tareas"
	CategoryReports    Category = "reportes"
	CategorySecurity   Category = "seguridad"
)

// QuickAction is an inline action button rendered with the message.
type QuickAction struct {
	ID      string         `json:"id"`
	Label   string         `json:"label"`
	Variant string         `json:"variant"` // default, primary, destructive
	Icon    string         `json:"icon,omitempty"`
	Action  string         `json:"action"`
	Data    map[string]any `json:"data,omitempty"`
}

// Message is one notification in a user's feed.
type Message struct {
	ID       domain.MessageID `json:"id"`
	Type     Type             `json:"type"`
	Priority Priority         `json:"priority"`
	Category Category         `json:"category"`

	Title           string `json:"title"`
	Body            string `json:"body"`
	LongDescription string `json:"long_description,omitempty"`
	Icon            string `json:"icon,omitempty"`
	Image           string `json:"image,omitempty"`

	Module     string `json:"module,omitempty"`
	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	URL        string `json:"url,omitempty"`

	Actions []QuickAction `json:"actions,omitempty"`

	Read     bool `json:"read"`
	Archived bool `json:"archived"`
	Pinned   bool `json:"pinned"`

	UserID   domain.UserID `json:"user_id"`
	FromID   domain.UserID `json:"from_id,omitempty"`
	FromName string        `json:"from_name,omitempty"`

	// Sensory hints for the client. Cleared when the recipient's quiet
	// hours or preferences silence them.
	Sound   string `json:"sound,omitempty"`
	Vibrate bool   `json:"vibrate,omitempty"`

	Persistent bool      `json:"persistent,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitzero"`

	CreatedAt  time.Time `json:"created_at"`
	ReadAt     time.Time `json:"read_at,omitzero"`
	ArchivedAt time.Time `json:"archived_at,omitzero"`
}

// Expired reports whether the message should no longer be shown.
func (m Message) Expired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && !m.ExpiresAt.After(now)
}

// CategoryPrefs tunes one category for a user.
type CategoryPrefs struct {
	Active   bool     `json:"active"`
	Sound    bool     `json:"sound"`
	Priority Priority `json:"priority"`
}

// Prefs are a user's notification preferences.
type Prefs struct {
	UserID domain.UserID `json:"user_id"`

	Push      bool `json:"push"`
	Email     bool `json:"email"`
	Sound     bool `json:"sound"`
	Vibration bool `json:"vibration"`

	DoNotDisturb bool               `json:"do_not_disturb"`
	QuietWindow  domain.ClockWindow `json:"quiet_window"`

	Categories map[Category]CategoryPrefs `json:"categories"`
	Types      map[Type]bool              `json:"types"`
}

// DefaultPrefs returns the preferences used until a user saves their own.
func DefaultPrefs(userID domain.UserID) Prefs {
	return Prefs{
		UserID:      userID,
		Push:        true,
		Email:       true,
		Sound:       true,
		Vibration:   true,
		QuietWindow: domain.ClockWindow{Start: "22:00", End: "07:00"},
		Categories: map[Category]CategoryPrefs{
			CategoryOperations: {Active: true, Sound: true, Priority: PriorityNormal},
			CategoryApprovals:  {Active: true, Sound: true, Priority: PriorityHigh},
			CategoryAlerts:     {Active: true, Sound: true, Priority: PriorityHigh},
			CategorySystem:     {Active: true, Sound: false, Priority: PriorityNormal},
			CategoryMessages:   {Active: true, Sound: true, Priority: PriorityNormal},
			CategoryTasks:      {Active: true, Sound: false, Priority: PriorityNormal},
			CategoryReports:    {Active: true, Sound: false, Priority: PriorityLow},
			CategorySecurity:   {Active: true, Sound: true, Priority: PriorityUrgent},
		},
		Types: map[Type]bool{
			TypeInfo: true, TypeSuccess: true, TypeWarning: true, TypeError: true,
			TypeAlert: true, TypeApproval: true, TypeTask: true, TypeMessage: true,
			TypeSystem: true, TypeFinance: true,
		},
	}
}

// Filters narrow a feed query. Zero fields are ignored.
type Filters struct {
	Category Category
	Type     Type
	Read     *bool
	Archived *bool
	Since    time.Time
	Limit    int
}

// DayCount is one day of the weekly histogram.
type DayCount struct {
	Day   string `json:"day"`
	Total int    `json:"total"`
}

// Stats summarizes a user's feed.
type Stats struct {
	Total      int              `json:"total"`
	Unread     int              `json:"unread"`
	ByCategory map[Category]int `json:"by_category"`
	ByPriority map[Priority]int `json:"by_priority"`
	LastWeek   []DayCount       `json:"last_week"`
}
