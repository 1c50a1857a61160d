// Package audit records every back-office operation with field-level change
// tracking, raises threshold alerts over the recent activity of each user and
// fans new entries out to live subscribers.
package audit

import (
	"time"

	"chronos/internal/export"
	"chronos/pkg/domain"
)

// Action classifies what the actor did.
type Action string

const (
	ActionCreate           Action = "crear"
	ActionEdit             Action = "editar"
	ActionDelete           Action = "eliminar"
	ActionView             Action = "ver"
	ActionExport           Action = "exportar"
	ActionLogin            Action = "login"
	ActionLogout           Action = "logout"
	ActionApprove          Action = "aprobar"
	ActionReject           Action = "rechazar"
	ActionTransfer         Action = "transferir"
	ActionIncome           Action = "ingreso"
	ActionExpense          Action = "gasto"
	ActionAdjust           Action = "ajuste"
	ActionClosePeriod      Action = "corte"
	ActionLock             Action = "bloquear"
	ActionUnlock           Action = "desbloquear"
	ActionRoleChange       Action = "cambio_rol"
	ActionPermissionChange Action = "cambio_permiso"
)

// Module is the business area the action touched.
type Module string

const (
	ModuleBanks        Module = "bancos"
	ModuleSales        Module = "ventas"
	ModuleClients      Module = "clientes"
	ModuleDistributors Module = "distribuidores"
	ModuleWarehouse    Module = "almacen"
	ModuleOrders       Module = "ordenes"
	ModuleReports      Module = "reportes"
	ModuleSettings     Module = "configuracion"
	ModuleUsers        Module = "usuarios"
	ModuleRoles        Module = "roles"
	ModuleSystem       Module = "sistema"
	ModuleAudit        Module = "auditoria"
)

// Severity grades an entry for triage.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Actor identifies the user who performed the action.
type Actor struct {
	ID       domain.UserID `json:"id"`
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	RoleID   domain.RoleID `json:"role_id,omitempty"`
	RoleName string        `json:"role_name,omitempty"`
}

// EntityRef points at the record the action affected.
type EntityRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FinancialContext carries the monetary side of bank operations.
type FinancialContext struct {
	AccountID     domain.AccountID `json:"account_id"`
	AccountName   string           `json:"account_name"`
	Amount        float64          `json:"amount"`
	BalanceBefore *float64         `json:"balance_before,omitempty"`
	BalanceAfter  *float64         `json:"balance_after,omitempty"`
}

// DeviceContext captures where the request came from.
type DeviceContext struct {
	IP         string `json:"ip"`
	UserAgent  string `json:"user_agent"`
	Device     string `json:"device"`
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	Location   string `json:"location,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	Language   string `json:"language,omitempty"`
}

// Change is one field-level difference between the before and after
// snapshots. A zero Old or New value marks the side where the field was
// absent.
type Change struct {
	Field string       `json:"field"`
	Old   export.Value `json:"old"`
	New   export.Value `json:"new"`
}

// Entry is one immutable audit record. Entries are only removed by the
// retention sweep, never edited.
type Entry struct {
	ID          domain.EntryID `json:"id"`
	Actor       Actor          `json:"actor"`
	Action      Action         `json:"action"`
	Module      Module         `json:"module"`
	Description string         `json:"description"`
	Severity    Severity       `json:"severity"`

	Entity  *EntityRef     `json:"entity,omitempty"`
	Changes []Change       `json:"changes,omitempty"`
	Before  map[string]any `json:"before,omitempty"`
	After   map[string]any `json:"after,omitempty"`

	Finance *FinancialContext `json:"finance,omitempty"`
	Device  DeviceContext     `json:"device"`

	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
	DurationMs   int64  `json:"duration_ms,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
	Tags     []string       `json:"tags,omitempty"`

	At time.Time `json:"at"`
}

// Input is what callers hand to Record. ID, severity fallback, change diff
// and timestamp are filled in by the recorder.
type Input struct {
	Actor       Actor
	Action      Action
	Module      Module
	Description string
	Severity    Severity // derived from the action when empty

	Entity        *EntityRef
	Before, After map[string]any
	Finance       *FinancialContext
	Device        DeviceContext

	Failed       bool
	ErrorMessage string
	DurationMs   int64

	Metadata map[string]any
	Tags     []string
}

// Sort field names accepted by Filters.SortBy.
const (
	SortByTimestamp = "timestamp"
	SortByModule    = "module"
	SortByUser      = "user"
	SortBySeverity  = "severity"
)

// Filters narrow, order and paginate a log query. Zero fields are ignored.
type Filters struct {
	UserID     domain.UserID
	Module     Module
	Action     Action
	Severity   Severity
	AccountID  domain.AccountID
	EntityType string
	EntityID   string
	Success    *bool
	From       time.Time
	To         time.Time
	Search     string
	Tags       []string

	SortBy  string // defaults to SortByTimestamp
	SortDir string // "asc" or "desc", defaults to "desc"
	Limit   int    // defaults to 50
	Offset  int
}

// Page is one page of filtered log results.
type Page struct {
	Logs       []Entry `json:"logs"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	TotalPages int     `json:"total_pages"`
}

// AlertType names the threshold rule that fired.
type AlertType string

const (
	AlertExcessOps          AlertType = "exceso_operaciones"
	AlertOffHours           AlertType = "horario_inusual"
	AlertNewIP              AlertType = "ip_nueva"
	AlertFrequentErrors     AlertType = "error_frecuente"
	AlertHighAmount         AlertType = "monto_alto"
	AlertSuspiciousActivity AlertType = "actividad_sospechosa"
)

// Alert is raised automatically when a threshold rule matches a freshly
// recorded entry. Alerts of the same (type, user) are deduplicated within a
// trailing 30 minute window.
type Alert struct {
	ID          domain.AlertID `json:"id"`
	Type        AlertType      `json:"type"`
	Severity    Severity       `json:"severity"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	UserID      domain.UserID  `json:"user_id"`
	UserName    string         `json:"user_name"`
	At          time.Time      `json:"at"`

	Acknowledged   bool          `json:"acknowledged"`
	AcknowledgedBy domain.UserID `json:"acknowledged_by,omitempty"`
	AcknowledgedAt time.Time     `json:"acknowledged_at,omitzero"`
}

// UserCount is one row of the per-user activity ranking.
type UserCount struct {
	UserID domain.UserID `json:"user_id"`
	Name   string        `json:"name"`
	Total  int           `json:"total"`
}

// BucketCount is one histogram bucket of the hourly or daily breakdown.
type BucketCount struct {
	Label string `json:"label"`
	Total int    `json:"total"`
}

// Stats summarizes recent activity for the dashboard.
type Stats struct {
	Total      int              `json:"total"`
	ByModule   map[Module]int   `json:"by_module"`
	ByAction   map[Action]int   `json:"by_action"`
	ByUser     []UserCount      `json:"by_user"`
	BySeverity map[Severity]int `json:"by_severity"`
	ByHour     []BucketCount    `json:"by_hour"`
	ByDay      []BucketCount    `json:"by_day"`
	Recent     []Entry          `json:"recent"`
	Alerts     []Alert          `json:"alerts"`
}
