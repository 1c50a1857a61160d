// Package permission implements the granular access-control checker: roles
// bundle permissions, permissions carry restriction sets, and users may add
// overrides plus global restrictions of their own. Decisions are data, never
// errors.
package permission

import (
	"time"

	"chronos/pkg/domain"
)

// Module identifies a back-office area a permission is scoped to. Values are
// the business vocabulary used across seed data and the API.
type Module string

const (
	ModuleAccounts       Module = "bancos"
	ModuleSales          Module = "ventas"
	ModuleClients        Module = "clientes"
	ModuleDistributors   Module = "distribuidores"
	ModuleWarehouse      Module = "almacen"
	ModulePurchaseOrders Module = "ordenes_compra"
	ModuleReports        Module = "reportes"
	ModuleSettings       Module = "configuracion"
	ModuleUsers          Module = "usuarios"
	ModuleAudit          Module = "auditoria"
)

// Modules lists every module in a stable order, used by permission summaries.
var Modules = []Module{
	ModuleAccounts, ModuleSales, ModuleClients, ModuleDistributors,
	ModuleWarehouse, ModulePurchaseOrders, ModuleReports, ModuleSettings,
	ModuleUsers, ModuleAudit,
}

// Action identifies an operation within a module.
type Action string

const (
	ActionView     Action = "ver"
	ActionCreate   Action = "crear"
	ActionEdit     Action = "editar"
	ActionDelete   Action = "eliminar"
	ActionExport   Action = "exportar"
	ActionApprove  Action = "aprobar"
	ActionCancel   Action = "cancelar"
	ActionTransfer Action = "transferir"
	ActionDeposit  Action = "ingreso"
	ActionExpense  Action = "gasto"
	ActionAdjust   Action = "ajuste"
	ActionClose    Action = "corte"
)

// Actions lists every action, in the order admins see them.
var Actions = []Action{
	ActionView, ActionCreate, ActionEdit, ActionDelete, ActionExport,
	ActionApprove, ActionCancel, ActionTransfer, ActionDeposit,
	ActionExpense, ActionAdjust, ActionClose,
}

// Machine-readable tags identifying which restriction denied a request.
// These are part of the API contract consumed by the UI.
const (
	ViolationAccounts     = "bancosPermitidos"
	ViolationCategories   = "categoriasPermitidas"
	ViolationMinAmount    = "montoMinimo"
	ViolationMaxAmount    = "montoMaximo"
	ViolationPerTxLimit   = "limiteTransaccion"
	ViolationSchedule     = "horario"
	ViolationDays         = "diasPermitidos"
	ViolationClients      = "clientesPermitidos"
	ViolationDistributors = "distribuidoresPermitidos"
	ViolationOrigins      = "ipsPermitidas"
)

// AccountInfo describes a vault/bank account for display purposes.
type AccountInfo struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// AccountCatalog enumerates the business's vaults and bank accounts.
var AccountCatalog = map[domain.AccountID]AccountInfo{
	"boveda_monte": {Name: "Bóveda Monte", Color: "#FFD700", Icon: "vault"},
	"boveda_usa":   {Name: "Bóveda USA", Color: "#228B22", Icon: "dollar"},
	"profit":       {Name: "Profit", Color: "#8B5CF6", Icon: "trending-up"},
	"leftie":       {Name: "Leftie", Color: "#FF1493", Icon: "credit-card"},
	"azteca":       {Name: "Azteca", Color: "#FF4500", Icon: "building"},
	"flete_sur":    {Name: "Flete Sur", Color: "#00CED1", Icon: "truck"},
	"utilidades":   {Name: "Utilidades", Color: "#32CD32", Icon: "percent"},
}

// Transaction categories.
const (
	CategorySales             = "ventas"
	CategoryDistributorPay    = "pagos_distribuidores"
	CategoryOperatingExpenses = "gastos_operativos"
	CategoryPayroll           = "nomina"
	CategoryServices          = "servicios"
	CategoryInternalTransfers = "transferencias_internas"
	CategoryWithdrawals       = "retiros"
	CategoryDeposits          = "depositos"
	CategoryAdjustments       = "ajustes"
	CategoryOther             = "otros"
)

// Restrictions bound when a permission applies. Empty lists mean unrestricted;
// nil numeric bounds mean unbounded. The zero value allows everything.
type Restrictions struct {
	AllowedAccounts   []domain.AccountID `json:"allowed_accounts,omitempty"`
	AllowedCategories []string           `json:"allowed_categories,omitempty"`

	MinAmount  *float64 `json:"min_amount,omitempty"`
	MaxAmount  *float64 `json:"max_amount,omitempty"`
	DailyLimit *float64 `json:"daily_limit,omitempty"`
	PerTxLimit *float64 `json:"per_tx_limit,omitempty"`

	Window      domain.ClockWindow `json:"window,omitzero"`
	AllowedDays []time.Weekday     `json:"allowed_days,omitempty"`

	RequiresApproval   bool          `json:"requires_approval"`
	RequiredApproverID domain.UserID `json:"required_approver_id,omitempty"`
	RequiresReason     bool          `json:"requires_reason"`
	RequiresReference  bool          `json:"requires_reference"`

	AllowedClients      []string `json:"allowed_clients,omitempty"`
	AllowedDistributors []string `json:"allowed_distributors,omitempty"`
	AllowedOrigins      []string `json:"allowed_origins,omitempty"`
}

// Permission is the leaf rule unit: one (module, action) pair plus its
// restriction set. Immutable once loaded.
type Permission struct {
	ID           domain.PermissionID `json:"id"`
	Module       Module              `json:"module"`
	Action       Action              `json:"action"`
	Active       bool                `json:"active"`
	Restrictions Restrictions        `json:"restrictions"`
}

// Role is a named permission bundle. Higher Priority wins when multiple roles
// grant the same (module, action). IsAdmin bypasses permission matching
// entirely (but not the user-level lock).
type Role struct {
	ID          domain.RoleID `json:"id"`
	Code        string        `json:"code"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Color       string        `json:"color"`
	Icon        string        `json:"icon"`
	IsAdmin     bool          `json:"is_admin"`
	Active      bool          `json:"active"`
	Priority    int           `json:"priority"`
	Permissions []Permission  `json:"permissions"`
	CreatedBy   domain.UserID `json:"created_by,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// UserRestrictions apply globally to a user regardless of role. They are
// stricter than role permissions and checked first.
type UserRestrictions struct {
	AllowedAccounts        []domain.AccountID `json:"allowed_accounts,omitempty"`
	GlobalDailyLimit       *float64           `json:"global_daily_limit,omitempty"`
	GlobalTxLimit          *float64           `json:"global_tx_limit,omitempty"`
	AccessWindow           domain.ClockWindow `json:"access_window,omitzero"`
	AllowedDays            []time.Weekday     `json:"allowed_days,omitempty"`
	RequiresApprovalGlobal bool               `json:"requires_approval_global"`
	Locked                 bool               `json:"locked"`
	LockReason             string             `json:"lock_reason,omitempty"`
}

// User carries role references, optional permission overrides (highest
// precedence) and the user-global restriction record.
type User struct {
	ID             domain.UserID    `json:"id"`
	Email          string           `json:"email"`
	Name           string           `json:"name"`
	RoleIDs        []domain.RoleID  `json:"role_ids"`
	Overrides      []Permission     `json:"overrides,omitempty"`
	Restrictions   UserRestrictions `json:"restrictions"`
	LastAccess     time.Time        `json:"last_access,omitzero"`
	LastIP         string           `json:"last_ip,omitempty"`
	LastDevice     string           `json:"last_device,omitempty"`
	FailedAttempts int              `json:"failed_attempts"`
}

// Context carries the operation being authorized.
type Context struct {
	AccountID     domain.AccountID `json:"account_id,omitempty"`
	Category      string           `json:"category,omitempty"`
	Amount        *float64         `json:"amount,omitempty"`
	ClientID      string           `json:"client_id,omitempty"`
	DistributorID string           `json:"distributor_id,omitempty"`
	IP            string           `json:"ip,omitempty"`
	Device        string           `json:"device,omitempty"`
	Timestamp     time.Time        `json:"timestamp,omitzero"`
}

// Request asks whether a user may perform (module, action) in a context.
type Request struct {
	UserID  domain.UserID `json:"user_id"`
	Module  Module        `json:"module"`
	Action  Action        `json:"action"`
	Context Context       `json:"context"`
}

// Result is the decision. Denials carry a display-ready reason and, when a
// specific restriction failed, a machine-readable tag naming it.
type Result struct {
	Allowed             bool                `json:"allowed"`
	Reason              string              `json:"reason,omitempty"`
	PermissionID        domain.PermissionID `json:"permission_id,omitempty"`
	RoleID              domain.RoleID       `json:"role_id,omitempty"`
	RestrictionViolated string              `json:"restriction_violated,omitempty"`
	RequiresApproval    bool                `json:"requires_approval"`
	RequiredApproverID  domain.UserID       `json:"required_approver_id,omitempty"`
}

// ModuleSummary is one row of a user's permission overview.
type ModuleSummary struct {
	Module       Module             `json:"module"`
	Actions      []Action           `json:"actions"`
	Accounts     []domain.AccountID `json:"accounts,omitempty"`
	Restrictions []string           `json:"restrictions,omitempty"`
}
