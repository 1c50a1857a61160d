package permission

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"chronos/internal/platform/metrics"
	"chronos/pkg/domain"
	dErrors "chronos/pkg/domain-errors"
)

// overridePriority outranks every role so user overrides win ties.
const overridePriority = 999

var dayNames = []string{"Dom", "Lun", "Mar", "Mié", "Jue", "Vie", "Sáb"}

// Service answers permission checks against the stored roles and users. It is
// a pure query surface; decision auditing happens at the transport layer.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "store is required")
	}
	s := &Service{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Check loads the user and their roles, then decides the request. Unknown
// users are an error, not a denial; denials are data.
func (s *Service) Check(ctx context.Context, req Request) (Result, error) {
	user, err := s.store.GetUser(ctx, req.UserID)
	if err != nil {
		return Result{}, err
	}
	roles, err := s.store.RolesByIDs(ctx, user.RoleIDs)
	if err != nil {
		return Result{}, err
	}

	res := Decide(user, roles, req, time.Now())

	if s.metrics != nil {
		s.metrics.PermissionChecks.WithLabelValues(string(req.Module), outcome(res)).Inc()
	}
	s.logger.DebugContext(ctx, "permission check",
		"user_id", req.UserID,
		"module", req.Module,
		"action", req.Action,
		"allowed", res.Allowed,
		"restriction_violated", res.RestrictionViolated,
	)
	return res, nil
}

func outcome(res Result) string {
	switch {
	case !res.Allowed:
		return "denied"
	case res.RequiresApproval:
		return "requires_approval"
	default:
		return "allowed"
	}
}

// Decide is the pure decision core. The evaluation order is fixed: user lock,
// user-global day/time/account restrictions, admin bypass, then the highest
// priority matching permission's restriction chain. A locked user is denied
// even when one of their roles is admin.
func Decide(user *User, roles []Role, req Request, now time.Time) Result {
	ts := req.Context.Timestamp
	if ts.IsZero() {
		ts = now
	}

	if user.Restrictions.Locked {
		reason := user.Restrictions.LockReason
		if reason == "" {
			reason = "Sin motivo especificado"
		}
		return Result{Allowed: false, Reason: "Usuario bloqueado: " + reason}
	}

	if !domain.WeekdayAllowed(user.Restrictions.AllowedDays, ts) {
		return Result{Allowed: false, Reason: "Acceso no permitido en este día de la semana"}
	}

	if !user.Restrictions.AccessWindow.Contains(ts) {
		return Result{
			Allowed: false,
			Reason: fmt.Sprintf("Acceso solo permitido entre %s y %s",
				user.Restrictions.AccessWindow.Start, user.Restrictions.AccessWindow.End),
		}
	}

	if req.Context.AccountID != "" && len(user.Restrictions.AllowedAccounts) > 0 {
		if !containsAccount(user.Restrictions.AllowedAccounts, req.Context.AccountID) {
			return Result{
				Allowed:             false,
				Reason:              "No tienes acceso al banco " + accountName(req.Context.AccountID),
				RestrictionViolated: ViolationAccounts,
			}
		}
	}

	active := activeRoles(user, roles)
	for _, r := range active {
		if r.IsAdmin {
			return Result{Allowed: true}
		}
	}

	matches := matchPermissions(user, active, req.Module, req.Action)
	if len(matches) == 0 {
		return Result{
			Allowed: false,
			Reason:  fmt.Sprintf("No tienes permiso para %s en %s", req.Action, req.Module),
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].priority > matches[j].priority
	})
	top := matches[0]

	if res, violated := checkRestrictions(top, req.Context, ts); violated {
		return res
	}

	if top.permission.Restrictions.RequiresApproval || user.Restrictions.RequiresApprovalGlobal {
		return Result{
			Allowed:            true,
			PermissionID:       top.permission.ID,
			RoleID:             top.roleID,
			RequiresApproval:   true,
			RequiredApproverID: top.permission.Restrictions.RequiredApproverID,
		}
	}

	// TODO: enforce DailyLimit once the accumulated-per-day query exists.

	return Result{Allowed: true, PermissionID: top.permission.ID, RoleID: top.roleID}
}

type match struct {
	permission Permission
	roleID     domain.RoleID
	priority   int
}

func activeRoles(user *User, roles []Role) []Role {
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		if r.Active && containsRole(user.RoleIDs, r.ID) {
			out = append(out, r)
		}
	}
	return out
}

func matchPermissions(user *User, roles []Role, module Module, action Action) []match {
	var matches []match
	// Overrides first so they win priority ties over any role.
	for _, p := range user.Overrides {
		if p.Module == module && p.Action == action && p.Active {
			matches = append(matches, match{permission: p, roleID: "override", priority: overridePriority})
		}
	}
	for _, r := range roles {
		for _, p := range r.Permissions {
			if p.Module == module && p.Action == action && p.Active {
				matches = append(matches, match{permission: p, roleID: r.ID, priority: r.Priority})
			}
		}
	}
	return matches
}

// checkRestrictions walks the restriction chain in its fixed order and
// returns the denial for the first violation.
func checkRestrictions(m match, opCtx Context, ts time.Time) (Result, bool) {
	r := m.permission.Restrictions
	deny := func(reason, violated string) (Result, bool) {
		return Result{
			Allowed:             false,
			Reason:              reason,
			PermissionID:        m.permission.ID,
			RoleID:              m.roleID,
			RestrictionViolated: violated,
		}, true
	}

	if opCtx.AccountID != "" && len(r.AllowedAccounts) > 0 {
		if !containsAccount(r.AllowedAccounts, opCtx.AccountID) {
			names := make([]string, len(r.AllowedAccounts))
			for i, id := range r.AllowedAccounts {
				names[i] = accountName(id)
			}
			return deny("Esta acción solo está permitida en: "+strings.Join(names, ", "), ViolationAccounts)
		}
	}

	if opCtx.Category != "" && len(r.AllowedCategories) > 0 {
		if !containsString(r.AllowedCategories, opCtx.Category) {
			return deny("Esta categoría no está permitida para esta operación", ViolationCategories)
		}
	}

	if opCtx.Amount != nil {
		amount := *opCtx.Amount
		if r.MinAmount != nil && amount < *r.MinAmount {
			return deny(fmt.Sprintf("El monto mínimo permitido es %v", *r.MinAmount), ViolationMinAmount)
		}
		if r.MaxAmount != nil && amount > *r.MaxAmount {
			return deny(fmt.Sprintf("El monto máximo permitido es %v", *r.MaxAmount), ViolationMaxAmount)
		}
		if r.PerTxLimit != nil && amount > *r.PerTxLimit {
			return deny(fmt.Sprintf("El límite por transacción es %v", *r.PerTxLimit), ViolationPerTxLimit)
		}
	}

	if !r.Window.Contains(ts) {
		return deny(fmt.Sprintf("Esta operación solo está permitida entre %s y %s", r.Window.Start, r.Window.End), ViolationSchedule)
	}

	if !domain.WeekdayAllowed(r.AllowedDays, ts) {
		names := make([]string, len(r.AllowedDays))
		for i, d := range r.AllowedDays {
			names[i] = dayNames[int(d)%7]
		}
		return deny("Esta operación solo está permitida los días: "+strings.Join(names, ", "), ViolationDays)
	}

	if opCtx.ClientID != "" && len(r.AllowedClients) > 0 && !containsString(r.AllowedClients, opCtx.ClientID) {
		return deny("No tienes permiso para operar con este cliente", ViolationClients)
	}

	if opCtx.DistributorID != "" && len(r.AllowedDistributors) > 0 && !containsString(r.AllowedDistributors, opCtx.DistributorID) {
		return deny("No tienes permiso para operar con este distribuidor", ViolationDistributors)
	}

	if opCtx.IP != "" && len(r.AllowedOrigins) > 0 && !containsString(r.AllowedOrigins, opCtx.IP) {
		return deny("Acceso no permitido desde esta ubicación", ViolationOrigins)
	}

	return Result{}, false
}

// AccessibleAccounts returns the accounts the user can reach for the given
// action. A user-global account restriction wins outright.
func (s *Service) AccessibleAccounts(ctx context.Context, userID domain.UserID, action Action) ([]domain.AccountID, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.Restrictions.AllowedAccounts) > 0 {
		return append([]domain.AccountID(nil), user.Restrictions.AllowedAccounts...), nil
	}

	roles, err := s.store.RolesByIDs(ctx, user.RoleIDs)
	if err != nil {
		return nil, err
	}
	active := activeRoles(user, roles)
	for _, r := range active {
		if r.IsAdmin {
			return allAccounts(), nil
		}
	}

	set := make(map[domain.AccountID]struct{})
	for _, r := range active {
		for _, p := range r.Permissions {
			if p.Module != ModuleAccounts || p.Action != action || !p.Active {
				continue
			}
			if len(p.Restrictions.AllowedAccounts) == 0 {
				return allAccounts(), nil
			}
			for _, id := range p.Restrictions.AllowedAccounts {
				set[id] = struct{}{}
			}
		}
	}

	out := make([]domain.AccountID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// AllowedActions returns the actions the user may take in a module, optionally
// narrowed to a specific account.
func (s *Service) AllowedActions(ctx context.Context, userID domain.UserID, module Module, accountID domain.AccountID) ([]Action, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	roles, err := s.store.RolesByIDs(ctx, user.RoleIDs)
	if err != nil {
		return nil, err
	}
	active := activeRoles(user, roles)
	for _, r := range active {
		if r.IsAdmin {
			return append([]Action(nil), Actions...), nil
		}
	}

	set := make(map[Action]struct{})
	for _, r := range active {
		for _, p := range r.Permissions {
			if p.Module != module || !p.Active {
				continue
			}
			if accountID != "" && len(p.Restrictions.AllowedAccounts) > 0 &&
				!containsAccount(p.Restrictions.AllowedAccounts, accountID) {
				continue
			}
			set[p.Action] = struct{}{}
		}
	}

	out := make([]Action, 0, len(set))
	for _, a := range Actions {
		if _, ok := set[a]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// Summary produces the per-module permission overview shown on a user's
// profile. Modules with no actions are omitted.
func (s *Service) Summary(ctx context.Context, userID domain.UserID) ([]ModuleSummary, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out []ModuleSummary
	for _, module := range Modules {
		actions, err := s.AllowedActions(ctx, userID, module, "")
		if err != nil {
			return nil, err
		}
		if len(actions) == 0 {
			continue
		}

		row := ModuleSummary{Module: module, Actions: actions}
		if module == ModuleAccounts {
			accounts, err := s.AccessibleAccounts(ctx, userID, ActionView)
			if err != nil {
				return nil, err
			}
			row.Accounts = accounts
		}
		if !user.Restrictions.AccessWindow.IsZero() {
			row.Restrictions = append(row.Restrictions,
				fmt.Sprintf("Horario: %s - %s", user.Restrictions.AccessWindow.Start, user.Restrictions.AccessWindow.End))
		}
		if user.Restrictions.GlobalDailyLimit != nil {
			row.Restrictions = append(row.Restrictions,
				fmt.Sprintf("Límite diario: $%v", *user.Restrictions.GlobalDailyLimit))
		}
		if user.Restrictions.RequiresApprovalGlobal {
			row.Restrictions = append(row.Restrictions, "Requiere aprobación para todas las operaciones")
		}
		out = append(out, row)
	}
	return out, nil
}

func allAccounts() []domain.AccountID {
	out := make([]domain.AccountID, 0, len(AccountCatalog))
	for id := range AccountCatalog {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func accountName(id domain.AccountID) string {
	if info, ok := AccountCatalog[id]; ok {
		return info.Name
	}
	return string(id)
}

func containsAccount(list []domain.AccountID, id domain.AccountID) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsRole(list []domain.RoleID, id domain.RoleID) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
