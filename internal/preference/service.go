package preference

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"chronos/internal/condition"
	"chronos/pkg/domain"
	dErrors "chronos/pkg/domain-errors"
)

const (
	filtersKeyPrefix = "chronos:prefs:filters:"
	themeKeyPrefix   = "chronos:prefs:theme:"
)

// Service manages saved filters and themes on top of a KV backend. User
// filters live under one JSON blob per user; system filters are seeded in
// memory and merged into reads, never persisted.
type Service struct {
	kv     KV
	logger *slog.Logger
	now    func() time.Time

	fieldConfigs  map[string][]FieldConfig
	systemFilters []SavedFilter
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(kv KV, opts ...Option) (*Service, error) {
	if kv == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "kv store is required")
	}
	s := &Service{
		kv:     kv,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.fieldConfigs = defaultFieldConfigs()
	s.systemFilters = systemFilters(s.now())
	return s, nil
}

// FieldConfigs returns the filterable fields of a module.
func (s *Service) FieldConfigs(module string) []FieldConfig {
	return s.fieldConfigs[module]
}

// Filters returns the filters visible to a user: their own, shared ones and
// the system set, ordered default first, then favorites, then by name.
func (s *Service) Filters(ctx context.Context, userID domain.UserID, module string) ([]SavedFilter, error) {
	own, err := s.loadUserFilters(ctx, userID)
	if err != nil {
		return nil, err
	}

	all := append(append([]SavedFilter{}, own...), s.systemFilters...)
	out := make([]SavedFilter, 0, len(all))
	for _, f := range all {
		if module != "" && f.Module != module {
			continue
		}
		out = append(out, f)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Default != b.Default {
			return a.Default
		}
		if a.Favorite != b.Favorite {
			return a.Favorite
		}
		return a.Name < b.Name
	})
	return out, nil
}

// Get returns one filter by ID, searching the user's set and the system set.
func (s *Service) Get(ctx context.Context, userID domain.UserID, id string) (SavedFilter, error) {
	own, err := s.loadUserFilters(ctx, userID)
	if err != nil {
		return SavedFilter{}, err
	}
	for _, f := range own {
		if f.ID == id {
			return f, nil
		}
	}
	for _, f := range s.systemFilters {
		if f.ID == id {
			return f, nil
		}
	}
	return SavedFilter{}, dErrors.Newf(dErrors.CodeNotFound, "filter %s not found", id)
}

// Create stores a new user filter.
func (s *Service) Create(ctx context.Context, f SavedFilter) (SavedFilter, error) {
	if f.UserID.IsNil() || f.Name == "" || f.Module == "" {
		return SavedFilter{}, dErrors.New(dErrors.CodeInvalidInput, "user_id, name and module are required")
	}
	f.ID = "filtro_" + uuid.NewString()
	f.System = false
	f.CreatedAt = s.now()
	f.UseCount = 0

	own, err := s.loadUserFilters(ctx, f.UserID)
	if err != nil {
		return SavedFilter{}, err
	}
	own = append(own, f)
	if err := s.saveUserFilters(ctx, f.UserID, own); err != nil {
		return SavedFilter{}, err
	}

	s.logger.DebugContext(ctx, "saved filter created",
		"filter_id", f.ID,
		"user_id", f.UserID,
		"module", f.Module,
	)
	return f, nil
}

// Update modifies a user filter. System filters are immutable.
func (s *Service) Update(ctx context.Context, userID domain.UserID, id string, updated SavedFilter) (SavedFilter, error) {
	return s.mutate(ctx, userID, id, func(f *SavedFilter) {
		f.Name = updated.Name
		f.Description = updated.Description
		f.Conditions = updated.Conditions
		f.Color = updated.Color
		f.Icon = updated.Icon
		f.Shared = updated.Shared
	})
}

// Delete removes a user filter. System filters cannot be deleted.
func (s *Service) Delete(ctx context.Context, userID domain.UserID, id string) error {
	if s.isSystem(id) {
		return dErrors.New(dErrors.CodeForbidden, "system filters cannot be deleted")
	}
	own, err := s.loadUserFilters(ctx, userID)
	if err != nil {
		return err
	}
	for i, f := range own {
		if f.ID == id {
			own = append(own[:i], own[i+1:]...)
			return s.saveUserFilters(ctx, userID, own)
		}
	}
	return dErrors.Newf(dErrors.CodeNotFound, "filter %s not found", id)
}

// ToggleFavorite flips the favorite flag and returns the new state.
func (s *Service) ToggleFavorite(ctx context.Context, userID domain.UserID, id string) (bool, error) {
	f, err := s.mutate(ctx, userID, id, func(f *SavedFilter) {
		f.Favorite = !f.Favorite
	})
	if err != nil {
		return false, err
	}
	return f.Favorite, nil
}

// SetDefault makes one filter the module's default, clearing any previous
// default for that module.
func (s *Service) SetDefault(ctx context.Context, userID domain.UserID, module, id string) error {
	if s.isSystem(id) {
		return dErrors.New(dErrors.CodeForbidden, "system filters cannot be modified")
	}
	own, err := s.loadUserFilters(ctx, userID)
	if err != nil {
		return err
	}
	found := false
	now := s.now()
	for i := range own {
		if own[i].Module == module && own[i].Default {
			own[i].Default = false
		}
		if own[i].ID == id {
			own[i].Default = true
			own[i].ModifiedAt = now
			found = true
		}
	}
	if !found {
		return dErrors.Newf(dErrors.CodeNotFound, "filter %s not found", id)
	}
	return s.saveUserFilters(ctx, userID, own)
}

// RegisterUse bumps the usage counter for ranking.
func (s *Service) RegisterUse(ctx context.Context, userID domain.UserID, id string) error {
	if s.isSystem(id) {
		return nil
	}
	_, err := s.mutate(ctx, userID, id, func(f *SavedFilter) {
		f.UseCount++
		f.LastUsedAt = s.now()
	})
	return err
}

// Theme returns the user's saved theme or the default.
func (s *Service) Theme(ctx context.Context, userID domain.UserID) (Theme, error) {
	raw, err := s.kv.Get(ctx, themeKeyPrefix+string(userID))
	if err != nil {
		if dErrors.Is(err, dErrors.CodeNotFound) {
			return DefaultTheme(), nil
		}
		return Theme{}, err
	}
	var t Theme
	if err := json.Unmarshal(raw, &t); err != nil {
		return Theme{}, dErrors.Wrap(err, dErrors.CodeInternal, "decoding theme")
	}
	return t, nil
}

// SetTheme stores the user's theme selection.
func (s *Service) SetTheme(ctx context.Context, userID domain.UserID, t Theme) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "user_id is required")
	}
	if t.Mode == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "theme mode is required")
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encoding theme")
	}
	return s.kv.Set(ctx, themeKeyPrefix+string(userID), raw)
}

func (s *Service) mutate(ctx context.Context, userID domain.UserID, id string, apply func(*SavedFilter)) (SavedFilter, error) {
	if s.isSystem(id) {
		return SavedFilter{}, dErrors.New(dErrors.CodeForbidden, "system filters cannot be modified")
	}
	own, err := s.loadUserFilters(ctx, userID)
	if err != nil {
		return SavedFilter{}, err
	}
	for i := range own {
		if own[i].ID == id {
			apply(&own[i])
			own[i].ModifiedAt = s.now()
			if err := s.saveUserFilters(ctx, userID, own); err != nil {
				return SavedFilter{}, err
			}
			return own[i], nil
		}
	}
	return SavedFilter{}, dErrors.Newf(dErrors.CodeNotFound, "filter %s not found", id)
}

func (s *Service) isSystem(id string) bool {
	for _, f := range s.systemFilters {
		if f.ID == id {
			return true
		}
	}
	return false
}

func (s *Service) loadUserFilters(ctx context.Context, userID domain.UserID) ([]SavedFilter, error) {
	raw, err := s.kv.Get(ctx, filtersKeyPrefix+string(userID))
	if err != nil {
		if dErrors.Is(err, dErrors.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var filters []SavedFilter
	if err := json.Unmarshal(raw, &filters); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decoding saved filters")
	}
	return filters, nil
}

func (s *Service) saveUserFilters(ctx context.Context, userID domain.UserID, filters []SavedFilter) error {
	raw, err := json.Marshal(filters)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encoding saved filters")
	}
	return s.kv.Set(ctx, filtersKeyPrefix+string(userID), raw)
}

func numericOps() []condition.Operator {
	return []condition.Operator{
		condition.OpEq, condition.OpGt, condition.OpLt,
		condition.OpGte, condition.OpLte, condition.OpBetween,
	}
}

func defaultFieldConfigs() map[string][]FieldConfig {
	return map[string][]FieldConfig{
		"ventas": {
			{Field: "fecha", Label: "Fecha", Type: FieldDate,
				Operators: []condition.Operator{condition.OpEq, condition.OpBetween, condition.OpGt, condition.OpLt, condition.OpGte, condition.OpLte}},
			{Field: "cliente", Label: "Cliente", Type: FieldText,
				Operators: []condition.Operator{condition.OpEq, condition.OpContains, condition.OpStartsWith}},
			{Field: "total", Label: "Total", Type: FieldNumber, Operators: numericOps()},
			{Field: "estado", Label: "Estado", Type: FieldSelect,
				Operators: []condition.Operator{condition.OpEq, condition.OpNe, condition.OpIn},
				Options: []FieldOption{
					{Value: "pendiente", Label: "Pendiente"},
					{Value: "pagada", Label: "Pagada"},
					{Value: "parcial", Label: "Pago Parcial"},
					{Value: "cancelada", Label: "Cancelada"},
				}},
			{Field: "vendedor", Label: "Vendedor", Type: FieldText,
				Operators: []condition.Operator{condition.OpEq, condition.OpContains}},
		},
		"bancos": {
			{Field: "fecha", Label: "Fecha", Type: FieldDate,
				Operators: []condition.Operator{condition.OpEq, condition.OpBetween, condition.OpGt, condition.OpLt, condition.OpGte, condition.OpLte}},
			{Field: "banco", Label: "Banco", Type: FieldSelect,
				Operators: []condition.Operator{condition.OpEq, condition.OpNe, condition.OpIn},
				Options: []FieldOption{
					{Value: "boveda_monte", Label: "Bóveda Monte"},
					{Value: "boveda_usa", Label: "Bóveda USA"},
					{Value: "leftie", Label: "Leftie"},
				}},
			{Field: "monto", Label: "Monto", Type: FieldNumber, Operators: numericOps()},
			{Field: "descripcion", Label: "Descripción", Type: FieldText,
				Operators: []condition.Operator{condition.OpContains, condition.OpStartsWith}},
			{Field: "usuario", Label: "Usuario", Type: FieldText,
				Operators: []condition.Operator{condition.OpEq, condition.OpContains}},
		},
		"clientes": {
			{Field: "nombre", Label: "Nombre", Type: FieldText,
				Operators: []condition.Operator{condition.OpEq, condition.OpContains, condition.OpStartsWith}},
			{Field: "saldoPendiente", Label: "Saldo Pendiente", Type: FieldNumber, Operators: numericOps()},
			{Field: "categoria", Label: "Categoría", Type: FieldSelect,
				Operators: []condition.Operator{condition.OpEq, condition.OpNe, condition.OpIn},
				Options: []FieldOption{
					{Value: "premium", Label: "Premium"},
					{Value: "frecuente", Label: "Frecuente"},
					{Value: "regular", Label: "Regular"},
					{Value: "nuevo", Label: "Nuevo"},
				}},
			{Field: "activo", Label: "Activo", Type: FieldBool,
				Operators: []condition.Operator{condition.OpEq}},
		},
		"almacen": {
			{Field: "producto", Label: "Producto", Type: FieldText,
				Operators: []condition.Operator{condition.OpEq, condition.OpContains, condition.OpStartsWith}},
			{Field: "stock", Label: "Stock", Type: FieldNumber, Operators: numericOps()},
			{Field: "precioVenta", Label: "Precio", Type: FieldNumber, Operators: numericOps()},
			{Field: "stockBajo", Label: "Stock Bajo", Type: FieldBool,
				Operators: []condition.Operator{condition.OpEq}},
		},
		"auditoria": {
			{Field: "fecha", Label: "Fecha", Type: FieldDate,
				Operators: []condition.Operator{condition.OpEq, condition.OpBetween, condition.OpGt, condition.OpLt}},
			{Field: "usuario", Label: "Usuario", Type: FieldText,
				Operators: []condition.Operator{condition.OpEq, condition.OpContains}},
			{Field: "accion", Label: "Acción", Type: FieldSelect,
				Operators: []condition.Operator{condition.OpEq, condition.OpNe, condition.OpIn},
				Options: []FieldOption{
					{Value: "crear", Label: "Crear"},
					{Value: "editar", Label: "Editar"},
					{Value: "eliminar", Label: "Eliminar"},
					{Value: "login", Label: "Login"},
					{Value: "logout", Label: "Logout"},
				}},
			{Field: "ip", Label: "IP", Type: FieldText,
				Operators: []condition.Operator{condition.OpEq, condition.OpStartsWith}},
		},
	}
}

func systemFilters(now time.Time) []SavedFilter {
	return []SavedFilter{
		{
			ID: "filtro_sistema_ventas_hoy", Name: "Ventas de Hoy", Module: "ventas",
			Conditions: []FilterCondition{{
				ID: "f1", Field: "fecha", Label: "Fecha", Type: FieldDate,
				Operator: condition.OpEq, Value: "hoy", Active: true,
			}},
			UserID: "sistema", Favorite: true, Shared: true, System: true,
			CreatedAt: now, Color: "#10B981", Icon: "Calendar",
		},
		{
			ID: "filtro_sistema_clientes_saldo", Name: "Clientes con Saldo", Module: "clientes",
			Conditions: []FilterCondition{{
				ID: "f2", Field: "saldoPendiente", Label: "Saldo Pendiente", Type: FieldNumber,
				Operator: condition.OpGt, Value: 0, Active: true,
			}},
			UserID: "sistema", Favorite: true, Shared: true, System: true,
			CreatedAt: now, Color: "#F59E0B", Icon: "AlertTriangle",
		},
		{
			ID: "filtro_sistema_stock_bajo", Name: "Stock Bajo", Module: "almacen",
			Conditions: []FilterCondition{{
				ID: "f3", Field: "stockBajo", Label: "Stock Bajo", Type: FieldBool,
				Operator: condition.OpEq, Value: true, Active: true,
			}},
			UserID: "sistema", Favorite: true, Shared: true, System: true,
			CreatedAt: now, Color: "#EF4444", Icon: "Package",
		},
		{
			ID: "filtro_sistema_movimientos_altos", Name: "Movimientos > $50,000", Module: "bancos",
			Conditions: []FilterCondition{{
				ID: "f4", Field: "monto", Label: "Monto", Type: FieldNumber,
				Operator: condition.OpGte, Value: 50000, Active: true,
			}},
			UserID: "sistema", Favorite: true, Shared: true, System: true,
			CreatedAt: now, Color: "#8B5CF6", Icon: "DollarSign",
		},
	}
}
