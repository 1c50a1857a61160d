package preference_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chronos/internal/condition"
	"chronos/internal/preference"
	dErrors "chronos/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite

	ctx   context.Context
	clock time.Time
	svc   *preference.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)

	svc, err := preference.New(preference.NewMemoryKV(),
		preference.WithNow(func() time.Time { return s.clock }))
	s.Require().NoError(err)
	s.svc = svc
}

func (s *ServiceSuite) create(name, module string) preference.SavedFilter {
	f, err := s.svc.Create(s.ctx, preference.SavedFilter{
		Name:   name,
		Module: module,
		UserID: "u-ana",
		Conditions: []preference.FilterCondition{{
			ID: "c1", Field: "total", Label: "Total", Type: preference.FieldNumber,
			Operator: condition.OpGt, Value: 100, Active: true,
		}},
	})
	s.Require().NoError(err)
	return f
}

func (s *ServiceSuite) TestSystemFiltersAreSeeded() {
	filters, err := s.svc.Filters(s.ctx, "u-ana", "ventas")
	s.Require().NoError(err)
	s.Require().Len(filters, 1)
	s.Equal("Ventas de Hoy", filters[0].Name)
	s.True(filters[0].System)
	s.True(filters[0].Shared)
}

func (s *ServiceSuite) TestCreateAndList() {
	s.create("Mis ventas grandes", "ventas")
	filters, err := s.svc.Filters(s.ctx, "u-ana", "ventas")
	s.Require().NoError(err)
	s.Len(filters, 2)

	// Another user only sees the system filter.
	filters, err = s.svc.Filters(s.ctx, "u-luis", "ventas")
	s.Require().NoError(err)
	s.Require().Len(filters, 1)
	s.True(filters[0].System)
}

func (s *ServiceSuite) TestSortDefaultThenFavoriteThenName() {
	s.create("Zeta", "bancos")
	fav := s.create("Media", "bancos")
	def := s.create("Alfa", "bancos")

	_, err := s.svc.ToggleFavorite(s.ctx, "u-ana", fav.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.svc.SetDefault(s.ctx, "u-ana", "bancos", def.ID))

	filters, err := s.svc.Filters(s.ctx, "u-ana", "bancos")
	s.Require().NoError(err)
	s.Require().Len(filters, 4)
	s.Equal("Alfa", filters[0].Name)
	s.Equal("Media", filters[1].Name)
	// The seeded system filter is a favorite too and sorts by name next.
	s.Equal("Movimientos > $50,000", filters[2].Name)
	s.Equal("Zeta", filters[3].Name)
}

func (s *ServiceSuite) TestSetDefaultClearsPrevious() {
	a := s.create("A", "ventas")
	b := s.create("B", "ventas")

	s.Require().NoError(s.svc.SetDefault(s.ctx, "u-ana", "ventas", a.ID))
	s.Require().NoError(s.svc.SetDefault(s.ctx, "u-ana", "ventas", b.ID))

	got, err := s.svc.Get(s.ctx, "u-ana", a.ID)
	s.Require().NoError(err)
	s.False(got.Default)

	got, err = s.svc.Get(s.ctx, "u-ana", b.ID)
	s.Require().NoError(err)
	s.True(got.Default)
}

func (s *ServiceSuite) TestUpdate() {
	f := s.create("Original", "ventas")
	s.clock = s.clock.Add(time.Hour)

	updated, err := s.svc.Update(s.ctx, "u-ana", f.ID, preference.SavedFilter{
		Name:  "Renombrado",
		Color: "#10B981",
	})
	s.Require().NoError(err)
	s.Equal("Renombrado", updated.Name)
	s.Equal("#10B981", updated.Color)
	s.Equal(s.clock, updated.ModifiedAt)
}

func (s *ServiceSuite) TestSystemFiltersAreImmutable() {
	_, err := s.svc.Update(s.ctx, "u-ana", "filtro_sistema_ventas_hoy", preference.SavedFilter{Name: "hackeado"})
	s.True(dErrors.Is(err, dErrors.CodeForbidden))

	err = s.svc.Delete(s.ctx, "u-ana", "filtro_sistema_stock_bajo")
	s.True(dErrors.Is(err, dErrors.CodeForbidden))

	// Registering use of a system filter is a silent no-op.
	s.NoError(s.svc.RegisterUse(s.ctx, "u-ana", "filtro_sistema_ventas_hoy"))
}

func (s *ServiceSuite) TestDelete() {
	f := s.create("Temporal", "ventas")
	s.Require().NoError(s.svc.Delete(s.ctx, "u-ana", f.ID))

	_, err := s.svc.Get(s.ctx, "u-ana", f.ID)
	s.True(dErrors.Is(err, dErrors.CodeNotFound))

	err = s.svc.Delete(s.ctx, "u-ana", "filtro_inexistente")
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestRegisterUse() {
	f := s.create("Usado", "ventas")
	s.Require().NoError(s.svc.RegisterUse(s.ctx, "u-ana", f.ID))
	s.Require().NoError(s.svc.RegisterUse(s.ctx, "u-ana", f.ID))

	got, err := s.svc.Get(s.ctx, "u-ana", f.ID)
	s.Require().NoError(err)
	s.Equal(2, got.UseCount)
	s.Equal(s.clock, got.LastUsedAt)
}

func (s *ServiceSuite) TestFieldConfigs() {
	fields := s.svc.FieldConfigs("ventas")
	s.Require().NotEmpty(fields)
	s.Equal("fecha", fields[0].Field)

	s.Empty(s.svc.FieldConfigs("desconocido"))
}

func (s *ServiceSuite) TestThemeDefaultsAndRoundTrip() {
	t, err := s.svc.Theme(s.ctx, "u-ana")
	s.Require().NoError(err)
	s.Equal("dark", t.Mode)
	s.Equal("chronos", t.Name)

	custom := preference.Theme{Mode: "light", Name: "amanecer", Colors: map[string]string{"primary": "#F59E0B"}}
	s.Require().NoError(s.svc.SetTheme(s.ctx, "u-ana", custom))

	got, err := s.svc.Theme(s.ctx, "u-ana")
	s.Require().NoError(err)
	s.Equal(custom, got)

	err = s.svc.SetTheme(s.ctx, "u-ana", preference.Theme{})
	s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
}
