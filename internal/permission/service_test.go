package permission_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chronos/internal/permission"
	"chronos/pkg/domain"
	dErrors "chronos/pkg/domain-errors"
)

type CheckerSuite struct {
	suite.Suite

	ctx     context.Context
	store   *permission.MemoryStore
	service *permission.Service
}

func TestCheckerSuite(t *testing.T) {
	suite.Run(t, new(CheckerSuite))
}

func (s *CheckerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = permission.NewMemoryStore()
	s.Require().NoError(permission.Seed(s.ctx, s.store))

	service, err := permission.New(s.store)
	s.Require().NoError(err)
	s.service = service
}

func fptr(v float64) *float64 { return &v }

// businessHours keeps time-window and weekday restrictions out of the way.
func businessHours() time.Time {
	return time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC) // Wednesday noon
}

func (s *CheckerSuite) putUser(u *permission.User) {
	s.Require().NoError(s.store.PutUser(s.ctx, u))
}

func (s *CheckerSuite) TestAdminBypassesRestrictions() {
	s.putUser(&permission.User{
		ID:      "u-admin",
		Name:    "Root",
		RoleIDs: []domain.RoleID{"admin_supremo"},
	})

	res, err := s.service.Check(s.ctx, permission.Request{
		UserID: "u-admin",
		Module: permission.ModuleAccounts,
		Action: permission.ActionTransfer,
		Context: permission.Context{
			AccountID: "azteca",
			Amount:    fptr(9999999),
			Timestamp: businessHours(),
		},
	})
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.False(res.RequiresApproval)
}

func (s *CheckerSuite) TestLockedUserDeniedEvenAsAdmin() {
	s.putUser(&permission.User{
		ID:      "u-locked",
		Name:    "Suspended",
		RoleIDs: []domain.RoleID{"admin_supremo"},
		Restrictions: permission.UserRestrictions{
			Locked:     true,
			LockReason: "Investigación en curso",
		},
	})

	res, err := s.service.Check(s.ctx, permission.Request{
		UserID:  "u-locked",
		Module:  permission.ModuleAccounts,
		Action:  permission.ActionView,
		Context: permission.Context{Timestamp: businessHours()},
	})
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal("Usuario bloqueado: Investigación en curso", res.Reason)
}

func (s *CheckerSuite) TestOverrideWinsOverRolePermission() {
	s.putUser(&permission.User{
		ID:      "u-override",
		Name:    "Special",
		RoleIDs: []domain.RoleID{"operador_general"},
		Overrides: []permission.Permission{
			{
				ID:     "ovr-ingreso",
				Module: permission.ModuleAccounts,
				Action: permission.ActionDeposit,
				Active: true,
				Restrictions: permission.Restrictions{
					MaxAmount: fptr(5000),
				},
			},
		},
	})

	// The role would allow up to 100000, but the override caps at 5000.
	res, err := s.service.Check(s.ctx, permission.Request{
		UserID: "u-override",
		Module: permission.ModuleAccounts,
		Action: permission.ActionDeposit,
		Context: permission.Context{
			Amount:    fptr(50000),
			Timestamp: businessHours(),
		},
	})
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal(permission.ViolationMaxAmount, res.RestrictionViolated)
	s.Equal(domain.RoleID("override"), res.RoleID)
}

func (s *CheckerSuite) TestMaxAmountViolationTag() {
	s.putUser(&permission.User{
		ID:      "u-black-card",
		Name:    "Tarjeta Negra",
		RoleIDs: []domain.RoleID{"tarjeta_negra"},
	})
	s.Require().NoError(s.store.PutRole(s.ctx, &permission.Role{
		ID:       "tarjeta_negra",
		Code:     "tarjeta_negra",
		Name:     "Tarjeta Negra",
		Active:   true,
		Priority: 60,
		Permissions: []permission.Permission{
			{
				ID:     "tn_gasto",
				Module: permission.ModuleAccounts,
				Action: permission.ActionExpense,
				Active: true,
				Restrictions: permission.Restrictions{
					MaxAmount: fptr(100000),
				},
			},
		},
	}))

	res, err := s.service.Check(s.ctx, permission.Request{
		UserID: "u-black-card",
		Module: permission.ModuleAccounts,
		Action: permission.ActionExpense,
		Context: permission.Context{
			Amount:    fptr(150000),
			Timestamp: businessHours(),
		},
	})
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal(permission.ViolationMaxAmount, res.RestrictionViolated)
}

func (s *CheckerSuite) TestRestrictionChain() {
	s.putUser(&permission.User{
		ID:      "u-cajero",
		Name:    "Cajero",
		RoleIDs: []domain.RoleID{"cajero_profit"},
	})

	tests := []struct {
		name         string
		reqCtx       permission.Context
		wantAllowed  bool
		wantViolated string
	}{
		{
			name: "allowed within all bounds",
			reqCtx: permission.Context{
				AccountID: "profit",
				Category:  permission.CategorySales,
				Amount:    fptr(1000),
				Timestamp: businessHours(),
			},
			wantAllowed: true,
		},
		{
			name: "wrong account",
			reqCtx: permission.Context{
				AccountID: "azteca",
				Amount:    fptr(1000),
				Timestamp: businessHours(),
			},
			wantViolated: permission.ViolationAccounts,
		},
		{
			name: "wrong category",
			reqCtx: permission.Context{
				AccountID: "profit",
				Category:  permission.CategoryPayroll,
				Amount:    fptr(1000),
				Timestamp: businessHours(),
			},
			wantViolated: permission.ViolationCategories,
		},
		{
			name: "over per-transaction limit",
			reqCtx: permission.Context{
				AccountID: "profit",
				Category:  permission.CategorySales,
				Amount:    fptr(60000),
				Timestamp: businessHours(),
			},
			wantViolated: permission.ViolationPerTxLimit,
		},
		{
			name: "outside schedule",
			reqCtx: permission.Context{
				AccountID: "profit",
				Category:  permission.CategorySales,
				Amount:    fptr(1000),
				Timestamp: time.Date(2026, time.March, 4, 23, 30, 0, 0, time.UTC),
			},
			wantViolated: permission.ViolationSchedule,
		},
		{
			name: "disallowed weekday",
			reqCtx: permission.Context{
				AccountID: "profit",
				Category:  permission.CategorySales,
				Amount:    fptr(1000),
				Timestamp: time.Date(2026, time.March, 8, 12, 0, 0, 0, time.UTC), // Sunday
			},
			wantViolated: permission.ViolationDays,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			res, err := s.service.Check(s.ctx, permission.Request{
				UserID:  "u-cajero",
				Module:  permission.ModuleAccounts,
				Action:  permission.ActionDeposit,
				Context: tt.reqCtx,
			})
			s.Require().NoError(err)
			s.Equal(tt.wantAllowed, res.Allowed)
			s.Equal(tt.wantViolated, res.RestrictionViolated)
		})
	}
}

func (s *CheckerSuite) TestNoMatchingPermission() {
	s.putUser(&permission.User{
		ID:      "u-visor",
		Name:    "Visor",
		RoleIDs: []domain.RoleID{"visor_reportes"},
	})

	res, err := s.service.Check(s.ctx, permission.Request{
		UserID:  "u-visor",
		Module:  permission.ModuleAccounts,
		Action:  permission.ActionExpense,
		Context: permission.Context{Timestamp: businessHours()},
	})
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal("No tienes permiso para gasto en bancos", res.Reason)
}

func (s *CheckerSuite) TestRequiresApprovalPassThrough() {
	s.putUser(&permission.User{
		ID:      "u-operador",
		Name:    "Operador",
		RoleIDs: []domain.RoleID{"operador_general"},
	})

	res, err := s.service.Check(s.ctx, permission.Request{
		UserID: "u-operador",
		Module: permission.ModuleAccounts,
		Action: permission.ActionExpense,
		Context: permission.Context{
			Amount:    fptr(10000),
			Timestamp: businessHours(),
		},
	})
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.True(res.RequiresApproval)
}

func (s *CheckerSuite) TestGlobalApprovalFlag() {
	s.putUser(&permission.User{
		ID:      "u-probation",
		Name:    "Probation",
		RoleIDs: []domain.RoleID{"visor_reportes"},
		Restrictions: permission.UserRestrictions{
			RequiresApprovalGlobal: true,
		},
	})

	res, err := s.service.Check(s.ctx, permission.Request{
		UserID:  "u-probation",
		Module:  permission.ModuleReports,
		Action:  permission.ActionView,
		Context: permission.Context{Timestamp: businessHours()},
	})
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.True(res.RequiresApproval)
}

func (s *CheckerSuite) TestUserGlobalAccountRestriction() {
	s.putUser(&permission.User{
		ID:      "u-confined",
		Name:    "Confined",
		RoleIDs: []domain.RoleID{"operador_general"},
		Restrictions: permission.UserRestrictions{
			AllowedAccounts: []domain.AccountID{"profit"},
		},
	})

	res, err := s.service.Check(s.ctx, permission.Request{
		UserID: "u-confined",
		Module: permission.ModuleAccounts,
		Action: permission.ActionDeposit,
		Context: permission.Context{
			AccountID: "azteca",
			Amount:    fptr(100),
			Timestamp: businessHours(),
		},
	})
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal(permission.ViolationAccounts, res.RestrictionViolated)
}

func (s *CheckerSuite) TestUnknownUserIsError() {
	_, err := s.service.Check(s.ctx, permission.Request{
		UserID: "u-ghost",
		Module: permission.ModuleAccounts,
		Action: permission.ActionView,
	})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

func (s *CheckerSuite) TestAccessibleAccounts() {
	s.putUser(&permission.User{
		ID:      "u-cajero",
		Name:    "Cajero",
		RoleIDs: []domain.RoleID{"cajero_profit"},
	})
	s.putUser(&permission.User{
		ID:      "u-admin",
		Name:    "Root",
		RoleIDs: []domain.RoleID{"admin_supremo"},
	})

	s.Run("restricted role sees its accounts", func() {
		accounts, err := s.service.AccessibleAccounts(s.ctx, "u-cajero", permission.ActionView)
		s.Require().NoError(err)
		s.Equal([]domain.AccountID{"profit"}, accounts)
	})

	s.Run("admin sees everything", func() {
		accounts, err := s.service.AccessibleAccounts(s.ctx, "u-admin", permission.ActionView)
		s.Require().NoError(err)
		s.Len(accounts, len(permission.AccountCatalog))
	})
}

func (s *CheckerSuite) TestSummaryOmitsEmptyModules() {
	s.putUser(&permission.User{
		ID:      "u-visor",
		Name:    "Visor",
		RoleIDs: []domain.RoleID{"visor_reportes"},
	})

	summary, err := s.service.Summary(s.ctx, "u-visor")
	s.Require().NoError(err)
	s.Len(summary, 2)
	s.Equal(permission.ModuleAccounts, summary[0].Module)
	s.Equal(permission.ModuleReports, summary[1].Module)
	s.Contains(summary[1].Actions, permission.ActionExport)
}
