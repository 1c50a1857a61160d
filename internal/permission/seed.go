package permission

import (
	"context"
	"time"

	"chronos/pkg/domain"
)

func fptr(v float64) *float64 { return &v }

// Seed loads the predefined role templates into the store. Called once at
// startup; roles are immutable at runtime.
func Seed(ctx context.Context, store Store) error {
	now := time.Now()
	roles := []Role{
		{
			ID:          "admin_supremo",
			Code:        "admin_supremo",
			Name:        "Administrador Supremo",
			Description: "Control total del sistema sin restricciones",
			Color:       "#FFD700",
			Icon:        "crown",
			IsAdmin:     true,
			Active:      true,
			Priority:    100,
			CreatedAt:   now,
		},
		{
			ID:          "operador_general",
			Code:        "operador_general",
			Name:        "Operador General",
			Description: "Puede realizar operaciones en todos los bancos",
			Color:       "#8B5CF6",
			Icon:        "user-cog",
			Active:      true,
			Priority:    50,
			CreatedAt:   now,
			Permissions: []Permission{
				{
					ID:     "op_gen_bancos_ver",
					Module: ModuleAccounts,
					Action: ActionView,
					Active: true,
				},
				{
					ID:     "op_gen_bancos_ingreso",
					Module: ModuleAccounts,
					Action: ActionDeposit,
					Active: true,
					Restrictions: Restrictions{
						MaxAmount:      fptr(100000),
						RequiresReason: true,
					},
				},
				{
					ID:     "op_gen_bancos_gasto",
					Module: ModuleAccounts,
					Action: ActionExpense,
					Active: true,
					Restrictions: Restrictions{
						MaxAmount:         fptr(50000),
						RequiresApproval:  true,
						RequiresReason:    true,
						RequiresReference: true,
					},
				},
			},
		},
		{
			ID:          "cajero_profit",
			Code:        "cajero_profit",
			Name:        "Cajero Profit",
			Description: "Solo puede registrar ingresos en la bóveda Profit",
			Color:       "#10B981",
			Icon:        "dollar-sign",
			Active:      true,
			Priority:    20,
			CreatedAt:   now,
			Permissions: []Permission{
				{
					ID:     "cajero_profit_ver",
					Module: ModuleAccounts,
					Action: ActionView,
					Active: true,
					Restrictions: Restrictions{
						AllowedAccounts: []domain.AccountID{"profit"},
					},
				},
				{
					ID:     "cajero_profit_ingreso",
					Module: ModuleAccounts,
					Action: ActionDeposit,
					Active: true,
					Restrictions: Restrictions{
						AllowedAccounts:   []domain.AccountID{"profit"},
						AllowedCategories: []string{CategorySales, CategoryDeposits},
						DailyLimit:        fptr(500000),
						PerTxLimit:        fptr(50000),
						Window:            domain.ClockWindow{Start: "08:00", End: "20:00"},
						AllowedDays: []time.Weekday{
							time.Monday, time.Tuesday, time.Wednesday,
							time.Thursday, time.Friday, time.Saturday,
						},
						RequiresReason:    true,
						RequiresReference: true,
					},
				},
			},
		},
		{
			ID:          "tesorero_boveda",
			Code:        "tesorero_boveda",
			Name:        "Tesorero de Bóvedas",
			Description: "Maneja transferencias entre bóvedas principales",
			Color:       "#F59E0B",
			Icon:        "vault",
			Active:      true,
			Priority:    40,
			CreatedAt:   now,
			Permissions: []Permission{
				{
					ID:     "tesorero_ver",
					Module: ModuleAccounts,
					Action: ActionView,
					Active: true,
					Restrictions: Restrictions{
						AllowedAccounts: []domain.AccountID{"boveda_monte", "boveda_usa", "profit"},
					},
				},
				{
					ID:     "tesorero_transferir",
					Module: ModuleAccounts,
					Action: ActionTransfer,
					Active: true,
					Restrictions: Restrictions{
						AllowedAccounts:   []domain.AccountID{"boveda_monte", "boveda_usa", "profit"},
						AllowedCategories: []string{CategoryInternalTransfers},
						MaxAmount:         fptr(200000),
						RequiresApproval:  true,
						RequiresReason:    true,
						RequiresReference: true,
					},
				},
			},
		},
		{
			ID:          "pagador_distribuidores",
			Code:        "pagador_distribuidores",
			Name:        "Pagador de Distribuidores",
			Description: "Solo puede realizar pagos a distribuidores desde Leftie",
			Color:       "#EC4899",
			Icon:        "truck",
			Active:      true,
			Priority:    25,
			CreatedAt:   now,
			Permissions: []Permission{
				{
					ID:     "pagador_ver",
					Module: ModuleAccounts,
					Action: ActionView,
					Active: true,
					Restrictions: Restrictions{
						AllowedAccounts: []domain.AccountID{"leftie"},
					},
				},
				{
					ID:     "pagador_gasto",
					Module: ModuleAccounts,
					Action: ActionExpense,
					Active: true,
					Restrictions: Restrictions{
						AllowedAccounts:   []domain.AccountID{"leftie"},
						AllowedCategories: []string{CategoryDistributorPay},
						MaxAmount:         fptr(100000),
						RequiresApproval:  true,
						RequiresReason:    true,
						RequiresReference: true,
					},
				},
				{
					ID:     "pagador_dist_ver",
					Module: ModuleDistributors,
					Action: ActionView,
					Active: true,
				},
			},
		},
		{
			ID:          "visor_reportes",
			Code:        "visor_reportes",
			Name:        "Visor de Reportes",
			Description: "Solo puede ver información y exportar reportes",
			Color:       "#06B6D4",
			Icon:        "eye",
			Active:      true,
			Priority:    10,
			CreatedAt:   now,
			Permissions: []Permission{
				{
					ID:     "visor_bancos",
					Module: ModuleAccounts,
					Action: ActionView,
					Active: true,
				},
				{
					ID:     "visor_reportes_ver",
					Module: ModuleReports,
					Action: ActionView,
					Active: true,
				},
				{
					ID:     "visor_reportes_exportar",
					Module: ModuleReports,
					Action: ActionExport,
					Active: true,
					Restrictions: Restrictions{
						RequiresApproval: true,
						RequiresReason:   true,
					},
				},
			},
		},
	}

	for i := range roles {
		if err := store.PutRole(ctx, &roles[i]); err != nil {
			return err
		}
	}
	return nil
}
