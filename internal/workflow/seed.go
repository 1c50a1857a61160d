package workflow

import (
	"context"
	"time"

	"chronos/internal/condition"
)

// Seed installs the predefined workflow definitions: expenses tiered by
// amount, parallel transfer sign-off, and the two-stage purchase order flow.
func Seed(ctx context.Context, store Store) error {
	now := time.Now()
	defs := []Definition{
		{
			ID:          "workflow_gastos",
			Name:        "Aprobación de Gastos",
			Description: "Flujo de aprobación para gastos según monto",
			Kind:        KindSequential,
			Module:      "gastos",
			Active:      true,
			Levels: []Level{
				{
					ID:          "nivel_1",
					Order:       1,
					Name:        "Supervisor Directo",
					Description: "Primera revisión por supervisor",
					Approvers: []Approver{
						{ID: "apr_1", Type: ApproverSupervisor, Name: "Supervisor Directo", CanDelegate: true},
					},
					TimeLimitHours:    24,
					AutoEscalate:      true,
					EscalateToLevelID: "nivel_2",
					Conditions: []condition.Condition{
						{ID: "cond_1", Kind: condition.KindAmount, Operator: condition.OpLt, Value: 10000.0},
					},
				},
				{
					ID:          "nivel_2",
					Order:       2,
					Name:        "Gerente de Área",
					Description: "Revisión por gerente para montos mayores",
					Approvers: []Approver{
						{ID: "apr_2", RoleID: "rol_gerente", Type: ApproverRole, Name: "Gerente de Área", CanDelegate: true},
					},
					TimeLimitHours:    48,
					AutoEscalate:      true,
					EscalateToLevelID: "nivel_3",
					Conditions: []condition.Condition{
						{ID: "cond_2", Kind: condition.KindAmount, Operator: condition.OpBetween, Value: 10000.0, SecondValue: 50000.0},
					},
				},
				{
					ID:          "nivel_3",
					Order:       3,
					Name:        "Director Financiero",
					Description: "Aprobación final para montos altos",
					Approvers: []Approver{
						{ID: "apr_3", RoleID: "rol_director_financiero", Type: ApproverRole, Name: "Director Financiero"},
					},
					RequireAll:     true,
					TimeLimitHours: 72,
					Conditions: []condition.Condition{
						{ID: "cond_3", Kind: condition.KindAmount, Operator: condition.OpGte, Value: 50000.0},
					},
				},
			},
			Config: Config{
				AllowCancel:            true,
				NotifyRequester:        true,
				NotifyApprovers:        true,
				ReminderHours:          12,
				GlobalEscalationHours:  72,
				GlobalEscalationRoleID: "rol_admin",
			},
			CreatedBy: "sistema",
			CreatedAt: now,
		},
		{
			ID:          "workflow_transferencias",
			Name:        "Aprobación de Transferencias",
			Description: "Flujo para transferencias entre bancos",
			Kind:        KindParallel,
			Module:      "bancos",
			Active:      true,
			Levels: []Level{
				{
					ID:    "nivel_trans_1",
					Order: 1,
					Name:  "Tesorería",
					Approvers: []Approver{
						{ID: "apr_tes", RoleID: "rol_tesorero", Type: ApproverRole, Name: "Tesorero", CanDelegate: true},
						{ID: "apr_cont", RoleID: "rol_contador", Type: ApproverRole, Name: "Contador", CanDelegate: true},
					},
					RequireAll:     true,
					TimeLimitHours: 24,
					AutoEscalate:   true,
					Conditions: []condition.Condition{
						{ID: "cond_t1", Kind: condition.KindAmount, Operator: condition.OpGte, Value: 25000.0},
					},
				},
			},
			Config: Config{
				AllowCancel:     true,
				NotifyRequester: true,
				NotifyApprovers: true,
				ReminderHours:   8,
			},
			CreatedBy: "sistema",
			CreatedAt: now,
		},
		{
			ID:          "workflow_ordenes",
			Name:        "Aprobación de Órdenes de Compra",
			Description: "Flujo de aprobación para órdenes de compra",
			Kind:        KindSequential,
			Module:      "ordenes",
			Active:      true,
			Levels: []Level{
				{
					ID:    "nivel_oc_1",
					Order: 1,
					Name:  "Almacén",
					Approvers: []Approver{
						{ID: "apr_alm", RoleID: "rol_almacen", Type: ApproverRole, Name: "Encargado de Almacén", CanDelegate: true},
					},
					TimeLimitHours: 24,
					AutoEscalate:   true,
				},
				{
					ID:    "nivel_oc_2",
					Order: 2,
					Name:  "Compras",
					Approvers: []Approver{
						{ID: "apr_comp", RoleID: "rol_compras", Type: ApproverRole, Name: "Jefe de Compras", CanDelegate: true},
					},
					TimeLimitHours: 48,
					AutoEscalate:   true,
				},
			},
			Config: Config{
				AllowCancel:         true,
				AllowModifyInFlight: true,
				NotifyRequester:     true,
				NotifyApprovers:     true,
				ReminderHours:       12,
			},
			CreatedBy: "sistema",
			CreatedAt: now,
		},
	}

	for i := range defs {
		if err := store.PutDefinition(ctx, &defs[i]); err != nil {
			return err
		}
	}
	return nil
}
