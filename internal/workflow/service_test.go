package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"chronos/internal/condition"
	"chronos/internal/workflow"
	"chronos/pkg/domain"
)

type EngineSuite struct {
	suite.Suite

	ctx    context.Context
	store  *workflow.MemoryStore
	engine *workflow.Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = workflow.NewMemoryStore()
	s.Require().NoError(workflow.Seed(s.ctx, s.store))

	engine, err := workflow.New(s.store)
	s.Require().NoError(err)
	s.engine = engine
}

func fptr(v float64) *float64 { return &v }

func (s *EngineSuite) initiate(defID domain.DefinitionID, amount float64) *workflow.Instance {
	res := s.engine.Initiate(s.ctx, workflow.InitiateParams{
		DefinitionID:  defID,
		RequesterID:   "u-requester",
		RequesterName: "Solicitante",
		EntityType:    "gasto",
		EntityID:      "g-1",
		EntityName:    "Gasto de prueba",
		Amount:        fptr(amount),
	})
	s.Require().True(res.OK, res.Message)
	s.Require().NotNil(res.Instance)
	return res.Instance
}

func pendingAt(inst *workflow.Instance, order int) []workflow.PendingApproval {
	var out []workflow.PendingApproval
	for _, a := range inst.Approvals {
		if a.LevelOrder == order && a.Status == workflow.ApprovalPending {
			out = append(out, a)
		}
	}
	return out
}

func (s *EngineSuite) TestEntryLevelSelectedByAmount() {
	// 25000 falls in the 10000..50000 band, so the instance must enter at
	// the manager level directly, skipping the supervisor.
	inst := s.initiate("workflow_gastos", 25000)

	s.Equal(workflow.StatePending, inst.State)
	s.Equal(2, inst.CurrentLevel)
	s.Require().Len(inst.Approvals, 1)
	s.Equal("Gerente de Área", inst.Approvals[0].LevelName)
}

func (s *EngineSuite) TestEntryLevelFallsBackToFirst() {
	def := &workflow.Definition{
		ID:     "wf_estricto",
		Name:   "Estricto",
		Kind:   workflow.KindSequential,
		Module: "gastos",
		Active: true,
		Levels: []workflow.Level{
			{
				ID: "n1", Order: 1, Name: "Único",
				Approvers:  []workflow.Approver{{ID: "a1", UserID: "u-boss", Type: workflow.ApproverUser, Name: "Boss"}},
				Conditions: []condition.Condition{{Kind: condition.KindAmount, Operator: condition.OpGt, Value: 1000000.0}},
			},
		},
		Config: workflow.Config{AllowCancel: true},
	}
	s.Require().NoError(s.engine.SaveDefinition(s.ctx, def))

	inst := s.initiate("wf_estricto", 5)
	s.Equal(1, inst.CurrentLevel)
}

func (s *EngineSuite) TestInitialConditionsGateInitiation() {
	def := &workflow.Definition{
		ID:     "wf_condicionado",
		Name:   "Condicionado",
		Kind:   workflow.KindSimple,
		Module: "gastos",
		Active: true,
		InitialConditions: []condition.Condition{
			{Kind: condition.KindAmount, Operator: condition.OpGte, Value: 100.0},
		},
		Levels: []workflow.Level{
			{ID: "n1", Order: 1, Name: "Nivel", Approvers: []workflow.Approver{{ID: "a1", UserID: "u-boss", Type: workflow.ApproverUser, Name: "Boss"}}},
		},
	}
	s.Require().NoError(s.engine.SaveDefinition(s.ctx, def))

	res := s.engine.Initiate(s.ctx, workflow.InitiateParams{
		DefinitionID: "wf_condicionado",
		RequesterID:  "u-requester",
		Amount:       fptr(50),
	})
	s.False(res.OK)
	s.Equal("No se cumplen las condiciones para iniciar este workflow", res.Message)
}

func (s *EngineSuite) TestUnknownDefinition() {
	res := s.engine.Initiate(s.ctx, workflow.InitiateParams{
		DefinitionID: "wf_fantasma",
		RequesterID:  "u-requester",
	})
	s.False(res.OK)
	s.Equal("Definición de workflow no encontrada", res.Message)
}

func (s *EngineSuite) TestRequireAllQuorum() {
	// Transfers level has two approvers with require_all.
	inst := s.initiate("workflow_transferencias", 30000)
	approvals := pendingAt(inst, 1)
	s.Require().Len(approvals, 2)

	res := s.engine.Approve(s.ctx, workflow.ApproveParams{
		InstanceID: inst.ID, ApprovalID: approvals[0].ID,
		ApproverID: "u-tesorero", ApproverName: "Tesorero",
	})
	s.Require().True(res.OK)
	s.Equal(workflow.StatePending, res.Instance.State)

	res = s.engine.Approve(s.ctx, workflow.ApproveParams{
		InstanceID: inst.ID, ApprovalID: approvals[1].ID,
		ApproverID: "u-contador", ApproverName: "Contador",
	})
	s.Require().True(res.OK)
	s.Equal(workflow.StateCompleted, res.Instance.State)
	s.False(res.Instance.CompletedAt.IsZero())
}

func (s *EngineSuite) TestAnyQuorumAdvancesOnFirstApproval() {
	def := &workflow.Definition{
		ID:     "wf_cualquiera",
		Name:   "Cualquiera",
		Kind:   workflow.KindParallel,
		Module: "gastos",
		Active: true,
		Levels: []workflow.Level{
			{
				ID: "n1", Order: 1, Name: "Dupla",
				Approvers: []workflow.Approver{
					{ID: "a1", UserID: "u-uno", Type: workflow.ApproverUser, Name: "Uno"},
					{ID: "a2", UserID: "u-dos", Type: workflow.ApproverUser, Name: "Dos"},
				},
			},
		},
		Config: workflow.Config{AllowCancel: true},
	}
	s.Require().NoError(s.engine.SaveDefinition(s.ctx, def))

	inst := s.initiate("wf_cualquiera", 100)
	approvals := pendingAt(inst, 1)
	s.Require().Len(approvals, 2)

	res := s.engine.Approve(s.ctx, workflow.ApproveParams{
		InstanceID: inst.ID, ApprovalID: approvals[0].ID,
		ApproverID: "u-uno", ApproverName: "Uno",
	})
	s.Require().True(res.OK)
	s.Equal(workflow.StateCompleted, res.Instance.State)

	// The second approver's now-obsolete record can no longer be acted on.
	res = s.engine.Approve(s.ctx, workflow.ApproveParams{
		InstanceID: inst.ID, ApprovalID: approvals[1].ID,
		ApproverID: "u-dos", ApproverName: "Dos",
	})
	s.False(res.OK)
	s.Equal("Esta instancia ya fue procesada", res.Message)
}

func (s *EngineSuite) TestRejectionIsTerminal() {
	inst := s.initiate("workflow_transferencias", 30000)
	approvals := pendingAt(inst, 1)
	s.Require().Len(approvals, 2)

	res := s.engine.Reject(s.ctx, workflow.RejectParams{
		InstanceID: inst.ID, ApprovalID: approvals[0].ID,
		ApproverID: "u-tesorero", ApproverName: "Tesorero",
		Comments: "Monto injustificado",
	})
	s.Require().True(res.OK)
	s.Equal(workflow.StateRejected, res.Instance.State)

	// The other approver can no longer approve.
	res = s.engine.Approve(s.ctx, workflow.ApproveParams{
		InstanceID: inst.ID, ApprovalID: approvals[1].ID,
		ApproverID: "u-contador", ApproverName: "Contador",
	})
	s.False(res.OK)
	s.Equal("Esta instancia ya fue procesada", res.Message)
}

func (s *EngineSuite) TestDelegationPreservesTrail() {
	inst := s.initiate("workflow_gastos", 5000)
	approvals := pendingAt(inst, 1)
	s.Require().Len(approvals, 1)
	before := len(inst.Approvals)

	res := s.engine.Delegate(s.ctx, workflow.DelegateParams{
		InstanceID: inst.ID, ApprovalID: approvals[0].ID,
		FromID: "u-supervisor", FromName: "Supervisor",
		ToID: "u-suplente", ToName: "Suplente",
		Comments: "Estoy de vacaciones",
	})
	s.Require().True(res.OK)

	inst = res.Instance
	s.Len(inst.Approvals, before+1)

	var original, delegated *workflow.PendingApproval
	for i := range inst.Approvals {
		switch inst.Approvals[i].ID {
		case approvals[0].ID:
			original = &inst.Approvals[i]
		default:
			delegated = &inst.Approvals[i]
		}
	}
	s.Require().NotNil(original)
	s.Require().NotNil(delegated)
	s.Equal(workflow.ApprovalDelegated, original.Status)
	s.Equal(workflow.ApprovalPending, delegated.Status)
	s.Equal(domain.UserID("u-suplente"), delegated.ApproverID)
	s.Equal("Supervisor", delegated.DelegatedFrom)

	// The delegate's vote completes the level alone: the delegated original
	// does not count toward quorum.
	res = s.engine.Approve(s.ctx, workflow.ApproveParams{
		InstanceID: inst.ID, ApprovalID: delegated.ID,
		ApproverID: "u-suplente", ApproverName: "Suplente",
	})
	s.Require().True(res.OK)
	s.Equal(workflow.StateCompleted, res.Instance.State)
}

func (s *EngineSuite) TestAdvanceSkipsNonApplicableLevels() {
	// Amount 5000 enters at the supervisor level. On completion neither the
	// manager band (10000..50000) nor the director floor (>=50000) applies,
	// so the instance completes rather than advancing.
	inst := s.initiate("workflow_gastos", 5000)
	s.Equal(1, inst.CurrentLevel)

	approvals := pendingAt(inst, 1)
	s.Require().Len(approvals, 1)

	res := s.engine.Approve(s.ctx, workflow.ApproveParams{
		InstanceID: inst.ID, ApprovalID: approvals[0].ID,
		ApproverID: "u-supervisor", ApproverName: "Supervisor",
	})
	s.Require().True(res.OK)
	s.Equal(workflow.StateCompleted, res.Instance.State)

	last := res.Instance.History[len(res.Instance.History)-1]
	s.Equal(workflow.ActionCompleted, last.Type)
}

func (s *EngineSuite) TestSequentialAdvanceThroughUnconditionalLevels() {
	inst := s.initiate("workflow_ordenes", 1200)
	s.Equal(1, inst.CurrentLevel)

	res := s.engine.Approve(s.ctx, workflow.ApproveParams{
		InstanceID: inst.ID, ApprovalID: pendingAt(inst, 1)[0].ID,
		ApproverID: "u-almacen", ApproverName: "Almacén",
	})
	s.Require().True(res.OK)
	s.Equal(workflow.StatePending, res.Instance.State)
	s.Equal(2, res.Instance.CurrentLevel)
	s.Require().Len(pendingAt(res.Instance, 2), 1)

	res = s.engine.Approve(s.ctx, workflow.ApproveParams{
		InstanceID: inst.ID, ApprovalID: pendingAt(res.Instance, 2)[0].ID,
		ApproverID: "u-compras", ApproverName: "Compras",
	})
	s.Require().True(res.OK)
	s.Equal(workflow.StateCompleted, res.Instance.State)
}

func (s *EngineSuite) TestDoubleApproveFails() {
	inst := s.initiate("workflow_transferencias", 30000)
	approvals := pendingAt(inst, 1)

	res := s.engine.Approve(s.ctx, workflow.ApproveParams{
		InstanceID: inst.ID, ApprovalID: approvals[0].ID,
		ApproverID: "u-tesorero", ApproverName: "Tesorero",
	})
	s.Require().True(res.OK)

	res = s.engine.Approve(s.ctx, workflow.ApproveParams{
		InstanceID: inst.ID, ApprovalID: approvals[0].ID,
		ApproverID: "u-tesorero", ApproverName: "Tesorero",
	})
	s.False(res.OK)
	s.Equal("Esta aprobación ya fue procesada", res.Message)
}

func (s *EngineSuite) TestCancelRespectsDefinitionConfig() {
	def := &workflow.Definition{
		ID:     "wf_sin_cancelar",
		Name:   "Sin Cancelar",
		Kind:   workflow.KindSimple,
		Module: "gastos",
		Active: true,
		Levels: []workflow.Level{
			{ID: "n1", Order: 1, Name: "Nivel", Approvers: []workflow.Approver{{ID: "a1", UserID: "u-boss", Type: workflow.ApproverUser, Name: "Boss"}}},
		},
	}
	s.Require().NoError(s.engine.SaveDefinition(s.ctx, def))

	inst := s.initiate("wf_sin_cancelar", 10)
	res := s.engine.Cancel(s.ctx, workflow.CancelParams{
		InstanceID: inst.ID, UserID: "u-requester", UserName: "Solicitante", Reason: "Ya no aplica",
	})
	s.False(res.OK)
	s.Equal("Este workflow no permite cancelación", res.Message)

	inst2 := s.initiate("workflow_gastos", 5000)
	res = s.engine.Cancel(s.ctx, workflow.CancelParams{
		InstanceID: inst2.ID, UserID: "u-requester", UserName: "Solicitante", Reason: "Duplicado",
	})
	s.Require().True(res.OK)
	s.Equal(workflow.StateCancelled, res.Instance.State)
	s.Equal("Duplicado", res.Instance.CancelReason)
}

func (s *EngineSuite) TestSubscribersSurvivePanics() {
	inst := s.initiate("workflow_gastos", 5000)

	var delivered []workflow.State
	unsubscribePanicky := s.engine.Subscribe(inst.ID, func(*workflow.Instance) {
		panic("subscriber bug")
	})
	defer unsubscribePanicky()
	unsubscribe := s.engine.Subscribe(inst.ID, func(i *workflow.Instance) {
		delivered = append(delivered, i.State)
	})
	defer unsubscribe()

	res := s.engine.Approve(s.ctx, workflow.ApproveParams{
		InstanceID: inst.ID, ApprovalID: pendingAt(inst, 1)[0].ID,
		ApproverID: "u-supervisor", ApproverName: "Supervisor",
	})
	s.Require().True(res.OK)
	s.Require().Len(delivered, 1)
	s.Equal(workflow.StateCompleted, delivered[0])
}

func (s *EngineSuite) TestPendingForUser() {
	inst := s.initiate("workflow_gastos", 25000)

	pending, err := s.engine.PendingForUser(s.ctx, "rol_gerente")
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(inst.ID, pending[0].ID)

	none, err := s.engine.PendingForUser(s.ctx, "u-ajeno")
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *EngineSuite) TestStats() {
	first := s.initiate("workflow_gastos", 5000)
	s.initiate("workflow_transferencias", 30000)

	res := s.engine.Approve(s.ctx, workflow.ApproveParams{
		InstanceID: first.ID, ApprovalID: pendingAt(first, 1)[0].ID,
		ApproverID: "u-supervisor", ApproverName: "Supervisor",
	})
	s.Require().True(res.OK)

	stats, err := s.engine.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, stats.Total)
	s.Equal(1, stats.Pending)
	s.Equal(1, stats.Approved)
	s.Equal(1, stats.ByModule["gastos"])
	s.Equal(1, stats.ByModule["bancos"])
}

func (s *EngineSuite) TestSaveDefinitionValidatesLevels() {
	err := s.engine.SaveDefinition(s.ctx, &workflow.Definition{ID: "wf_vacio", Name: "Vacío"})
	s.Require().Error(err)

	err = s.engine.SaveDefinition(s.ctx, &workflow.Definition{
		ID:   "wf_desordenado",
		Name: "Desordenado",
		Levels: []workflow.Level{
			{ID: "n2", Order: 2, Name: "B", Approvers: []workflow.Approver{{ID: "a", Name: "A", Type: workflow.ApproverUser, UserID: "u"}}},
			{ID: "n1", Order: 1, Name: "A", Approvers: []workflow.Approver{{ID: "b", Name: "B", Type: workflow.ApproverUser, UserID: "u"}}},
		},
	})
	s.Require().Error(err)
}
