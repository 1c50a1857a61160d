package notification

import (
	"context"
	"fmt"

	"chronos/internal/workflow"
)

// WorkflowNotifier adapts the service to the workflow engine's notifier
// port: pending approvals turn into approval-request messages and instance
// events into status updates for the requester.
type WorkflowNotifier struct {
	svc *Service
}

func NewWorkflowNotifier(svc *Service) *WorkflowNotifier {
	return &WorkflowNotifier{svc: svc}
}

func (n *WorkflowNotifier) ApprovalRequested(ctx context.Context, inst *workflow.Instance, approval workflow.PendingApproval) {
	var amount float64
	if inst.Amount != nil {
		amount = *inst.Amount
	}
	_, err := n.svc.SendApprovalRequest(ctx, ApprovalRequestParams{
		UserID:        approval.ApproverID,
		Operation:     inst.EntityName,
		Amount:        amount,
		AccountName:   inst.EntityType,
		RequesterID:   inst.RequesterID,
		RequesterName: inst.RequesterName,
		EntityID:      string(inst.ID),
	})
	if err != nil {
		n.svc.logger.Error("sending approval request notification",
			"instance", inst.ID, "approver", approval.ApproverID, "error", err)
	}
}

func (n *WorkflowNotifier) RequesterUpdated(ctx context.Context, inst *workflow.Instance, event workflow.ActionType) {
	typ, title := requesterEvent(event)
	_, err := n.svc.Send(ctx, SendParams{
		UserID:     inst.RequesterID,
		Type:       typ,
		Category:   CategoryApprovals,
		Title:      title,
		Body:       fmt.Sprintf("%s: %s", inst.DefinitionName, inst.EntityName),
		Module:     string(inst.Module),
		EntityType: "workflow",
		EntityID:   string(inst.ID),
	})
	if err != nil {
		n.svc.logger.Error("sending requester update notification",
			"instance", inst.ID, "event", event, "error", err)
	}
}

func requesterEvent(event workflow.ActionType) (Type, string) {
	switch event {
	case workflow.ActionApproved:
		return TypeSuccess, "Aprobación registrada"
	case workflow.ActionCompleted:
		return TypeSuccess, "Workflow aprobado"
	case workflow.ActionRejected:
		return TypeError, "Workflow rechazado"
	case workflow.ActionCancelled:
		return TypeWarning, "Workflow cancelado"
	case workflow.ActionEscalated:
		return TypeWarning, "Workflow escalado"
	case workflow.ActionDelegated:
		return TypeInfo, "Aprobación delegada"
	default:
		return TypeInfo, "Workflow actualizado"
	}
}

var _ workflow.Notifier = (*WorkflowNotifier)(nil)
