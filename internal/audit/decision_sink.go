package audit

import (
	"context"
	"fmt"

	"chronos/internal/permission"
)

// DecisionRecorder adapts the recorder to the permission checker's decision
// port: every check, allowed or denied, becomes one audit entry attributed to
// the requesting user.
type DecisionRecorder struct {
	rec *Recorder
}

func NewDecisionRecorder(rec *Recorder) *DecisionRecorder {
	return &DecisionRecorder{rec: rec}
}

func (d *DecisionRecorder) PermissionDecision(ctx context.Context, req permission.Request, res permission.Result) {
	in := Input{
		Actor:       Actor{ID: req.UserID, Name: string(req.UserID)},
		Action:      Action(req.Action),
		Module:      permissionModule(req.Module),
		Description: decisionDescription(req, res),
		Device:      DeviceContext{IP: req.Context.IP, UserAgent: req.Context.Device},
		Failed:      !res.Allowed,
		Tags:        []string{"permiso"},
		Metadata: map[string]any{
			"allowed":           res.Allowed,
			"requires_approval": res.RequiresApproval,
		},
	}
	if !res.Allowed {
		in.Severity = SeverityWarning
		in.ErrorMessage = res.Reason
		if res.RestrictionViolated != "" {
			in.Metadata["restriction_violated"] = res.RestrictionViolated
		}
	}
	if req.Context.AccountID != "" && req.Context.Amount != nil {
		in.Finance = &FinancialContext{
			AccountID: req.Context.AccountID,
			Amount:    *req.Context.Amount,
		}
	}
	if _, err := d.rec.Record(ctx, in); err != nil {
		d.rec.logger.Error("recording permission decision", "error", err)
	}
}

func decisionDescription(req permission.Request, res permission.Result) string {
	if res.Allowed {
		return fmt.Sprintf("Permiso concedido: %s en %s", req.Action, req.Module)
	}
	return fmt.Sprintf("Permiso denegado: %s en %s", req.Action, req.Module)
}

// permissionModule maps checker module names onto audit module names. The
// only mismatch is purchase orders.
func permissionModule(m permission.Module) Module {
	if m == permission.ModulePurchaseOrders {
		return ModuleOrders
	}
	return Module(m)
}

var _ permission.DecisionSink = (*DecisionRecorder)(nil)
