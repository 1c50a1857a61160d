package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"chronos/internal/condition"
	"chronos/internal/platform/metrics"
	"chronos/pkg/domain"
	dErrors "chronos/pkg/domain-errors"
)

// Engine drives workflow instances through their approval levels. All
// mutating operations are serialized by an engine-wide lock so instance
// histories stay totally ordered.
type Engine struct {
	store    Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
	notifier Notifier

	mu sync.Mutex

	subMu     sync.Mutex
	listeners map[domain.InstanceID]map[int]func(*Instance)
	nextSub   int
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func New(store Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "store is required")
	}
	e := &Engine{
		store:     store,
		logger:    slog.Default(),
		listeners: make(map[domain.InstanceID]map[int]func(*Instance)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// InitiateParams starts a new instance from a definition.
type InitiateParams struct {
	DefinitionID  domain.DefinitionID `json:"definition_id"`
	RequesterID   domain.UserID       `json:"requester_id"`
	RequesterName string              `json:"requester_name"`
	EntityType    string              `json:"entity_type"`
	EntityID      string              `json:"entity_id"`
	EntityName    string              `json:"entity_name"`
	Payload       map[string]any      `json:"payload,omitempty"`
	Amount        *float64            `json:"amount,omitempty"`
}

// Initiate creates an instance, selecting the entry level by scanning the
// definition's levels in order and picking the first whose conditions hold.
// If none match the first level is used.
func (e *Engine) Initiate(ctx context.Context, p InitiateParams) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	def, err := e.store.GetDefinition(ctx, p.DefinitionID)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeNotFound) {
			return failure("Definición de workflow no encontrada")
		}
		return e.internalFailure(ctx, "initiate", err)
	}

	if !condition.EvaluateAll(def.InitialConditions, p.Payload, p.Amount) {
		return failure("No se cumplen las condiciones para iniciar este workflow")
	}

	entry := entryLevel(def, p.Payload, p.Amount)
	now := time.Now()
	inst := &Instance{
		ID:             domain.InstanceID("wf_" + uuid.NewString()),
		DefinitionID:   def.ID,
		DefinitionName: def.Name,
		RequesterID:    p.RequesterID,
		RequesterName:  p.RequesterName,
		State:          StatePending,
		CurrentLevel:   entry.Order,
		EntityType:     p.EntityType,
		EntityID:       p.EntityID,
		EntityName:     p.EntityName,
		Payload:        p.Payload,
		Module:         def.Module,
		Amount:         p.Amount,
		History: []ActionRecord{{
			ID:        "acc_" + uuid.NewString(),
			Type:      ActionCreated,
			UserID:    p.RequesterID,
			UserName:  p.RequesterName,
			Comments:  "Workflow iniciado",
			Timestamp: now,
		}},
		Approvals: approvalsForLevel(entry, now),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.store.PutInstance(ctx, inst); err != nil {
		return e.internalFailure(ctx, "initiate", err)
	}

	e.countTransition(ActionCreated)
	e.logger.InfoContext(ctx, "workflow initiated",
		"instance_id", inst.ID,
		"definition", def.Name,
		"entry_level", entry.Name,
	)
	e.afterChange(ctx, def, inst, ActionCreated, inst.Approvals)

	return Result{OK: true, Message: "Workflow iniciado correctamente", Instance: inst}
}

// ApproveParams records one approver's vote.
type ApproveParams struct {
	InstanceID   domain.InstanceID `json:"instance_id"`
	ApprovalID   domain.ApprovalID `json:"approval_id"`
	ApproverID   domain.UserID     `json:"approver_id"`
	ApproverName string            `json:"approver_name"`
	Comments     string            `json:"comments,omitempty"`
}

// Approve marks one pending approval approved and, when that completes the
// current level's quorum, advances the instance.
func (e *Engine) Approve(ctx context.Context, p ApproveParams) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, def, res := e.load(ctx, p.InstanceID)
	if res != nil {
		return *res
	}

	idx := approvalIndex(inst, p.ApprovalID)
	if idx < 0 {
		return failure("Aprobación no encontrada")
	}
	if inst.Approvals[idx].Status != ApprovalPending {
		return failure("Esta aprobación ya fue procesada")
	}

	now := time.Now()
	inst.Approvals[idx].Status = ApprovalApproved
	inst.Approvals[idx].Comments = p.Comments
	inst.Approvals[idx].RespondedAt = now

	appendHistory(inst, ActionRecord{
		Type:      ActionApproved,
		UserID:    p.ApproverID,
		UserName:  p.ApproverName,
		LevelID:   inst.Approvals[idx].LevelID,
		LevelName: inst.Approvals[idx].LevelName,
		Comments:  p.Comments,
	}, now)

	var newApprovals []PendingApproval
	if levelComplete(def, inst) {
		newApprovals = e.advance(def, inst, now)
	}
	inst.UpdatedAt = now

	if err := e.store.PutInstance(ctx, inst); err != nil {
		return e.internalFailure(ctx, "approve", err)
	}

	e.countTransition(ActionApproved)
	e.afterChange(ctx, def, inst, ActionApproved, newApprovals)

	return Result{OK: true, Message: "Aprobación registrada correctamente", Instance: inst}
}

// RejectParams records a rejection. A reason is expected by callers but not
// enforced here.
type RejectParams struct {
	InstanceID   domain.InstanceID `json:"instance_id"`
	ApprovalID   domain.ApprovalID `json:"approval_id"`
	ApproverID   domain.UserID     `json:"approver_id"`
	ApproverName string            `json:"approver_name"`
	Comments     string            `json:"comments"`
}

// Reject terminates the whole instance: a single rejection at any level sets
// the state to rechazado and no further approvals are processed.
func (e *Engine) Reject(ctx context.Context, p RejectParams) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, _, res := e.load(ctx, p.InstanceID)
	if res != nil {
		return *res
	}

	idx := approvalIndex(inst, p.ApprovalID)
	if idx < 0 {
		return failure("Aprobación no encontrada")
	}

	now := time.Now()
	inst.Approvals[idx].Status = ApprovalRejected
	inst.Approvals[idx].Comments = p.Comments
	inst.Approvals[idx].RespondedAt = now
	inst.State = StateRejected

	appendHistory(inst, ActionRecord{
		Type:      ActionRejected,
		UserID:    p.ApproverID,
		UserName:  p.ApproverName,
		LevelID:   inst.Approvals[idx].LevelID,
		LevelName: inst.Approvals[idx].LevelName,
		Comments:  p.Comments,
	}, now)
	inst.UpdatedAt = now

	if err := e.store.PutInstance(ctx, inst); err != nil {
		return e.internalFailure(ctx, "reject", err)
	}

	e.countTransition(ActionRejected)
	e.afterChange(ctx, nil, inst, ActionRejected, nil)

	return Result{OK: true, Message: "Workflow rechazado", Instance: inst}
}

// DelegateParams hands a pending approval to another user.
type DelegateParams struct {
	InstanceID domain.InstanceID `json:"instance_id"`
	ApprovalID domain.ApprovalID `json:"approval_id"`
	FromID     domain.UserID     `json:"from_id"`
	FromName   string            `json:"from_name"`
	ToID       domain.UserID     `json:"to_id"`
	ToName     string            `json:"to_name"`
	Comments   string            `json:"comments,omitempty"`
}

// Delegate marks the original approval delegada and creates a fresh pending
// row for the delegate at the same level. The original row is kept.
func (e *Engine) Delegate(ctx context.Context, p DelegateParams) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, def, res := e.load(ctx, p.InstanceID)
	if res != nil {
		return *res
	}

	idx := approvalIndex(inst, p.ApprovalID)
	if idx < 0 {
		return failure("Aprobación no encontrada")
	}
	if inst.Approvals[idx].Status != ApprovalPending {
		return failure("Esta aprobación ya fue procesada")
	}

	now := time.Now()
	orig := &inst.Approvals[idx]
	orig.Status = ApprovalDelegated
	orig.DelegatedFrom = p.FromName

	inst.Approvals = append(inst.Approvals, PendingApproval{
		ID:            domain.ApprovalID("apr_" + uuid.NewString()),
		LevelID:       orig.LevelID,
		LevelOrder:    orig.LevelOrder,
		LevelName:     orig.LevelName,
		ApproverID:    p.ToID,
		ApproverName:  p.ToName,
		ApproverType:  ApproverUser,
		Status:        ApprovalPending,
		DelegatedFrom: p.FromName,
		CreatedAt:     now,
		Deadline:      orig.Deadline,
	})
	delegated := inst.Approvals[len(inst.Approvals)-1]

	comment := "Delegado a " + p.ToName
	if p.Comments != "" {
		comment += ". " + p.Comments
	}
	appendHistory(inst, ActionRecord{
		Type:      ActionDelegated,
		UserID:    p.FromID,
		UserName:  p.FromName,
		LevelID:   orig.LevelID,
		LevelName: orig.LevelName,
		Comments:  comment,
	}, now)
	inst.UpdatedAt = now

	if err := e.store.PutInstance(ctx, inst); err != nil {
		return e.internalFailure(ctx, "delegate", err)
	}

	e.countTransition(ActionDelegated)
	e.afterChange(ctx, def, inst, ActionDelegated, []PendingApproval{delegated})

	return Result{OK: true, Message: "Aprobación delegada correctamente", Instance: inst}
}

// CancelParams aborts an in-flight instance.
type CancelParams struct {
	InstanceID domain.InstanceID `json:"instance_id"`
	UserID     domain.UserID     `json:"user_id"`
	UserName   string            `json:"user_name"`
	Reason     string            `json:"reason"`
}

// Cancel is terminal and allowed from any non-terminal state, provided the
// definition permits cancellation.
func (e *Engine) Cancel(ctx context.Context, p CancelParams) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, def, res := e.load(ctx, p.InstanceID)
	if res != nil {
		return *res
	}
	if def == nil || !def.Config.AllowCancel {
		return failure("Este workflow no permite cancelación")
	}

	now := time.Now()
	inst.State = StateCancelled
	inst.CancelledAt = now
	inst.CancelReason = p.Reason

	appendHistory(inst, ActionRecord{
		Type:     ActionCancelled,
		UserID:   p.UserID,
		UserName: p.UserName,
		Comments: p.Reason,
	}, now)
	inst.UpdatedAt = now

	if err := e.store.PutInstance(ctx, inst); err != nil {
		return e.internalFailure(ctx, "cancel", err)
	}

	e.countTransition(ActionCancelled)
	e.afterChange(ctx, nil, inst, ActionCancelled, nil)

	return Result{OK: true, Message: "Workflow cancelado", Instance: inst}
}

// load fetches the instance and its definition and applies the terminal-state
// guard shared by all mutating operations.
func (e *Engine) load(ctx context.Context, id domain.InstanceID) (*Instance, *Definition, *Result) {
	inst, err := e.store.GetInstance(ctx, id)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeNotFound) {
			r := failure("Instancia de workflow no encontrada")
			return nil, nil, &r
		}
		r := e.internalFailure(ctx, "load", err)
		return nil, nil, &r
	}
	if inst.State.Terminal() {
		r := failure("Esta instancia ya fue procesada")
		return nil, nil, &r
	}
	def, err := e.store.GetDefinition(ctx, inst.DefinitionID)
	if err != nil {
		// Instances outliving their definition can still be rejected or
		// cancelled; level logic degrades gracefully on nil.
		def = nil
	}
	return inst, def, nil
}

func (e *Engine) internalFailure(ctx context.Context, op string, err error) Result {
	e.logger.ErrorContext(ctx, "workflow operation failed", "op", op, "error", err)
	return failure("Error interno: " + err.Error())
}

// entryLevel scans levels in order and returns the first whose conditions
// hold; levels without conditions always match. Falls back to the first level.
func entryLevel(def *Definition, payload map[string]any, amount *float64) Level {
	for _, lvl := range def.Levels {
		if condition.EvaluateAll(lvl.Conditions, payload, amount) {
			return lvl
		}
	}
	return def.Levels[0]
}

func approvalsForLevel(lvl Level, now time.Time) []PendingApproval {
	out := make([]PendingApproval, 0, len(lvl.Approvers))
	for _, apr := range lvl.Approvers {
		approverID := apr.UserID
		if approverID.IsNil() {
			approverID = domain.UserID(apr.RoleID)
		}
		if approverID.IsNil() {
			approverID = domain.UserID(apr.ID)
		}
		approverType := ApproverRole
		if apr.Type == ApproverUser {
			approverType = ApproverUser
		}
		pa := PendingApproval{
			ID:           domain.ApprovalID("apr_" + uuid.NewString()),
			LevelID:      lvl.ID,
			LevelOrder:   lvl.Order,
			LevelName:    lvl.Name,
			ApproverID:   approverID,
			ApproverName: apr.Name,
			ApproverType: approverType,
			Status:       ApprovalPending,
			CreatedAt:    now,
		}
		if lvl.TimeLimitHours > 0 {
			pa.Deadline = now.Add(time.Duration(lvl.TimeLimitHours) * time.Hour)
		}
		out = append(out, pa)
	}
	return out
}

func approvalIndex(inst *Instance, id domain.ApprovalID) int {
	for i := range inst.Approvals {
		if inst.Approvals[i].ID == id {
			return i
		}
	}
	return -1
}

func appendHistory(inst *Instance, rec ActionRecord, now time.Time) {
	rec.ID = "acc_" + uuid.NewString()
	rec.Timestamp = now
	inst.History = append(inst.History, rec)
}

// levelComplete applies the quorum rule to the current level. Delegated rows
// are excluded: the delegate's fresh row stands in for them.
func levelComplete(def *Definition, inst *Instance) bool {
	if def == nil {
		return false
	}
	lvl := levelByOrder(def, inst.CurrentLevel)
	if lvl == nil {
		return false
	}

	var relevant []PendingApproval
	for _, a := range inst.Approvals {
		if a.LevelOrder == inst.CurrentLevel && a.Status != ApprovalDelegated {
			relevant = append(relevant, a)
		}
	}

	if lvl.RequireAll {
		for _, a := range relevant {
			if a.Status != ApprovalApproved {
				return false
			}
		}
		return len(relevant) > 0
	}
	for _, a := range relevant {
		if a.Status == ApprovalApproved {
			return true
		}
	}
	return false
}

// advance moves to the next level whose conditions hold, skipping levels that
// don't apply; with no level left the instance completes. Leftover pending
// rows at the finished level are marked obsoleta so they can't be acted on.
func (e *Engine) advance(def *Definition, inst *Instance, now time.Time) []PendingApproval {
	for i := range inst.Approvals {
		if inst.Approvals[i].LevelOrder == inst.CurrentLevel && inst.Approvals[i].Status == ApprovalPending {
			inst.Approvals[i].Status = ApprovalObsolete
			inst.Approvals[i].RespondedAt = now
		}
	}

	for _, lvl := range def.Levels {
		if lvl.Order <= inst.CurrentLevel {
			continue
		}
		if !condition.EvaluateAll(lvl.Conditions, inst.Payload, inst.Amount) {
			continue
		}
		inst.CurrentLevel = lvl.Order
		fresh := approvalsForLevel(lvl, now)
		inst.Approvals = append(inst.Approvals, fresh...)
		return fresh
	}

	inst.State = StateCompleted
	inst.CompletedAt = now
	appendHistory(inst, ActionRecord{
		Type:     ActionCompleted,
		UserID:   "sistema",
		UserName: "Sistema",
		Comments: "Todas las aprobaciones completadas",
	}, now)
	e.countTransition(ActionCompleted)
	return nil
}

func levelByOrder(def *Definition, order int) *Level {
	for i := range def.Levels {
		if def.Levels[i].Order == order {
			return &def.Levels[i]
		}
	}
	return nil
}

func (e *Engine) countTransition(action ActionType) {
	if e.metrics != nil {
		e.metrics.WorkflowTransitions.WithLabelValues(string(action)).Inc()
	}
}

// afterChange fans the committed change out: per-instance subscribers first,
// then the notifier according to the definition's config.
func (e *Engine) afterChange(ctx context.Context, def *Definition, inst *Instance, event ActionType, fresh []PendingApproval) {
	e.publish(inst)

	if e.notifier == nil {
		return
	}
	if def != nil && def.Config.NotifyApprovers {
		for _, approval := range fresh {
			e.notifier.ApprovalRequested(ctx, inst.Clone(), approval)
		}
	}
	if def == nil || def.Config.NotifyRequester {
		e.notifier.RequesterUpdated(ctx, inst.Clone(), event)
	}
}

// Subscribe registers a callback invoked after every committed change to the
// instance. The returned function removes the subscription.
func (e *Engine) Subscribe(id domain.InstanceID, cb func(*Instance)) func() {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	if e.listeners[id] == nil {
		e.listeners[id] = make(map[int]func(*Instance))
	}
	key := e.nextSub
	e.nextSub++
	e.listeners[id][key] = cb

	return func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		delete(e.listeners[id], key)
	}
}

// publish delivers to every subscriber, isolating panics so one bad callback
// can't stop delivery to the rest.
func (e *Engine) publish(inst *Instance) {
	e.subMu.Lock()
	cbs := make([]func(*Instance), 0, len(e.listeners[inst.ID]))
	for _, cb := range e.listeners[inst.ID] {
		cbs = append(cbs, cb)
	}
	e.subMu.Unlock()

	for _, cb := range cbs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("workflow subscriber panicked", "instance_id", inst.ID, "panic", r)
				}
			}()
			cb(inst.Clone())
		}()
	}
}

// PendingForUser lists pending instances with an open approval for the user.
func (e *Engine) PendingForUser(ctx context.Context, userID domain.UserID) ([]Instance, error) {
	all, err := e.store.ListInstances(ctx)
	if err != nil {
		return nil, err
	}
	var out []Instance
	for _, inst := range all {
		if inst.State != StatePending {
			continue
		}
		for _, a := range inst.Approvals {
			if a.ApproverID == userID && a.Status == ApprovalPending {
				out = append(out, inst)
				break
			}
		}
	}
	return out, nil
}

// ByEntity finds the instance attached to a business entity, if any.
func (e *Engine) ByEntity(ctx context.Context, entityType, entityID string) (*Instance, error) {
	all, err := e.store.ListInstances(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].EntityType == entityType && all[i].EntityID == entityID {
			return &all[i], nil
		}
	}
	return nil, nil
}

// ByRequester lists every instance a user initiated.
func (e *Engine) ByRequester(ctx context.Context, requesterID domain.UserID) ([]Instance, error) {
	all, err := e.store.ListInstances(ctx)
	if err != nil {
		return nil, err
	}
	var out []Instance
	for _, inst := range all {
		if inst.RequesterID == requesterID {
			out = append(out, inst)
		}
	}
	return out, nil
}

// Stats summarizes all instances.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	all, err := e.store.ListInstances(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{ByModule: make(map[string]int)}
	st.Total = len(all)
	for _, inst := range all {
		st.ByModule[inst.Module]++
		switch inst.State {
		case StatePending:
			st.Pending++
		case StateApproved, StateCompleted:
			st.Approved++
		case StateRejected:
			st.Rejected++
		}
	}
	return st, nil
}

// Instance returns one instance by id.
func (e *Engine) Instance(ctx context.Context, id domain.InstanceID) (*Instance, error) {
	return e.store.GetInstance(ctx, id)
}

// Definitions lists all stored definitions.
func (e *Engine) Definitions(ctx context.Context) ([]Definition, error) {
	return e.store.ListDefinitions(ctx)
}

// DefinitionsByModule lists active definitions for one module.
func (e *Engine) DefinitionsByModule(ctx context.Context, module string) ([]Definition, error) {
	return e.store.DefinitionsByModule(ctx, module)
}

// SaveDefinition validates and stores a definition.
func (e *Engine) SaveDefinition(ctx context.Context, def *Definition) error {
	if err := validateDefinition(def); err != nil {
		return err
	}
	return e.store.PutDefinition(ctx, def)
}

func validateDefinition(def *Definition) error {
	if def == nil || def.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "definition id is required")
	}
	if len(def.Levels) == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "definition must have at least one level")
	}
	prev := 0
	for _, lvl := range def.Levels {
		if lvl.Order <= prev {
			return dErrors.New(dErrors.CodeInvariantViolation, "level orders must be unique and ascending")
		}
		prev = lvl.Order
		if len(lvl.Approvers) == 0 {
			return dErrors.New(dErrors.CodeInvariantViolation, "level must have at least one approver")
		}
	}
	return nil
}
