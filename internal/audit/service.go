package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chronos/internal/export"
	"chronos/internal/platform/config"
	"chronos/internal/platform/metrics"
	"chronos/pkg/domain"
	dErrors "chronos/pkg/domain-errors"
)

const alertDedupWindow = 30 * time.Minute

// Recorder is the audit core: it records entries with an automatic field
// diff, evaluates the threshold alert rules against each user's trailing
// activity and notifies subscribers of every new entry. Alerts live in
// process memory regardless of the entry store backend.
type Recorder struct {
	store   Store
	cfg     config.Audit
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	alertMu sync.RWMutex
	alerts  []Alert

	subMu     sync.Mutex
	listeners map[int]func(Entry)
	nextSub   int
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

func New(store Store, cfg config.Audit, opts ...Option) (*Recorder, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "store is required")
	}
	r := &Recorder{
		store:     store,
		cfg:       cfg,
		logger:    slog.Default(),
		now:       time.Now,
		listeners: make(map[int]func(Entry)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record persists one audit entry. The field diff between the before and
// after snapshots is computed here, and when no explicit severity is given
// one is derived from the action and outcome. The entry is stored before the
// alert rules run so the trailing-window counts include it.
func (r *Recorder) Record(ctx context.Context, in Input) (Entry, error) {
	if in.Actor.ID.IsNil() {
		return Entry{}, dErrors.New(dErrors.CodeInvalidInput, "actor id is required")
	}
	if in.Action == "" || in.Module == "" {
		return Entry{}, dErrors.New(dErrors.CodeInvalidInput, "action and module are required")
	}

	now := r.now()
	severity := in.Severity
	if severity == "" {
		severity = deriveSeverity(in.Action, !in.Failed)
	}

	e := Entry{
		ID:           domain.EntryID("audit_" + uuid.NewString()),
		Actor:        in.Actor,
		Action:       in.Action,
		Module:       in.Module,
		Description:  in.Description,
		Severity:     severity,
		Entity:       in.Entity,
		Changes:      diffSnapshots(in.Before, in.After),
		Before:       in.Before,
		After:        in.After,
		Finance:      in.Finance,
		Device:       in.Device,
		Success:      !in.Failed,
		ErrorMessage: in.ErrorMessage,
		DurationMs:   in.DurationMs,
		Metadata:     in.Metadata,
		Tags:         in.Tags,
		At:           now,
	}

	if err := r.store.Insert(ctx, e); err != nil {
		return Entry{}, err
	}
	if r.metrics != nil {
		r.metrics.AuditEntries.WithLabelValues(string(e.Module), string(e.Severity)).Inc()
	}

	r.checkAlerts(ctx, e)
	r.publish(e)

	r.logger.Debug("audit entry recorded",
		"id", e.ID, "user", e.Actor.Name, "action", e.Action, "module", e.Module)
	return e, nil
}

// diffSnapshots computes the field-level changes between two snapshots: the
// union of keys, keeping fields whose serialized forms differ. Either side
// missing entirely yields no changes.
func diffSnapshots(before, after map[string]any) []Change {
	if before == nil || after == nil {
		return nil
	}

	keys := make([]string, 0, len(before)+len(after))
	seen := make(map[string]bool, len(before)+len(after))
	for k := range before {
		keys = append(keys, k)
		seen[k] = true
	}
	for k := range after {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var changes []Change
	for _, k := range keys {
		oldRaw, hadOld := before[k]
		newRaw, hadNew := after[k]
		if hadOld && hadNew && serialize(oldRaw) == serialize(newRaw) {
			continue
		}
		c := Change{Field: k}
		if hadOld {
			c.Old = export.Detect(oldRaw)
		}
		if hadNew {
			c.New = export.Detect(newRaw)
		}
		changes = append(changes, c)
	}
	return changes
}

func serialize(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func deriveSeverity(action Action, success bool) Severity {
	if !success {
		return SeverityError
	}
	switch action {
	case ActionDelete, ActionLock, ActionRoleChange, ActionPermissionChange, ActionClosePeriod:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// checkAlerts runs the four threshold rules against the just-recorded entry.
// Rule failures are logged and never fail the recording itself.
func (r *Recorder) checkAlerts(ctx context.Context, e Entry) {
	hourAgo := e.At.Add(-time.Hour)

	ops, err := r.store.CountByUser(ctx, e.Actor.ID, hourAgo, false)
	if err != nil {
		r.logger.Error("counting user operations for alerting", "error", err)
	} else if ops > r.cfg.MaxOpsPerHour {
		r.raiseAlert(Alert{
			Type:        AlertExcessOps,
			Severity:    SeverityWarning,
			Title:       "Exceso de operaciones detectado",
			Description: fmt.Sprintf("El usuario %s ha realizado %d operaciones en la última hora", e.Actor.Name, ops),
			UserID:      e.Actor.ID,
			UserName:    e.Actor.Name,
		}, e.At)
	}

	if outsideBusinessHours(e.At, r.cfg.BusinessHoursFrom, r.cfg.BusinessHoursTo) {
		r.raiseAlert(Alert{
			Type:        AlertOffHours,
			Severity:    SeverityInfo,
			Title:       "Actividad fuera de horario",
			Description: fmt.Sprintf("%s accedió al sistema a las %s", e.Actor.Name, e.At.Format("15:04:05")),
			UserID:      e.Actor.ID,
			UserName:    e.Actor.Name,
		}, e.At)
	}

	if e.Finance != nil && e.Finance.Amount > r.cfg.HighAmount {
		r.raiseAlert(Alert{
			Type:        AlertHighAmount,
			Severity:    SeverityWarning,
			Title:       "Operación de monto alto",
			Description: fmt.Sprintf("%s realizó una operación de $%.2f", e.Actor.Name, e.Finance.Amount),
			UserID:      e.Actor.ID,
			UserName:    e.Actor.Name,
		}, e.At)
	}

	if !e.Success {
		failures, err := r.store.CountByUser(ctx, e.Actor.ID, hourAgo, true)
		if err != nil {
			r.logger.Error("counting user failures for alerting", "error", err)
		} else if failures >= r.cfg.FailureThreshold {
			r.raiseAlert(Alert{
				Type:        AlertFrequentErrors,
				Severity:    SeverityError,
				Title:       "Errores frecuentes detectados",
				Description: fmt.Sprintf("El usuario %s ha tenido %d errores en la última hora", e.Actor.Name, failures),
				UserID:      e.Actor.ID,
				UserName:    e.Actor.Name,
			}, e.At)
		}
	}
}

// outsideBusinessHours compares only the hour component, so a window of
// 07:00 to 23:00 treats anything from 07:00:00 through 23:59:59 as normal.
func outsideBusinessHours(t time.Time, from, to string) bool {
	hour := t.Hour()
	return hour < windowHour(from, 7) || hour > windowHour(to, 23)
}

func windowHour(clock string, fallback int) int {
	h, _, ok := strings.Cut(clock, ":")
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(h)
	if err != nil || n < 0 || n > 23 {
		return fallback
	}
	return n
}

// raiseAlert stores the alert unless one of the same (type, user) was raised
// within the trailing 30 minutes.
func (r *Recorder) raiseAlert(a Alert, at time.Time) {
	r.alertMu.Lock()
	defer r.alertMu.Unlock()

	cutoff := at.Add(-alertDedupWindow)
	for _, existing := range r.alerts {
		if existing.Type == a.Type && existing.UserID == a.UserID && !existing.At.Before(cutoff) {
			return
		}
	}

	a.ID = domain.AlertID("alert_" + uuid.NewString())
	a.At = at
	r.alerts = append([]Alert{a}, r.alerts...)

	if r.metrics != nil {
		r.metrics.AlertsRaised.WithLabelValues(string(a.Type)).Inc()
	}
	r.logger.Warn("audit alert raised",
		"type", a.Type, "user", a.UserName, "description", a.Description)
}

// List returns one page of filtered entries.
func (r *Recorder) List(ctx context.Context, f Filters) (Page, error) {
	logs, total, err := r.store.List(ctx, f)
	if err != nil {
		return Page{}, err
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	return Page{
		Logs:       logs,
		Total:      total,
		Page:       offset/limit + 1,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// EntityHistory returns every entry that touched the given entity.
func (r *Recorder) EntityHistory(ctx context.Context, entityType, entityID string) ([]Entry, error) {
	return r.store.ByEntity(ctx, entityType, entityID)
}

// UserActivity returns the user's entries for the trailing number of days.
func (r *Recorder) UserActivity(ctx context.Context, userID domain.UserID, days int) ([]Entry, error) {
	if days <= 0 {
		days = 7
	}
	since := r.now().AddDate(0, 0, -days)
	return r.store.ByUser(ctx, userID, since)
}

// Stats aggregates the trailing days of activity for the dashboard.
func (r *Recorder) Stats(ctx context.Context, days int) (Stats, error) {
	if days <= 0 {
		days = 7
	}
	now := r.now()
	recent, err := r.store.Since(ctx, now.AddDate(0, 0, -days))
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Total:      len(recent),
		ByModule:   make(map[Module]int),
		ByAction:   make(map[Action]int),
		BySeverity: make(map[Severity]int),
	}

	byUser := make(map[domain.UserID]*UserCount)
	dayAgo := now.Add(-24 * time.Hour)
	byHour := make(map[string]int)
	byDay := make(map[string]int)
	var dayOrder []string

	for _, e := range recent {
		stats.ByModule[e.Module]++
		stats.ByAction[e.Action]++
		stats.BySeverity[e.Severity]++

		if uc, ok := byUser[e.Actor.ID]; ok {
			uc.Total++
		} else {
			byUser[e.Actor.ID] = &UserCount{UserID: e.Actor.ID, Name: e.Actor.Name, Total: 1}
		}

		if !e.At.Before(dayAgo) {
			byHour[e.At.Format("15")+":00"]++
		}
		day := e.At.Format("2006-01-02")
		if _, ok := byDay[day]; !ok {
			dayOrder = append(dayOrder, day)
		}
		byDay[day]++
	}

	for _, uc := range byUser {
		stats.ByUser = append(stats.ByUser, *uc)
	}
	sort.SliceStable(stats.ByUser, func(i, j int) bool {
		return stats.ByUser[i].Total > stats.ByUser[j].Total
	})
	if len(stats.ByUser) > 10 {
		stats.ByUser = stats.ByUser[:10]
	}

	for label, total := range byHour {
		stats.ByHour = append(stats.ByHour, BucketCount{Label: label, Total: total})
	}
	sort.Slice(stats.ByHour, func(i, j int) bool {
		return stats.ByHour[i].Label < stats.ByHour[j].Label
	})

	if len(dayOrder) > 7 {
		dayOrder = dayOrder[:7]
	}
	for _, day := range dayOrder {
		stats.ByDay = append(stats.ByDay, BucketCount{Label: day, Total: byDay[day]})
	}

	if len(recent) > 20 {
		recent = recent[:20]
	}
	stats.Recent = recent
	stats.Alerts = r.PendingAlerts()
	return stats, nil
}

// Acknowledge marks an alert as reviewed.
func (r *Recorder) Acknowledge(_ context.Context, alertID domain.AlertID, by domain.UserID) error {
	r.alertMu.Lock()
	defer r.alertMu.Unlock()
	for i := range r.alerts {
		if r.alerts[i].ID == alertID {
			r.alerts[i].Acknowledged = true
			r.alerts[i].AcknowledgedBy = by
			r.alerts[i].AcknowledgedAt = r.now()
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeNotFound, "alert %s not found", alertID)
}

// Alerts returns all alerts, newest first.
func (r *Recorder) Alerts() []Alert {
	r.alertMu.RLock()
	defer r.alertMu.RUnlock()
	out := make([]Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}

// PendingAlerts returns the alerts not yet acknowledged.
func (r *Recorder) PendingAlerts() []Alert {
	r.alertMu.RLock()
	defer r.alertMu.RUnlock()
	out := make([]Alert, 0)
	for _, a := range r.alerts {
		if !a.Acknowledged {
			out = append(out, a)
		}
	}
	return out
}

// Subscribe registers a callback invoked for every recorded entry. The
// returned function removes the subscription.
func (r *Recorder) Subscribe(cb func(Entry)) func() {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.listeners[id] = cb
	return func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		delete(r.listeners, id)
	}
}

// publish delivers the entry to every subscriber. A panicking subscriber is
// logged and skipped so the rest still receive the entry.
func (r *Recorder) publish(e Entry) {
	r.subMu.Lock()
	cbs := make([]func(Entry), 0, len(r.listeners))
	for _, cb := range r.listeners {
		cbs = append(cbs, cb)
	}
	r.subMu.Unlock()

	for _, cb := range cbs {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("audit subscriber panicked", "panic", rec)
				}
			}()
			cb(e)
		}()
	}
}

// Sweep removes entries older than the configured retention and returns how
// many were deleted. Main runs it periodically.
func (r *Recorder) Sweep(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.cfg.Retention)
	removed, err := r.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		r.logger.Info("audit retention sweep", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}
