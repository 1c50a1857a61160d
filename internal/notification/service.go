package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"chronos/internal/platform/metrics"
	"chronos/pkg/domain"
	dErrors "chronos/pkg/domain-errors"
)

var typeIcons = map[Type]string{
	TypeInfo:     "Info",
	TypeSuccess:  "CheckCircle",
	TypeWarning:  "AlertTriangle",
	TypeError:    "XCircle",
	TypeAlert:    "Bell",
	TypeApproval: "ShieldCheck",
	TypeTask:     "ClipboardList",
	TypeMessage:  "MessageSquare",
	TypeSystem:   "Settings",
	TypeFinance:  "DollarSign",
}

var typeSounds = map[Type]string{
	TypeSuccess:  "/sounds/success.mp3",
	TypeWarning:  "/sounds/warning.mp3",
	TypeError:    "/sounds/error.mp3",
	TypeApproval: "/sounds/approval.mp3",
	TypeMessage:  "/sounds/message.mp3",
}

const defaultSound = "/sounds/notification.mp3"

// Service is the notification core. Every sent message is stored and fanned
// out to the recipient's subscribers; the recipient's preferences and quiet
// hours only decide whether the sensory hints survive.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	subMu     sync.Mutex
	listeners map[domain.UserID]map[int]func(Message)
	nextSub   int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "store is required")
	}
	s := &Service{
		store:     store,
		logger:    slog.Default(),
		now:       time.Now,
		listeners: make(map[domain.UserID]map[int]func(Message)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SendParams describe one outgoing message. Zero Priority means normal and a
// zero Vibrate pointer falls back to "vibrate when urgent".
type SendParams struct {
	UserID   domain.UserID `json:"user_id"`
	Type     Type          `json:"type"`
	Priority Priority      `json:"priority,omitempty"`
	Category Category      `json:"category"`

	Title           string `json:"title"`
	Body            string `json:"body"`
	LongDescription string `json:"long_description,omitempty"`
	Icon            string `json:"icon,omitempty"`
	Image           string `json:"image,omitempty"`

	Module     string `json:"module,omitempty"`
	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	URL        string `json:"url,omitempty"`

	Actions  []QuickAction `json:"actions,omitempty"`
	FromID   domain.UserID `json:"from_id,omitempty"`
	FromName string        `json:"from_name,omitempty"`

	Sound            string `json:"sound,omitempty"`
	Vibrate          *bool  `json:"vibrate,omitempty"`
	Persistent       bool   `json:"persistent,omitempty"`
	ExpiresInMinutes int    `json:"expires_in_minutes,omitempty"`
}

// Send stores and delivers one message.
func (s *Service) Send(ctx context.Context, p SendParams) (Message, error) {
	if p.UserID.IsNil() {
		return Message{}, dErrors.New(dErrors.CodeInvalidInput, "user_id is required")
	}
	if p.Type == "" || p.Category == "" || p.Title == "" {
		return Message{}, dErrors.New(dErrors.CodeInvalidInput, "type, category and title are required")
	}

	prefs := s.prefsFor(ctx, p.UserID)
	now := s.now()

	m := Message{
		ID:              domain.MessageID("notif_" + uuid.NewString()),
		Type:            p.Type,
		Priority:        p.Priority,
		Category:        p.Category,
		Title:           p.Title,
		Body:            p.Body,
		LongDescription: p.LongDescription,
		Icon:            p.Icon,
		Image:           p.Image,
		Module:          p.Module,
		EntityType:      p.EntityType,
		EntityID:        p.EntityID,
		URL:             p.URL,
		Actions:         p.Actions,
		UserID:          p.UserID,
		FromID:          p.FromID,
		FromName:        p.FromName,
		Sound:           p.Sound,
		Persistent:      p.Persistent,
		CreatedAt:       now,
	}
	if m.Priority == "" {
		m.Priority = PriorityNormal
	}
	if m.Icon == "" {
		m.Icon = typeIcons[m.Type]
		if m.Icon == "" {
			m.Icon = "Bell"
		}
	}
	if m.Sound == "" {
		m.Sound = typeSounds[m.Type]
		if m.Sound == "" {
			m.Sound = defaultSound
		}
	}
	if p.Vibrate != nil {
		m.Vibrate = *p.Vibrate
	} else {
		m.Vibrate = m.Priority == PriorityUrgent
	}
	if p.ExpiresInMinutes > 0 {
		m.ExpiresAt = now.Add(time.Duration(p.ExpiresInMinutes) * time.Minute)
	}

	// Quiet hours and preferences silence the hints, never the message.
	quiet := prefs.DoNotDisturb && prefs.QuietWindow.Contains(now)
	catSound := true
	if cp, ok := prefs.Categories[m.Category]; ok {
		catSound = cp.Sound
	}
	if quiet || !prefs.Sound || !catSound {
		m.Sound = ""
	}
	if quiet || !prefs.Vibration {
		m.Vibrate = false
	}

	if err := s.store.Insert(ctx, m); err != nil {
		return Message{}, err
	}
	if s.metrics != nil {
		s.metrics.NotificationsSent.WithLabelValues(string(m.Category)).Inc()
	}
	s.publish(m)

	s.logger.Info("notification sent",
		"id", m.ID, "user", m.UserID, "type", m.Type, "title", m.Title)
	return m, nil
}

// ApprovalRequestParams feed SendApprovalRequest.
type ApprovalRequestParams struct {
	UserID        domain.UserID
	Operation     string
	Amount        float64
	AccountName   string
	RequesterID   domain.UserID
	RequesterName string
	EntityID      string
	URL           string
}

// SendApprovalRequest sends the standard approval-needed message with inline
// approve/reject actions. Amounts above 50000 escalate the priority.
func (s *Service) SendApprovalRequest(ctx context.Context, p ApprovalRequestParams) (Message, error) {
	priority := PriorityHigh
	if p.Amount > 50000 {
		priority = PriorityUrgent
	}
	vibrate := true
	return s.Send(ctx, SendParams{
		UserID:   p.UserID,
		Type:     TypeApproval,
		Priority: priority,
		Category: CategoryApprovals,
		Title:    "Aprobación requerida",
		Body:     fmt.Sprintf("%s solicita aprobación para %s", p.RequesterName, p.Operation),
		LongDescription: fmt.Sprintf(
			"Operación: %s\nMonto: $%.2f\nBanco: %s\nSolicitante: %s",
			p.Operation, p.Amount, p.AccountName, p.RequesterName),
		Icon:       "ShieldCheck",
		Module:     "aprobaciones",
		EntityType: "aprobacion",
		EntityID:   p.EntityID,
		URL:        p.URL,
		FromID:     p.RequesterID,
		FromName:   p.RequesterName,
		Actions: []QuickAction{
			{ID: "aprobar", Label: "Aprobar", Variant: "primary", Icon: "Check",
				Action: "aprobar_operacion", Data: map[string]any{"entity_id": p.EntityID}},
			{ID: "rechazar", Label: "Rechazar", Variant: "destructive", Icon: "X",
				Action: "rechazar_operacion", Data: map[string]any{"entity_id": p.EntityID}},
			{ID: "ver", Label: "Ver detalles", Variant: "default", Icon: "Eye",
				Action: "ver_detalle", Data: map[string]any{"url": p.URL}},
		},
		Vibrate:    &vibrate,
		Persistent: true,
	})
}

// FinanceAlertParams feed SendFinanceAlert.
type FinanceAlertParams struct {
	UserID      domain.UserID
	Title       string
	Body        string
	AccountID   domain.AccountID
	AccountName string
	Priority    Priority
	URL         string
}

// SendFinanceAlert sends a bank alert message.
func (s *Service) SendFinanceAlert(ctx context.Context, p FinanceAlertParams) (Message, error) {
	priority := p.Priority
	if priority == "" {
		priority = PriorityHigh
	}
	vibrate := priority == PriorityUrgent
	return s.Send(ctx, SendParams{
		UserID:     p.UserID,
		Type:       TypeFinance,
		Priority:   priority,
		Category:   CategoryAlerts,
		Title:      p.Title,
		Body:       p.Body,
		Icon:       "AlertTriangle",
		Module:     "bancos",
		EntityType: "banco",
		EntityID:   string(p.AccountID),
		URL:        p.URL,
		Vibrate:    &vibrate,
	})
}

// Broadcast sends the same system message to several users. Failures are
// logged per recipient and do not stop the rest.
func (s *Service) Broadcast(ctx context.Context, userIDs []domain.UserID, typ Type, priority Priority, title, body string) []Message {
	if priority == "" {
		priority = PriorityNormal
	}
	out := make([]Message, 0, len(userIDs))
	for _, userID := range userIDs {
		m, err := s.Send(ctx, SendParams{
			UserID:   userID,
			Type:     typ,
			Priority: priority,
			Category: CategorySystem,
			Title:    title,
			Body:     body,
			Icon:     "Bell",
		})
		if err != nil {
			s.logger.Error("broadcast delivery failed", "user", userID, "error", err)
			continue
		}
		out = append(out, m)
	}
	return out
}

// List returns a user's feed, pinned messages first and then newest first,
// with expired messages dropped.
func (s *Service) List(ctx context.Context, userID domain.UserID, f Filters) ([]Message, error) {
	msgs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Expired(now) {
			continue
		}
		if f.Category != "" && m.Category != f.Category {
			continue
		}
		if f.Type != "" && m.Type != f.Type {
			continue
		}
		if f.Read != nil && m.Read != *f.Read {
			continue
		}
		if f.Archived != nil && m.Archived != *f.Archived {
			continue
		}
		if !f.Since.IsZero() && m.CreatedAt.Before(f.Since) {
			continue
		}
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// UnreadCount counts unread, unarchived, unexpired messages.
func (s *Service) UnreadCount(ctx context.Context, userID domain.UserID) (int, error) {
	msgs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	n := 0
	for _, m := range msgs {
		if !m.Read && !m.Archived && !m.Expired(now) {
			n++
		}
	}
	return n, nil
}

// Stats summarizes a user's feed for the panel header.
func (s *Service) Stats(ctx context.Context, userID domain.UserID) (Stats, error) {
	msgs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	now := s.now()

	stats := Stats{
		ByCategory: make(map[Category]int),
		ByPriority: make(map[Priority]int),
	}
	weekAgo := now.AddDate(0, 0, -7)
	byDay := make(map[string]int)
	var dayOrder []string

	for _, m := range msgs {
		stats.Total++
		if !m.Read && !m.Archived {
			stats.Unread++
		}
		stats.ByCategory[m.Category]++
		stats.ByPriority[m.Priority]++

		if !m.CreatedAt.Before(weekAgo) {
			day := m.CreatedAt.Format("2006-01-02")
			if _, ok := byDay[day]; !ok {
				dayOrder = append(dayOrder, day)
			}
			byDay[day]++
		}
	}
	for _, day := range dayOrder {
		stats.LastWeek = append(stats.LastWeek, DayCount{Day: day, Total: byDay[day]})
	}
	return stats, nil
}

// MarkRead marks one message read.
func (s *Service) MarkRead(ctx context.Context, userID domain.UserID, id domain.MessageID) error {
	m, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if m.Read {
		return nil
	}
	m.Read = true
	m.ReadAt = s.now()
	return s.store.Update(ctx, *m)
}

// MarkAllRead marks every unread message read and returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, userID domain.UserID) (int, error) {
	msgs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	changed := 0
	for _, m := range msgs {
		if m.Read {
			continue
		}
		m.Read = true
		m.ReadAt = now
		if err := s.store.Update(ctx, m); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

// Archive hides a message from the main feed.
func (s *Service) Archive(ctx context.Context, userID domain.UserID, id domain.MessageID) error {
	m, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	m.Archived = true
	m.ArchivedAt = s.now()
	return s.store.Update(ctx, *m)
}

// TogglePin flips the pinned flag and returns the new state.
func (s *Service) TogglePin(ctx context.Context, userID domain.UserID, id domain.MessageID) (bool, error) {
	m, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return false, err
	}
	m.Pinned = !m.Pinned
	if err := s.store.Update(ctx, *m); err != nil {
		return false, err
	}
	return m.Pinned, nil
}

// Delete removes one message permanently.
func (s *Service) Delete(ctx context.Context, userID domain.UserID, id domain.MessageID) error {
	return s.store.Delete(ctx, userID, id)
}

// PurgeArchived removes every archived message and returns how many.
func (s *Service) PurgeArchived(ctx context.Context, userID domain.UserID) (int, error) {
	return s.store.DeleteArchived(ctx, userID)
}

// Preferences returns the user's saved preferences or the defaults.
func (s *Service) Preferences(ctx context.Context, userID domain.UserID) (Prefs, error) {
	p, err := s.store.GetPrefs(ctx, userID)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeNotFound) {
			return DefaultPrefs(userID), nil
		}
		return Prefs{}, err
	}
	return *p, nil
}

// UpdatePreferences replaces the user's preferences.
func (s *Service) UpdatePreferences(ctx context.Context, p Prefs) error {
	if p.UserID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "user_id is required")
	}
	return s.store.PutPrefs(ctx, p)
}

// Subscribe registers a callback for a user's new messages. The returned
// function removes the subscription.
func (s *Service) Subscribe(userID domain.UserID, cb func(Message)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.listeners[userID] == nil {
		s.listeners[userID] = make(map[int]func(Message))
	}
	id := s.nextSub
	s.nextSub++
	s.listeners[userID][id] = cb
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.listeners[userID], id)
	}
}

// publish delivers to the recipient's subscribers, isolating panics so one
// broken subscriber cannot block the rest.
func (s *Service) publish(m Message) {
	s.subMu.Lock()
	cbs := make([]func(Message), 0, len(s.listeners[m.UserID]))
	for _, cb := range s.listeners[m.UserID] {
		cbs = append(cbs, cb)
	}
	s.subMu.Unlock()

	for _, cb := range cbs {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					s.logger.Error("notification subscriber panicked", "panic", rec)
				}
			}()
			cb(m)
		}()
	}
}

// prefsFor loads preferences, falling back to defaults on any error so a
// broken preferences record cannot block delivery.
func (s *Service) prefsFor(ctx context.Context, userID domain.UserID) Prefs {
	p, err := s.store.GetPrefs(ctx, userID)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeNotFound) {
			s.logger.Error("loading notification preferences", "user", userID, "error", err)
		}
		return DefaultPrefs(userID)
	}
	return *p
}
