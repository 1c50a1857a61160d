package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chronos/internal/notification"
	"chronos/pkg/domain"
	dErrors "chronos/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite

	ctx   context.Context
	clock time.Time
	store *notification.MemoryStore
	svc   *notification.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)
	s.store = notification.NewMemoryStore()

	svc, err := notification.New(s.store,
		notification.WithNow(func() time.Time { return s.clock }))
	s.Require().NoError(err)
	s.svc = svc
}

func (s *ServiceSuite) send(p notification.SendParams) notification.Message {
	if p.UserID == "" {
		p.UserID = "u-ana"
	}
	if p.Type == "" {
		p.Type = notification.TypeInfo
	}
	if p.Category == "" {
		p.Category = notification.CategoryOperations
	}
	if p.Title == "" {
		p.Title = "Aviso"
	}
	m, err := s.svc.Send(s.ctx, p)
	s.Require().NoError(err)
	return m
}

func (s *ServiceSuite) TestSendDefaults() {
	m := s.send(notification.SendParams{Type: notification.TypeApproval})
	s.Equal(notification.PriorityNormal, m.Priority)
	s.Equal("ShieldCheck", m.Icon)
	s.Equal("/sounds/approval.mp3", m.Sound)
	s.False(m.Vibrate)
	s.False(m.Read)
}

func (s *ServiceSuite) TestUrgentVibratesByDefault() {
	m := s.send(notification.SendParams{Priority: notification.PriorityUrgent})
	s.True(m.Vibrate)
}

func (s *ServiceSuite) TestQuietHoursSilenceHintsOnly() {
	prefs := notification.DefaultPrefs("u-ana")
	prefs.DoNotDisturb = true
	s.Require().NoError(s.svc.UpdatePreferences(s.ctx, prefs))

	var delivered []notification.Message
	defer s.svc.Subscribe("u-ana", func(m notification.Message) {
		delivered = append(delivered, m)
	})()

	// 23:30 falls inside the default 22:00-07:00 window, which crosses
	// midnight.
	s.clock = time.Date(2026, time.March, 4, 23, 30, 0, 0, time.UTC)
	m := s.send(notification.SendParams{Priority: notification.PriorityUrgent})
	s.Empty(m.Sound)
	s.False(m.Vibrate)

	// The message is still stored and still reaches subscribers.
	s.Len(delivered, 1)
	msgs, err := s.svc.List(s.ctx, "u-ana", notification.Filters{})
	s.Require().NoError(err)
	s.Len(msgs, 1)

	// 03:00 is past midnight but still inside the window.
	s.clock = time.Date(2026, time.March, 5, 3, 0, 0, 0, time.UTC)
	m = s.send(notification.SendParams{Priority: notification.PriorityUrgent})
	s.Empty(m.Sound)
	s.False(m.Vibrate)

	// 12:00 is outside the window; hints survive.
	s.clock = time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC)
	m = s.send(notification.SendParams{Priority: notification.PriorityUrgent})
	s.NotEmpty(m.Sound)
	s.True(m.Vibrate)
}

func (s *ServiceSuite) TestCategorySoundPreference() {
	// Default preferences keep the system category silent.
	m := s.send(notification.SendParams{Category: notification.CategorySystem})
	s.Empty(m.Sound)

	m = s.send(notification.SendParams{Category: notification.CategoryApprovals})
	s.NotEmpty(m.Sound)
}

func (s *ServiceSuite) TestListPinnedFirstThenNewest() {
	first := s.send(notification.SendParams{Title: "primera"})
	s.clock = s.clock.Add(time.Minute)
	s.send(notification.SendParams{Title: "segunda"})
	s.clock = s.clock.Add(time.Minute)
	s.send(notification.SendParams{Title: "tercera"})

	pinned, err := s.svc.TogglePin(s.ctx, "u-ana", first.ID)
	s.Require().NoError(err)
	s.True(pinned)

	msgs, err := s.svc.List(s.ctx, "u-ana", notification.Filters{})
	s.Require().NoError(err)
	s.Require().Len(msgs, 3)
	s.Equal("primera", msgs[0].Title)
	s.Equal("tercera", msgs[1].Title)
	s.Equal("segunda", msgs[2].Title)
}

func (s *ServiceSuite) TestExpiredMessagesAreHidden() {
	s.send(notification.SendParams{Title: "efimera", ExpiresInMinutes: 5})
	s.send(notification.SendParams{Title: "duradera"})

	s.clock = s.clock.Add(10 * time.Minute)
	msgs, err := s.svc.List(s.ctx, "u-ana", notification.Filters{})
	s.Require().NoError(err)
	s.Require().Len(msgs, 1)
	s.Equal("duradera", msgs[0].Title)

	n, err := s.svc.UnreadCount(s.ctx, "u-ana")
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *ServiceSuite) TestMarkReadAndUnreadCount() {
	m := s.send(notification.SendParams{})
	s.send(notification.SendParams{})

	n, err := s.svc.UnreadCount(s.ctx, "u-ana")
	s.Require().NoError(err)
	s.Equal(2, n)

	s.Require().NoError(s.svc.MarkRead(s.ctx, "u-ana", m.ID))
	n, err = s.svc.UnreadCount(s.ctx, "u-ana")
	s.Require().NoError(err)
	s.Equal(1, n)

	err = s.svc.MarkRead(s.ctx, "u-ana", "notif_desconocida")
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestMarkAllRead() {
	s.send(notification.SendParams{})
	s.send(notification.SendParams{})
	s.send(notification.SendParams{})

	changed, err := s.svc.MarkAllRead(s.ctx, "u-ana")
	s.Require().NoError(err)
	s.Equal(3, changed)

	n, err := s.svc.UnreadCount(s.ctx, "u-ana")
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *ServiceSuite) TestArchiveAndPurge() {
	m := s.send(notification.SendParams{Title: "vieja"})
	s.send(notification.SendParams{Title: "actual"})

	s.Require().NoError(s.svc.Archive(s.ctx, "u-ana", m.ID))

	archived := true
	msgs, err := s.svc.List(s.ctx, "u-ana", notification.Filters{Archived: &archived})
	s.Require().NoError(err)
	s.Require().Len(msgs, 1)
	s.Equal("vieja", msgs[0].Title)

	removed, err := s.svc.PurgeArchived(s.ctx, "u-ana")
	s.Require().NoError(err)
	s.Equal(1, removed)

	msgs, err = s.svc.List(s.ctx, "u-ana", notification.Filters{})
	s.Require().NoError(err)
	s.Len(msgs, 1)
}

func (s *ServiceSuite) TestSubscribePerUser() {
	var ana, luis int
	defer s.svc.Subscribe("u-ana", func(notification.Message) { ana++ })()
	defer s.svc.Subscribe("u-luis", func(notification.Message) { luis++ })()

	s.send(notification.SendParams{UserID: "u-ana"})
	s.send(notification.SendParams{UserID: "u-ana"})
	s.send(notification.SendParams{UserID: "u-luis"})

	s.Equal(2, ana)
	s.Equal(1, luis)
}

func (s *ServiceSuite) TestSubscribersSurvivePanics() {
	var got int
	defer s.svc.Subscribe("u-ana", func(notification.Message) { panic("boom") })()
	defer s.svc.Subscribe("u-ana", func(notification.Message) { got++ })()

	s.send(notification.SendParams{})
	s.Equal(1, got)
}

func (s *ServiceSuite) TestApprovalRequestEscalatesPriority() {
	m, err := s.svc.SendApprovalRequest(s.ctx, notification.ApprovalRequestParams{
		UserID:        "u-gerente",
		Operation:     "transferencia",
		Amount:        75000,
		AccountName:   "Bóveda Monte",
		RequesterID:   "u-ana",
		RequesterName: "Ana",
		EntityID:      "wf-1",
	})
	s.Require().NoError(err)
	s.Equal(notification.PriorityUrgent, m.Priority)
	s.Equal(notification.CategoryApprovals, m.Category)
	s.Contains(m.Body, "Ana solicita aprobación")
	s.Len(m.Actions, 3)
	s.True(m.Persistent)

	m, err = s.svc.SendApprovalRequest(s.ctx, notification.ApprovalRequestParams{
		UserID:        "u-gerente",
		Operation:     "gasto",
		Amount:        1000,
		RequesterName: "Ana",
		EntityID:      "wf-2",
	})
	s.Require().NoError(err)
	s.Equal(notification.PriorityHigh, m.Priority)
}

func (s *ServiceSuite) TestBroadcast() {
	sent := s.svc.Broadcast(s.ctx,
		[]domain.UserID{"u-ana", "u-luis"},
		notification.TypeSystem, "", "Mantenimiento", "El sistema se reiniciará a las 23:00")
	s.Require().Len(sent, 2)
	for _, m := range sent {
		s.Equal(notification.CategorySystem, m.Category)
		s.Equal(notification.PriorityNormal, m.Priority)
	}

	n, err := s.svc.UnreadCount(s.ctx, "u-luis")
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *ServiceSuite) TestPreferencesDefaultsAndUpdate() {
	prefs, err := s.svc.Preferences(s.ctx, "u-ana")
	s.Require().NoError(err)
	s.True(prefs.Sound)
	s.False(prefs.DoNotDisturb)
	s.Equal("22:00", prefs.QuietWindow.Start)

	prefs.Sound = false
	s.Require().NoError(s.svc.UpdatePreferences(s.ctx, prefs))

	stored, err := s.svc.Preferences(s.ctx, "u-ana")
	s.Require().NoError(err)
	s.False(stored.Sound)

	m := s.send(notification.SendParams{Category: notification.CategoryApprovals})
	s.Empty(m.Sound)
}

func (s *ServiceSuite) TestStats() {
	s.send(notification.SendParams{Category: notification.CategoryAlerts, Priority: notification.PriorityHigh})
	s.send(notification.SendParams{Category: notification.CategoryAlerts})
	m := s.send(notification.SendParams{Category: notification.CategorySystem})
	s.Require().NoError(s.svc.MarkRead(s.ctx, "u-ana", m.ID))

	stats, err := s.svc.Stats(s.ctx, "u-ana")
	s.Require().NoError(err)
	s.Equal(3, stats.Total)
	s.Equal(2, stats.Unread)
	s.Equal(2, stats.ByCategory[notification.CategoryAlerts])
	s.Equal(1, stats.ByPriority[notification.PriorityHigh])
	s.Equal(2, stats.ByPriority[notification.PriorityNormal])
	s.Require().Len(stats.LastWeek, 1)
	s.Equal(3, stats.LastWeek[0].Total)
}
