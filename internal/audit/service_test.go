package audit_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chronos/internal/audit"
	"chronos/internal/export"
	"chronos/internal/platform/config"
	"chronos/pkg/domain"
	dErrors "chronos/pkg/domain-errors"
)

type RecorderSuite struct {
	suite.Suite

	ctx   context.Context
	clock time.Time
	rec   *audit.Recorder
	store *audit.MemoryStore
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)
	s.store = audit.NewMemoryStore()

	rec, err := audit.New(s.store, config.Audit{
		MaxOpsPerHour:     3,
		BusinessHoursFrom: "07:00",
		BusinessHoursTo:   "23:00",
		HighAmount:        50000,
		FailureThreshold:  2,
		Retention:         90 * 24 * time.Hour,
	}, audit.WithNow(func() time.Time { return s.clock }))
	s.Require().NoError(err)
	s.rec = rec
}

func (s *RecorderSuite) record(in audit.Input) audit.Entry {
	if in.Actor.ID == "" {
		in.Actor = audit.Actor{ID: "u-ana", Name: "Ana", Email: "ana@chronos.mx"}
	}
	if in.Action == "" {
		in.Action = audit.ActionEdit
	}
	if in.Module == "" {
		in.Module = audit.ModuleBanks
	}
	entry, err := s.rec.Record(s.ctx, in)
	s.Require().NoError(err)
	return entry
}

func (s *RecorderSuite) TestDiffFromSnapshots() {
	entry := s.record(audit.Input{
		Before: map[string]any{"a": 1, "b": 2},
		After:  map[string]any{"a": 1, "b": 3, "c": 4},
	})

	s.Require().Len(entry.Changes, 2)

	s.Equal("b", entry.Changes[0].Field)
	s.True(entry.Changes[0].Old.Equal(export.Number(2)))
	s.True(entry.Changes[0].New.Equal(export.Number(3)))

	s.Equal("c", entry.Changes[1].Field)
	s.True(entry.Changes[1].Old.IsAbsent())
	s.True(entry.Changes[1].New.Equal(export.Number(4)))
}

func (s *RecorderSuite) TestDiffNeedsBothSnapshots() {
	entry := s.record(audit.Input{After: map[string]any{"a": 1}})
	s.Empty(entry.Changes)
}

func (s *RecorderSuite) TestSeverityDerivation() {
	tests := []struct {
		name string
		in   audit.Input
		want audit.Severity
	}{
		{"delete is warning", audit.Input{Action: audit.ActionDelete}, audit.SeverityWarning},
		{"lock is warning", audit.Input{Action: audit.ActionLock}, audit.SeverityWarning},
		{"close period is warning", audit.Input{Action: audit.ActionClosePeriod}, audit.SeverityWarning},
		{"transfer is info", audit.Input{Action: audit.ActionTransfer}, audit.SeverityInfo},
		{"view is info", audit.Input{Action: audit.ActionView}, audit.SeverityInfo},
		{"failure is error", audit.Input{Action: audit.ActionView, Failed: true}, audit.SeverityError},
		{"explicit wins", audit.Input{Action: audit.ActionView, Severity: audit.SeverityCritical}, audit.SeverityCritical},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.want, s.record(tt.in).Severity)
		})
	}
}

func (s *RecorderSuite) TestHighAmountAlertDeduplicated() {
	fin := &audit.FinancialContext{AccountID: "profit", AccountName: "Profit", Amount: 75000}
	s.record(audit.Input{Action: audit.ActionTransfer, Finance: fin})
	s.clock = s.clock.Add(10 * time.Minute)
	s.record(audit.Input{Action: audit.ActionTransfer, Finance: fin})

	alerts := s.rec.Alerts()
	s.Require().Len(alerts, 1)
	s.Equal(audit.AlertHighAmount, alerts[0].Type)
	s.Equal(audit.SeverityWarning, alerts[0].Severity)
	s.Contains(alerts[0].Description, "$75000.00")

	// Past the dedup window the same rule may fire again.
	s.clock = s.clock.Add(31 * time.Minute)
	s.record(audit.Input{Action: audit.ActionTransfer, Finance: fin})
	s.Len(s.rec.Alerts(), 2)
}

func (s *RecorderSuite) TestExcessOperationsAlert() {
	for range 4 {
		s.record(audit.Input{})
	}
	alerts := s.rec.Alerts()
	s.Require().Len(alerts, 1)
	s.Equal(audit.AlertExcessOps, alerts[0].Type)
	s.Contains(alerts[0].Description, "4 operaciones")
}

func (s *RecorderSuite) TestOffHoursAlert() {
	s.clock = time.Date(2026, time.March, 4, 2, 30, 0, 0, time.UTC)
	s.record(audit.Input{})

	alerts := s.rec.Alerts()
	s.Require().Len(alerts, 1)
	s.Equal(audit.AlertOffHours, alerts[0].Type)
	s.Contains(alerts[0].Description, "02:30:00")
}

func (s *RecorderSuite) TestFrequentFailuresAlert() {
	s.record(audit.Input{Failed: true, ErrorMessage: "saldo insuficiente"})
	s.Empty(s.rec.Alerts())

	s.record(audit.Input{Failed: true, ErrorMessage: "saldo insuficiente"})
	alerts := s.rec.Alerts()
	s.Require().Len(alerts, 1)
	s.Equal(audit.AlertFrequentErrors, alerts[0].Type)
	s.Equal(audit.SeverityError, alerts[0].Severity)
}

func (s *RecorderSuite) TestAcknowledge() {
	s.record(audit.Input{Failed: true})
	s.record(audit.Input{Failed: true})
	alerts := s.rec.PendingAlerts()
	s.Require().Len(alerts, 1)

	s.Require().NoError(s.rec.Acknowledge(s.ctx, alerts[0].ID, "u-admin"))
	s.Empty(s.rec.PendingAlerts())

	all := s.rec.Alerts()
	s.Require().Len(all, 1)
	s.True(all[0].Acknowledged)
	s.Equal(domain.UserID("u-admin"), all[0].AcknowledgedBy)

	err := s.rec.Acknowledge(s.ctx, "alert_desconocida", "u-admin")
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

func (s *RecorderSuite) TestListFiltersAndPagination() {
	s.record(audit.Input{Module: audit.ModuleBanks, Action: audit.ActionIncome})
	s.clock = s.clock.Add(time.Minute)
	s.record(audit.Input{Module: audit.ModuleSales, Action: audit.ActionCreate})
	s.clock = s.clock.Add(time.Minute)
	s.record(audit.Input{
		Module: audit.ModuleBanks,
		Action: audit.ActionExpense,
		Actor:  audit.Actor{ID: "u-luis", Name: "Luis"},
	})

	page, err := s.rec.List(s.ctx, audit.Filters{Module: audit.ModuleBanks})
	s.Require().NoError(err)
	s.Equal(2, page.Total)
	// Default ordering is newest first.
	s.Equal(audit.ActionExpense, page.Logs[0].Action)

	page, err = s.rec.List(s.ctx, audit.Filters{UserID: "u-luis"})
	s.Require().NoError(err)
	s.Equal(1, page.Total)

	page, err = s.rec.List(s.ctx, audit.Filters{Limit: 2})
	s.Require().NoError(err)
	s.Len(page.Logs, 2)
	s.Equal(3, page.Total)
	s.Equal(1, page.Page)
	s.Equal(2, page.TotalPages)

	page, err = s.rec.List(s.ctx, audit.Filters{Limit: 2, Offset: 2})
	s.Require().NoError(err)
	s.Len(page.Logs, 1)
	s.Equal(2, page.Page)
}

func (s *RecorderSuite) TestListSearch() {
	s.record(audit.Input{Description: "Transferencia a Bóveda USA"})
	s.record(audit.Input{Description: "Corte de caja"})

	page, err := s.rec.List(s.ctx, audit.Filters{Search: "bóveda"})
	s.Require().NoError(err)
	s.Equal(1, page.Total)
}

func (s *RecorderSuite) TestEntityHistory() {
	ref := &audit.EntityRef{Type: "movimiento", ID: "mov-1", Name: "Pago luz"}
	s.record(audit.Input{Entity: ref})
	s.record(audit.Input{Entity: &audit.EntityRef{Type: "movimiento", ID: "mov-2", Name: "Otro"}})

	entries, err := s.rec.EntityHistory(s.ctx, "movimiento", "mov-1")
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("Pago luz", entries[0].Entity.Name)
}

func (s *RecorderSuite) TestStats() {
	s.record(audit.Input{Module: audit.ModuleBanks, Action: audit.ActionIncome})
	s.record(audit.Input{Module: audit.ModuleBanks, Action: audit.ActionExpense})
	s.record(audit.Input{
		Module: audit.ModuleSales,
		Action: audit.ActionCreate,
		Actor:  audit.Actor{ID: "u-luis", Name: "Luis"},
	})

	stats, err := s.rec.Stats(s.ctx, 7)
	s.Require().NoError(err)
	s.Equal(3, stats.Total)
	s.Equal(2, stats.ByModule[audit.ModuleBanks])
	s.Equal(1, stats.ByModule[audit.ModuleSales])
	s.Equal(3, stats.BySeverity[audit.SeverityInfo])
	s.Require().Len(stats.ByUser, 2)
	s.Equal("Ana", stats.ByUser[0].Name)
	s.Equal(2, stats.ByUser[0].Total)
	s.Len(stats.Recent, 3)
}

func (s *RecorderSuite) TestSubscribersSurvivePanics() {
	var got []audit.Entry
	unsubscribe := s.rec.Subscribe(func(audit.Entry) { panic("boom") })
	defer unsubscribe()
	s.rec.Subscribe(func(e audit.Entry) { got = append(got, e) })

	s.record(audit.Input{Description: "primera"})
	s.Require().Len(got, 1)
	s.Equal("primera", got[0].Description)

	unsubscribe()
	s.record(audit.Input{Description: "segunda"})
	s.Len(got, 2)
}

func (s *RecorderSuite) TestSweepRemovesExpiredEntries() {
	s.record(audit.Input{Description: "vieja"})
	s.clock = s.clock.Add(91 * 24 * time.Hour)
	s.record(audit.Input{Description: "reciente"})

	removed, err := s.rec.Sweep(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), removed)

	page, err := s.rec.List(s.ctx, audit.Filters{})
	s.Require().NoError(err)
	s.Require().Equal(1, page.Total)
	s.Equal("reciente", page.Logs[0].Description)
}

func (s *RecorderSuite) TestExportCSV() {
	s.record(audit.Input{
		Description: "Ingreso de ventas",
		Finance:     &audit.FinancialContext{AccountID: "profit", AccountName: "Profit", Amount: 1200},
	})

	file, err := s.rec.ExportLogs(s.ctx, audit.Filters{}, "csv")
	s.Require().NoError(err)
	s.Equal("text/csv", file.MIMEType)
	s.Equal("audit_log_2026-03-04.csv", file.Filename)

	out := string(file.Data)
	s.Contains(out, "ID,Fecha,Usuario")
	s.Contains(out, "Ingreso de ventas")
	s.Contains(out, "$1200.00")

	_, err = s.rec.ExportLogs(s.ctx, audit.Filters{}, "pdf")
	s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
}

func (s *RecorderSuite) TestParseDevice() {
	desktop := audit.ParseDevice(
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"10.0.0.5")
	s.Equal("10.0.0.5", desktop.IP)
	s.Equal("Escritorio", desktop.Device)
	s.True(strings.HasPrefix(desktop.Browser, "Chrome"))

	phone := audit.ParseDevice(
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
		"10.0.0.6")
	s.Equal("Móvil", phone.Device)

	blank := audit.ParseDevice("", "10.0.0.7")
	s.Equal("Desconocido", blank.Browser)
	s.Equal("Escritorio", blank.Device)
}
