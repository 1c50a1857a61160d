package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"chronos/internal/platform/middleware"
	"chronos/internal/transport/http/shared"
	"chronos/pkg/domain"
	dErrors "chronos/pkg/domain-errors"
)

// Handler exposes the audit log over HTTP.
type Handler struct {
	rec *Recorder
}

func NewHandler(rec *Recorder) *Handler {
	return &Handler{rec: rec}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/entries", h.record)
	r.Get("/entries", h.list)
	r.Get("/entries/entity/{type}/{id}", h.entityHistory)
	r.Get("/entries/user/{id}", h.userActivity)
	r.Get("/stats", h.stats)
	r.Get("/export", h.export)
	r.Get("/alerts", h.alerts)
	r.Post("/alerts/{id}/ack", h.acknowledge)
}

type recordRequest struct {
	Actor       Actor             `json:"actor"`
	Action      Action            `json:"action"`
	Module      Module            `json:"module"`
	Description string            `json:"description"`
	Severity    Severity          `json:"severity,omitempty"`
	Entity      *EntityRef        `json:"entity,omitempty"`
	Before      map[string]any    `json:"before,omitempty"`
	After       map[string]any    `json:"after,omitempty"`
	Finance     *FinancialContext `json:"finance,omitempty"`
	Device      *DeviceContext    `json:"device,omitempty"`
	Failed      bool              `json:"failed,omitempty"`
	Error       string            `json:"error,omitempty"`
	DurationMs  int64             `json:"duration_ms,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Actor.ID.IsNil() {
		req.Actor.ID = domain.UserID(middleware.GetUserID(r.Context()))
		req.Actor.Name = middleware.GetUserName(r.Context())
	}

	in := Input{
		Actor:        req.Actor,
		Action:       req.Action,
		Module:       req.Module,
		Description:  req.Description,
		Severity:     req.Severity,
		Entity:       req.Entity,
		Before:       req.Before,
		After:        req.After,
		Finance:      req.Finance,
		Failed:       req.Failed,
		ErrorMessage: req.Error,
		DurationMs:   req.DurationMs,
		Metadata:     req.Metadata,
		Tags:         req.Tags,
	}
	if req.Device != nil {
		in.Device = *req.Device
	} else {
		in.Device = ParseDevice(r.UserAgent(), r.RemoteAddr)
	}

	entry, err := h.rec.Record(r.Context(), in)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, entry)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, err := h.rec.List(r.Context(), filtersFromQuery(r))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) entityHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.rec.EntityHistory(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) userActivity(w http.ResponseWriter, r *http.Request) {
	userID := domain.UserID(chi.URLParam(r, "id"))
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	entries, err := h.rec.UserActivity(r.Context(), userID, days)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	stats, err := h.rec.Stats(r.Context(), days)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	file, err := h.rec.ExportLogs(r.Context(), filtersFromQuery(r), format)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", file.MIMEType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	var alerts []Alert
	if r.URL.Query().Get("pending") == "true" {
		alerts = h.rec.PendingAlerts()
	} else {
		alerts = h.rec.Alerts()
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request) {
	alertID := domain.AlertID(chi.URLParam(r, "id"))
	by := domain.UserID(middleware.GetUserID(r.Context()))
	if by.IsNil() {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if err := h.rec.Acknowledge(r.Context(), alertID, by); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
}

func filtersFromQuery(r *http.Request) Filters {
	q := r.URL.Query()
	f := Filters{
		UserID:     domain.UserID(q.Get("user_id")),
		Module:     Module(q.Get("module")),
		Action:     Action(q.Get("action")),
		Severity:   Severity(q.Get("severity")),
		AccountID:  domain.AccountID(q.Get("account_id")),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Search:     q.Get("search"),
		SortBy:     q.Get("sort_by"),
		SortDir:    q.Get("sort_dir"),
	}
	if raw := q.Get("success"); raw != "" {
		v := raw == "true"
		f.Success = &v
	}
	if raw := q.Get("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			f.From = t
		}
	}
	if raw := q.Get("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			f.To = t
		}
	}
	if tags, ok := q["tag"]; ok {
		f.Tags = tags
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))
	return f
}
