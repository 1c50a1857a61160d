package notification

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

// Handler exposes the notification feed over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.send)
	r.Post("/broadcast", h.broadcast)
	r.Get("/unread-count", h.unreadCount)
	r.Get("/stats", h.stats)
	r.Post("/read-all", h.markAllRead)
	r.Delete("/archived", h.purgeArchived)
	r.Post("/{id}/read", h.markRead)
	r.Post("/{id}/archive", h.archive)
	r.Post("/{id}/pin", h.togglePin)
	r.Delete("/{id}", h.remove)
	r.Get("/preferences", h.preferences)
	r.Put("/preferences", h.updatePreferences)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := Filters{
		Category: Category(q.Get("category")),
		Type:     Type(q.Get("type")),
	}
	if raw := q.Get("read"); raw != "" {
		v := raw == "true"
		f.Read = &v
	}
	if raw := q.Get("archived"); raw != "" {
		v := raw == "true"
		f.Archived = &v
	}
	if raw := q.Get("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			f.Since = t
		}
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))

	msgs, err := h.svc.List(r.Context(), userID, f)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"notifications": msgs})
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	var p SendParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if p.FromID.IsNil() {
		p.FromID = domain.UserID(middleware.GetUserID(r.Context()))
		p.FromName = middleware.GetUserName(r.Context())
	}
	m, err := h.svc.Send(r.Context(), p)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, m)
}

type broadcastRequest struct {
	UserIDs  []domain.UserID `json:"user_ids"`
	Type     Type            `json:"type"`
	Priority Priority        `json:"priority,omitempty"`
	Title    string          `json:"title"`
	Body     string          `json:"body"`
}

func (h *Handler) broadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if len(req.UserIDs) == 0 || req.Title == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "user_ids and title are required"))
		return
	}
	if req.Type == "" {
		req.Type = TypeSystem
	}
	sent := h.svc.Broadcast(r.Context(), req.UserIDs, req.Type, req.Priority, req.Title, req.Body)
	shared.WriteJSON(w, http.StatusOK, map[string]any{"sent": len(sent)})
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}
	n, err := h.svc.UnreadCount(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"unread": n})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}
	stats, err := h.svc.Stats(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}
	if err := h.svc.MarkRead(r.Context(), userID, messageID(r)); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"read": true})
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}
	changed, err := h.svc.MarkAllRead(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"marked": changed})
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}
	if err := h.svc.Archive(r.Context(), userID, messageID(r)); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"archived": true})
}

func (h *Handler) togglePin(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}
	pinned, err := h.svc.TogglePin(r.Context(), userID, messageID(r))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"pinned": pinned})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), userID, messageID(r)); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) purgeArchived(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}
	removed, err := h.svc.PurgeArchived(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (h *Handler) preferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}
	prefs, err := h.svc.Preferences(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, prefs)
}

func (h *Handler) updatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}
	var p Prefs
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	p.UserID = userID
	if err := h.svc.UpdatePreferences(r.Context(), p); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, p)
}

func messageID(r *http.Request) domain.MessageID {
	return domain.MessageID(chi.URLParam(r, "id"))
}

// subject resolves whose feed a request addresses: an explicit user_id query
// parameter wins, otherwise the authenticated caller. Writes the error
// response itself when neither is present.
func subject(w http.ResponseWriter, r *http.Request) (domain.UserID, bool) {
	userID := domain.UserID(r.URL.Query().Get("user_id"))
	if userID.IsNil() {
		userID = domain.UserID(middleware.GetUserID(r.Context()))
	}
	if userID.IsNil() {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return userID, true
}
