package preference

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chronos/internal/platform/middleware"
	"chronos/internal/transport/http/shared"
	"chronos/pkg/domain"
	dErrors "chronos/pkg/domain-errors"
)

// Handler exposes saved filters and theme selection over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/filters", h.listFilters)
	r.Get("/filters/fields", h.fieldConfigs)
	r.Post("/filters", h.createFilter)
	r.Put("/filters/{id}", h.updateFilter)
	r.Delete("/filters/{id}", h.deleteFilter)
	r.Post("/filters/{id}/favorite", h.toggleFavorite)
	r.Post("/filters/{id}/default", h.setDefault)
	r.Post("/filters/{id}/use", h.registerUse)
	r.Get("/theme", h.theme)
	r.Put("/theme", h.setTheme)
}

func (h *Handler) listFilters(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	filters, err := h.svc.Filters(r.Context(), userID, r.URL.Query().Get("module"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"filters": filters})
}

func (h *Handler) fieldConfigs(w http.ResponseWriter, r *http.Request) {
	module := r.URL.Query().Get("module")
	if module == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "module is required"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"fields": h.svc.FieldConfigs(module)})
}

func (h *Handler) createFilter(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var f SavedFilter
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	f.UserID = userID
	if f.UserName == "" {
		f.UserName = middleware.GetUserName(r.Context())
	}
	created, err := h.svc.Create(r.Context(), f)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateFilter(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var f SavedFilter
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	updated, err := h.svc.Update(r.Context(), userID, chi.URLParam(r, "id"), f)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteFilter(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	favorite, err := h.svc.ToggleFavorite(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"favorite": favorite})
}

func (h *Handler) setDefault(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	module := r.URL.Query().Get("module")
	if module == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "module is required"))
		return
	}
	if err := h.svc.SetDefault(r.Context(), userID, module, chi.URLParam(r, "id")); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"default": true})
}

func (h *Handler) registerUse(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.svc.RegisterUse(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"registered": true})
}

func (h *Handler) theme(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	t, err := h.svc.Theme(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) setTheme(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var t Theme
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.svc.SetTheme(r.Context(), userID, t); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, t)
}

func caller(w http.ResponseWriter, r *http.Request) (domain.UserID, bool) {
	userID := domain.UserID(middleware.GetUserID(r.Context()))
	if userID.IsNil() {
		userID = domain.UserID(r.URL.Query().Get("user_id"))
	}
	if userID.IsNil() {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return userID, true
}
