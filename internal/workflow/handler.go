package workflow

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chronos/internal/platform/middleware"
	"chronos/internal/transport/http/shared"
	"chronos/pkg/domain"
	dErrors "chronos/pkg/domain-errors"
)

// Handler exposes the workflow engine over HTTP. Business failures come back
// as 200 responses with ok=false; HTTP error statuses are reserved for
// transport problems.
type Handler struct {
	engine *Engine
	logger *slog.Logger
}

func NewHandler(engine *Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/instances", h.initiate)
	r.Get("/instances/{id}", h.instance)
	r.Post("/instances/{id}/approve", h.approve)
	r.Post("/instances/{id}/reject", h.reject)
	r.Post("/instances/{id}/delegate", h.delegate)
	r.Post("/instances/{id}/cancel", h.cancel)
	r.Get("/pending", h.pending)
	r.Get("/mine", h.mine)
	r.Get("/by-entity", h.byEntity)
	r.Get("/definitions", h.definitions)
	r.Get("/stats", h.stats)
}

func (h *Handler) initiate(w http.ResponseWriter, r *http.Request) {
	var p InitiateParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if p.RequesterID.IsNil() {
		p.RequesterID = domain.UserID(middleware.GetUserID(r.Context()))
		p.RequesterName = middleware.GetUserName(r.Context())
	}
	if p.DefinitionID.IsNil() || p.RequesterID.IsNil() {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "definition_id and requester_id are required"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, h.engine.Initiate(r.Context(), p))
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	var p ApproveParams
	if !h.decodeAction(w, r, &p) {
		return
	}
	p.InstanceID = domain.InstanceID(chi.URLParam(r, "id"))
	if p.ApproverID.IsNil() {
		p.ApproverID = domain.UserID(middleware.GetUserID(r.Context()))
		p.ApproverName = middleware.GetUserName(r.Context())
	}
	shared.WriteJSON(w, http.StatusOK, h.engine.Approve(r.Context(), p))
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	var p RejectParams
	if !h.decodeAction(w, r, &p) {
		return
	}
	p.InstanceID = domain.InstanceID(chi.URLParam(r, "id"))
	if p.ApproverID.IsNil() {
		p.ApproverID = domain.UserID(middleware.GetUserID(r.Context()))
		p.ApproverName = middleware.GetUserName(r.Context())
	}
	shared.WriteJSON(w, http.StatusOK, h.engine.Reject(r.Context(), p))
}

func (h *Handler) delegate(w http.ResponseWriter, r *http.Request) {
	var p DelegateParams
	if !h.decodeAction(w, r, &p) {
		return
	}
	p.InstanceID = domain.InstanceID(chi.URLParam(r, "id"))
	if p.FromID.IsNil() {
		p.FromID = domain.UserID(middleware.GetUserID(r.Context()))
		p.FromName = middleware.GetUserName(r.Context())
	}
	if p.ToID.IsNil() {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "to_id is required"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, h.engine.Delegate(r.Context(), p))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	var p CancelParams
	if !h.decodeAction(w, r, &p) {
		return
	}
	p.InstanceID = domain.InstanceID(chi.URLParam(r, "id"))
	if p.UserID.IsNil() {
		p.UserID = domain.UserID(middleware.GetUserID(r.Context()))
		p.UserName = middleware.GetUserName(r.Context())
	}
	shared.WriteJSON(w, http.StatusOK, h.engine.Cancel(r.Context(), p))
}

func (h *Handler) decodeAction(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	return true
}

func (h *Handler) instance(w http.ResponseWriter, r *http.Request) {
	inst, err := h.engine.Instance(r.Context(), domain.InstanceID(chi.URLParam(r, "id")))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, inst)
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	userID := domain.UserID(r.URL.Query().Get("user_id"))
	if userID.IsNil() {
		userID = domain.UserID(middleware.GetUserID(r.Context()))
	}
	instances, err := h.engine.PendingForUser(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"instances": instances})
}

func (h *Handler) mine(w http.ResponseWriter, r *http.Request) {
	userID := domain.UserID(middleware.GetUserID(r.Context()))
	instances, err := h.engine.ByRequester(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"instances": instances})
}

func (h *Handler) byEntity(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("type")
	entityID := r.URL.Query().Get("id")
	if entityType == "" || entityID == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "type and id are required"))
		return
	}
	inst, err := h.engine.ByEntity(r.Context(), entityType, entityID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if inst == nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no workflow for entity"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, inst)
}

func (h *Handler) definitions(w http.ResponseWriter, r *http.Request) {
	if module := r.URL.Query().Get("module"); module != "" {
		defs, err := h.engine.DefinitionsByModule(r.Context(), module)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		shared.WriteJSON(w, http.StatusOK, map[string]any{"definitions": defs})
		return
	}
	defs, err := h.engine.Definitions(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"definitions": defs})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}
