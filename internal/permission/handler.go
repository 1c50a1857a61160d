package permission

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

// Handler exposes the permission checker over HTTP. Decisions returned to the
// caller are also published to the decision sink for auditing.
type Handler struct {
	service *Service
	store   Store
	sink    DecisionSink
	logger  *slog.Logger
}

func NewHandler(service *Service, store Store, sink DecisionSink, logger *slog.Logger) *Handler {
	return &Handler{service: service, store: store, sink: sink, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/check", h.check)
	r.Get("/accounts", h.accessibleAccounts)
	r.Get("/actions", h.allowedActions)
	r.Get("/summary", h.summary)
	r.Get("/roles", h.listRoles)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.UserID.IsNil() {
		req.UserID = domain.UserID(middleware.GetUserID(r.Context()))
	}
	if req.UserID.IsNil() || req.Module == "" || req.Action == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "user_id, module and action are required"))
		return
	}
	if req.Context.IP == "" {
		req.Context.IP = r.RemoteAddr
	}
	if req.Context.Device == "" {
		req.Context.Device = r.UserAgent()
	}

	res, err := h.service.Check(r.Context(), req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if h.sink != nil {
		h.sink.PermissionDecision(r.Context(), req, res)
	}
	shared.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) accessibleAccounts(w http.ResponseWriter, r *http.Request) {
	userID := requestedUser(r)
	action := Action(r.URL.Query().Get("action"))
	if action == "" {
		action = ActionView
	}

	accounts, err := h.service.AccessibleAccounts(r.Context(), userID, action)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) allowedActions(w http.ResponseWriter, r *http.Request) {
	userID := requestedUser(r)
	module := Module(r.URL.Query().Get("module"))
	if module == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "module is required"))
		return
	}
	accountID := domain.AccountID(r.URL.Query().Get("account"))

	actions, err := h.service.AllowedActions(r.Context(), userID, module, accountID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	userID := requestedUser(r)
	summary, err := h.service.Summary(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.ListRoles(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

// requestedUser resolves the subject of a query: an explicit user_id query
// parameter wins, otherwise the authenticated caller.
func requestedUser(r *http.Request) domain.UserID {
	if q := r.URL.Query().Get("user_id"); q != "" {
		return domain.UserID(q)
	}
	return domain.UserID(middleware.GetUserID(r.Context()))
}
