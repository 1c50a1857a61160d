package jwttoken

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"chronos/internal/transport/http/shared"
	dErrors "chronos/pkg/domain-errors"
	"chronos/pkg/secrets"
)

const accessTokenTTL = 8 * time.Hour

// Handler exchanges the admin API key for a short-lived access token. When no
// key hash is configured the endpoint is disabled.
type Handler struct {
	svc          *Service
	adminKeyHash string
}

func NewHandler(svc *Service, adminKeyHash string) *Handler {
	return &Handler{svc: svc, adminKeyHash: adminKeyHash}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/token", h.issueToken)
}

type tokenRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	APIKey   string `json:"api_key"`
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	if h.adminKeyHash == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "token issuance is not configured"))
		return
	}

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.UserID == "" || req.APIKey == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "user_id and api_key are required"))
		return
	}

	if err := secrets.Verify(req.APIKey, h.adminKeyHash); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid API key"))
		return
	}

	token, err := h.svc.GenerateAccessToken(req.UserID, req.UserName, accessTokenTTL)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(accessTokenTTL.Seconds()),
	})
}
