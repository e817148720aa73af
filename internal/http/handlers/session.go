package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/credstack/server/internal/auth"
	"github.com/credstack/server/internal/middleware"
)

// SessionHandler handles refresh-session endpoints
type SessionHandler struct {
	sessions *auth.SessionManager
	logger   *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *auth.SessionManager, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	UserAgent *string   `json:"user_agent"`
	IPAddress *string   `json:"ip_address"`
}

// HandleRefresh handles POST /api/v1/token/refresh
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		respondWithError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	user, pair, err := h.sessions.Refresh(r.Context(), req.RefreshToken, r.UserAgent(), getClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			respondWithError(w, http.StatusUnauthorized, "invalid refresh token")
		case errors.Is(err, auth.ErrSessionRevoked):
			respondWithError(w, http.StatusUnauthorized, "refresh token has been revoked")
		case errors.Is(err, auth.ErrSessionNotFound):
			respondWithError(w, http.StatusUnauthorized, "refresh token not found or expired")
		default:
			h.logger.Error("token refresh failed", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	respondJSON(w, http.StatusOK, authResponse{
		User:          toUserResponse(user),
		tokenResponse: toTokenResponse(pair),
	})
}

// HandleLogout handles POST /api/v1/token/logout. Revoking an unknown or
// already-revoked token still reports success.
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		respondWithError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	err := h.sessions.Logout(r.Context(), req.RefreshToken)
	switch {
	case err == nil, errors.Is(err, auth.ErrSessionNotFound):
		respondJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
	case errors.Is(err, auth.ErrInvalidToken):
		respondWithError(w, http.StatusUnauthorized, "invalid refresh token")
	default:
		h.logger.Error("logout failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

// HandleLogoutAll handles POST /api/v1/token/logout-all (authenticated)
func (h *SessionHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.sessions.LogoutAll(r.Context(), userID); err != nil {
		h.logger.Error("logout all failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out from all devices successfully"})
}

// HandleListSessions handles GET /api/v1/token/sessions (authenticated)
func (h *SessionHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessions, err := h.sessions.ListSessions(r.Context(), userID)
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResponse{
			ID:        s.ID.String(),
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
			UserAgent: s.UserAgent,
			IPAddress: s.IPAddress,
		})
	}

	respondJSON(w, http.StatusOK, map[string][]sessionResponse{"sessions": out})
}

// HandleRevokeSession handles DELETE /api/v1/token/sessions/{sessionID}
// (authenticated). A session owned by another user answers 404.
func (h *SessionHandler) HandleRevokeSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondWithError(w, http.StatusNotFound, "session not found")
		return
	}

	if err := h.sessions.RevokeSession(r.Context(), userID, sessionID); err != nil {
		if errors.Is(err, auth.ErrSessionNotFound) {
			respondWithError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("revoke session failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "session revoked successfully"})
}
