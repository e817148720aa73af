package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/credstack/server/internal/auth"
)

// genericResetMessage is returned from the request endpoint for every
// outcome: unknown email, throttled, malformed address, success. The
// uniformity is load-bearing; see the reset engine.
const genericResetMessage = "If the email is registered, we will send recovery instructions."

// ResetHandler handles the password recovery endpoints
type ResetHandler struct {
	engine *auth.ResetEngine
	logger *zap.Logger
}

// NewResetHandler creates a new reset handler
func NewResetHandler(engine *auth.ResetEngine, logger *zap.Logger) *ResetHandler {
	return &ResetHandler{engine: engine, logger: logger}
}

type requestResetRequest struct {
	Email string `json:"email"`
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

func validCode(code string) bool {
	return len(code) >= 6 && len(code) <= 64
}

// HandleRequest handles POST /api/v1/reset-password/request
func (h *ResetHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	generic := map[string]string{"message": genericResetMessage}

	var req requestResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !validEmail(req.Email) {
		// Malformed input is indistinguishable from success here.
		respondJSON(w, http.StatusOK, generic)
		return
	}

	err := h.engine.RequestReset(r.Context(), req.Email, getClientIP(r), r.UserAgent())
	if err != nil && !errors.Is(err, auth.ErrRateLimited) {
		h.logger.Error("reset request failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, generic)
}

// HandleVerify handles POST /api/v1/reset-password/verify
func (h *ResetHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validEmail(req.Email) || !validCode(strings.TrimSpace(req.Code)) {
		respondWithError(w, http.StatusBadRequest, "email and code are required")
		return
	}

	err := h.engine.VerifyCode(r.Context(), req.Email, strings.TrimSpace(req.Code))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCode) {
			respondWithError(w, http.StatusBadRequest, "invalid or expired code")
			return
		}
		h.logger.Error("code verification failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "valid code"})
}

// HandleReset handles POST /api/v1/reset-password/reset
func (h *ResetHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validEmail(req.Email) || !validCode(strings.TrimSpace(req.Code)) {
		respondWithError(w, http.StatusBadRequest, "email and code are required")
		return
	}

	err := h.engine.ResetPassword(r.Context(), req.Email, strings.TrimSpace(req.Code), req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrPasswordPolicy):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrPasswordMatchesOld):
			respondWithError(w, http.StatusBadRequest, "the new password must be different from the previous one")
		case errors.Is(err, auth.ErrInvalidCode):
			respondWithError(w, http.StatusBadRequest, "invalid or expired code")
		default:
			h.logger.Error("password reset failed", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "password reset successfully"})
}
