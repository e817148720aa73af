package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/credstack/server/internal/auth"
	"github.com/credstack/server/internal/model"
)

// AccountHandler handles registration and login endpoints
type AccountHandler struct {
	accounts *auth.AccountService
	logger   *zap.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accounts *auth.AccountService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type authResponse struct {
	User userResponse `json:"user"`
	tokenResponse
}

func toUserResponse(user model.User) userResponse {
	return userResponse{
		ID:    user.ID.String(),
		Name:  user.Name,
		Email: user.Email,
	}
}

func toTokenResponse(pair auth.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    pair.ExpiresIn,
	}
}

// HandleRegister handles POST /api/v1/auth/register
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if len(req.Name) < 2 || len(req.Name) > 50 {
		respondWithError(w, http.StatusBadRequest, "name must be between 2 and 50 characters")
		return
	}
	if !validEmail(req.Email) {
		respondWithError(w, http.StatusBadRequest, "invalid email")
		return
	}

	user, pair, err := h.accounts.Register(r.Context(), req.Name, req.Email, req.Password, r.UserAgent(), getClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrPasswordPolicy):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrEmailTaken):
			respondWithError(w, http.StatusConflict, "email is already in use")
		default:
			h.logger.Error("register failed", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{
		User:          toUserResponse(user),
		tokenResponse: toTokenResponse(pair),
	})
}

// HandleLogin handles POST /api/v1/auth/login
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !validEmail(req.Email) || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, pair, err := h.accounts.Login(r.Context(), req.Email, req.Password, r.UserAgent(), getClientIP(r))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondWithError(w, http.StatusUnauthorized, "incorrect email or password")
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, authResponse{
		User:          toUserResponse(user),
		tokenResponse: toTokenResponse(pair),
	})
}

// HandleCheckEmail handles POST /api/v1/auth/check-email
func (h *AccountHandler) HandleCheckEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validEmail(req.Email) {
		respondWithError(w, http.StatusBadRequest, "invalid email")
		return
	}

	exists, err := h.accounts.CheckEmail(r.Context(), req.Email)
	if err != nil {
		h.logger.Error("check email failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}
