package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/bcnelson/free-api/internal/api/middleware"
	"github.com/bcnelson/free-api/internal/domain"
	"github.com/bcnelson/free-api/internal/service"
)

// AuthHandler handles account endpoints.
type AuthHandler struct {
	accounts *service.AccountService
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts *service.AccountService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, logger: logger}
}

// Register creates a password account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	resp, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

// Login signs in with email and password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	resp, err := h.accounts.Login(r.Context(), req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Firebase exchanges a Firebase ID token for a session token.
func (h *AuthHandler) Firebase(w http.ResponseWriter, r *http.Request) {
	var req domain.FirebaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	resp, err := h.accounts.ExchangeFirebase(r.Context(), req.IDToken)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	resp, err := h.accounts.Me(r.Context(), claims.UserID())
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
