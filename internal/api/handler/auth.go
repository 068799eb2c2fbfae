package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gavelhouse/gavel/internal/api/middleware"
	"github.com/gavelhouse/gavel/internal/api/response"
	"github.com/gavelhouse/gavel/internal/auth"
)

// AuthHandler serves registration, login and logout.
type AuthHandler struct {
	auth *auth.Service
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(authService *auth.Service) *AuthHandler {
	return &AuthHandler{auth: authService}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Online    bool      `json:"online"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Register creates a new account and returns an initial session token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" || req.Username == "" || req.Password == "" {
		response.Error(w, http.StatusBadRequest, "all fields are required")
		return
	}

	user, session, err := h.auth.Register(r.Context(), auth.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUsernameTaken), errors.Is(err, auth.ErrEmailTaken):
			response.Error(w, http.StatusConflict, err.Error())
		default:
			response.Error(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	response.JSON(w, http.StatusCreated, sessionResponse{
		Name:      user.Name,
		Email:     user.Email,
		Username:  user.Username,
		Online:    user.Online,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	})
}

// Login verifies credentials and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		response.Error(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, session, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.Error(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		response.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response.JSON(w, http.StatusOK, sessionResponse{
		Name:      user.Name,
		Email:     user.Email,
		Username:  user.Username,
		Online:    user.Online,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	})
}

// Logout invalidates the caller's session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractToken(r)
	if err := h.auth.Logout(r.Context(), token); err != nil {
		response.Error(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	response.NoContent(w)
}
