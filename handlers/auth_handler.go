package handlers

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"accessmap-server/middleware"
	"accessmap-server/services"
	"accessmap-server/utils/errors"
)

type AuthHandler struct {
	authService *services.AuthService
}

type tokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// IssueToken exchanges the admin credentials for a bearer token.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if input.Username == "" {
		middleware.WriteError(w, errors.Validation("username", "field is required"))
		return
	}
	if input.Password == "" {
		middleware.WriteError(w, errors.Validation("password", "field is required"))
		return
	}

	token, expires, err := h.authService.Login(input.Username, input.Password)
	if err != nil {
		logrus.WithField("username", input.Username).Warn("Rejected token request")
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, TokenType: "Bearer", ExpiresAt: expires.UTC()})
}
