package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gastos-cloud/internal/domain"
	"gastos-cloud/internal/remote"
	"gastos-cloud/internal/service"
)

// SessionHandler mantiene dependencias para los endpoints de sesión.
type SessionHandler struct {
	logger   *zap.Logger
	sessions *service.SessionService
}

// NewSessionHandler crea una instancia de SessionHandler.
func NewSessionHandler(logger *zap.Logger, sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{
		logger:   logger,
		sessions: sessions,
	}
}

type authBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login maneja POST /auth/login.
func (h *SessionHandler) Login(c *gin.Context) {
	h.authenticate(c, h.sessions.Login, http.StatusOK)
}

// Signup maneja POST /auth/signup.
func (h *SessionHandler) Signup(c *gin.Context) {
	h.authenticate(c, h.sessions.Signup, http.StatusCreated)
}

func (h *SessionHandler) authenticate(c *gin.Context, call func(ctx context.Context, email, password string) (domain.Credential, error), status int) {
	var req authBody
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid auth request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	cred, err := call(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	c.JSON(status, gin.H{
		"userId":    cred.UserID,
		"email":     cred.Email,
		"expiresAt": cred.ExpiresAt.Format(time.RFC3339),
	})
}

// Logout maneja POST /auth/logout. Siempre responde OK.
func (h *SessionHandler) Logout(c *gin.Context) {
	h.sessions.Logout(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// Session maneja GET /auth/session: intenta restaurar y reporta el estado.
func (h *SessionHandler) Session(c *gin.Context) {
	if !h.sessions.IsAuthenticated() {
		if _, err := h.sessions.Restore(c.Request.Context()); err != nil {
			h.logger.Warn("session restore failed", zap.Error(err))
		}
	}

	cred, ok := h.sessions.Credential()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"userId":        cred.UserID,
		"email":         cred.Email,
		"expiresAt":     cred.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *SessionHandler) writeAuthError(c *gin.Context, err error) {
	var identityErr *remote.IdentityError
	switch {
	case errors.As(err, &identityErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": identityErr.UserMessage()})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	default:
		h.logger.Error("authentication failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "identity service unavailable"})
	}
}
