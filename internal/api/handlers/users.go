package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/annotate/internal/auth"
	"github.com/your-org/annotate/internal/mail"
	"github.com/your-org/annotate/internal/models"
	"github.com/your-org/annotate/internal/store"
	"github.com/your-org/annotate/pkg/dto"
)

type UserHandler struct {
	store  *store.AnnotationStore
	mailer mail.Sender
}

func NewUserHandler(st *store.AnnotationStore, mailer mail.Sender) *UserHandler {
	return &UserHandler{store: st, mailer: mailer}
}

// Signup registers an account and mails the activation code.
func (h *UserHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.store.RegisterUser(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	code, err := h.store.AddActivationCode(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	h.deliver(req.Email, code, true)

	c.JSON(http.StatusCreated, gin.H{"user_id": user.UserID})
}

func (h *UserHandler) deliver(email, code string, activation bool) {
	if h.mailer == nil {
		slog.Warn("mailer not configured, code not delivered", "email", email)
		return
	}
	var err error
	if activation {
		err = h.mailer.SendActivation(email, code)
	} else {
		err = h.mailer.SendPasswordReset(email, code)
	}
	if err != nil {
		slog.Error("send verification mail", "email", email, "error", err)
	}
}

func (h *UserHandler) Activate(c *gin.Context) {
	var req dto.ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.ActivateUser(c.Request.Context(), req.Email, req.Code); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "activated"})
}

// ResendActivation issues a fresh activation code.
func (h *UserHandler) ResendActivation(c *gin.Context) {
	var req dto.RequestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	code, err := h.store.AddActivationCode(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	h.deliver(req.Email, code, true)

	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (h *UserHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.store.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		Token:     token,
		UserID:    models.DeriveUserID(req.Email),
		ExpiresIn: models.SessionExpirySeconds,
	})
}

func (h *UserHandler) Logout(c *gin.Context) {
	token := auth.Token(c)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no session"})
		return
	}

	if err := h.store.Logout(c.Request.Context(), token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// RequestPasswordReset issues and mails a password reset code.
func (h *UserHandler) RequestPasswordReset(c *gin.Context) {
	var req dto.RequestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	code, err := h.store.AddPasswordResetCode(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	h.deliver(req.Email, code, false)

	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.ResetPassword(c.Request.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
