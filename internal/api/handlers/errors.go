package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/annotate/internal/store"
)

// respondError maps store sentinel errors to HTTP status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, store.ErrInvalidCredential):
		status = http.StatusUnauthorized
	case errors.Is(err, store.ErrNotActivated):
		status = http.StatusForbidden
	case errors.Is(err, store.ErrInvalidCode),
		errors.Is(err, store.ErrExpiredCode),
		errors.Is(err, store.ErrValidation):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
