// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
)

// respondError maps domain failures onto the HTTP error contract. Anything
// unmapped is a 500; callers never leak internal error text to clients.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidTenant):
		c.JSON(http.StatusForbidden, gin.H{"error": "unknown or invalid tenant"})
	case errors.Is(err, identity.ErrSessionNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown session"})
	case errors.Is(err, identity.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
	case errors.Is(err, identity.ErrVerificationFailed):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "identity verification failed"})
	case errors.Is(err, identity.ErrLockContention):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "identity cluster busy, retry"})
	case errors.Is(err, identity.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "identity store unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
