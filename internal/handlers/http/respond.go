package http

import (
	"errors"
	"net/http"

	"streamgate/internal/core/domain"

	"github.com/gin-gonic/gin"
)

// respondDomainError maps domain sentinels onto HTTP responses. Access
// failures share one generic body so a caller probing the API cannot tell
// a bad token from a camera outside their store.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrCameraAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})

	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrCameraUnavailable),
		errors.Is(err, domain.ErrArtifactNotFound),
		errors.Is(err, domain.ErrInvalidSegmentName):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})

	case errors.Is(err, domain.ErrConcurrencyLimit):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "stream limit reached"})

	case errors.Is(err, domain.ErrUnsupportedProtocol),
		errors.Is(err, domain.ErrMissingSourceConfiguration):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrCredentialDecryption),
		errors.Is(err, domain.ErrProcessSpawn):
		// The cause stays server-side; callers only learn the stream is down.
		c.JSON(http.StatusBadGateway, gin.H{"error": "stream unavailable"})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
