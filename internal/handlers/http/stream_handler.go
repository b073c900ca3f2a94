package http

import (
	"net/http"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/internal/infrastructure/middleware"
	apperrors "streamgate/pkg/errors"
	"streamgate/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StreamHandler owns the control-plane routes: starting, joining and
// stopping sessions, and reading their state.
type StreamHandler struct {
	sessions  ports.SessionManager
	directory ports.CameraDirectory
	tokens    ports.TokenService
	tokenTTL  time.Duration
	logger    *zap.SugaredLogger
}

func NewStreamHandler(
	sessions ports.SessionManager,
	directory ports.CameraDirectory,
	tokens ports.TokenService,
	tokenTTL time.Duration,
	logger *zap.SugaredLogger,
) *StreamHandler {
	return &StreamHandler{
		sessions:  sessions,
		directory: directory,
		tokens:    tokens,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

func (h *StreamHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/stream/start", h.StartStream)
	api.POST("/stream/:id/stop", h.StopStream)
	api.POST("/stream/:id/join", h.JoinStream)
	api.GET("/stream/:id/metrics", h.GetMetrics)
	api.GET("/stream/status", h.Status)
}

func (h *StreamHandler) StartStream(c *gin.Context) {
	var req struct {
		CameraID string `json:"camera_id" binding:"required"`
		Protocol string `json:"protocol"`
		Quality  string `json:"quality"`
	}

	// Request-shape failures go through the error middleware so every 400
	// carries the same structured body.
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.WrapError(err, apperrors.ErrCodeInvalidInput, "malformed request body", http.StatusBadRequest))
		return
	}
	if err := validation.ValidateCameraID(req.CameraID); err != nil {
		c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}

	protocol := domain.Protocol(req.Protocol)
	if protocol == "" {
		protocol = domain.ProtocolHLS
	}
	tier := domain.QualityTier(req.Quality)
	if tier == "" {
		tier = domain.TierMedium
	}

	userID, storeID, ok := middleware.CallerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	camera, err := h.directory.GetCamera(c.Request.Context(), domain.CameraID(req.CameraID))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	// Store scoping: a caller may only start streams for cameras in their
	// own store. The denial is indistinguishable from a bad token.
	if storeID != "" && camera.StoreID != storeID {
		respondDomainError(c, domain.ErrCameraAccessDenied)
		return
	}

	result, err := h.sessions.StartStream(c.Request.Context(), camera, protocol, tier, userID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": result.SessionID,
		"protocol":   result.Protocol,
		"token":      result.Token,
		"expires_at": result.ExpiresAt,
		"fallback":   result.Fallback,
		"health":     result.Health,
	})
}

func (h *StreamHandler) StopStream(c *gin.Context) {
	sessionID := domain.SessionID(c.Param("id"))
	if err := validation.ValidateSessionID(string(sessionID)); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	userID, _, ok := middleware.CallerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	if err := h.sessions.StopStream(c.Request.Context(), sessionID, userID); err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// JoinStream attaches the caller to an already-running session and issues
// them their own stream token; viewers never share tokens.
func (h *StreamHandler) JoinStream(c *gin.Context) {
	sessionID := domain.SessionID(c.Param("id"))
	if err := validation.ValidateSessionID(string(sessionID)); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	userID, storeID, ok := middleware.CallerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	session, err := h.sessions.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if storeID != "" && session.StoreID != storeID {
		respondDomainError(c, domain.ErrCameraAccessDenied)
		return
	}

	if err := h.sessions.AddViewer(c.Request.Context(), sessionID, userID); err != nil {
		respondDomainError(c, err)
		return
	}
	h.logger.Infow("viewer joined", "session_id", sessionID, "user_id", userID)

	token, expiresAt, err := h.tokens.Issue(session.CameraID, userID, session.StoreID,
		[]string{domain.PermissionStreamView}, h.tokenTTL)
	if err != nil {
		c.Error(apperrors.WrapError(err, apperrors.ErrCodeInternal, "internal error", http.StatusInternalServerError).
			WithContext("session_id", sessionID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"protocol":   session.Protocol,
		"token":      token,
		"expires_at": expiresAt,
	})
}

func (h *StreamHandler) GetMetrics(c *gin.Context) {
	sessionID := domain.SessionID(c.Param("id"))

	snapshot, err := h.sessions.GetMetrics(c.Request.Context(), sessionID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"metrics": snapshot})
}

// Status lists active sessions, optionally narrowed to one camera. Nothing
// in the summary can leak credential material: sessions only carry
// identifiers and sampled health.
func (h *StreamHandler) Status(c *gin.Context) {
	var sessions []*domain.StreamSession
	if cameraID := c.Query("camera_id"); cameraID != "" {
		if err := validation.ValidateCameraID(cameraID); err != nil {
			c.Error(apperrors.NewInvalidInputError(err.Error()))
			return
		}
		sessions = h.sessions.ListSessionsForCamera(c.Request.Context(), domain.CameraID(cameraID))
	} else {
		sessions = h.sessions.ListSessions(c.Request.Context())
	}

	_, storeID, _ := middleware.CallerIdentity(c)

	summaries := make([]gin.H, 0, len(sessions))
	for _, s := range sessions {
		if storeID != "" && s.StoreID != storeID {
			continue
		}
		summaries = append(summaries, gin.H{
			"session_id": s.ID,
			"camera_id":  s.CameraID,
			"store_id":   s.StoreID,
			"protocol":   s.Protocol,
			"quality":    s.Tier,
			"status":     s.Status(),
			"viewers":    s.ViewerCount(),
			"started_at": s.StartedAt,
			"uptime":     time.Since(s.StartedAt).Round(time.Second).String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"sessions": summaries})
}
