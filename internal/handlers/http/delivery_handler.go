package http

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/internal/infrastructure/pipeline"
	"streamgate/pkg/optimize"
	"streamgate/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DeliveryHandler serves the transcoder's output artifacts: HLS playlists
// and segments, and the MJPEG snapshot stream. Every request is gated on a
// stream token scoped to the session's camera and store. Artifact bytes are
// streamed without holding any session lock.
type DeliveryHandler struct {
	sessions  ports.SessionManager
	directory ports.CameraDirectory
	tokens    ports.TokenService
	audit     ports.AuditSink
	stats     ports.StatsRecorder
	logger    *zap.SugaredLogger
	buffers   *optimize.BytePool
}

func NewDeliveryHandler(
	sessions ports.SessionManager,
	directory ports.CameraDirectory,
	tokens ports.TokenService,
	audit ports.AuditSink,
	stats ports.StatsRecorder,
	logger *zap.SugaredLogger,
) *DeliveryHandler {
	return &DeliveryHandler{
		sessions:  sessions,
		directory: directory,
		tokens:    tokens,
		audit:     audit,
		stats:     stats,
		logger:    logger,
		buffers:   optimize.NewBytePool(64 * 1024),
	}
}

func (h *DeliveryHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/stream/:id/playlist", h.Playlist)
	r.GET("/stream/:id/segment/:name", h.Segment)
	r.GET("/stream/:id/snapshot", h.Snapshot)
}

// bearerOrQueryToken extracts the stream token. HLS players cannot set
// headers, so the query parameter is the primary carrier.
func bearerOrQueryToken(c *gin.Context) string {
	if tok := c.Query("token"); tok != "" {
		return tok
	}
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// authorize validates the stream token against the session. Any failure is
// reported as the same generic denial.
func (h *DeliveryHandler) authorize(c *gin.Context, session *domain.StreamSession) (*domain.StreamToken, bool) {
	token, err := h.tokens.Validate(bearerOrQueryToken(c))
	if err != nil {
		h.stats.TokenRejected()
		respondDomainError(c, domain.ErrTokenInvalid)
		return nil, false
	}
	if !token.Allows(domain.PermissionStreamView) ||
		token.CameraID != session.CameraID ||
		token.StoreID != session.StoreID {
		h.stats.TokenRejected()
		respondDomainError(c, domain.ErrTokenInvalid)
		return nil, false
	}
	return token, true
}

// cameraServable re-checks the directory record on every fetch so a camera
// deactivated or marked offline upstream stops serving within the directory
// cache TTL instead of lingering until the reaper fires. The denial is the
// same generic "not found" as a missing artifact.
func (h *DeliveryHandler) cameraServable(c *gin.Context, session *domain.StreamSession) bool {
	camera, err := h.directory.GetCamera(c.Request.Context(), session.CameraID)
	if err != nil {
		respondDomainError(c, err)
		return false
	}
	if !camera.Available() {
		respondDomainError(c, domain.ErrCameraUnavailable)
		return false
	}
	return true
}

func (h *DeliveryHandler) lookupSession(c *gin.Context) (*domain.StreamSession, bool) {
	sessionID := domain.SessionID(c.Param("id"))
	session, err := h.sessions.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		respondDomainError(c, err)
		return nil, false
	}
	return session, true
}

func (h *DeliveryHandler) recordFetch(c *gin.Context, session *domain.StreamSession, token *domain.StreamToken, artifact string) {
	session.Touch()
	if err := h.audit.Record(c.Request.Context(), domain.AuditEvent{
		Type:      domain.AuditArtifactFetched,
		SessionID: session.ID,
		CameraID:  session.CameraID,
		StoreID:   session.StoreID,
		UserID:    token.UserID,
		Artifact:  artifact,
		Timestamp: time.Now(),
	}); err != nil {
		h.logger.Warnw("audit record failed", "session_id", session.ID, "error", err)
	}
}

func (h *DeliveryHandler) Playlist(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}
	token, ok := h.authorize(c, session)
	if !ok {
		return
	}
	if !h.cameraServable(c, session) {
		h.stats.ArtifactServed("playlist", "camera_offline")
		return
	}

	path := filepath.Join(session.OutputDir, pipeline.PlaylistFileName)
	if _, err := os.Stat(path); err != nil {
		h.stats.ArtifactServed("playlist", "missing")
		respondDomainError(c, domain.ErrArtifactNotFound)
		return
	}

	h.recordFetch(c, session, token, pipeline.PlaylistFileName)
	h.stats.ArtifactServed("playlist", "ok")

	c.Header("Content-Type", "application/vnd.apple.mpegurl")
	c.Header("Cache-Control", "no-cache")
	c.File(path)
}

func (h *DeliveryHandler) Segment(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}
	token, ok := h.authorize(c, session)
	if !ok {
		return
	}
	if !h.cameraServable(c, session) {
		h.stats.ArtifactServed("segment", "camera_offline")
		return
	}

	name := c.Param("name")
	if err := validation.ValidateSegmentName(name); err != nil {
		h.stats.ArtifactServed("segment", "rejected")
		respondDomainError(c, domain.ErrInvalidSegmentName)
		return
	}

	path := filepath.Join(session.OutputDir, name)
	if _, err := os.Stat(path); err != nil {
		h.stats.ArtifactServed("segment", "missing")
		respondDomainError(c, domain.ErrArtifactNotFound)
		return
	}

	h.recordFetch(c, session, token, name)
	h.stats.ArtifactServed("segment", "ok")

	c.Header("Content-Type", "video/mp2t")
	c.Header("Cache-Control", "max-age=60")
	c.File(path)
}

// Snapshot follow-reads the MJPEG output file and streams new bytes to the
// client until the client disconnects or the session stops producing.
func (h *DeliveryHandler) Snapshot(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}
	token, ok := h.authorize(c, session)
	if !ok {
		return
	}
	if !h.cameraServable(c, session) {
		h.stats.ArtifactServed("snapshot", "camera_offline")
		return
	}

	path := filepath.Join(session.OutputDir, pipeline.SnapshotFileName)
	f, err := os.Open(path)
	if err != nil {
		h.stats.ArtifactServed("snapshot", "missing")
		respondDomainError(c, domain.ErrArtifactNotFound)
		return
	}
	defer f.Close()

	h.recordFetch(c, session, token, pipeline.SnapshotFileName)
	h.stats.ArtifactServed("snapshot", "ok")

	c.Header("Content-Type", "video/x-motion-jpeg")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	h.followFile(c, session, f)
}

func (h *DeliveryHandler) followFile(c *gin.Context, session *domain.StreamSession, f *os.File) {
	buf := h.buffers.Get()
	defer h.buffers.Put(buf)
	flusher, _ := c.Writer.(http.Flusher)
	ctx := c.Request.Context()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := f.Read(buf)
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
			session.Touch()
			continue
		}
		if err != nil && err != io.EOF {
			return
		}

		// At EOF: the transcoder may append more, unless the session is done.
		switch session.Status() {
		case domain.StatusStopping, domain.StatusStopped, domain.StatusFailed:
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}
