package ports

import (
	"context"
	"time"

	"streamgate/internal/core/domain"
)

// StartResult is what a successful stream start hands back to the caller.
// It never contains the resolved source URL or any credential material.
type StartResult struct {
	SessionID domain.SessionID
	Protocol  domain.Protocol
	Token     string
	ExpiresAt time.Time
	Health    *domain.HealthSnapshot
	Fallback  bool
}

type SessionManager interface {
	StartStream(ctx context.Context, camera *domain.Camera, protocol domain.Protocol, tier domain.QualityTier, user domain.UserID) (*StartResult, error)
	StopStream(ctx context.Context, id domain.SessionID, user domain.UserID) error
	// ForceStop tears a session down regardless of attached viewers. Used by
	// the idle reaper and process shutdown with a system-attributed caller.
	ForceStop(ctx context.Context, id domain.SessionID, reason string) error
	AddViewer(ctx context.Context, id domain.SessionID, user domain.UserID) error
	GetMetrics(ctx context.Context, id domain.SessionID) (*domain.HealthSnapshot, error)
	GetSession(ctx context.Context, id domain.SessionID) (*domain.StreamSession, error)
	ListSessions(ctx context.Context) []*domain.StreamSession
	ListSessionsForCamera(ctx context.Context, cameraID domain.CameraID) []*domain.StreamSession
	// Shutdown stops every active session before the process releases its
	// listening resources.
	Shutdown(ctx context.Context) error
}

type TokenService interface {
	Issue(cameraID domain.CameraID, userID domain.UserID, storeID domain.StoreID, permissions []string, ttl time.Duration) (token string, expiresAt time.Time, err error)
	// Validate fails closed: any parse error, expired timestamp or signature
	// mismatch yields domain.ErrTokenInvalid.
	Validate(token string) (*domain.StreamToken, error)
}

type CredentialResolver interface {
	// Resolve decrypts the camera's auth blob and returns a fully-qualified
	// source URL with embedded credentials. The URL goes straight into the
	// pipeline invocation and must never be logged or returned to callers.
	Resolve(ctx context.Context, camera *domain.Camera) (string, error)
}

type PipelineBuilder interface {
	Build(protocol domain.Protocol, tier domain.QualityTier, sourceURL, outputDir string) (*domain.PipelineSpec, error)
}

type TranscoderRunner interface {
	Start(ctx context.Context, spec *domain.PipelineSpec) (domain.TranscoderProcess, error)
}

// HealthSampler turns transcoder diagnostics into a health snapshot.
// Best-effort: a sampler never fails, it returns whatever it could parse.
type HealthSampler interface {
	Sample(proc domain.TranscoderProcess, startedAt time.Time) *domain.HealthSnapshot
}

// EventHub fans health-update notifications out to interested observers.
// Delivery is at-least-once per healthy subscriber and ordered per session;
// there is no ordering guarantee across sessions.
type EventHub interface {
	Publish(id domain.SessionID, snapshot *domain.HealthSnapshot)
	Subscribe(id domain.SessionID) (<-chan *domain.HealthSnapshot, func())
	CloseTopic(id domain.SessionID)
}

// StatsRecorder receives gateway-level metrics signals. Implemented by the
// prometheus collector; a no-op implementation is used in tests.
type StatsRecorder interface {
	SessionStarted(storeID domain.StoreID, protocol domain.Protocol)
	SessionEnded(storeID domain.StoreID, protocol domain.Protocol, reason string, lifetime time.Duration)
	ViewerJoined()
	ViewerLeft()
	ProtocolFallback(requested domain.Protocol)
	ArtifactServed(artifact, status string)
	TokenRejected()
	SpawnDuration(d time.Duration)
}
