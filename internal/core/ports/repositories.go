package ports

import (
	"context"

	"streamgate/internal/core/domain"
)

// SessionRegistry is the in-memory keyed store of live sessions. Structural
// mutation (insert/remove) is concurrency-safe; per-session field mutation is
// the session's own concern.
type SessionRegistry interface {
	Put(session *domain.StreamSession) error
	Get(id domain.SessionID) (*domain.StreamSession, bool)
	Remove(id domain.SessionID)
	List() []*domain.StreamSession
	ListByCamera(cameraID domain.CameraID) []*domain.StreamSession
	Len() int
}

// CameraDirectory is the external directory-service collaborator.
type CameraDirectory interface {
	GetCamera(ctx context.Context, id domain.CameraID) (*domain.Camera, error)
}

// KeyService resolves the per-camera decryption key for auth blobs.
type KeyService interface {
	DecryptionKey(ctx context.Context, id domain.CameraID) (keyID string, key []byte, err error)
}

// AuditSink receives append-only audit events. Implementations must tolerate
// being called from request handlers; slow transports belong behind the
// async dispatcher.
type AuditSink interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}
