package domain

import "time"

// Audit event types emitted by the gateway.
const (
	AuditStreamStart     = "stream.start"
	AuditStreamStop      = "stream.stop"
	AuditStreamReap      = "stream.reap"
	AuditArtifactFetched = "artifact.fetched"
)

// AuditEvent is an append-only record dispatched to the audit collaborator.
type AuditEvent struct {
	Type      string    `json:"type"`
	SessionID SessionID `json:"session_id,omitempty"`
	CameraID  CameraID  `json:"camera_id"`
	StoreID   StoreID   `json:"store_id"`
	UserID    UserID    `json:"user_id"`
	Artifact  string    `json:"artifact,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
