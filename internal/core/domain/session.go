package domain

import (
	"context"
	"sync"
	"time"
)

type SessionID string

// Protocol is the viewer-facing delivery protocol of a session.
type Protocol string

const (
	ProtocolHLS    Protocol = "hls"
	ProtocolMJPEG  Protocol = "mjpeg"
	ProtocolWebRTC Protocol = "webrtc"
)

// QualityTier selects the codec and bitrate ladder of a pipeline.
type QualityTier string

const (
	TierLow    QualityTier = "low"
	TierMedium QualityTier = "medium"
	TierHigh   QualityTier = "high"
	TierUltra  QualityTier = "ultra"
)

type SessionStatus string

const (
	StatusStarting SessionStatus = "starting"
	StatusActive   SessionStatus = "active"
	StatusStopping SessionStatus = "stopping"
	StatusStopped  SessionStatus = "stopped"
	StatusFailed   SessionStatus = "failed"
)

// TranscoderProcess is the narrow view a session holds of its supervised
// external transcoder. The session owns the process for its lifetime.
type TranscoderProcess interface {
	Alive() bool
	Stop(ctx context.Context, grace time.Duration) error
	// Diagnostics returns recent transcoder stderr lines for best-effort
	// health sampling. Lines are scrubbed of source credentials.
	Diagnostics() []string
}

// HealthSnapshot is the latest sampled health of a session's pipeline.
// It is replaced wholesale on every sampling tick.
type HealthSnapshot struct {
	FrameRate      float64       `json:"frame_rate"`
	Resolution     string        `json:"resolution,omitempty"`
	BitrateKbps    float64       `json:"bitrate_kbps"`
	LatencyMS      int64         `json:"latency_ms"`
	DroppedFrames  int64         `json:"dropped_frames"`
	SignalStrength float64       `json:"signal_strength"`
	Uptime         time.Duration `json:"uptime"`
	LastError      string        `json:"last_error,omitempty"`
	SampledAt      time.Time     `json:"sampled_at"`
}

// StreamSession is one active transcoding pipeline for a camera, with its
// own viewer set and output files. Identity fields are immutable after
// creation; mutable state is guarded by the session's own mutex so that
// viewer mutations, health updates and teardown are linearizable per session.
type StreamSession struct {
	ID                SessionID
	CameraID          CameraID
	StoreID           StoreID
	Protocol          Protocol
	RequestedProtocol Protocol
	Tier              QualityTier
	OutputDir         string
	StartedAt         time.Time

	Process TranscoderProcess

	mu           sync.Mutex
	status       SessionStatus
	viewers      map[UserID]struct{}
	lastActivity time.Time
	health       *HealthSnapshot
}

func NewStreamSession(id SessionID, cam *Camera, requested, effective Protocol, tier QualityTier, outputDir string, proc TranscoderProcess, firstViewer UserID) *StreamSession {
	now := time.Now()
	return &StreamSession{
		ID:                id,
		CameraID:          cam.ID,
		StoreID:           cam.StoreID,
		Protocol:          effective,
		RequestedProtocol: requested,
		Tier:              tier,
		OutputDir:         outputDir,
		StartedAt:         now,
		Process:           proc,
		status:            StatusActive,
		viewers:           map[UserID]struct{}{firstViewer: {}},
		lastActivity:      now,
	}
}

func (s *StreamSession) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// MarkFailed transitions the session to failed. Teardown states win.
func (s *StreamSession) MarkFailed(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusStopping || s.status == StatusStopped {
		return
	}
	s.status = StatusFailed
	if s.health != nil && reason != "" {
		h := *s.health
		h.LastError = reason
		s.health = &h
	}
}

// BeginTeardown atomically claims the right to tear the session down.
// Exactly one caller wins; everyone else sees false.
func (s *StreamSession) BeginTeardown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusStopping || s.status == StatusStopped {
		return false
	}
	s.status = StatusStopping
	return true
}

func (s *StreamSession) FinishTeardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusStopped
}

// AddViewer attaches a user and refreshes activity. It fails once teardown
// has begun so a join racing a stop can never resurrect the session.
func (s *StreamSession) AddViewer(user UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive && s.status != StatusStarting {
		return false
	}
	s.viewers[user] = struct{}{}
	s.lastActivity = time.Now()
	return true
}

// RemoveViewer detaches a user and reports how many viewers remain.
func (s *StreamSession) RemoveViewer(user UserID) (remaining int, wasViewer bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, wasViewer = s.viewers[user]
	delete(s.viewers, user)
	return len(s.viewers), wasViewer
}

func (s *StreamSession) ViewerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.viewers)
}

func (s *StreamSession) Viewers() []UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UserID, 0, len(s.viewers))
	for u := range s.viewers {
		out = append(out, u)
	}
	return out
}

// Touch refreshes the last-activity timestamp, e.g. on an artifact fetch.
func (s *StreamSession) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

func (s *StreamSession) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *StreamSession) IdleFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivity)
}

func (s *StreamSession) SetHealth(h *HealthSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = h
}

func (s *StreamSession) Health() *HealthSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health
}
