package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SystemUser attributes reaper- and shutdown-initiated stops in audit events.
const SystemUser = domain.UserID("system")

// SessionManagerConfig carries the tunables the manager needs. Defaults match
// the documented gateway configuration.
type SessionManagerConfig struct {
	OutputBaseDir       string
	TokenTTL            time.Duration
	StopGracePeriod     time.Duration
	MaxSessionsPerStore int
}

type sessionManager struct {
	registry ports.SessionRegistry
	resolver ports.CredentialResolver
	builder  ports.PipelineBuilder
	runner   ports.TranscoderRunner
	sampler  ports.HealthSampler
	tokens   ports.TokenService
	audit    ports.AuditSink
	hub      ports.EventHub
	stats    ports.StatsRecorder
	cfg      SessionManagerConfig
	logger   *zap.SugaredLogger

	// mu guards the per-store session counters so the concurrency ceiling
	// cannot be raced past by parallel starts.
	mu          sync.Mutex
	storeCounts map[domain.StoreID]int
}

func NewSessionManager(
	registry ports.SessionRegistry,
	resolver ports.CredentialResolver,
	builder ports.PipelineBuilder,
	runner ports.TranscoderRunner,
	sampler ports.HealthSampler,
	tokens ports.TokenService,
	audit ports.AuditSink,
	hub ports.EventHub,
	stats ports.StatsRecorder,
	cfg SessionManagerConfig,
	logger *zap.SugaredLogger,
) ports.SessionManager {
	return &sessionManager{
		registry:    registry,
		resolver:    resolver,
		builder:     builder,
		runner:      runner,
		sampler:     sampler,
		tokens:      tokens,
		audit:       audit,
		hub:         hub,
		stats:       stats,
		cfg:         cfg,
		logger:      logger,
		storeCounts: make(map[domain.StoreID]int),
	}
}

func (m *sessionManager) StartStream(ctx context.Context, camera *domain.Camera, protocol domain.Protocol, tier domain.QualityTier, user domain.UserID) (*ports.StartResult, error) {
	if !camera.Available() {
		return nil, fmt.Errorf("camera %s: %w", camera.ID, domain.ErrCameraUnavailable)
	}

	if err := m.reserveStoreSlot(camera.StoreID); err != nil {
		return nil, err
	}
	started := false
	defer func() {
		if !started {
			m.releaseStoreSlot(camera.StoreID)
		}
	}()

	sourceURL, err := m.resolver.Resolve(ctx, camera)
	if err != nil {
		return nil, err
	}

	sessionID := domain.SessionID(uuid.NewString())
	outputDir := filepath.Join(m.cfg.OutputBaseDir, string(sessionID))

	spec, err := m.builder.Build(protocol, tier, sourceURL, outputDir)
	if err != nil {
		return nil, err
	}
	effective := protocol
	if spec.Fallback {
		effective = domain.ProtocolHLS
		m.stats.ProtocolFallback(protocol)
		m.logger.Warnw("protocol not fully supported, substituting segmented playlist pipeline",
			"camera_id", camera.ID,
			"requested", protocol,
			"effective", effective,
		)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	spawnStart := time.Now()
	proc, err := m.runner.Start(ctx, spec)
	if err != nil {
		// No partial output directory or process handle may remain behind.
		_ = os.RemoveAll(outputDir)
		return nil, fmt.Errorf("camera %s: %v: %w", camera.ID, err, domain.ErrProcessSpawn)
	}
	m.stats.SpawnDuration(time.Since(spawnStart))

	session := domain.NewStreamSession(sessionID, camera, protocol, effective, tier, outputDir, proc, user)
	if err := m.registry.Put(session); err != nil {
		_ = proc.Stop(ctx, m.cfg.StopGracePeriod)
		_ = os.RemoveAll(outputDir)
		return nil, err
	}
	started = true

	token, expiresAt, err := m.tokens.Issue(camera.ID, user, camera.StoreID, []string{domain.PermissionStreamView}, m.cfg.TokenTTL)
	if err != nil {
		m.teardown(ctx, session, "token issue failed", SystemUser)
		return nil, err
	}

	health := m.sampler.Sample(proc, session.StartedAt)
	session.SetHealth(health)

	m.stats.SessionStarted(camera.StoreID, effective)
	m.stats.ViewerJoined()
	m.recordAudit(ctx, domain.AuditEvent{
		Type:      domain.AuditStreamStart,
		SessionID: session.ID,
		CameraID:  camera.ID,
		StoreID:   camera.StoreID,
		UserID:    user,
		Timestamp: time.Now(),
	})
	m.logger.Infow("stream session started",
		"session_id", session.ID,
		"camera_id", camera.ID,
		"store_id", camera.StoreID,
		"protocol", effective,
		"tier", tier,
	)

	return &ports.StartResult{
		SessionID: session.ID,
		Protocol:  effective,
		Token:     token,
		ExpiresAt: expiresAt,
		Health:    health,
		Fallback:  spec.Fallback,
	}, nil
}

func (m *sessionManager) StopStream(ctx context.Context, id domain.SessionID, user domain.UserID) error {
	session, ok := m.registry.Get(id)
	if !ok {
		return domain.ErrSessionNotFound
	}

	remaining, wasViewer := session.RemoveViewer(user)
	if wasViewer {
		m.stats.ViewerLeft()
	}
	if remaining > 0 {
		return nil
	}
	return m.teardown(ctx, session, "viewer set empty", user)
}

func (m *sessionManager) ForceStop(ctx context.Context, id domain.SessionID, reason string) error {
	session, ok := m.registry.Get(id)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return m.teardown(ctx, session, reason, SystemUser)
}

// teardown terminates the transcoder, deletes output files and unregisters
// the session. Exactly one caller wins the teardown; the rest return nil so
// stop is idempotent while the session is still visible.
func (m *sessionManager) teardown(ctx context.Context, session *domain.StreamSession, reason string, by domain.UserID) error {
	if !session.BeginTeardown() {
		return nil
	}

	lifetime := time.Since(session.StartedAt)

	m.registry.Remove(session.ID)
	m.releaseStoreSlot(session.StoreID)

	if session.Process != nil {
		if err := session.Process.Stop(ctx, m.cfg.StopGracePeriod); err != nil {
			m.logger.Warnw("transcoder did not stop cleanly", "session_id", session.ID, "error", err)
		}
	}

	// Cleanup is idempotent: the directory may already be partially or
	// fully absent.
	if err := os.RemoveAll(session.OutputDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Warnw("output cleanup failed", "session_id", session.ID, "error", err)
	}

	session.FinishTeardown()
	m.hub.CloseTopic(session.ID)

	eventType := domain.AuditStreamStop
	if by == SystemUser {
		eventType = domain.AuditStreamReap
	}
	m.stats.SessionEnded(session.StoreID, session.Protocol, reason, lifetime)
	m.recordAudit(ctx, domain.AuditEvent{
		Type:      eventType,
		SessionID: session.ID,
		CameraID:  session.CameraID,
		StoreID:   session.StoreID,
		UserID:    by,
		Reason:    reason,
		Timestamp: time.Now(),
	})
	m.logger.Infow("stream session stopped",
		"session_id", session.ID,
		"camera_id", session.CameraID,
		"reason", reason,
		"lifetime", lifetime,
	)
	return nil
}

func (m *sessionManager) AddViewer(ctx context.Context, id domain.SessionID, user domain.UserID) error {
	session, ok := m.registry.Get(id)
	if !ok {
		return domain.ErrSessionNotFound
	}
	// A join that lost the race against teardown must fail, never resurrect.
	if !session.AddViewer(user) {
		return domain.ErrSessionNotFound
	}
	m.stats.ViewerJoined()
	return nil
}

func (m *sessionManager) GetMetrics(ctx context.Context, id domain.SessionID) (*domain.HealthSnapshot, error) {
	session, ok := m.registry.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Health(), nil
}

func (m *sessionManager) GetSession(ctx context.Context, id domain.SessionID) (*domain.StreamSession, error) {
	session, ok := m.registry.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (m *sessionManager) ListSessions(ctx context.Context) []*domain.StreamSession {
	return m.registry.List()
}

func (m *sessionManager) ListSessionsForCamera(ctx context.Context, cameraID domain.CameraID) []*domain.StreamSession {
	return m.registry.ListByCamera(cameraID)
}

func (m *sessionManager) Shutdown(ctx context.Context) error {
	sessions := m.registry.List()
	m.logger.Infow("stopping all sessions for shutdown", "count", len(sessions))

	var wg sync.WaitGroup
	for _, session := range sessions {
		wg.Add(1)
		go func(s *domain.StreamSession) {
			defer wg.Done()
			_ = m.teardown(ctx, s, "gateway shutdown", SystemUser)
		}(session)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *sessionManager) reserveStoreSlot(storeID domain.StoreID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.MaxSessionsPerStore > 0 && m.storeCounts[storeID] >= m.cfg.MaxSessionsPerStore {
		return fmt.Errorf("store %s: %w", storeID, domain.ErrConcurrencyLimit)
	}
	m.storeCounts[storeID]++
	return nil
}

func (m *sessionManager) releaseStoreSlot(storeID domain.StoreID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeCounts[storeID] > 0 {
		m.storeCounts[storeID]--
	}
	if m.storeCounts[storeID] == 0 {
		delete(m.storeCounts, storeID)
	}
}

func (m *sessionManager) recordAudit(ctx context.Context, event domain.AuditEvent) {
	if err := m.audit.Record(ctx, event); err != nil {
		m.logger.Warnw("audit event dropped", "type", event.Type, "error", err)
	}
}
