package services

import (
	"context"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"

	"go.uber.org/zap"
)

// IdleReaper sweeps the registry and stops sessions that have seen no
// activity beyond the idle timeout. The timeout is an absolute ceiling: it
// fires even when viewers are still notionally attached. A reaped viewer's
// next access fails with session-not-found and must trigger a fresh start.
type IdleReaper struct {
	registry ports.SessionRegistry
	manager  ports.SessionManager
	interval time.Duration
	timeout  time.Duration
	logger   *zap.SugaredLogger

	stop chan struct{}
	done chan struct{}
}

func NewIdleReaper(registry ports.SessionRegistry, manager ports.SessionManager, interval, timeout time.Duration, logger *zap.SugaredLogger) *IdleReaper {
	return &IdleReaper{
		registry: registry,
		manager:  manager,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (r *IdleReaper) Start(ctx context.Context) {
	go r.run(ctx)
}

func (r *IdleReaper) Stop() {
	close(r.stop)
	<-r.done
}

func (r *IdleReaper) run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs a single reaping pass. Exposed for tests.
func (r *IdleReaper) Sweep(ctx context.Context) {
	now := time.Now()
	for _, session := range r.registry.List() {
		switch {
		case session.Status() == domain.StatusFailed:
			r.reap(ctx, session, "transcoder failed")
		case session.IdleFor(now) > r.timeout:
			r.reap(ctx, session, "idle timeout")
		}
	}
}

func (r *IdleReaper) reap(ctx context.Context, session *domain.StreamSession, reason string) {
	r.logger.Infow("reaping session",
		"session_id", session.ID,
		"camera_id", session.CameraID,
		"reason", reason,
		"viewers", session.ViewerCount(),
	)
	if err := r.manager.ForceStop(ctx, session.ID, reason); err != nil && err != domain.ErrSessionNotFound {
		r.logger.Warnw("reap failed", "session_id", session.ID, "error", err)
	}
}
