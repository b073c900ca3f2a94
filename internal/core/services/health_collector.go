package services

import (
	"context"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"

	"go.uber.org/zap"
)

// HealthCollector periodically samples every registered session's transcoder
// and overwrites its health snapshot. It is a best-effort telemetry source:
// a tick that parses nothing still updates uptime and never fails a session.
type HealthCollector struct {
	registry ports.SessionRegistry
	sampler  ports.HealthSampler
	hub      ports.EventHub
	interval time.Duration
	logger   *zap.SugaredLogger

	stop chan struct{}
	done chan struct{}
}

func NewHealthCollector(registry ports.SessionRegistry, sampler ports.HealthSampler, hub ports.EventHub, interval time.Duration, logger *zap.SugaredLogger) *HealthCollector {
	return &HealthCollector{
		registry: registry,
		sampler:  sampler,
		hub:      hub,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (c *HealthCollector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *HealthCollector) Stop() {
	close(c.stop)
	<-c.done
}

func (c *HealthCollector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.sampleAll()
		}
	}
}

func (c *HealthCollector) sampleAll() {
	for _, session := range c.registry.List() {
		c.sampleOne(session)
	}
}

// SampleOnce runs a single collection pass. Exposed for tests and for the
// initial sample at session start.
func (c *HealthCollector) SampleOnce() {
	c.sampleAll()
}

func (c *HealthCollector) sampleOne(session *domain.StreamSession) {
	status := session.Status()
	if status != domain.StatusActive && status != domain.StatusStarting {
		return
	}

	if session.Process != nil && !session.Process.Alive() {
		session.MarkFailed("transcoder exited unexpectedly")
		c.logger.Warnw("session transcoder died", "session_id", session.ID, "camera_id", session.CameraID)
		return
	}

	snapshot := c.sampler.Sample(session.Process, session.StartedAt)
	session.SetHealth(snapshot)
	c.hub.Publish(session.ID, snapshot)
}
