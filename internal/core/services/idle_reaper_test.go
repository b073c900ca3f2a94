package services

import (
	"context"
	"testing"
	"time"

	"streamgate/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIdleReaper_ReapsIdleSessionDespiteViewers(t *testing.T) {
	f := newManagerFixture(t, SessionManagerConfig{})
	ctx := context.Background()

	result, err := f.manager.StartStream(ctx, testCamera("cam-1", "store-1"), domain.ProtocolHLS, domain.TierMedium, "user-1")
	require.NoError(t, err)
	require.NoError(t, f.manager.AddViewer(ctx, result.SessionID, "user-2"))

	// Idle timeout is an absolute ceiling: attached viewers do not save a
	// session nobody has fetched artifacts from.
	reaper := NewIdleReaper(f.registry, f.manager, time.Hour, time.Nanosecond, zap.NewNop().Sugar())
	time.Sleep(5 * time.Millisecond)
	reaper.Sweep(ctx)

	_, err = f.manager.GetSession(ctx, result.SessionID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	events := f.sink.Events()
	last := events[len(events)-1]
	assert.Equal(t, domain.AuditStreamReap, last.Type)
	assert.Equal(t, "idle timeout", last.Reason)
}

func TestIdleReaper_ReapsFailedSessions(t *testing.T) {
	f := newManagerFixture(t, SessionManagerConfig{})
	ctx := context.Background()

	result, err := f.manager.StartStream(ctx, testCamera("cam-1", "store-1"), domain.ProtocolHLS, domain.TierMedium, "user-1")
	require.NoError(t, err)

	session, err := f.manager.GetSession(ctx, result.SessionID)
	require.NoError(t, err)
	session.MarkFailed("transcoder exited unexpectedly")

	reaper := NewIdleReaper(f.registry, f.manager, time.Hour, time.Hour, zap.NewNop().Sugar())
	reaper.Sweep(ctx)

	_, err = f.manager.GetSession(ctx, result.SessionID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestIdleReaper_LeavesActiveSessionsAlone(t *testing.T) {
	f := newManagerFixture(t, SessionManagerConfig{})
	ctx := context.Background()

	result, err := f.manager.StartStream(ctx, testCamera("cam-1", "store-1"), domain.ProtocolHLS, domain.TierMedium, "user-1")
	require.NoError(t, err)

	reaper := NewIdleReaper(f.registry, f.manager, time.Hour, time.Hour, zap.NewNop().Sugar())
	reaper.Sweep(ctx)

	_, err = f.manager.GetSession(ctx, result.SessionID)
	assert.NoError(t, err)
}
