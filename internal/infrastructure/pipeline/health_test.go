package pipeline

import (
	"context"
	"testing"
	"time"

	"streamgate/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

type stubProcess struct {
	lines []string
}

func (s *stubProcess) Alive() bool                                     { return true }
func (s *stubProcess) Stop(ctx context.Context, g time.Duration) error { return nil }
func (s *stubProcess) Diagnostics() []string                           { return s.lines }

var _ domain.TranscoderProcess = (*stubProcess)(nil)

func TestSample_ParsesProgressLine(t *testing.T) {
	s := NewHealthSampler()
	proc := &stubProcess{lines: []string{
		"Stream #0:0: Video: h264 (High), yuv420p(progressive), 1920x1080, 25 fps",
		"frame=  480 fps= 24 q=28.0 size=    2048KiB time=00:00:20.00 bitrate= 838.9kbits/s drop=3 speed=1.0x",
	}}

	snapshot := s.Sample(proc, time.Now().Add(-30*time.Second))

	assert.InDelta(t, 24.0, snapshot.FrameRate, 0.01)
	assert.InDelta(t, 838.9, snapshot.BitrateKbps, 0.01)
	assert.Equal(t, int64(3), snapshot.DroppedFrames)
	assert.Equal(t, "1920x1080", snapshot.Resolution)
	assert.InDelta(t, 1.0, snapshot.SignalStrength, 0.001)
	assert.GreaterOrEqual(t, snapshot.Uptime, 29*time.Second)
	assert.False(t, snapshot.SampledAt.IsZero())
}

func TestSample_LastLineWins(t *testing.T) {
	s := NewHealthSampler()
	proc := &stubProcess{lines: []string{
		"frame=  100 fps= 10 bitrate= 400.0kbits/s",
		"frame=  200 fps= 25 bitrate= 900.0kbits/s",
	}}

	snapshot := s.Sample(proc, time.Now())
	assert.InDelta(t, 25.0, snapshot.FrameRate, 0.01)
	assert.InDelta(t, 900.0, snapshot.BitrateKbps, 0.01)
}

func TestSample_WeakSignalBelowTwentyFPS(t *testing.T) {
	s := NewHealthSampler()
	proc := &stubProcess{lines: []string{"frame= 10 fps= 5 bitrate= 100.0kbits/s"}}

	snapshot := s.Sample(proc, time.Now())
	assert.InDelta(t, 0.25, snapshot.SignalStrength, 0.001)
}

func TestSample_CapturesErrorLines(t *testing.T) {
	s := NewHealthSampler()
	proc := &stubProcess{lines: []string{"<source>: Connection reset, error while decoding"}}

	snapshot := s.Sample(proc, time.Now())
	assert.Contains(t, snapshot.LastError, "error while decoding")
}

func TestSample_NilProcessStillPopulatesUptime(t *testing.T) {
	s := NewHealthSampler()

	snapshot := s.Sample(nil, time.Now().Add(-time.Minute))
	assert.GreaterOrEqual(t, snapshot.Uptime, 59*time.Second)
	assert.Zero(t, snapshot.FrameRate)
}
