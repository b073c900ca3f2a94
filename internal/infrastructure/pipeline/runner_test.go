package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"streamgate/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// The runner only cares that the binary produces the ready file, so a shell
// stands in for the transcoder.
func shellSpec(dir, script string) *domain.PipelineSpec {
	return &domain.PipelineSpec{
		Args:      []string{"-c", script},
		OutputDir: dir,
		ReadyFile: filepath.Join(dir, "index.m3u8"),
		SourceURL: "rtsp://user:pw@cam.local/stream",
	}
}

func TestRunner_StartWaitsForReadyFile(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(RunnerConfig{BinaryPath: "/bin/sh", StartTimeout: 5 * time.Second}, zap.NewNop().Sugar())

	proc, err := r.Start(context.Background(), shellSpec(dir,
		"sleep 0.2; touch "+filepath.Join(dir, "index.m3u8")+"; sleep 30"))
	require.NoError(t, err)
	assert.True(t, proc.Alive())

	require.NoError(t, proc.Stop(context.Background(), time.Second))
	assert.False(t, proc.Alive())
}

func TestRunner_StartFailsWhenProcessExitsEarly(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(RunnerConfig{BinaryPath: "/bin/sh", StartTimeout: 5 * time.Second}, zap.NewNop().Sugar())

	_, err := r.Start(context.Background(), shellSpec(dir, "exit 1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited before producing output")
}

func TestRunner_StartTimesOutWithoutOutput(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(RunnerConfig{BinaryPath: "/bin/sh", StartTimeout: 300 * time.Millisecond}, zap.NewNop().Sugar())

	_, err := r.Start(context.Background(), shellSpec(dir, "sleep 30"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not materialize")
}

func TestRunner_DiagnosticsScrubSourceURL(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(RunnerConfig{BinaryPath: "/bin/sh", StartTimeout: 5 * time.Second}, zap.NewNop().Sugar())

	script := "echo 'opening rtsp://user:pw@cam.local/stream for input' 1>&2; " +
		"touch " + filepath.Join(dir, "index.m3u8") + "; sleep 30"
	proc, err := r.Start(context.Background(), shellSpec(dir, script))
	require.NoError(t, err)
	defer proc.Stop(context.Background(), time.Second)

	// Give the scanner a moment to consume stderr.
	deadline := time.Now().Add(2 * time.Second)
	for {
		lines := proc.Diagnostics()
		if len(lines) > 0 {
			assert.Contains(t, lines[0], "<source>")
			assert.NotContains(t, lines[0], "user:pw")
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("no diagnostics captured")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestRunner_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(RunnerConfig{BinaryPath: "/bin/sh", StartTimeout: 5 * time.Second}, zap.NewNop().Sugar())

	proc, err := r.Start(context.Background(), shellSpec(dir,
		"touch "+filepath.Join(dir, "index.m3u8")+"; sleep 30"))
	require.NoError(t, err)

	require.NoError(t, proc.Stop(context.Background(), time.Second))
	require.NoError(t, proc.Stop(context.Background(), time.Second))
}
