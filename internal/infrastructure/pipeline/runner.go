package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"

	"go.uber.org/zap"
)

const diagnosticsRingSize = 64

// RunnerConfig locates the transcoder binary and bounds startup waiting.
type RunnerConfig struct {
	BinaryPath   string
	StartTimeout time.Duration
}

type runner struct {
	cfg    RunnerConfig
	logger *zap.SugaredLogger
}

func NewRunner(cfg RunnerConfig, logger *zap.SugaredLogger) ports.TranscoderRunner {
	return &runner{cfg: cfg, logger: logger}
}

// Start spawns the transcoder and waits (bounded) for its first output file
// to materialize. On any failure before that point the process is killed and
// an error is returned; the caller removes the output directory.
func (r *runner) Start(ctx context.Context, spec *domain.PipelineSpec) (domain.TranscoderProcess, error) {
	cmd := exec.Command(r.cfg.BinaryPath, spec.Args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	proc := &process{
		cmd:       cmd,
		sourceURL: spec.SourceURL,
		exited:    make(chan struct{}),
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("exec %s: %w", r.cfg.BinaryPath, err)
	}

	go proc.scanDiagnostics(stderr)
	go proc.wait()

	if err := r.awaitReady(ctx, spec.ReadyFile, proc); err != nil {
		_ = proc.Stop(context.Background(), 0)
		return nil, err
	}
	return proc, nil
}

func (r *runner) awaitReady(ctx context.Context, readyFile string, proc *process) error {
	deadline := time.NewTimer(r.cfg.StartTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-proc.exited:
			return fmt.Errorf("transcoder exited before producing output")
		case <-deadline.C:
			return fmt.Errorf("transcoder output did not materialize within %s", r.cfg.StartTimeout)
		case <-poll.C:
			if _, err := os.Stat(readyFile); err == nil {
				return nil
			}
		}
	}
}

// process supervises one transcoder subprocess. It keeps a bounded ring of
// recent stderr lines, scrubbed of the source URL, for health sampling.
type process struct {
	cmd       *exec.Cmd
	sourceURL string

	mu     sync.Mutex
	ring   []string
	dead   bool
	exited chan struct{}
}

func (p *process) scanDiagnostics(stderr interface{ Read([]byte) (int, error) }) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		if p.sourceURL != "" {
			line = strings.ReplaceAll(line, p.sourceURL, "<source>")
		}
		p.mu.Lock()
		p.ring = append(p.ring, line)
		if len(p.ring) > diagnosticsRingSize {
			p.ring = p.ring[len(p.ring)-diagnosticsRingSize:]
		}
		p.mu.Unlock()
	}
}

func (p *process) wait() {
	_ = p.cmd.Wait()
	p.mu.Lock()
	p.dead = true
	p.mu.Unlock()
	close(p.exited)
}

func (p *process) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.dead
}

// Stop signals the transcoder to terminate gracefully and escalates to a
// kill once the grace period elapses. Safe to call on an exited process.
func (p *process) Stop(ctx context.Context, grace time.Duration) error {
	if !p.Alive() {
		return nil
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already gone between the Alive check and the signal.
		return nil
	}

	if grace <= 0 {
		_ = p.cmd.Process.Kill()
		<-p.exited
		return nil
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-p.exited:
		return nil
	case <-ctx.Done():
		_ = p.cmd.Process.Kill()
		<-p.exited
		return ctx.Err()
	case <-timer.C:
		_ = p.cmd.Process.Kill()
		<-p.exited
		return nil
	}
}

func (p *process) Diagnostics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.ring))
	copy(out, p.ring)
	return out
}
