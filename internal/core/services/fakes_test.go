package services

import (
	"context"
	"sync"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
)

type fakeProcess struct {
	mu      sync.Mutex
	alive   bool
	stopped int
	lines   []string
}

func (p *fakeProcess) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *fakeProcess) Stop(ctx context.Context, grace time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = false
	p.stopped++
	return nil
}

func (p *fakeProcess) Diagnostics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lines
}

func (p *fakeProcess) kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = false
}

type fakeRunner struct {
	mu   sync.Mutex
	err  error
	last *fakeProcess
}

func (r *fakeRunner) Start(ctx context.Context, spec *domain.PipelineSpec) (domain.TranscoderProcess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	p := &fakeProcess{alive: true, lines: []string{
		"frame=  120 fps= 25 q=28.0 size=    512kB time=00:00:04.80 bitrate=1024.0kbits/s speed=1x",
	}}
	r.last = p
	return p, nil
}

type staticResolver struct {
	url string
	err error
}

func (s staticResolver) Resolve(ctx context.Context, camera *domain.Camera) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.url, nil
}

var _ ports.TranscoderRunner = (*fakeRunner)(nil)
var _ ports.CredentialResolver = staticResolver{}
var _ domain.TranscoderProcess = (*fakeProcess)(nil)
