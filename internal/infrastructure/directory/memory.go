package directory

import (
	"context"
	"fmt"
	"sync"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
)

// MemoryDirectory is an in-process camera directory for development and
// tests. Production deployments use the HTTP client against the directory
// service.
type MemoryDirectory struct {
	mu      sync.RWMutex
	cameras map[domain.CameraID]*domain.Camera
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{cameras: make(map[domain.CameraID]*domain.Camera)}
}

func (d *MemoryDirectory) Put(camera *domain.Camera) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cameras[camera.ID] = camera
}

func (d *MemoryDirectory) GetCamera(ctx context.Context, id domain.CameraID) (*domain.Camera, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	camera, ok := d.cameras[id]
	if !ok {
		return nil, fmt.Errorf("camera %s: %w", id, domain.ErrCameraUnavailable)
	}
	return camera, nil
}

var _ ports.CameraDirectory = (*MemoryDirectory)(nil)
