package directory

import (
	"context"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/pkg/cache"
)

// CachedDirectory puts a short-TTL cache in front of a camera directory.
// Artifact fetches hit the directory on every request otherwise; a few
// seconds of staleness on camera status is an accepted trade.
type CachedDirectory struct {
	inner ports.CameraDirectory
	cache *cache.Cache
}

func NewCachedDirectory(inner ports.CameraDirectory, c *cache.Cache) *CachedDirectory {
	return &CachedDirectory{inner: inner, cache: c}
}

func (d *CachedDirectory) GetCamera(ctx context.Context, id domain.CameraID) (*domain.Camera, error) {
	if v, ok := d.cache.Get(string(id)); ok {
		if camera, ok := v.(*domain.Camera); ok {
			return camera, nil
		}
	}

	camera, err := d.inner.GetCamera(ctx, id)
	if err != nil {
		return nil, err
	}
	d.cache.Set(string(id), camera)
	return camera, nil
}

var _ ports.CameraDirectory = (*CachedDirectory)(nil)
