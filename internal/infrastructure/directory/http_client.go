package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/pkg/circuitbreaker"
	"streamgate/pkg/retry"

	"go.uber.org/zap"
)

// HTTPDirectory talks to the external directory service. Lookups are wrapped
// in a circuit breaker and retried with backoff; a tripped breaker fails fast
// instead of piling requests onto a struggling directory.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	retry   retry.Config
	logger  *zap.SugaredLogger
}

func NewHTTPDirectory(baseURL string, timeout time.Duration, logger *zap.SugaredLogger) *HTTPDirectory {
	d := &HTTPDirectory{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		retry: retry.Config{
			Enabled:      true,
			MaxAttempts:  2,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     500 * time.Millisecond,
			Multiplier:   2.0,
			Jitter:       true,
			NonRetryableErrors: []error{
				domain.ErrCameraUnavailable,
			},
		},
		logger: logger,
	}
	d.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("directory circuit breaker state change", "from", from.String(), "to", to.String())
	})
	return d
}

func (d *HTTPDirectory) GetCamera(ctx context.Context, id domain.CameraID) (*domain.Camera, error) {
	var camera *domain.Camera
	err := d.breaker.Execute(ctx, func() error {
		return retry.Retry(ctx, d.retry, func() error {
			c, err := d.fetch(ctx, id)
			if err != nil {
				return err
			}
			camera = c
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return camera, nil
}

func (d *HTTPDirectory) fetch(ctx context.Context, id domain.CameraID) (*domain.Camera, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/cameras/%s", d.baseURL, id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("camera %s: %w", id, domain.ErrCameraUnavailable)
	default:
		return nil, fmt.Errorf("directory returned %d for camera %s", resp.StatusCode, id)
	}

	var camera domain.Camera
	if err := json.NewDecoder(resp.Body).Decode(&camera); err != nil {
		return nil, fmt.Errorf("decode camera record: %w", err)
	}
	return &camera, nil
}

var _ ports.CameraDirectory = (*HTTPDirectory)(nil)
