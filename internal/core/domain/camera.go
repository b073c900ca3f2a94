package domain

type CameraID string
type StoreID string
type UserID string

// Transport identifies the camera-side source transport a URL is configured for.
type Transport string

const (
	TransportRTSP Transport = "rtsp"
	TransportHTTP Transport = "http"
)

// Camera is the directory-service record for a single camera. The gateway
// treats it as read-only; mutations happen upstream.
type Camera struct {
	ID               CameraID             `json:"id"`
	StoreID          StoreID              `json:"store_id"`
	Name             string               `json:"name"`
	Active           bool                 `json:"active"`
	Status           string               `json:"status"`
	PrimaryTransport Transport            `json:"primary_transport"`
	Sources          map[Transport]string `json:"sources"`
	// AuthBlob is the camera's encrypted authentication config as stored by
	// the directory service. Only the credential resolver may open it.
	AuthBlob string `json:"auth_blob,omitempty"`
}

// Available reports whether the camera may serve streams at all.
func (c *Camera) Available() bool {
	return c != nil && c.Active && c.Status != "offline"
}

// SourceURL returns the configured source for the store-declared primary
// transport, or "" when none is configured.
func (c *Camera) SourceURL() string {
	if c.Sources == nil {
		return ""
	}
	return c.Sources[c.PrimaryTransport]
}
