package domain

import "time"

// PermissionStreamView is the minimal permission every stream token carries.
const PermissionStreamView = "stream:view"

// StreamToken is the decoded, validated form of a signed stream-access token.
// It is a capability: self-contained, never persisted, verified statelessly.
type StreamToken struct {
	CameraID    CameraID  `json:"camera_id"`
	UserID      UserID    `json:"user_id"`
	StoreID     StoreID   `json:"store_id"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Allows reports whether the token carries the given permission.
func (t *StreamToken) Allows(perm string) bool {
	for _, p := range t.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
