package services

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"

	"go.uber.org/zap"
)

// blobMagic prefixes every encrypted auth blob. Layout after the magic:
// keyIDLen(1) | keyID | nonce(12) | AES-256-GCM ciphertext.
const blobMagic = "SG1"

const gcmNonceSize = 12

// authConfig is the decrypted camera authentication payload.
type authConfig struct {
	Kind     string `json:"kind"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type credentialResolver struct {
	keys   ports.KeyService
	logger *zap.SugaredLogger
}

func NewCredentialResolver(keys ports.KeyService, logger *zap.SugaredLogger) ports.CredentialResolver {
	return &credentialResolver{keys: keys, logger: logger}
}

// Resolve decrypts the camera's auth blob and builds the source URL with
// embedded credentials. Error messages never include credential material or
// the resolved URL.
func (r *credentialResolver) Resolve(ctx context.Context, camera *domain.Camera) (string, error) {
	source := camera.SourceURL()
	if source == "" {
		return "", fmt.Errorf("camera %s transport %s: %w", camera.ID, camera.PrimaryTransport, domain.ErrMissingSourceConfiguration)
	}

	if camera.AuthBlob == "" {
		// Unauthenticated camera: source URL is used as configured.
		return source, nil
	}

	auth, err := r.decrypt(ctx, camera)
	if err != nil {
		return "", err
	}

	if auth.Kind != "basic" {
		// Non-basic credentials are passed through untouched; the pipeline
		// builder decides how to hand them to the transcoder.
		return source, nil
	}

	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("camera %s: unparseable source url: %w", camera.ID, domain.ErrMissingSourceConfiguration)
	}
	if u.User == nil {
		u.User = url.UserPassword(auth.Username, auth.Password)
	}
	return u.String(), nil
}

func (r *credentialResolver) decrypt(ctx context.Context, camera *domain.Camera) (*authConfig, error) {
	raw, err := base64.StdEncoding.DecodeString(camera.AuthBlob)
	if err != nil {
		return nil, fmt.Errorf("camera %s: blob not base64: %w", camera.ID, domain.ErrCredentialDecryption)
	}
	if len(raw) < len(blobMagic)+1 || string(raw[:len(blobMagic)]) != blobMagic {
		return nil, fmt.Errorf("camera %s: malformed blob header: %w", camera.ID, domain.ErrCredentialDecryption)
	}
	raw = raw[len(blobMagic):]

	keyIDLen := int(raw[0])
	raw = raw[1:]
	if len(raw) < keyIDLen+gcmNonceSize {
		return nil, fmt.Errorf("camera %s: truncated blob: %w", camera.ID, domain.ErrCredentialDecryption)
	}
	blobKeyID := string(raw[:keyIDLen])
	nonce := raw[keyIDLen : keyIDLen+gcmNonceSize]
	ciphertext := raw[keyIDLen+gcmNonceSize:]

	keyID, key, err := r.keys.DecryptionKey(ctx, camera.ID)
	if err != nil {
		return nil, fmt.Errorf("camera %s: key lookup failed: %w", camera.ID, domain.ErrCredentialDecryption)
	}
	if keyID != blobKeyID {
		return nil, fmt.Errorf("camera %s: key id mismatch: %w", camera.ID, domain.ErrCredentialDecryption)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("camera %s: bad key: %w", camera.ID, domain.ErrCredentialDecryption)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("camera %s: %w", camera.ID, domain.ErrCredentialDecryption)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(camera.ID))
	if err != nil {
		r.logger.Warnw("auth blob integrity check failed", "camera_id", camera.ID)
		return nil, fmt.Errorf("camera %s: %w", camera.ID, domain.ErrCredentialDecryption)
	}

	var auth authConfig
	if err := json.Unmarshal(plaintext, &auth); err != nil {
		return nil, fmt.Errorf("camera %s: malformed auth payload: %w", camera.ID, domain.ErrCredentialDecryption)
	}
	return &auth, nil
}

// EncryptAuthBlob produces a blob the resolver can open. The directory
// service encrypts camera credentials with the same layout; this helper
// exists for seeding and tests.
func EncryptAuthBlob(cameraID domain.CameraID, keyID string, key []byte, kind, username, password string) (string, error) {
	if len(keyID) > 255 {
		return "", fmt.Errorf("key id too long")
	}
	plaintext, err := json.Marshal(authConfig{Kind: kind, Username: username, Password: password})
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	out := make([]byte, 0, len(blobMagic)+1+len(keyID)+gcmNonceSize)
	out = append(out, blobMagic...)
	out = append(out, byte(len(keyID)))
	out = append(out, keyID...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, []byte(cameraID))
	return base64.StdEncoding.EncodeToString(out), nil
}
