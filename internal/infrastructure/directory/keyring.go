package directory

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"sync"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"

	"gopkg.in/yaml.v2"
)

// Keyring resolves per-camera decryption keys. It stands in for the external
// encryption key service at the interface boundary; keys are loaded from a
// YAML file and can be registered at runtime in tests.
type Keyring struct {
	mu   sync.RWMutex
	keys map[domain.CameraID]keyEntry
}

type keyEntry struct {
	keyID string
	key   []byte
}

type keyringFile struct {
	Keys []struct {
		CameraID string `yaml:"camera_id"`
		KeyID    string `yaml:"key_id"`
		KeyHex   string `yaml:"key_hex"`
	} `yaml:"keys"`
}

func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[domain.CameraID]keyEntry)}
}

// LoadKeyring reads a key file. Each key must be 32 bytes (AES-256).
func LoadKeyring(path string) (*Keyring, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyring %s: %w", path, err)
	}

	var file keyringFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse keyring %s: %w", path, err)
	}

	kr := NewKeyring()
	for _, entry := range file.Keys {
		key, err := hex.DecodeString(entry.KeyHex)
		if err != nil {
			return nil, fmt.Errorf("keyring entry %s: bad key hex: %w", entry.CameraID, err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("keyring entry %s: key must be 32 bytes, got %d", entry.CameraID, len(key))
		}
		kr.Register(domain.CameraID(entry.CameraID), entry.KeyID, key)
	}
	return kr, nil
}

func (k *Keyring) Register(cameraID domain.CameraID, keyID string, key []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[cameraID] = keyEntry{keyID: keyID, key: key}
}

func (k *Keyring) DecryptionKey(ctx context.Context, id domain.CameraID) (string, []byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	entry, ok := k.keys[id]
	if !ok {
		return "", nil, fmt.Errorf("no decryption key for camera %s", id)
	}
	return entry.keyID, entry.key, nil
}

var _ ports.KeyService = (*Keyring)(nil)
