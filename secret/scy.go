package secret

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/scy"
	_ "github.com/viant/scy/kms/blowfish"
)

// ScyStore keeps the root key as a scy raw secret, so the key material itself
// is wrapped at rest (e.g. with "blowfish://default") instead of being stored
// hex-plain. It satisfies the same KeyStore contract as FileStore; backend
// selection happens at construction, never at call time.
type ScyStore struct {
	service *scy.Service
	fs      afs.Service
	url     string
	key     string
}

// NewScyStore creates a scy-backed key store. key selects the wrapping key
// resource, e.g. "blowfish://default".
func NewScyStore(URL, key string) *ScyStore {
	return &ScyStore{service: scy.New(), fs: afs.New(), url: URL, key: key}
}

// Generate produces a fresh random root key.
func (s *ScyStore) Generate() ([]byte, error) {
	return GenerateKey()
}

// Load reads and unwraps the persisted key, returning nil when absent.
func (s *ScyStore) Load(ctx context.Context) ([]byte, error) {
	exists, err := s.fs.Exists(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("secret: failed to check key at %s: %w", s.url, err)
	}
	if !exists {
		return nil, nil
	}
	resource := scy.NewResource(nil, s.url, s.key)
	loaded, err := s.service.Load(ctx, resource)
	if err != nil {
		return nil, fmt.Errorf("secret: failed to load key at %s: %w", s.url, err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(loaded.String()))
	if err != nil {
		return nil, fmt.Errorf("secret: malformed key material at %s: %w", s.url, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("secret: key at %s has %d bytes, expected %d", s.url, len(key), KeySize)
	}
	return key, nil
}

// Persist wraps and stores the key material.
func (s *ScyStore) Persist(ctx context.Context, key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("secret: refusing to persist %d-byte key, expected %d", len(key), KeySize)
	}
	resource := scy.NewResource(nil, s.url, s.key)
	aSecret := scy.NewSecret(hex.EncodeToString(key), resource)
	if err := s.service.Store(ctx, aSecret); err != nil {
		return fmt.Errorf("secret: failed to persist key at %s: %w", s.url, err)
	}
	return nil
}

var _ KeyStore = (*ScyStore)(nil)
