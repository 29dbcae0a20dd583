package secret

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/viant/afs"
)

// KeyStore manages custody of the root key. Load returns (nil, nil) when no
// key has been provisioned yet so callers can distinguish "absent" from an IO
// failure. The key artifact lives apart from the configuration holding
// envelopes – whoever can read ciphertext need not be able to decrypt it.
type KeyStore interface {
	// Generate produces fresh random key material of the cipher's length.
	Generate() ([]byte, error)

	// Load reads persisted key material; nil without error means not yet
	// provisioned.
	Load(ctx context.Context) ([]byte, error)

	// Persist writes key material with restrictive access.
	Persist(ctx context.Context, key []byte) error
}

// FileStore keeps the root key hex-encoded in a single file, uploaded with
// 0600 mode.
type FileStore struct {
	fs  afs.Service
	url string
}

// NewFileStore creates a file-backed key store at the supplied URL.
func NewFileStore(URL string) *FileStore {
	return &FileStore{fs: afs.New(), url: URL}
}

// GenerateKey produces fresh random key material of the cipher's length.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("secret: failed to generate key: %w", err)
	}
	return key, nil
}

// Generate produces a fresh random root key.
func (s *FileStore) Generate() ([]byte, error) {
	return GenerateKey()
}

// Load reads the persisted key, returning nil when absent.
func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	exists, err := s.fs.Exists(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("secret: failed to check key at %s: %w", s.url, err)
	}
	if !exists {
		return nil, nil
	}
	data, err := s.fs.DownloadWithURL(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("secret: failed to read key at %s: %w", s.url, err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("secret: malformed key material at %s: %w", s.url, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("secret: key at %s has %d bytes, expected %d", s.url, len(key), KeySize)
	}
	return key, nil
}

// Persist writes the key hex-encoded with owner-only access.
func (s *FileStore) Persist(ctx context.Context, key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("secret: refusing to persist %d-byte key, expected %d", len(key), KeySize)
	}
	encoded := hex.EncodeToString(key)
	err := s.fs.Upload(ctx, s.url, os.FileMode(0600), strings.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("secret: failed to persist key at %s: %w", s.url, err)
	}
	return nil
}

var _ KeyStore = (*FileStore)(nil)
