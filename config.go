package gatekeeper

import "fmt"

// Config is a serialisable representation of the gate configuration. It can
// be populated from JSON, YAML, environment variables, etc. The zero-value is
// useful – all fields inherit their package defaults, which yields an
// in-memory gate suitable for tests and single-run tools.
type Config struct {
	// TTLMinutes is the approval horizon; 0 means the 5 minute default.
	TTLMinutes int `json:"ttlMinutes" yaml:"ttlMinutes"`

	// ApprovalsURL selects the file-backed request store; empty keeps
	// requests in memory.
	ApprovalsURL string `json:"approvalsURL" yaml:"approvalsURL"`

	// CatalogURL points at the protection catalog document.
	CatalogURL string `json:"catalogURL" yaml:"catalogURL"`

	// KeyURL points at the root key artifact. It should live outside the
	// directory holding encrypted configuration so that reading ciphertext
	// does not imply being able to decrypt it.
	KeyURL string `json:"keyURL" yaml:"keyURL"`

	// KeyWrap selects a scy wrapping resource for the key at KeyURL, e.g.
	// "blowfish://default". Empty keeps the key hex-plain on disk.
	KeyWrap string `json:"keyWrap" yaml:"keyWrap"`

	// AuditDSN selects the SQLite-backed audit ledger, e.g.
	// "file:/var/lib/gatekeeper/audit.db". Empty keeps the ledger in memory.
	AuditDSN string `json:"auditDSN" yaml:"auditDSN"`
}

// DefaultConfig returns a Config populated with package defaults.
func DefaultConfig() *Config {
	return &Config{}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.TTLMinutes < 0 {
		return fmt.Errorf("ttlMinutes must be >= 0")
	}
	return nil
}
