package gatekeeper

import (
	"time"

	"github.com/viant/gatekeeper/policy"
	"github.com/viant/gatekeeper/secret"
	"github.com/viant/gatekeeper/service/approval"
	"github.com/viant/gatekeeper/service/audit"
	"github.com/viant/gatekeeper/service/dao"
	"github.com/viant/gatekeeper/service/messaging"
)

// Option customises the gate service.
type Option func(s *Service)

// WithRequestStore sets the approval request backend. Backend selection is
// explicit and happens here, at construction, never conditionally at call
// time.
func WithRequestStore(store dao.Service[string, approval.Request]) Option {
	return func(s *Service) { s.requestStore = store }
}

// WithLedger sets the audit ledger backend.
func WithLedger(ledger audit.Ledger) Option {
	return func(s *Service) { s.ledger = ledger }
}

// WithCatalog sets the protection catalog.
func WithCatalog(catalog *policy.Catalog) Option {
	return func(s *Service) { s.catalog = catalog }
}

// WithQueue sets the lifecycle event queue.
func WithQueue(queue messaging.Queue[approval.Event]) Option {
	return func(s *Service) { s.events = queue }
}

// WithKeyStore sets the root key store used for credential provisioning.
func WithKeyStore(keys secret.KeyStore) Option {
	return func(s *Service) { s.keys = keys }
}

// WithTTL overrides the approval horizon.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}
