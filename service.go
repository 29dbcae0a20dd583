package gatekeeper

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/viant/gatekeeper/policy"
	"github.com/viant/gatekeeper/secret"
	"github.com/viant/gatekeeper/service/approval"
	approvalfs "github.com/viant/gatekeeper/service/approval/fs"
	"github.com/viant/gatekeeper/service/audit"
	bunledger "github.com/viant/gatekeeper/service/audit/bun"
	amemory "github.com/viant/gatekeeper/service/audit/memory"
	"github.com/viant/gatekeeper/service/dao"
	"github.com/viant/gatekeeper/service/dao/store"
	"github.com/viant/gatekeeper/service/messaging"
	mmemory "github.com/viant/gatekeeper/service/messaging/memory"
	"github.com/viant/gatekeeper/tracing"
)

// Service is the gate protocol facade: the approval registry drives the state
// machine, the audit ledger mirrors it durably, the catalog describes what is
// gated, and the queue fans lifecycle events out.
type Service struct {
	registry     *approval.Registry
	requestStore dao.Service[string, approval.Request]
	ledger       audit.Ledger
	catalog      *policy.Catalog
	events       messaging.Queue[approval.Event]
	keys         secret.KeyStore
	ttl          time.Duration
}

func requestKey(r *approval.Request) string { return r.Code }

// New creates a gate service. Without options it runs fully in memory.
func New(options ...Option) *Service {
	s := &Service{ttl: approval.DefaultTTL}
	for _, option := range options {
		option(s)
	}
	if s.requestStore == nil {
		s.requestStore = store.NewMemoryStore[string, approval.Request](requestKey)
	}
	if s.ledger == nil {
		s.ledger = amemory.New()
	}
	if s.events == nil {
		s.events = mmemory.NewQueue[approval.Event](mmemory.DefaultConfig())
	}
	s.registry = approval.New(s.requestStore,
		approval.WithTTL(s.ttl),
		approval.WithQueue(s.events))
	return s
}

// NewFromConfig creates a gate service with backends selected by config.
// Options are applied after config so they win.
func NewFromConfig(ctx context.Context, config *Config, options ...Option) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	var configured []Option
	if config.TTLMinutes > 0 {
		configured = append(configured, WithTTL(time.Duration(config.TTLMinutes)*time.Minute))
	}
	if config.ApprovalsURL != "" {
		requestStore, err := approvalfs.New(config.ApprovalsURL)
		if err != nil {
			return nil, err
		}
		configured = append(configured, WithRequestStore(requestStore))
	}
	if config.CatalogURL != "" {
		catalog, err := policy.Load(ctx, config.CatalogURL)
		if err != nil {
			return nil, err
		}
		configured = append(configured, WithCatalog(catalog))
	}
	if config.KeyURL != "" {
		if config.KeyWrap != "" {
			configured = append(configured, WithKeyStore(secret.NewScyStore(config.KeyURL, config.KeyWrap)))
		} else {
			configured = append(configured, WithKeyStore(secret.NewFileStore(config.KeyURL)))
		}
	}
	if config.AuditDSN != "" {
		sqldb, err := sql.Open(sqliteshim.DriverName(), config.AuditDSN)
		if err != nil {
			return nil, fmt.Errorf("gatekeeper: failed to open audit database: %w", err)
		}
		ledger := bunledger.New(bun.NewDB(sqldb, sqlitedialect.New()))
		if err := ledger.EnsureSchema(ctx); err != nil {
			_ = sqldb.Close()
			return nil, fmt.Errorf("gatekeeper: failed to prepare audit schema: %w", err)
		}
		configured = append(configured, WithLedger(ledger))
	}
	return New(append(configured, options...)...), nil
}

// CreateRequest registers a pending gate request and mirrors it into the
// audit ledger, returning the code and the instruction line for a human.
// When the ledger mirror fails the registry request is already persisted:
// it stays consumable until it expires even though dashboards never saw it.
// The error carries the orphaned code so operators can find the request.
func (s *Service) CreateRequest(ctx context.Context, server, action string, args map[string]interface{}, phrase string) (ticket *approval.Ticket, err error) {
	ctx, span := tracing.StartSpan(ctx, "gate.createRequest")
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"server": server, "action": action})

	ticket, err = s.registry.Create(ctx, server, action, args, phrase)
	if err != nil {
		return nil, err
	}
	if _, err = s.ledger.RecordPending(ctx, server, action, args, ticket.Code, phrase); err != nil {
		return nil, fmt.Errorf("gatekeeper: failed to mirror request %s: %w", ticket.Code, err)
	}
	return ticket, nil
}

// Validate processes a human's "PHRASE CODE" reply. The ledger entry is
// marked answered only after the registry validation succeeds, never before;
// a ledger failure after a successful validation is returned alongside the
// valid outcome so callers do not lose the approval.
func (s *Service) Validate(ctx context.Context, phrase, code string) (outcome *approval.Outcome, err error) {
	ctx, span := tracing.StartSpan(ctx, "gate.validate")
	defer func() { tracing.EndSpan(span, err) }()

	outcome, err = s.registry.Validate(ctx, phrase, code)
	if err != nil || !outcome.Valid {
		return outcome, err
	}
	entry, ledgerErr := s.ledger.FindByCode(ctx, code)
	if ledgerErr == nil && entry != nil {
		ledgerErr = s.ledger.MarkAnswered(ctx, entry.ID)
	}
	if ledgerErr != nil {
		return outcome, fmt.Errorf("gatekeeper: approval recorded but ledger update failed: %w", ledgerErr)
	}
	return outcome, nil
}

// CheckApproval consumes an approved request for (server, action) exactly
// once; nil means no approval is available and the caller must re-request.
func (s *Service) CheckApproval(ctx context.Context, server, action string) (request *approval.Request, err error) {
	ctx, span := tracing.StartSpan(ctx, "gate.checkApproval")
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"server": server, "action": action})

	return s.registry.CheckApproval(ctx, server, action)
}

// ListPending returns all live requests with argument values redacted.
func (s *Service) ListPending(ctx context.Context) ([]*approval.Request, error) {
	return s.registry.ListPending(ctx)
}

// RequiresApproval consults the protection catalog; nil means the pair is
// ungated.
func (s *Service) RequiresApproval(server, action string) *policy.Rule {
	return s.catalog.Lookup(server, action)
}

// Catalog returns the protection catalog, nil when none is configured.
func (s *Service) Catalog() *policy.Catalog { return s.catalog }

// Ledger exposes the audit ledger for dashboard queries.
func (s *Service) Ledger() audit.Ledger { return s.ledger }

// Queue exposes the lifecycle event queue.
func (s *Service) Queue() messaging.Queue[approval.Event] { return s.events }

// EnsureKey loads the root key, provisioning and persisting a fresh one when
// absent. It fails when no key store is configured.
func (s *Service) EnsureKey(ctx context.Context) ([]byte, error) {
	if s.keys == nil {
		return nil, fmt.Errorf("gatekeeper: no key store configured")
	}
	key, err := s.keys.Load(ctx)
	if err != nil {
		return nil, err
	}
	if key != nil {
		return key, nil
	}
	if key, err = s.keys.Generate(); err != nil {
		return nil, err
	}
	if err = s.keys.Persist(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}
