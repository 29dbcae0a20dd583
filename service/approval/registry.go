package approval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viant/gatekeeper/internal/clock"
	"github.com/viant/gatekeeper/service/dao"
	"github.com/viant/gatekeeper/service/messaging"
)

// DefaultTTL is the fixed approval horizon measured from request creation.
const DefaultTTL = 5 * time.Minute

const maxCodeAttempts = 8

// Registry implements the approval state machine once against the generic
// dao.Service contract; memory and file backends differ only in how a request
// is loaded and saved.
//
// The registry serialises every operation with a single mutex, which makes
// CheckApproval's read-then-delete atomic within one process. It does NOT
// make the file backend safe for concurrent writer processes – two agent
// processes sharing one approvals file risk lost updates (last write wins).
// Multi-process deployments need an external lock or a store with atomic
// compare-and-delete.
type Registry struct {
	mu     sync.Mutex
	store  dao.Service[string, Request]
	ttl    time.Duration
	events messaging.Queue[Event]
}

// Option customises a Registry.
type Option func(*Registry)

// WithTTL overrides the approval horizon.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithQueue attaches a lifecycle event queue; without one transitions are not
// fanned out.
func WithQueue(queue messaging.Queue[Event]) Option {
	return func(r *Registry) { r.events = queue }
}

// New creates a registry over the supplied request store.
func New(store dao.Service[string, Request], options ...Option) *Registry {
	ret := &Registry{store: store, ttl: DefaultTTL}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Create registers a new pending request and returns the code plus the
// instruction line a human has to relay back. As a side effect it sweeps the
// registry for requests past their deadline (lazy expiry – there is no
// background timer).
func (r *Registry) Create(ctx context.Context, server, action string, args map[string]interface{}, phrase string) (*Ticket, error) {
	if server == "" || action == "" {
		return nil, fmt.Errorf("approval: server and action are required")
	}
	if phrase == "" {
		return nil, fmt.Errorf("approval: phrase is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.sweepExpired(ctx); err != nil {
		return nil, err
	}

	code, err := r.newUniqueCode(ctx)
	if err != nil {
		return nil, err
	}
	now := clock.Now()
	request := &Request{
		Code:      code,
		Server:    server,
		Action:    action,
		Args:      args,
		Phrase:    phrase,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}
	if err = r.store.Save(ctx, request); err != nil {
		return nil, fmt.Errorf("approval: failed to save request: %w", err)
	}
	r.publish(ctx, TopicRequestCreated, request)

	minutes := int(r.ttl / time.Minute)
	return &Ticket{
		Code: code,
		Message: fmt.Sprintf("Approval required for %s.%s. To approve, reply: %s %s (expires in %d minutes)",
			server, action, phrase, code, minutes),
		ExpiresInMinutes: minutes,
	}, nil
}

// Validate processes a human's "PHRASE CODE" reply. Failure reasons are
// checked in priority order: unknown code, already used, expired (which also
// deletes the request), phrase mismatch. The mismatch message discloses the
// expected phrase on purpose – the phrase is a fixed category label, the code
// is the secret. A failed validation leaves the request pending; a successful
// one marks it approved and keeps it for a later CheckApproval consumer.
func (r *Registry) Validate(ctx context.Context, phrase, code string) (*Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code = strings.ToUpper(strings.TrimSpace(code))
	request, err := r.store.Load(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("approval: failed to load request: %w", err)
	}
	if request == nil {
		return &Outcome{Valid: false, Reason: "no pending request with this code"}, nil
	}
	if request.Status == StatusApproved {
		return &Outcome{Valid: false, Reason: "approval code already used"}, nil
	}
	if request.Expired(clock.Now()) {
		if err = r.remove(ctx, TopicRequestExpired, request); err != nil {
			return nil, err
		}
		return &Outcome{Valid: false, Reason: "approval code expired"}, nil
	}
	if !strings.EqualFold(strings.TrimSpace(phrase), request.Phrase) {
		return &Outcome{
			Valid:  false,
			Reason: fmt.Sprintf("phrase mismatch: expected %q", request.Phrase),
		}, nil
	}

	now := clock.Now()
	request.Status = StatusApproved
	request.ApprovedAt = &now
	if err = r.store.Save(ctx, request); err != nil {
		return nil, fmt.Errorf("approval: failed to save request: %w", err)
	}
	r.publish(ctx, TopicRequestApproved, request)
	return &Outcome{
		Valid:  true,
		Server: request.Server,
		Action: request.Action,
		Args:   request.Args,
	}, nil
}

// CheckApproval consumes an approved, unexpired request matching (server,
// action): the first match is deleted and returned, so exactly one of any
// racing callers succeeds and the rest observe nil. Matching ignores the args
// the human reviewed – an approval granted for one payload unlocks any call
// to the same action. That looseness is current behaviour, asserted as such
// in tests; stricter matching would be a separate decision.
func (r *Registry) CheckApproval(ctx context.Context, server, action string) (*Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	live, err := r.listLive(ctx)
	if err != nil {
		return nil, err
	}
	for _, request := range live {
		if request.Status != StatusApproved {
			continue
		}
		if request.Server != server || request.Action != action {
			continue
		}
		if err = r.remove(ctx, TopicRequestConsumed, request); err != nil {
			return nil, err
		}
		return request, nil
	}
	return nil, nil
}

// ListPending returns all live requests ordered by creation time, with
// argument values redacted for display.
func (r *Registry) ListPending(ctx context.Context) ([]*Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	live, err := r.listLive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Request, 0, len(live))
	for _, request := range live {
		out = append(out, request.Redacted())
	}
	return out, nil
}

// listLive lists requests in creation order, deleting any past expiry on the
// way (shared lazy-expiry path). Callers must hold the mutex.
func (r *Registry) listLive(ctx context.Context) ([]*Request, error) {
	all, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("approval: failed to list requests: %w", err)
	}
	now := clock.Now()
	live := make([]*Request, 0, len(all))
	for _, request := range all {
		if request.Expired(now) {
			if err = r.remove(ctx, TopicRequestExpired, request); err != nil {
				return nil, err
			}
			continue
		}
		live = append(live, request)
	}
	sort.Slice(live, func(i, j int) bool { return live[i].CreatedAt.Before(live[j].CreatedAt) })
	return live, nil
}

func (r *Registry) sweepExpired(ctx context.Context) error {
	_, err := r.listLive(ctx)
	return err
}

func (r *Registry) newUniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := NewCode()
		if err != nil {
			return "", err
		}
		existing, err := r.store.Load(ctx, code)
		if err != nil {
			return "", fmt.Errorf("approval: failed to check code: %w", err)
		}
		if existing == nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("approval: failed to allocate a unique code after %d attempts", maxCodeAttempts)
}

func (r *Registry) remove(ctx context.Context, topic string, request *Request) error {
	if err := r.store.Delete(ctx, request.Code); err != nil {
		return fmt.Errorf("approval: failed to delete request %s: %w", request.Code, err)
	}
	r.publish(ctx, topic, request)
	return nil
}

func (r *Registry) publish(ctx context.Context, topic string, request *Request) {
	if r.events == nil {
		return
	}
	_ = r.events.Publish(ctx, &Event{Topic: topic, Request: request})
}
