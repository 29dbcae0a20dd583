package approval_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/viant/gatekeeper/internal/clock"
	"github.com/viant/gatekeeper/service/approval"
	"github.com/viant/gatekeeper/service/dao/store"
	qmem "github.com/viant/gatekeeper/service/messaging/memory"
)

func requestKey(r *approval.Request) string { return r.Code }

func newTestRegistry(options ...approval.Option) *approval.Registry {
	return approval.New(store.NewMemoryStore[string, approval.Request](requestKey), options...)
}

// stubClock pins the registry clock to a mutable instant and restores the
// real clock on cleanup.
func stubClock(t *testing.T, at time.Time) *time.Time {
	t.Helper()
	current := at
	previous := clock.NowFunc
	clock.NowFunc = func() time.Time { return current }
	t.Cleanup(func() { clock.NowFunc = previous })
	return &current
}

func TestCreateTicket(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry()

	ticket, err := registry.Create(ctx, "render", "deploy", map[string]interface{}{"id": 42}, "APPROVE DEPLOY")
	assert.NoError(t, err)
	assert.Len(t, ticket.Code, approval.CodeLength)
	assert.EqualValues(t, 5, ticket.ExpiresInMinutes)
	assert.Contains(t, ticket.Message, "APPROVE DEPLOY "+ticket.Code)
	assert.Contains(t, ticket.Message, "render.deploy")

	pending, err := registry.ListPending(ctx)
	assert.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.EqualValues(t, approval.StatusPending, pending[0].Status)
}

func TestValidate(t *testing.T) {
	type testCase struct {
		name           string
		phrase         string
		code           func(created string) string
		prepare        func(ctx context.Context, registry *approval.Registry, created string)
		expectValid    bool
		expectReason   string
		reasonContains string
	}

	tests := []testCase{
		{
			name:         "unknown code",
			phrase:       "APPROVE DEPLOY",
			code:         func(string) string { return "XXXXXX" },
			expectValid:  false,
			expectReason: "no pending request with this code",
		},
		{
			name:           "phrase mismatch discloses expected phrase",
			phrase:         "APPROVE ROTATION",
			code:           func(created string) string { return created },
			expectValid:    false,
			reasonContains: `expected "APPROVE DEPLOY"`,
		},
		{
			name:        "correct phrase and code",
			phrase:      "APPROVE DEPLOY",
			code:        func(created string) string { return created },
			expectValid: true,
		},
		{
			name:        "case-insensitive phrase and code",
			phrase:      "approve deploy",
			code:        func(created string) string { return strings.ToLower(created) },
			expectValid: true,
		},
		{
			name:   "already used",
			phrase: "APPROVE DEPLOY",
			code:   func(created string) string { return created },
			prepare: func(ctx context.Context, registry *approval.Registry, created string) {
				outcome, err := registry.Validate(ctx, "APPROVE DEPLOY", created)
				assert.NoError(t, err)
				assert.True(t, outcome.Valid)
			},
			expectValid:  false,
			expectReason: "approval code already used",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			registry := newTestRegistry()
			ticket, err := registry.Create(ctx, "render", "deploy", map[string]interface{}{"id": 42}, "APPROVE DEPLOY")
			assert.NoError(t, err)

			if tc.prepare != nil {
				tc.prepare(ctx, registry, ticket.Code)
			}

			outcome, err := registry.Validate(ctx, tc.phrase, tc.code(ticket.Code))
			assert.NoError(t, err)
			assert.EqualValues(t, tc.expectValid, outcome.Valid)
			if tc.expectReason != "" {
				assert.EqualValues(t, tc.expectReason, outcome.Reason)
			}
			if tc.reasonContains != "" {
				assert.Contains(t, outcome.Reason, tc.reasonContains)
			}
			if tc.expectValid {
				assert.EqualValues(t, "render", outcome.Server)
				assert.EqualValues(t, "deploy", outcome.Action)
				assert.EqualValues(t, map[string]interface{}{"id": 42}, outcome.Args)
			}
		})
	}
}

func TestValidateFailureLeavesRequestPending(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry()
	ticket, err := registry.Create(ctx, "render", "deploy", nil, "APPROVE DEPLOY")
	assert.NoError(t, err)

	// A wrong phrase is not terminal – the same code stays usable.
	outcome, err := registry.Validate(ctx, "WRONG PHRASE", ticket.Code)
	assert.NoError(t, err)
	assert.False(t, outcome.Valid)

	outcome, err = registry.Validate(ctx, "APPROVE DEPLOY", ticket.Code)
	assert.NoError(t, err)
	assert.True(t, outcome.Valid)
}

func TestValidateExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	current := stubClock(t, now)

	registry := newTestRegistry()
	ticket, err := registry.Create(ctx, "render", "deploy", nil, "APPROVE DEPLOY")
	assert.NoError(t, err)

	// Expiry wins even over a correct phrase+code pair.
	*current = now.Add(approval.DefaultTTL + time.Second)
	outcome, err := registry.Validate(ctx, "APPROVE DEPLOY", ticket.Code)
	assert.NoError(t, err)
	assert.False(t, outcome.Valid)
	assert.EqualValues(t, "approval code expired", outcome.Reason)

	// The expired request was deleted as a side effect.
	outcome, err = registry.Validate(ctx, "APPROVE DEPLOY", ticket.Code)
	assert.NoError(t, err)
	assert.EqualValues(t, "no pending request with this code", outcome.Reason)
}

func TestExpiryAppliesToApprovedRequests(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	current := stubClock(t, now)

	registry := newTestRegistry()
	ticket, err := registry.Create(ctx, "render", "deploy", nil, "APPROVE DEPLOY")
	assert.NoError(t, err)

	outcome, err := registry.Validate(ctx, "APPROVE DEPLOY", ticket.Code)
	assert.NoError(t, err)
	assert.True(t, outcome.Valid)

	// The horizon is fixed at creation, independent of status.
	*current = now.Add(approval.DefaultTTL + time.Second)
	request, err := registry.CheckApproval(ctx, "render", "deploy")
	assert.NoError(t, err)
	assert.Nil(t, request)
}

func TestCheckApprovalOneTimeConsumption(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry()
	ticket, err := registry.Create(ctx, "render", "deploy", map[string]interface{}{"id": 42}, "APPROVE DEPLOY")
	assert.NoError(t, err)

	outcome, err := registry.Validate(ctx, "APPROVE DEPLOY", ticket.Code)
	assert.NoError(t, err)
	assert.True(t, outcome.Valid)

	var wg sync.WaitGroup
	results := make([]*approval.Request, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = registry.CheckApproval(ctx, "render", "deploy")
		}(i)
	}
	wg.Wait()

	consumed := 0
	for _, result := range results {
		if result != nil {
			consumed++
			assert.EqualValues(t, map[string]interface{}{"id": 42}, result.Args)
		}
	}
	assert.EqualValues(t, 1, consumed)
}

func TestCheckApprovalRequiresValidation(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry()
	_, err := registry.Create(ctx, "render", "deploy", nil, "APPROVE DEPLOY")
	assert.NoError(t, err)

	// Pending requests are not consumable.
	request, err := registry.CheckApproval(ctx, "render", "deploy")
	assert.NoError(t, err)
	assert.Nil(t, request)
}

// TestCheckApprovalMatchesServerActionOnly pins current behaviour: the args
// the human reviewed are not part of the consumption match, so an approval
// can unlock a structurally different call to the same action. Tightening
// this is a deliberate, separate decision.
func TestCheckApprovalMatchesServerActionOnly(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry()
	ticket, err := registry.Create(ctx, "db", "execute", map[string]interface{}{"sql": "DELETE FROM a"}, "APPROVE SQL")
	assert.NoError(t, err)

	outcome, err := registry.Validate(ctx, "APPROVE SQL", ticket.Code)
	assert.NoError(t, err)
	assert.True(t, outcome.Valid)

	// The consumer never presents args; the reviewed payload travels with
	// the returned request instead.
	request, err := registry.CheckApproval(ctx, "db", "execute")
	assert.NoError(t, err)
	if assert.NotNil(t, request) {
		assert.EqualValues(t, map[string]interface{}{"sql": "DELETE FROM a"}, request.Args)
	}
}

func TestCreateSweepsExpiredRequests(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	current := stubClock(t, now)

	queue := qmem.NewQueue[approval.Event](qmem.DefaultConfig())
	registry := newTestRegistry(approval.WithQueue(queue))

	_, err := registry.Create(ctx, "render", "deploy", nil, "APPROVE DEPLOY")
	assert.NoError(t, err)
	// drain the created event
	_, err = queue.Consume(ctx)
	assert.NoError(t, err)

	// The next operation on the registry removes the stale request.
	*current = now.Add(approval.DefaultTTL + time.Minute)
	_, err = registry.Create(ctx, "render", "restart", nil, "APPROVE RESTART")
	assert.NoError(t, err)

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	event := message.T()
	assert.EqualValues(t, approval.TopicRequestExpired, event.Topic)
	assert.EqualValues(t, "deploy", event.Request.Action)
	assert.NoError(t, message.Ack())

	pending, err := registry.ListPending(ctx)
	assert.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.EqualValues(t, "restart", pending[0].Action)
}

func TestListPendingRedactsArgs(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry()
	_, err := registry.Create(ctx, "render", "deploy", map[string]interface{}{"token": "super-secret"}, "APPROVE DEPLOY")
	assert.NoError(t, err)

	pending, err := registry.ListPending(ctx)
	assert.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.EqualValues(t, map[string]interface{}{"token": "***"}, pending[0].Args)
}

func TestCustomTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	current := stubClock(t, now)

	registry := newTestRegistry(approval.WithTTL(time.Minute))
	ticket, err := registry.Create(ctx, "render", "deploy", nil, "APPROVE DEPLOY")
	assert.NoError(t, err)
	assert.EqualValues(t, 1, ticket.ExpiresInMinutes)

	*current = now.Add(61 * time.Second)
	outcome, err := registry.Validate(ctx, "APPROVE DEPLOY", ticket.Code)
	assert.NoError(t, err)
	assert.EqualValues(t, "approval code expired", outcome.Reason)
}
