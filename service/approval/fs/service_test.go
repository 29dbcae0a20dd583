package fs_test

import (
	"context"
	"os"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/viant/gatekeeper/service/approval"
	"github.com/viant/gatekeeper/service/approval/fs"
	"github.com/viant/gatekeeper/service/dao"
)

func newRequest(code, status string) *approval.Request {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return &approval.Request{
		Code:      code,
		Server:    "render",
		Action:    "deploy",
		Args:      map[string]interface{}{"id": "42"},
		Phrase:    "APPROVE DEPLOY",
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(approval.DefaultTTL),
	}
}

func TestServiceCRUD(t *testing.T) {
	ctx := context.Background()
	basePath := path.Join(t.TempDir(), "approvals")
	service, err := fs.New(basePath)
	assert.NoError(t, err)

	request := newRequest("K7M2PQ", approval.StatusPending)
	assert.NoError(t, service.Save(ctx, request))

	// One JSON file per code.
	_, err = os.Stat(path.Join(basePath, "K7M2PQ.json"))
	assert.NoError(t, err)

	loaded, err := service.Load(ctx, "K7M2PQ")
	assert.NoError(t, err)
	if assert.NotNil(t, loaded) {
		assert.EqualValues(t, request.Server, loaded.Server)
		assert.EqualValues(t, request.Phrase, loaded.Phrase)
		assert.True(t, request.ExpiresAt.Equal(loaded.ExpiresAt))
	}

	// Absence is nil, not an error.
	missing, err := service.Load(ctx, "XXXXXX")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	assert.NoError(t, service.Delete(ctx, "K7M2PQ"))
	loaded, err = service.Load(ctx, "K7M2PQ")
	assert.NoError(t, err)
	assert.Nil(t, loaded)

	// Deleting an already removed request stays a no-op.
	assert.NoError(t, service.Delete(ctx, "K7M2PQ"))
}

func TestServiceList(t *testing.T) {
	ctx := context.Background()
	service, err := fs.New(path.Join(t.TempDir(), "approvals"))
	assert.NoError(t, err)

	assert.NoError(t, service.Save(ctx, newRequest("AAAAAA", approval.StatusPending)))
	assert.NoError(t, service.Save(ctx, newRequest("BBBBBB", approval.StatusApproved)))

	all, err := service.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 2)

	approved, err := service.List(ctx, dao.NewParameter("Status", approval.StatusApproved))
	assert.NoError(t, err)
	assert.Len(t, approved, 1)
	assert.EqualValues(t, "BBBBBB", approved[0].Code)
}

func TestServiceValidation(t *testing.T) {
	ctx := context.Background()
	service, err := fs.New(path.Join(t.TempDir(), "approvals"))
	assert.NoError(t, err)

	assert.ErrorIs(t, service.Save(ctx, nil), dao.ErrNilEntity)
	assert.ErrorIs(t, service.Save(ctx, &approval.Request{}), dao.ErrInvalidID)
	_, err = service.Load(ctx, "")
	assert.ErrorIs(t, err, dao.ErrInvalidID)

	_, err = fs.New("")
	assert.Error(t, err)
}

// TestRegistryOverFilesystem runs the full protocol against the file backend –
// the state machine must behave identically to the memory store.
func TestRegistryOverFilesystem(t *testing.T) {
	ctx := context.Background()
	service, err := fs.New(path.Join(t.TempDir(), "approvals"))
	assert.NoError(t, err)

	registry := approval.New(service)
	ticket, err := registry.Create(ctx, "render", "deploy", map[string]interface{}{"id": "42"}, "APPROVE DEPLOY")
	assert.NoError(t, err)

	outcome, err := registry.Validate(ctx, "approve deploy", ticket.Code)
	assert.NoError(t, err)
	assert.True(t, outcome.Valid)

	request, err := registry.CheckApproval(ctx, "render", "deploy")
	assert.NoError(t, err)
	if assert.NotNil(t, request) {
		assert.EqualValues(t, map[string]interface{}{"id": "42"}, request.Args)
	}

	request, err = registry.CheckApproval(ctx, "render", "deploy")
	assert.NoError(t, err)
	assert.Nil(t, request)
}
