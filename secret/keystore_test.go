package secret_test

import (
	"context"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/viant/gatekeeper/secret"
)

func TestFileStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	URL := path.Join(t.TempDir(), "keys", "root.key")
	store := secret.NewFileStore(URL)

	// Not provisioned yet – absence is not an error.
	key, err := store.Load(ctx)
	assert.NoError(t, err)
	assert.Nil(t, key)

	generated, err := store.Generate()
	assert.NoError(t, err)
	assert.Len(t, generated, secret.KeySize)

	err = store.Persist(ctx, generated)
	assert.NoError(t, err)

	loaded, err := store.Load(ctx)
	assert.NoError(t, err)
	assert.EqualValues(t, generated, loaded)

	// The key artifact has to be owner-only.
	info, err := os.Stat(URL)
	assert.NoError(t, err)
	assert.EqualValues(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStoreRejectsShortKey(t *testing.T) {
	ctx := context.Background()
	store := secret.NewFileStore(path.Join(t.TempDir(), "root.key"))

	err := store.Persist(ctx, []byte("short"))
	assert.Error(t, err)
}

func TestFileStoreRejectsCorruptKeyFile(t *testing.T) {
	ctx := context.Background()
	URL := path.Join(t.TempDir(), "root.key")
	assert.NoError(t, os.WriteFile(URL, []byte("not-hex!"), 0600))

	store := secret.NewFileStore(URL)
	_, err := store.Load(ctx)
	assert.Error(t, err)
}

func TestGenerateKeyIsRandom(t *testing.T) {
	k1, err := secret.GenerateKey()
	assert.NoError(t, err)
	k2, err := secret.GenerateKey()
	assert.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}
