package objectstore

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DiskStore {
	t.Helper()
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestDiskStoreRequiresRoot(t *testing.T) {
	_, err := NewDiskStore("")
	assert.Error(t, err)
}

func TestDiskStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	size, err := store.Put(ctx, "stage-1", "brief.md", bytes.NewReader([]byte("hello")))
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	ok, err := store.Exists(ctx, "stage-1", "brief.md")
	require.NoError(t, err)
	assert.True(t, ok)

	r, err := store.Get(ctx, "stage-1", "brief.md")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "hello", string(data))

	require.NoError(t, store.Delete(ctx, "stage-1", "brief.md"))
	ok, err = store.Exists(ctx, "stage-1", "brief.md")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiskStoreMissingObject(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "stage-1", "missing")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	err = store.Delete(ctx, "stage-1", "missing")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestDiskStoreEnsureBucketIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureBucket(ctx, "proj-1"))
	require.NoError(t, store.EnsureBucket(ctx, "proj-1"))
}

func TestDiskStoreRejectsTraversal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "..", "key", strings.NewReader("x"))
	assert.Error(t, err)
	_, err = store.Get(ctx, "bucket", "../../etc/passwd")
	assert.Error(t, err)
	assert.Error(t, store.EnsureBucket(ctx, "../evil"))
}

func TestDiskStoreBucketNames(t *testing.T) {
	assert.Equal(t, "mind-3-7", MindspaceBucketName(3, 7))
	assert.Equal(t, "proj-5", ProjectBucketName(5))
	assert.Equal(t, "stage-9", StageBucketName(9))
}

func TestObjectKeyKeepsName(t *testing.T) {
	key := ObjectKey("brief.md")
	assert.True(t, strings.HasSuffix(key, "-brief.md"))
	assert.NotEqual(t, key, ObjectKey("brief.md"))
}
