package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaoyuanxun/anda-sub000/store"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

func TestStore_PutCreateConflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	ns, p := types.Path("eng1"), types.Path("th_1.meta.cbor")

	_, err := s.Put(ctx, ns, p, store.Create(), []byte("v1"))
	require.NoError(t, err)

	_, err = s.Put(ctx, ns, p, store.Create(), []byte("v2"))
	require.Error(t, err)
}

func TestStore_UpdateWithStaleVersionConflicts(t *testing.T) {
	s := New()
	ctx := context.Background()
	ns, p := types.Path("eng1"), types.Path("obj")

	res, err := s.Put(ctx, ns, p, store.Create(), []byte("v1"))
	require.NoError(t, err)

	_, err = s.Put(ctx, ns, p, store.Update(res.Version), []byte("v2"))
	require.NoError(t, err)

	// Stale version (the original) must now conflict.
	_, err = s.Put(ctx, ns, p, store.Update(res.Version), []byte("v3"))
	require.Error(t, err)
}

func TestStore_GetAndDelete(t *testing.T) {
	s := New()
	ctx := context.Background()
	ns, p := types.Path("eng1"), types.Path("obj")

	_, err := s.Put(ctx, ns, p, store.Create(), []byte("hello"))
	require.NoError(t, err)

	data, meta, err := s.Get(ctx, ns, p)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
	assert.EqualValues(t, 5, meta.Size)

	require.NoError(t, s.Delete(ctx, ns, p))
	_, _, err = s.Get(ctx, ns, p)
	assert.Error(t, err)
}

func TestStore_RenameIfNotExists(t *testing.T) {
	s := New()
	ctx := context.Background()
	ns := types.Path("eng1")

	_, err := s.Put(ctx, ns, types.Path("a"), store.Create(), []byte("x"))
	require.NoError(t, err)

	require.NoError(t, s.RenameIfNotExists(ctx, ns, types.Path("a"), types.Path("b")))
	_, _, err = s.Get(ctx, ns, types.Path("b"))
	require.NoError(t, err)

	_, err = s.Put(ctx, ns, types.Path("a"), store.Create(), []byte("y"))
	require.NoError(t, err)
	err = s.RenameIfNotExists(ctx, ns, types.Path("a"), types.Path("b"))
	assert.Error(t, err) // destination exists
}

func TestStore_ListPrefixAndOffset(t *testing.T) {
	s := New()
	ctx := context.Background()
	ns := types.Path("eng1")

	for _, p := range []string{"th_1", "th_2", "th_3", "us_1"} {
		_, err := s.Put(ctx, ns, types.Path(p), store.Create(), []byte("x"))
		require.NoError(t, err)
	}

	metas, err := s.List(ctx, ns, types.Path("th_"), "")
	require.NoError(t, err)
	require.Len(t, metas, 3)

	metas, err = s.List(ctx, ns, types.Path("th_"), metas[0].Path)
	require.NoError(t, err)
	assert.Len(t, metas, 2)
}
