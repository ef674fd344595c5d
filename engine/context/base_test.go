package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaoyuanxun/anda-sub000/cache"
	"github.com/xiaoyuanxun/anda-sub000/keys"
	"github.com/xiaoyuanxun/anda-sub000/store/memory"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

func testServices(t *testing.T) Services {
	t.Helper()
	root := make([]byte, keys.RootLen)
	for i := range root {
		root[i] = byte(i + 1)
	}
	ks, err := keys.NewLocalService(root)
	require.NoError(t, err)
	c, err := cache.New(0)
	require.NoError(t, err)
	return Services{Keys: ks, Store: memory.New(), Cache: c}
}

func TestBaseCtx_ChildIncrementsDepth(t *testing.T) {
	root := New(context.Background(), types.Principal{1}, "eng1", testServices(t))
	child, err := root.Child("th_1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, child.Depth())
	assert.Equal(t, "eng1/th_1", child.Path().String())
}

func TestBaseCtx_ChildRefusesPastMaxDepth(t *testing.T) {
	c := New(context.Background(), types.Principal{1}, "eng1", testServices(t))
	var err error
	for i := 0; i < MaxDepth; i++ {
		c, err = c.Child("s")
		require.NoError(t, err)
	}
	_, err = c.Child("s")
	require.Error(t, err)
}

func TestBaseCtx_CancelPropagatesToChild(t *testing.T) {
	root := New(context.Background(), types.Principal{1}, "eng1", testServices(t))
	child, err := root.Child("th_1")
	require.NoError(t, err)

	root.Cancel()
	select {
	case <-child.Done():
	default:
		t.Fatal("child context should be cancelled when parent is")
	}
}

func TestBaseCtx_LoggerPropagatesToChildren(t *testing.T) {
	root := New(context.Background(), types.Principal{1}, "eng1", testServices(t))
	assert.NotNil(t, root.Logger())

	child, err := root.Child("th_1")
	require.NoError(t, err)
	assert.NotNil(t, child.Logger())
}

func TestBaseCtx_A256GCMKeyScopedByPath(t *testing.T) {
	root := New(context.Background(), types.Principal{1}, "eng1", testServices(t))
	child1, _ := root.Child("th_1")
	child2, _ := root.Child("th_2")

	k1, err := child1.A256GCMKey()
	require.NoError(t, err)
	k2, err := child2.A256GCMKey()
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}
