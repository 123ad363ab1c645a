package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/phrazzld/mediatask/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetSet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", []byte("v1")))
	require.NoError(t, s.Set(ctx, "k", []byte("v2")))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got, "last write should win")

	// mutating the returned slice must not change the stored value
	got[0] = 'x'
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), again)
}

func TestStore_InvalidKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, "")
	assert.ErrorIs(t, err, store.ErrInvalidKey)
	assert.ErrorIs(t, s.Set(ctx, "", nil), store.ErrInvalidKey)
	assert.ErrorIs(t, s.Append(ctx, "", "x"), store.ErrInvalidKey)
	_, err = s.List(ctx, "")
	assert.ErrorIs(t, err, store.ErrInvalidKey)
}

func TestStore_AppendList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	items, err := s.List(ctx, "task_list")
	require.NoError(t, err)
	assert.Empty(t, items)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Append(ctx, "task_list", id))
	}

	items, err = s.List(ctx, "task_list")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, items)
}

func TestStore_ConcurrentAppends(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Append(ctx, "task_list", fmt.Sprintf("id-%d", i)))
		}(i)
	}
	wg.Wait()

	items, err := s.List(ctx, "task_list")
	require.NoError(t, err)
	assert.Len(t, items, 50)
}

func TestStore_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New()
	assert.ErrorIs(t, s.Set(ctx, "k", []byte("v")), context.Canceled)
	assert.ErrorIs(t, s.Ping(ctx), context.Canceled)
}
