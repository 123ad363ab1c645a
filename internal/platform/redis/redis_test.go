package redis

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/mediatask/internal/store"
	"github.com/phrazzld/mediatask/internal/task"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer rdb.Close()

	_, err = Connect(context.Background(), "not-a-url")
	assert.Error(t, err)
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	mr, rdb := setupRedis(t)
	s := NewStore(rdb)

	t.Run("get missing key", func(t *testing.T) {
		_, err := s.Get(ctx, "task-meta-missing")
		assert.True(t, store.IsNotFoundError(err))
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "task-meta-abc123", []byte(`{"status":"PENDING"}`)))
		require.NoError(t, s.Set(ctx, "task-meta-abc123", []byte(`{"status":"STARTED"}`)))

		got, err := s.Get(ctx, "task-meta-abc123")
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"STARTED"}`, string(got), "last write wins")

		raw, err := mr.Get("task-meta-abc123")
		require.NoError(t, err)
		assert.Contains(t, raw, "STARTED")
	})

	t.Run("append and list keep order", func(t *testing.T) {
		list, err := s.List(ctx, "task_list")
		require.NoError(t, err)
		assert.Empty(t, list)
		assert.NotNil(t, list)

		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, s.Append(ctx, "task_list", id))
		}
		list, err = s.List(ctx, "task_list")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, list)
	})

	t.Run("empty keys", func(t *testing.T) {
		_, err := s.Get(ctx, "")
		assert.ErrorIs(t, err, store.ErrInvalidKey)
		assert.ErrorIs(t, s.Set(ctx, "", nil), store.ErrInvalidKey)
		assert.ErrorIs(t, s.Append(ctx, "", "x"), store.ErrInvalidKey)
		_, err = s.List(ctx, "")
		assert.ErrorIs(t, err, store.ErrInvalidKey)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})

	t.Run("server errors are unavailable", func(t *testing.T) {
		mr.SetError("LOADING Redis is loading the dataset in memory")
		defer mr.SetError("")

		_, err := s.Get(ctx, "task-meta-abc123")
		assert.True(t, store.IsUnavailableError(err))
		assert.True(t, store.IsUnavailableError(s.Append(ctx, "task_list", "d")))
		assert.True(t, store.IsUnavailableError(s.Ping(ctx)))
	})
}

func TestStoreBacksTaskStore(t *testing.T) {
	ctx := context.Background()
	_, rdb := setupRedis(t)
	tasks := task.NewResultTaskStore(NewStore(rdb), "")
	registry := task.NewRegistry(NewStore(rdb), task.DefaultRegistryKey)

	require.NoError(t, tasks.SaveRecord(ctx, task.NewPendingRecord("abc123", task.TaskTypeProcessVideo)))
	require.NoError(t, registry.Append(ctx, "abc123"))

	rec, err := tasks.GetRecord(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, rec.Status)

	ids, err := registry.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc123"}, ids)
}

func TestQueue(t *testing.T) {
	t.Run("enqueue then consume in order", func(t *testing.T) {
		mr, rdb := setupRedis(t)
		q := NewQueue(rdb, "media", setupTestLogger())
		q.popTimeout = 50 * time.Millisecond

		ctx := context.Background()
		for _, id := range []string{"t1", "t2"} {
			require.NoError(t, q.Enqueue(ctx, task.Dispatch{
				TaskID: id,
				Type:   task.TaskTypeSimulate,
				Params: json.RawMessage(`{"steps":2}`),
			}))
		}

		list, err := mr.List(ReadyKey("media"))
		require.NoError(t, err)
		assert.Len(t, list, 2)

		q.Start(ctx)
		defer q.Close()

		for _, want := range []string{"t1", "t2"} {
			select {
			case d := <-q.GetChannel():
				assert.Equal(t, want, d.TaskID)
				assert.JSONEq(t, `{"steps":2}`, string(d.Params))
			case <-time.After(2 * time.Second):
				t.Fatalf("timed out waiting for %s", want)
			}
		}
	})

	t.Run("close stops the pump and closes the channel", func(t *testing.T) {
		_, rdb := setupRedis(t)
		q := NewQueue(rdb, "media", setupTestLogger())
		q.popTimeout = 50 * time.Millisecond
		q.Start(context.Background())

		q.Close()
		q.Close()

		_, ok := <-q.GetChannel()
		assert.False(t, ok)
		assert.ErrorIs(t, q.Enqueue(context.Background(), task.Dispatch{TaskID: "t"}), task.ErrQueueClosed)
	})

	t.Run("undelivered dispatch is requeued on close", func(t *testing.T) {
		mr, rdb := setupRedis(t)
		q := NewQueue(rdb, "media", setupTestLogger())
		q.popTimeout = 50 * time.Millisecond

		require.NoError(t, q.Enqueue(context.Background(), task.Dispatch{TaskID: "t1"}))
		q.Start(context.Background())

		// Nobody reads the channel; wait for the pump to pop the dispatch
		assert.Eventually(t, func() bool {
			list, _ := mr.List(ReadyKey("media"))
			return len(list) == 0
		}, 2*time.Second, 10*time.Millisecond)

		q.Close()

		list, err := mr.List(ReadyKey("media"))
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Contains(t, list[0], `"task_id":"t1"`)
	})

	t.Run("enqueue failure is unavailable", func(t *testing.T) {
		mr, rdb := setupRedis(t)
		q := NewQueue(rdb, "media", setupTestLogger())
		mr.SetError("READONLY You can't write against a read only replica")

		err := q.Enqueue(context.Background(), task.Dispatch{TaskID: "t1"})
		assert.True(t, store.IsUnavailableError(err))
	})
}
