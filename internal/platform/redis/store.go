package redis

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/mediatask/internal/store"
)

// Store implements store.ResultStore with GET/SET for values and
// RPUSH/LRANGE for lists
type Store struct {
	rdb goredis.Cmdable
}

// NewStore creates a Store on rdb
func NewStore(rdb goredis.Cmdable) *Store {
	return &Store{rdb: rdb}
}

// Get implements store.ResultStore
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, store.ErrInvalidKey
	}
	value, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, store.NewStoreError(backend, "get", key, store.ErrNotFound)
		}
		return nil, wrapError("get", key, err)
	}
	return value, nil
}

// Set implements store.ResultStore
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return store.ErrInvalidKey
	}
	if err := s.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return wrapError("set", key, err)
	}
	return nil
}

// Append implements store.ResultStore
func (s *Store) Append(ctx context.Context, listKey string, value string) error {
	if listKey == "" {
		return store.ErrInvalidKey
	}
	if err := s.rdb.RPush(ctx, listKey, value).Err(); err != nil {
		return wrapError("append", listKey, err)
	}
	return nil
}

// List implements store.ResultStore
func (s *Store) List(ctx context.Context, listKey string) ([]string, error) {
	if listKey == "" {
		return nil, store.ErrInvalidKey
	}
	values, err := s.rdb.LRange(ctx, listKey, 0, -1).Result()
	if err != nil {
		return nil, wrapError("list", listKey, err)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

// Ping implements store.Pinger
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return wrapError("ping", "", err)
	}
	return nil
}

// wrapError keeps context errors as they are and marks everything else
// unavailable
func wrapError(operation, key string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return store.NewStoreError(backend, operation, key, err)
	}
	return store.Unavailable(backend, operation, key, err)
}

var (
	_ store.ResultStore = (*Store)(nil)
	_ store.Pinger      = (*Store)(nil)
)
