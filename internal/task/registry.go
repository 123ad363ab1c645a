package task

import (
	"context"
	"fmt"

	"github.com/phrazzld/mediatask/internal/store"
)

// Registry is the append-only list of every submitted task id, in
// submission order.
type Registry struct {
	results store.ResultStore
	key     string
}

// NewRegistry creates a Registry stored under listKey.
// An empty listKey selects DefaultRegistryKey.
func NewRegistry(results store.ResultStore, listKey string) *Registry {
	if listKey == "" {
		listKey = DefaultRegistryKey
	}
	return &Registry{results: results, key: listKey}
}

// Append records id at the end of the registry. Concurrent appends are
// serialized by the store's list primitive.
func (r *Registry) Append(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidTaskID
	}
	if err := r.results.Append(ctx, r.key, id); err != nil {
		return fmt.Errorf("failed to register task: %w", err)
	}
	return nil
}

// List returns every registered id in submission order. A repeated append
// of the same id is reported once, at its first position.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	raw, err := r.results.List(ctx, r.key)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	seen := make(map[string]struct{}, len(raw))
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
