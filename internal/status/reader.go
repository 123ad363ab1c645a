package status

import (
	"context"
	"fmt"

	"github.com/phrazzld/mediatask/internal/store"
	"github.com/phrazzld/mediatask/internal/task"
)

// IDLister lists registered task ids in submission order
type IDLister interface {
	List(ctx context.Context) ([]string, error)
}

// Reader reads records through the projector. Unlike the task service it
// does not degrade: any store error other than a missing record is
// returned, which is what the event streams need to end with an error event.
type Reader struct {
	tasks    task.TaskStore
	registry IDLister
}

// NewReader creates a Reader over the given record store and registry
func NewReader(tasks task.TaskStore, registry IDLister) *Reader {
	return &Reader{tasks: tasks, registry: registry}
}

// Status returns the view of task id. An id with no record yet projects
// to PENDING.
func (r *Reader) Status(ctx context.Context, id string) (View, error) {
	rec, err := r.tasks.GetRecord(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return Project(id, nil), nil
		}
		return View{}, fmt.Errorf("failed to read task %s: %w", id, err)
	}
	return Project(id, rec), nil
}

// Statuses returns the view of every registered task in registry order
func (r *Reader) Statuses(ctx context.Context) ([]View, error) {
	ids, err := r.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(ids))
	for _, id := range ids {
		v, err := r.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}
