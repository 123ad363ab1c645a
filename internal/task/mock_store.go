package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/phrazzld/mediatask/internal/store"
)

// MockTaskStore implements the TaskStore interface for testing. Every
// method delegates to an overridable Fn field; the defaults keep state in
// memory and record each saved record in History.
type MockTaskStore struct {
	mutex      sync.RWMutex
	records    map[string]*Record
	dispatches map[string]Dispatch
	history    []*Record

	SaveRecordFn   func(ctx context.Context, rec *Record) error
	GetRecordFn    func(ctx context.Context, id string) (*Record, error)
	SaveDispatchFn func(ctx context.Context, d Dispatch) error
	GetDispatchFn  func(ctx context.Context, id string) (*Dispatch, error)
}

// NewMockTaskStore creates a new MockTaskStore with default implementations
func NewMockTaskStore() *MockTaskStore {
	s := &MockTaskStore{
		records:    make(map[string]*Record),
		dispatches: make(map[string]Dispatch),
	}

	s.SaveRecordFn = func(ctx context.Context, rec *Record) error {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		s.records[rec.ID] = rec.Clone()
		s.history = append(s.history, rec.Clone())
		return nil
	}

	s.GetRecordFn = func(ctx context.Context, id string) (*Record, error) {
		s.mutex.RLock()
		defer s.mutex.RUnlock()
		rec, ok := s.records[id]
		if !ok {
			return nil, fmt.Errorf("record %q: %w", id, store.ErrNotFound)
		}
		return rec.Clone(), nil
	}

	s.SaveDispatchFn = func(ctx context.Context, d Dispatch) error {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		s.dispatches[d.TaskID] = d
		return nil
	}

	s.GetDispatchFn = func(ctx context.Context, id string) (*Dispatch, error) {
		s.mutex.RLock()
		defer s.mutex.RUnlock()
		d, ok := s.dispatches[id]
		if !ok {
			return nil, fmt.Errorf("dispatch %q: %w", id, store.ErrNotFound)
		}
		return &d, nil
	}

	return s
}

// SaveRecord implements TaskStore
func (s *MockTaskStore) SaveRecord(ctx context.Context, rec *Record) error {
	return s.SaveRecordFn(ctx, rec)
}

// GetRecord implements TaskStore
func (s *MockTaskStore) GetRecord(ctx context.Context, id string) (*Record, error) {
	return s.GetRecordFn(ctx, id)
}

// SaveDispatch implements TaskStore
func (s *MockTaskStore) SaveDispatch(ctx context.Context, d Dispatch) error {
	return s.SaveDispatchFn(ctx, d)
}

// GetDispatch implements TaskStore
func (s *MockTaskStore) GetDispatch(ctx context.Context, id string) (*Dispatch, error) {
	return s.GetDispatchFn(ctx, id)
}

// History returns copies of every record saved through the default SaveRecordFn
func (s *MockTaskStore) History() []*Record {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make([]*Record, len(s.history))
	for i, rec := range s.history {
		out[i] = rec.Clone()
	}
	return out
}

// Put seeds the store with rec without adding it to History
func (s *MockTaskStore) Put(rec *Record) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.records[rec.ID] = rec.Clone()
}

var _ TaskStore = (*MockTaskStore)(nil)
