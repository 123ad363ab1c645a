package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/phrazzld/mediatask/internal/store"
)

// Default key layout, matching the result-backend convention the dashboards read.
const (
	DefaultRecordKeyPrefix   = "task-meta-"
	DefaultDispatchKeyPrefix = "task-dispatch-"
	DefaultRegistryKey       = "task_list"
)

// ErrInvalidTaskID is returned when an empty task id is used as a key
var ErrInvalidTaskID = errors.New("invalid task id")

// ResultTaskStore implements TaskStore on top of a store.ResultStore,
// one JSON document per key.
type ResultTaskStore struct {
	results        store.ResultStore
	recordPrefix   string
	dispatchPrefix string
}

// NewResultTaskStore creates a TaskStore that keeps records under
// recordPrefix+id. An empty prefix selects DefaultRecordKeyPrefix.
func NewResultTaskStore(results store.ResultStore, recordPrefix string) *ResultTaskStore {
	if recordPrefix == "" {
		recordPrefix = DefaultRecordKeyPrefix
	}
	return &ResultTaskStore{
		results:        results,
		recordPrefix:   recordPrefix,
		dispatchPrefix: DefaultDispatchKeyPrefix,
	}
}

// WithDispatchPrefix keeps dispatch envelopes under prefix+id. An empty
// prefix leaves the current one.
func (s *ResultTaskStore) WithDispatchPrefix(prefix string) *ResultTaskStore {
	if prefix != "" {
		s.dispatchPrefix = prefix
	}
	return s
}

// RecordKey returns the result-store key holding the record for id
func (s *ResultTaskStore) RecordKey(id string) string {
	return s.recordPrefix + id
}

// SaveRecord implements TaskStore
func (s *ResultTaskStore) SaveRecord(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" {
		return ErrInvalidTaskID
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode task record: %w", err)
	}
	if err := s.results.Set(ctx, s.RecordKey(rec.ID), data); err != nil {
		return fmt.Errorf("failed to save task record: %w", err)
	}
	return nil
}

// GetRecord implements TaskStore
func (s *ResultTaskStore) GetRecord(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, ErrInvalidTaskID
	}
	data, err := s.results.Get(ctx, s.RecordKey(id))
	if err != nil {
		return nil, fmt.Errorf("failed to load task record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode task record %q: %w", id, err)
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return &rec, nil
}

// SaveDispatch implements TaskStore
func (s *ResultTaskStore) SaveDispatch(ctx context.Context, dispatch Dispatch) error {
	if dispatch.TaskID == "" {
		return ErrInvalidTaskID
	}
	data, err := json.Marshal(dispatch)
	if err != nil {
		return fmt.Errorf("failed to encode dispatch: %w", err)
	}
	if err := s.results.Set(ctx, s.dispatchPrefix+dispatch.TaskID, data); err != nil {
		return fmt.Errorf("failed to save dispatch: %w", err)
	}
	return nil
}

// GetDispatch implements TaskStore
func (s *ResultTaskStore) GetDispatch(ctx context.Context, id string) (*Dispatch, error) {
	if id == "" {
		return nil, ErrInvalidTaskID
	}
	data, err := s.results.Get(ctx, s.dispatchPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("failed to load dispatch: %w", err)
	}
	var dispatch Dispatch
	if err := json.Unmarshal(data, &dispatch); err != nil {
		return nil, fmt.Errorf("failed to decode dispatch %q: %w", id, err)
	}
	return &dispatch, nil
}

var _ TaskStore = (*ResultTaskStore)(nil)
