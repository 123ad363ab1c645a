package store

import "context"

// ResultStore is the shared state channel between submitters, executors and
// readers. Each key holds a single value with last-write-wins semantics; list
// keys hold an ordered, append-only sequence of strings. No cross-key
// transactions are offered or required.
type ResultStore interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set overwrites the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Append adds value to the end of the list stored under listKey,
	// creating the list when it does not exist.
	Append(ctx context.Context, listKey string, value string) error

	// List returns every element of the list stored under listKey in
	// insertion order. A missing list yields an empty slice.
	List(ctx context.Context, listKey string) ([]string, error)
}

// Pinger is implemented by stores that can report their own reachability.
// It backs the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}
