// Package store defines the result store contract shared by every part of the
// task lifecycle. The store is a plain key/value space with an append-only list
// primitive; task records, dispatch envelopes and the task registry are all
// laid out on top of it, so the backing engine (memory, Redis, Postgres) can be
// swapped without touching the executor, projector or streamer.
package store
