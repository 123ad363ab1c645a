// Package postgres provides a PostgreSQL implementation of the result store
// defined in the internal/store package. Values live in task_results, one
// row per key; lists live in task_lists, ordered by an insertion sequence.
// The schema ships with the package as goose migrations.
package postgres
