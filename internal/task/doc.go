// Package task owns the lifecycle of a background media task: the durable
// Record and its state machine, the Executor that drives a Job through
// STARTED, PROGRESS and a terminal state, the append-only Registry of task
// ids, and the queue/worker machinery that hands dispatched tasks to the
// executor.
package task
