// Package service provides the task operations behind the HTTP API:
// submitting a job, reading one task's status and listing every task.
package service
