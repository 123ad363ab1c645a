// Package jobs defines the task types the workers can run and the catalog
// that turns a submitted type and JSON params into a task.Job.
//
// The catalog is used twice: at submission, to reject bad params before a
// task exists, and on the worker, to build the job for a dispatch.
package jobs
