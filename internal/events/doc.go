// Package events decouples task submission from task dispatch.
//
// The task service emits a TaskRequestEvent once a task is recorded and
// registered; handlers registered on the emitter (the broker dispatch handler
// in package task) turn the event into work. A handler error flows back to
// the submitter, which reports the broker as unavailable.
package events
