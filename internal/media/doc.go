// Package media holds the collaborators the media jobs use to move bytes
// around: a Fetcher that downloads source media into a job's work
// directory, a Transcoder that turns it into the published format, and a
// Publisher that places the artifact where clients can reach it.
package media
