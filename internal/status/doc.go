// Package status turns stored task records into the client-facing view
// served by the status endpoints and event streams.
package status
