// Package bootstrap assembles the result store, broker, job catalog and
// worker runner from configuration. It is shared by the API server and the
// standalone worker so both processes agree on keys and queue names.
package bootstrap
