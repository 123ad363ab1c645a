// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It exposes task submission, status reads and
// server-sent event streams over the task service, and maps service errors
// to HTTP status codes without leaking internal details.
package api
