// Package stream pushes task status to clients as server-sent events.
//
// Both streams poll the status reader on a fixed interval, encode each view,
// and emit only when the encoding differs from the last one sent. The single
// task stream ends after its terminal event; the list stream runs until the
// client goes away.
package stream
