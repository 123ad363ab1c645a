// Package redis adapts Redis to the result store and broker interfaces.
//
// Store keeps task records as plain string keys and the task registry as a
// list, so the layout matches what other result-backend readers expect.
// Queue is a broker over a Redis list: producers RPUSH dispatches onto
// queue:<name>:ready and every worker process pumps them off with BLPOP.
package redis
