package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	// ErrBackpressure means the queue is full or closed and the job was not accepted.
	ErrBackpressure = errors.New("queue full")
)
