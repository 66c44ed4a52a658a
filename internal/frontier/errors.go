package frontier

import "errors"

var (
	// ErrInvalidOrder is returned when a queue order other than fifo or lifo is requested.
	ErrInvalidOrder = errors.New("invalid queue order: must be fifo or lifo")

	// ErrClosed is returned by operations on a closed queue.
	ErrClosed = errors.New("frontier queue is closed")

	// ErrNoRedisClient is returned when a RedisQueue is built without a client.
	ErrNoRedisClient = errors.New("redis client is required")
)
