// Package frontier implements the per-worker queue of URLs waiting to be
// fetched.
//
// A Frontier filters candidates at enqueue time: a URL that is already queued,
// was queued earlier in the process, or is reported present by the DedupIndex
// is skipped. Storage of the queue itself is delegated to a Queue backend:
// MemoryQueue for a single process, RedisQueue when the queue should live in
// Redis. Both support FIFO (breadth-first) and LIFO (depth-first) order.
//
// The frontier is an ephemeral work queue. RedisQueue clears its keys when it
// is opened and again when it is closed.
package frontier
