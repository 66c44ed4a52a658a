package frontier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// connectionTimeout bounds the ping issued by DialRedis.
const connectionTimeout = 5 * time.Second

// addScript marks a URL seen and queues it in one step. A failed push
// removes the URL from the seen set again.
var addScript = redis.NewScript(`
if redis.call('SADD', KEYS[1], ARGV[1]) == 0 then
	return 0
end
local pushed = redis.pcall('RPUSH', KEYS[2], ARGV[1])
if type(pushed) == 'table' and pushed.err then
	redis.call('SREM', KEYS[1], ARGV[1])
	return pushed
end
return 1
`)

// RedisQueue is a Queue kept in Redis: a list holds the entries and a set
// holds every URL ever added. Keys are namespaced by site so several workers
// can share one server.
type RedisQueue struct {
	client   *redis.Client
	queueKey string
	seenKey  string
	lifo     bool
}

// DialRedis connects to a Redis server and verifies the connection.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewRedisQueue creates the queue of site on client and clears any entries
// left behind by a previous process. The queue takes ownership of client and
// closes it in Close.
func NewRedisQueue(ctx context.Context, client *redis.Client, site, order string) (*RedisQueue, error) {
	if client == nil {
		return nil, ErrNoRedisClient
	}
	lifo, err := isLIFO(order)
	if err != nil {
		return nil, err
	}

	q := &RedisQueue{
		client:   client,
		queueKey: QueueKey(site),
		seenKey:  SeenKey(site),
		lifo:     lifo,
	}
	if err := q.clear(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

// QueueKey returns the Redis list key holding the entries of site.
func QueueKey(site string) string {
	return "frontier:" + site + ":queue"
}

// SeenKey returns the Redis set key holding every URL added for site.
func SeenKey(site string) string {
	return "frontier:" + site + ":seen"
}

// Seen implements Queue.
func (q *RedisQueue) Seen(ctx context.Context, url string) (bool, error) {
	seen, err := q.client.SIsMember(ctx, q.seenKey, url).Result()
	if err != nil {
		return false, fmt.Errorf("failed to query %s: %w", q.seenKey, err)
	}
	return seen, nil
}

// Add implements Queue.
func (q *RedisQueue) Add(ctx context.Context, url string) (bool, error) {
	added, err := addScript.Run(ctx, q.client, []string{q.seenKey, q.queueKey}, url).Int()
	if err != nil {
		return false, fmt.Errorf("failed to add to %s: %w", q.queueKey, err)
	}
	return added == 1, nil
}

// Pop implements Queue.
func (q *RedisQueue) Pop(ctx context.Context) (string, bool, error) {
	var cmd *redis.StringCmd
	if q.lifo {
		cmd = q.client.RPop(ctx, q.queueKey)
	} else {
		cmd = q.client.LPop(ctx, q.queueKey)
	}

	url, err := cmd.Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to pop from %s: %w", q.queueKey, err)
	}
	return url, true, nil
}

// Len implements Queue.
func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read length of %s: %w", q.queueKey, err)
	}
	return int(n), nil
}

// Close removes the queue keys and closes the client.
func (q *RedisQueue) Close(ctx context.Context) error {
	clearErr := q.clear(ctx)
	closeErr := q.client.Close()
	return errors.Join(clearErr, closeErr)
}

func (q *RedisQueue) clear(ctx context.Context) error {
	if err := q.client.Del(ctx, q.queueKey, q.seenKey).Err(); err != nil {
		return fmt.Errorf("failed to clear frontier keys: %w", err)
	}
	return nil
}
