package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisTimeout = 50 * time.Millisecond

	// updateMaxRetries bounds the optimistic retry loop in Update. Contention
	// on a single (actor, action) key rarely survives more than a couple of
	// rounds; past this the call errors and the caller falls back.
	updateMaxRetries = 16
)

// incrScript increments a counter and stamps the TTL only on creation, so the
// window stays anchored at the first hit.
var incrScript = redis.NewScript(`
local v = redis.call('INCRBY', KEYS[1], ARGV[1])
if tonumber(ARGV[2]) > 0 and v == tonumber(ARGV[1]) then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return v
`)

var errUpdateContention = errors.New("ratelimit: redis update retries exhausted")

// RedisStore is a CounterStore backed by a shared Redis instance, for
// deployments where the limit must hold across multiple processes.
//
// AtomicIncrement runs as a Lua script so the increment and TTL stamping are
// one atomic step. Update uses WATCH/MULTI optimistic transactions, which
// scope contention to the single key being modified.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix sets the key prefix (default none; the engine already namespaces
// keys as "rl:{action}:{actor}").
func WithPrefix(prefix string) RedisOption {
	return func(r *RedisStore) { r.prefix = prefix }
}

// WithTimeout bounds each Redis operation (default 50ms). Checks must never
// stall the hot path; slow calls error out and the failover layer routes the
// check to the local store.
func WithTimeout(d time.Duration) RedisOption {
	return func(r *RedisStore) { r.timeout = d }
}

// NewRedisStore constructs a RedisStore around an existing client.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	r := &RedisStore{
		client:  client,
		timeout: defaultRedisTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the value for key and whether it exists.
func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set stores value under key with the given ttl.
func (r *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

// AtomicIncrement adds amount to the counter at key, applying ttl only on
// creation.
func (r *RedisStore) AtomicIncrement(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	return incrScript.Run(ctx, r.client, []string{r.prefix + key}, amount, ttl.Milliseconds()).Int64()
}

// Update atomically replaces the value at key with the result of fn using a
// WATCH transaction. fn may run more than once when another client touches
// the key mid-transaction.
func (r *RedisStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) (string, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	full := r.prefix + key
	var next string
	txf := func(tx *redis.Tx) error {
		prev, err := tx.Get(ctx, full).Result()
		found := true
		if errors.Is(err, redis.Nil) {
			prev, found = "", false
		} else if err != nil {
			return err
		}
		next, err = fn(prev, found)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, full, next, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < updateMaxRetries; i++ {
		err := r.client.Watch(ctx, txf, full)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return "", err
	}
	return "", errUpdateContention
}

// Delete removes key.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	return r.client.Del(ctx, r.prefix+key).Err()
}

// Healthy pings the backend within the store's timeout.
func (r *RedisStore) Healthy(ctx context.Context) bool {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	return r.client.Ping(ctx).Err() == nil
}

func (r *RedisStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}
