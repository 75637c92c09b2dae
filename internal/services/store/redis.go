package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

// Lua scripts for atomic counter operations
const (
	// reserveScript conditionally increments a window counter.
	// KEYS[1]: counter key
	// ARGV[1]: amount (float)
	// ARGV[2]: limit (float, <= 0 means unlimited)
	// ARGV[3]: ttl in milliseconds (applied only when the key has none)
	// Returns {total, allowed} with total serialized as a string so the
	// float survives the Lua number round trip.
	reserveScript = `
		local total = tonumber(redis.call('INCRBYFLOAT', KEYS[1], ARGV[1]))
		local limit = tonumber(ARGV[2])
		if limit > 0 and total > limit then
			total = tonumber(redis.call('INCRBYFLOAT', KEYS[1], '-' .. ARGV[1]))
			if redis.call('PTTL', KEYS[1]) < 0 then
				redis.call('PEXPIRE', KEYS[1], ARGV[3])
			end
			return {tostring(total), 0}
		end
		if redis.call('PTTL', KEYS[1]) < 0 then
			redis.call('PEXPIRE', KEYS[1], ARGV[3])
		end
		return {tostring(total), 1}
	`

	// incrScript adjusts a counter and preserves window expiry.
	incrScript = `
		local total = redis.call('INCRBYFLOAT', KEYS[1], ARGV[1])
		if redis.call('PTTL', KEYS[1]) < 0 then
			redis.call('PEXPIRE', KEYS[1], ARGV[2])
		end
		return tostring(total)
	`
)

// RedisStore implements Store on top of go-redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed store from a connection URL.
func NewRedis(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		fiberlog.Errorf("RedisStore: connection check failed: %v", err)
	}

	return NewRedisWithClient(client), nil
}

// NewRedisWithClient wraps an existing client, for callers that share
// one connection pool.
func NewRedisWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	var deleted int64
	iter := s.client.Scan(ctx, 0, prefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("redis del %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan %s: %w", prefix, err)
	}
	return deleted, nil
}

func (s *RedisStore) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	iter := s.client.Scan(ctx, 0, prefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return count, fmt.Errorf("redis scan %s: %w", prefix, err)
	}
	return count, nil
}

func (s *RedisStore) PushRecent(ctx context.Context, list, member string, cap int) error {
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, list, member)
	pipe.LTrim(ctx, list, 0, int64(cap-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis push recent %s: %w", list, err)
	}
	return nil
}

func (s *RedisStore) Recent(ctx context.Context, list string, n int) ([]string, error) {
	members, err := s.client.LRange(ctx, list, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", list, err)
	}
	return members, nil
}

func (s *RedisStore) Reserve(ctx context.Context, key string, amount, limit float64, ttl time.Duration) (float64, bool, error) {
	res, err := s.client.Eval(ctx, reserveScript, []string{key},
		strconv.FormatFloat(amount, 'f', -1, 64),
		strconv.FormatFloat(limit, 'f', -1, 64),
		ttl.Milliseconds(),
	).Slice()
	if err != nil {
		return 0, false, fmt.Errorf("redis reserve %s: %w", key, err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("redis reserve %s: unexpected reply %v", key, res)
	}

	totalStr, _ := res[0].(string)
	total, err := strconv.ParseFloat(totalStr, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis reserve %s: bad total %q", key, totalStr)
	}
	allowed, _ := res[1].(int64)
	return total, allowed == 1, nil
}

func (s *RedisStore) IncrByFloat(ctx context.Context, key string, delta float64, ttl time.Duration) (float64, error) {
	res, err := s.client.Eval(ctx, incrScript, []string{key},
		strconv.FormatFloat(delta, 'f', -1, 64),
		ttl.Milliseconds(),
	).Text()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	total, err := strconv.ParseFloat(res, 64)
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: bad total %q", key, res)
	}
	return total, nil
}

func (s *RedisStore) GetFloat(ctx context.Context, key string) (float64, error) {
	val, err := s.client.Get(ctx, key).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
