package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseLockScript deletes the lock only while it still holds the caller's token
const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

var (
	// ErrCacheMiss is returned by GetJSON when the key is absent
	ErrCacheMiss = errors.New("cache miss")
	// ErrSecretGone is returned by GetSecret once a secret expired or was consumed
	ErrSecretGone = errors.New("secret expired or consumed")
)

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
}

// NewClient creates a new Redis client and checks the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Hit counts one request against key within a fixed window and returns the
// count so far and the time left in the window.
func (c *Client) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	key = "ratelimit:" + key

	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return count, window, err
		}
	}

	ttl, err := c.rdb.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return count, ttl, nil
}

// Lock is a held distributed lock
type Lock struct {
	key   string
	token string
}

// AcquireLock takes the named lock for ttl. It returns nil when another holder has it.
func (c *Client) AcquireLock(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{key: "lock:" + name, token: uuid.NewString()}
	ok, err := c.rdb.SetNX(ctx, lock.key, lock.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return lock, nil
}

// ReleaseLock releases a lock taken by AcquireLock
func (c *Client) ReleaseLock(ctx context.Context, lock *Lock) error {
	if lock == nil {
		return nil
	}
	return c.releaseScript.Run(ctx, c.rdb, []string{lock.key}, lock.token).Err()
}

// SetJSON caches v under key for ttl
func (c *Client) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	return c.rdb.Set(ctx, "cache:"+key, data, ttl).Err()
}

// GetJSON decodes the cached value under key into v
func (c *Client) GetJSON(ctx context.Context, key string, v interface{}) error {
	data, err := c.rdb.Get(ctx, "cache:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// PutSecret stores a short-lived secret under ref
func (c *Client) PutSecret(ctx context.Context, ref, secret string, ttl time.Duration) error {
	return c.rdb.Set(ctx, "secret:"+ref, secret, ttl).Err()
}

// GetSecret reads the secret under ref without consuming it
func (c *Client) GetSecret(ctx context.Context, ref string) (string, error) {
	secret, err := c.rdb.Get(ctx, "secret:"+ref).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSecretGone
	}
	return secret, err
}

// DeleteSecret drops the secret under ref
func (c *Client) DeleteSecret(ctx context.Context, ref string) error {
	return c.rdb.Del(ctx, "secret:"+ref).Err()
}
