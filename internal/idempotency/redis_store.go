// Package idempotency replays responses to mutating requests that carry an
// Idempotency-Key header.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Response is a stored reply to a mutating request.
type Response struct {
	Status    int             `json:"status"`
	Body      json.RawMessage `json:"body"`
	CreatedAt time.Time       `json:"created_at"`
}

// RedisStore keeps responses under "idem:<scope>:<key>" until the TTL expires.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to redisURL and pings it before returning.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client. A non-positive ttl
// means 24 hours.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{
		client: client,
		prefix: "idem:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(scope, key string) string {
	return s.prefix + scope + ":" + key
}

// Lookup returns the stored response for key, if any.
func (s *RedisStore) Lookup(ctx context.Context, scope, key string) (Response, bool, error) {
	raw, err := s.client.Get(ctx, s.key(scope, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Response{}, false, nil
	}
	if err != nil {
		return Response{}, false, fmt.Errorf("lookup idempotent response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, false, fmt.Errorf("unmarshal idempotent response: %w", err)
	}
	return resp, true, nil
}

// Save stores resp unless a response is already stored for key. It reports
// whether this call stored it.
func (s *RedisStore) Save(ctx context.Context, scope, key string, resp Response) (bool, error) {
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return false, fmt.Errorf("marshal idempotent response: %w", err)
	}
	stored, err := s.client.SetNX(ctx, s.key(scope, key), payload, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("save idempotent response: %w", err)
	}
	return stored, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks that Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
