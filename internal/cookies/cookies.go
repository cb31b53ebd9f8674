// Package cookies persists the session cookie jar between runs.
package cookies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spigell/zhipin-responder/internal/browser"
)

// Store loads and saves a cookie jar. Load returns an empty jar, not an
// error, when nothing was saved yet.
type Store interface {
	Load(ctx context.Context) ([]browser.Cookie, error)
	Save(ctx context.Context, cookies []browser.Cookie) error
}

// FileStore keeps the jar as a JSON list in a file.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load(_ context.Context) ([]browser.Cookie, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cookies file %s: %w", s.Path, err)
	}
	return decode(data)
}

func (s *FileStore) Save(_ context.Context, cookies []browser.Cookie) error {
	data, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}

	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create cookies dir: %w", err)
		}
	}

	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		return fmt.Errorf("write cookies file %s: %w", s.Path, err)
	}
	return nil
}

const DefaultRedisKey = "zhipin-responder:cookies"

type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisStore keeps the jar under one key, so several hosts can share a
// signed-in session.
type RedisStore struct {
	client kv
	key    string
	ttl    time.Duration
}

// NewRedisStore stores the jar under key (DefaultRedisKey when empty).
// A zero ttl keeps it forever.
func NewRedisStore(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	return newRedisStore(client, key, ttl)
}

func newRedisStore(client kv, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context) ([]browser.Cookie, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return decode(data)
}

func (s *RedisStore) Save(ctx context.Context, cookies []browser.Cookie) error {
	data, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

func decode(data []byte) ([]browser.Cookie, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var cookies []browser.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("decode cookies: %w", err)
	}
	return cookies, nil
}
