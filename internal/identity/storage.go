package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStorage persists a browser's remote session and its pending
// OAuth verifier, keyed by the browser session key.
type SessionStorage interface {
	// LoadSession returns nil, nil when no session is stored.
	LoadSession(ctx context.Context, key string) (*Session, error)
	SaveSession(ctx context.Context, key string, session *Session) error
	DeleteSession(ctx context.Context, key string) error
	SaveVerifier(ctx context.Context, key, verifier string, ttl time.Duration) error
	// TakeVerifier returns and removes the stored verifier; "" when absent.
	TakeVerifier(ctx context.Context, key string) (string, error)
}

// RedisStorage is the production SessionStorage.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStorage keeps sessions for ttl after their last save. The refresh
// token outlives the access token, so ttl is independent of token expiry.
func NewRedisStorage(client redis.UniversalClient, ttl time.Duration) *RedisStorage {
	return &RedisStorage{
		client: client,
		prefix: "portal:",
		ttl:    ttl,
	}
}

func (s *RedisStorage) sessionKey(key string) string  { return s.prefix + "session:" + key }
func (s *RedisStorage) verifierKey(key string) string { return s.prefix + "pkce:" + key }

func (s *RedisStorage) LoadSession(ctx context.Context, key string) (*Session, error) {
	if key == "" {
		return nil, nil
	}

	data, err := s.client.Get(ctx, s.sessionKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *RedisStorage) SaveSession(ctx context.Context, key string, session *Session) error {
	if key == "" {
		return errors.New("session key cannot be empty")
	}
	if session == nil {
		return errors.New("session cannot be nil")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.client.Set(ctx, s.sessionKey(key), data, s.ttl).Err()
}

func (s *RedisStorage) DeleteSession(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.client.Del(ctx, s.sessionKey(key)).Err()
}

func (s *RedisStorage) SaveVerifier(ctx context.Context, key, verifier string, ttl time.Duration) error {
	if key == "" {
		return errors.New("session key cannot be empty")
	}
	return s.client.Set(ctx, s.verifierKey(key), verifier, ttl).Err()
}

func (s *RedisStorage) TakeVerifier(ctx context.Context, key string) (string, error) {
	verifier, err := s.client.GetDel(ctx, s.verifierKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis getdel: %w", err)
	}
	return verifier, nil
}

var _ SessionStorage = (*RedisStorage)(nil)
