// Package session tracks authenticated identity per client-held token.
// Records live in Redis with a fixed inactivity TTL; expiry is enforced by
// the store, not by application code.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leaderboard-api/internal/config"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned for missing or expired sessions
var ErrNotFound = errors.New("session not found or expired")

// Session is the server-side record keyed by a client-held token
type Session struct {
	Token      string    `json:"token"`
	UserID     string    `json:"user_id"`
	IsLoggedIn bool      `json:"is_logged_in"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists sessions in Redis
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore connects to Redis and returns a session store
func NewStore(cfg *config.RedisConfig, ttl time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Store{client: client, ttl: ttl}, nil
}

// NewStoreWithClient creates a session store with an existing client (for testing)
func NewStoreWithClient(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

// Create persists a new session for the user and returns it
func (s *Store) Create(ctx context.Context, userID string) (*Session, error) {
	sess := Session{
		Token:      uuid.New().String(),
		UserID:     userID,
		IsLoggedIn: true,
		CreatedAt:  time.Now().UTC(),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("marshaling session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(sess.Token), data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	return &sess, nil
}

// Get looks up a session by token and slides its expiry window
func (s *Store) Get(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNotFound
	}

	data, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}

	// Refresh the inactivity window on use.
	if err := s.client.Expire(ctx, sessionKey(token), s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("refreshing session: %w", err)
	}
	return &sess, nil
}

// Destroy removes a session. Destroying a missing session is not an error.
func (s *Store) Destroy(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("destroying session: %w", err)
	}
	return nil
}
