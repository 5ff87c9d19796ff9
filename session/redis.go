package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lingobridge/lingobridge/core"
)

const (
	redisSessionKeyPrefix = "lingo:session:"
	redisTurnsKeyPrefix   = "lingo:turns:"
)

// RedisStore is a SessionStore backed by Redis, for deployments where several
// front-end processes share session state. Session metadata lives in a hash
// and the ordered turn history in a list of tagged JSON envelopes.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisStoreOptions configures a RedisStore.
type RedisStoreOptions struct {
	// TTL expires session keys after inactivity. Zero keeps them forever.
	TTL time.Duration
}

// NewRedisStore constructs a store around an existing client, verifying
// connectivity with a ping.
func NewRedisStore(ctx context.Context, client *redis.Client, optFns ...func(o *RedisStoreOptions)) (*RedisStore, error) {
	opts := RedisStoreOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, ttl: opts.TTL}, nil
}

func sessionKey(id string) string { return redisSessionKeyPrefix + id }
func turnsKey(id string) string   { return redisTurnsKeyPrefix + id }

// Create allocates a new active session, failing if the id is already taken.
func (s *RedisStore) Create(sessionID string) (*core.Session, error) {
	ctx := context.Background()

	set, err := s.client.HSetNX(ctx, sessionKey(sessionID), "status", string(core.StatusActive)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to create session %q: %w", sessionID, err)
	}
	if !set {
		return nil, fmt.Errorf("session %q already exists", sessionID)
	}

	now := time.Now().UTC().UnixMilli()
	if err := s.client.HSet(ctx, sessionKey(sessionID),
		"steps", 0,
		"created_at_unix_ms", now,
		"updated_at_unix_ms", now,
	).Err(); err != nil {
		return nil, err
	}
	s.refreshTTL(ctx, sessionID)

	return s.load(ctx, sessionID)
}

// Get returns an existing session or creates a new one lazily.
func (s *RedisStore) Get(sessionID string) (*core.Session, error) {
	ctx := context.Background()

	exists, err := s.client.Exists(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return s.Create(sessionID)
	}
	return s.load(ctx, sessionID)
}

// AppendTurn appends a turn to the session's history.
func (s *RedisStore) AppendTurn(sessionID string, t core.Turn) error {
	ctx := context.Background()

	data, err := core.MarshalTurn(t)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, turnsKey(sessionID), data)
	pipe.HSet(ctx, sessionKey(sessionID), "updated_at_unix_ms", time.Now().UTC().UnixMilli())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	s.refreshTTL(ctx, sessionID)
	return nil
}

// SetStatus updates the session's lifecycle status.
func (s *RedisStore) SetStatus(sessionID string, st core.Status) error {
	ctx := context.Background()
	return s.client.HSet(ctx, sessionKey(sessionID),
		"status", string(st),
		"updated_at_unix_ms", time.Now().UTC().UnixMilli(),
	).Err()
}

// SetSteps records the session's current step counter.
func (s *RedisStore) SetSteps(sessionID string, steps int) error {
	ctx := context.Background()
	return s.client.HSet(ctx, sessionKey(sessionID),
		"steps", steps,
		"updated_at_unix_ms", time.Now().UTC().UnixMilli(),
	).Err()
}

// ClearTurns drops the session's turn history.
func (s *RedisStore) ClearTurns(sessionID string) error {
	return s.client.Del(context.Background(), turnsKey(sessionID)).Err()
}

// Delete removes the session and its turns.
func (s *RedisStore) Delete(sessionID string) error {
	return s.client.Del(context.Background(), sessionKey(sessionID), turnsKey(sessionID)).Err()
}

func (s *RedisStore) refreshTTL(ctx context.Context, sessionID string) {
	if s.ttl <= 0 {
		return
	}
	s.client.Expire(ctx, sessionKey(sessionID), s.ttl)
	s.client.Expire(ctx, turnsKey(sessionID), s.ttl)
}

func (s *RedisStore) load(ctx context.Context, sessionID string) (*core.Session, error) {
	meta, err := s.client.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session %q: %w", sessionID, err)
	}

	sess := core.NewSession(sessionID)
	if v, ok := meta["status"]; ok {
		sess.Status = core.Status(v)
	}
	if v, ok := meta["steps"]; ok {
		fmt.Sscanf(v, "%d", &sess.StepsTaken)
	}
	if v, ok := meta["created_at_unix_ms"]; ok {
		var ms int64
		fmt.Sscanf(v, "%d", &ms)
		sess.Created = time.UnixMilli(ms).UTC()
	}

	raw, err := s.client.LRange(ctx, turnsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}
	for _, item := range raw {
		t, err := core.UnmarshalTurn([]byte(item))
		if err != nil {
			return nil, fmt.Errorf("corrupt turn for session %q: %w", sessionID, err)
		}
		sess.AppendTurn(t)
	}

	if v, ok := meta["updated_at_unix_ms"]; ok {
		var ms int64
		fmt.Sscanf(v, "%d", &ms)
		sess.Updated = time.UnixMilli(ms).UTC()
	}

	return sess, nil
}
