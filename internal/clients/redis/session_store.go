package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/chatflow-backend/internal/chatflow/engine"
	"github.com/yungbote/chatflow-backend/internal/platform/errs"
)

const sessionKeyPrefix = "chatflow:session:"

// SessionStore keeps engine sessions as JSON. Every save refreshes the TTL,
// so only idle sessions expire.
type SessionStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewSessionStore(rdb *goredis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: ttl}
}

func sessionKey(id uuid.UUID) string { return sessionKeyPrefix + id.String() }

func (s *SessionStore) Get(ctx context.Context, id uuid.UUID) (*engine.Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("session %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load session: %v", errs.ErrPersistence, err)
	}
	var sess engine.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess *engine.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: save session: %v", errs.ErrPersistence, err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.rdb.Del(ctx, sessionKey(id)).Err()
}
