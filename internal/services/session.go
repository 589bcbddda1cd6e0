package services

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/chatflow-backend/internal/chatflow/engine"
	"github.com/yungbote/chatflow-backend/internal/chatflow/fields"
	"github.com/yungbote/chatflow-backend/internal/chatflow/schema"
	types "github.com/yungbote/chatflow-backend/internal/domain"
	"github.com/yungbote/chatflow-backend/internal/platform/errs"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
)

// SessionStore keeps conversational sessions between requests. Get returns
// errs.ErrNotFound for unknown or expired sessions.
type SessionStore interface {
	Get(ctx context.Context, id uuid.UUID) (*engine.Session, error)
	Save(ctx context.Context, s *engine.Session) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type SessionService interface {
	Start(ctx context.Context, token string) (*engine.Session, []engine.Utterance, error)
	Get(ctx context.Context, id uuid.UUID) (*engine.Session, error)
	Answer(ctx context.Context, id uuid.UUID, value any) (*engine.Session, engine.Turn, error)
	Retry(ctx context.Context, id uuid.UUID) (*engine.Session, engine.Turn, error)
	Abandon(ctx context.Context, id uuid.UUID) (*engine.Session, engine.Turn, error)

	// SubmitField and SubmitFinal persist answers collected by a client that
	// drives the conversation itself. Values pass the same field checks as
	// conversational answers.
	SubmitField(ctx context.Context, token string, submissionID *uuid.UUID, fieldName string, value any) (uuid.UUID, error)
	SubmitFinal(ctx context.Context, token string, submissionID *uuid.UUID, data map[string]any, status types.SubmissionStatus) error
}

type sessionService struct {
	log         *logger.Logger
	chatflows   ChatflowService
	submissions SubmissionService
	store       SessionStore
	engine      *engine.Engine

	locks [sessionLockStripes]sync.Mutex
}

// sessionLockStripes bounds lock memory regardless of how many session ids
// callers send. Unrelated sessions sharing a stripe only wait on each other.
const sessionLockStripes = 64

func NewSessionService(baseLog *logger.Logger, chatflows ChatflowService, submissions SubmissionService, store SessionStore) SessionService {
	return &sessionService{
		log:         baseLog.With("service", "SessionService"),
		chatflows:   chatflows,
		submissions: submissions,
		store:       store,
		engine:      engine.New(submissions),
	}
}

func (s *sessionService) Start(ctx context.Context, token string) (*engine.Session, []engine.Utterance, error) {
	pc, err := s.chatflows.GetPublic(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	sess := engine.NewSession(uuid.New(), pc.ID, pc.Name, schema.ChatflowSchema{Fields: pc.Fields})
	out, err := s.engine.Start(sess)
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, nil, err
	}
	s.log.Debug("Session started", "session_id", sess.ID, "chatflow_id", sess.ChatflowID, "fields", len(sess.Fields))
	return sess, out, nil
}

func (s *sessionService) Get(ctx context.Context, id uuid.UUID) (*engine.Session, error) {
	return s.store.Get(ctx, id)
}

func (s *sessionService) Answer(ctx context.Context, id uuid.UUID, value any) (*engine.Session, engine.Turn, error) {
	return s.step(ctx, id, func(sess *engine.Session) (engine.Turn, error) {
		return s.engine.Answer(ctx, sess, value)
	})
}

func (s *sessionService) Retry(ctx context.Context, id uuid.UUID) (*engine.Session, engine.Turn, error) {
	return s.step(ctx, id, func(sess *engine.Session) (engine.Turn, error) {
		return s.engine.Retry(ctx, sess)
	})
}

func (s *sessionService) Abandon(ctx context.Context, id uuid.UUID) (*engine.Session, engine.Turn, error) {
	return s.step(ctx, id, func(sess *engine.Session) (engine.Turn, error) {
		return s.engine.Abandon(ctx, sess)
	})
}

// step runs one engine operation under the session's lock and saves the
// session whatever the outcome, so transcripts and error state survive.
func (s *sessionService) step(ctx context.Context, id uuid.UUID, fn func(*engine.Session) (engine.Turn, error)) (*engine.Session, engine.Turn, error) {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, engine.Turn{}, err
	}
	turn, runErr := fn(sess)
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, engine.Turn{}, err
	}
	return sess, turn, runErr
}

func (s *sessionService) lock(id uuid.UUID) func() {
	mu := &s.locks[lockStripe(id)]
	mu.Lock()
	return mu.Unlock
}

func lockStripe(id uuid.UUID) int {
	return int(binary.BigEndian.Uint64(id[8:]) % sessionLockStripes)
}

func (s *sessionService) SubmitField(ctx context.Context, token string, submissionID *uuid.UUID, fieldName string, value any) (uuid.UUID, error) {
	pc, err := s.chatflows.GetPublic(ctx, token)
	if err != nil {
		return uuid.Nil, err
	}
	f, ok := (schema.ChatflowSchema{Fields: pc.Fields}).FieldByName(strings.TrimSpace(fieldName))
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: unknown field %q", errs.ErrInvalidArgument, fieldName)
	}
	parsed, err := fields.Parse(f.Type, value)
	if err != nil {
		return uuid.Nil, err
	}
	return s.submissions.UpsertField(ctx, submissionID, pc.ID, f.Name, parsed)
}

func (s *sessionService) SubmitFinal(ctx context.Context, token string, submissionID *uuid.UUID, data map[string]any, status types.SubmissionStatus) error {
	pc, err := s.chatflows.GetPublic(ctx, token)
	if err != nil {
		return err
	}
	if !status.Terminal() {
		return fmt.Errorf("%w: status must be COMPLETED or ABANDONED", errs.ErrInvalidArgument)
	}
	sc := schema.ChatflowSchema{Fields: pc.Fields}
	clean := make(map[string]any, len(data))
	for name, v := range data {
		f, ok := sc.FieldByName(name)
		if !ok {
			return fmt.Errorf("%w: unknown field %q", errs.ErrInvalidArgument, name)
		}
		parsed, err := fields.Parse(f.Type, v)
		if err != nil {
			return err
		}
		clean[name] = parsed
	}
	return s.submissions.Finalize(ctx, submissionID, pc.ID, clean, status)
}

type memorySessionStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	data map[uuid.UUID]memorySession
}

type memorySession struct {
	raw       []byte
	expiresAt time.Time
}

// NewMemorySessionStore is the fallback when Redis is not configured.
// Sessions are stored encoded so callers never share a live pointer.
func NewMemorySessionStore(ttl time.Duration) SessionStore {
	return &memorySessionStore{
		ttl:  ttl,
		now:  time.Now,
		data: map[uuid.UUID]memorySession{},
	}
}

func (m *memorySessionStore) Get(_ context.Context, id uuid.UUID) (*engine.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, errs.ErrNotFound)
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		delete(m.data, id)
		return nil, fmt.Errorf("session %s: %w", id, errs.ErrNotFound)
	}
	var sess engine.Session
	if err := json.Unmarshal(e.raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (m *memorySessionStore) Save(_ context.Context, s *engine.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	e := memorySession{raw: raw}
	if m.ttl > 0 {
		e.expiresAt = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.data[s.ID] = e
	m.mu.Unlock()
	return nil
}

func (m *memorySessionStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	delete(m.data, id)
	m.mu.Unlock()
	return nil
}
