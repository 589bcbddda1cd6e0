package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/chatflow-backend/internal/chatflow/fields"
	"github.com/yungbote/chatflow-backend/internal/domain/chatflow"
	"github.com/yungbote/chatflow-backend/internal/platform/errs"
)

var (
	ErrSessionClosed   = fmt.Errorf("%w: session already finished", errs.ErrClosed)
	ErrNothingToRetry  = fmt.Errorf("%w: session has no failed step", errs.ErrInvalidArgument)
	ErrFinalizePending = fmt.Errorf("%w: submission must be finalized first; retry", errs.ErrConflict)
)

// Persister is the submission store as seen by the engine. UpsertField
// creates the submission when submissionID is nil and returns its id.
type Persister interface {
	UpsertField(ctx context.Context, submissionID *uuid.UUID, chatflowID uuid.UUID, fieldName string, value any) (uuid.UUID, error)
	Finalize(ctx context.Context, submissionID *uuid.UUID, chatflowID uuid.UUID, data map[string]any, status chatflow.SubmissionStatus) error
}

// Turn is the engine's reply to one input.
type Turn struct {
	Utterances   []Utterance `json:"utterances"`
	State        State       `json:"state"`
	Prompt       *Prompt     `json:"prompt,omitempty"`
	SubmissionID *uuid.UUID  `json:"submission_id,omitempty"`
}

// Engine holds no per-session state; one instance serves every session. Callers
// must not run two operations on the same session concurrently.
type Engine struct {
	store Persister
	now   func() time.Time
}

func New(store Persister) *Engine {
	return &Engine{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Start opens the conversation: a greeting and the first prompt. A schema
// without fields completes immediately without touching the store.
func (e *Engine) Start(s *Session) ([]Utterance, error) {
	if len(s.Transcript) > 0 {
		return nil, fmt.Errorf("%w: session already started", errs.ErrConflict)
	}
	t := &Turn{}
	if len(s.Fields) == 0 {
		s.State = StateCompleted
		e.say(s, t, KindCompletion, "This chatflow has no questions. You're all set!", nil)
		return t.Utterances, nil
	}
	p, err := promptFor(s.Fields[0])
	if err != nil {
		return nil, err
	}
	e.say(s, t, KindGreeting, greeting(s.ChatflowName), nil)
	e.say(s, t, KindPrompt, p.Label, p)
	return t.Utterances, nil
}

// Answer handles the end user's reply to the current field. Invalid input is
// re-prompted without persistence and reported as *fields.InvalidAnswerError.
// A store failure leaves the cursor in place and marks the session errored.
func (e *Engine) Answer(ctx context.Context, s *Session, raw any) (Turn, error) {
	if s.Done() {
		return Turn{State: s.State}, ErrSessionClosed
	}
	if s.State == StateErrored && s.FailedStep == StepFinalize {
		return Turn{State: s.State}, ErrFinalizePending
	}
	f, ok := s.Current()
	if !ok {
		return Turn{State: s.State}, ErrSessionClosed
	}
	p, err := promptFor(f)
	if err != nil {
		return Turn{State: s.State}, err
	}

	t := &Turn{}
	value, err := fields.Parse(f.Type, raw)
	if err != nil {
		e.hear(s, t, KindEcho, fmt.Sprint(raw))
		e.say(s, t, KindInvalid, invalidText(err), nil)
		e.say(s, t, KindPrompt, p.Label, p)
		e.finish(s, t)
		return *t, err
	}
	echo, err := fields.Display(f.Type, value)
	if err != nil {
		return Turn{State: s.State}, err
	}
	e.hear(s, t, KindEcho, echo)

	err = e.commit(ctx, s, t, value)
	e.finish(s, t)
	return *t, err
}

// Retry resends whatever persistence call failed last.
func (e *Engine) Retry(ctx context.Context, s *Session) (Turn, error) {
	if s.State != StateErrored {
		return Turn{State: s.State}, ErrNothingToRetry
	}
	t := &Turn{}
	var err error
	switch s.FailedStep {
	case StepFinalize:
		err = e.complete(ctx, s, t)
	default:
		err = e.commit(ctx, s, t, s.PendingValue)
	}
	e.finish(s, t)
	return *t, err
}

// Abandon ends the session early. A submission that already exists is
// finalized as ABANDONED.
func (e *Engine) Abandon(ctx context.Context, s *Session) (Turn, error) {
	if s.Done() {
		return Turn{State: s.State}, ErrSessionClosed
	}
	if s.SubmissionID != nil {
		if err := e.store.Finalize(ctx, s.SubmissionID, s.ChatflowID, maps.Clone(s.Data), chatflow.SubmissionAbandoned); err != nil {
			return Turn{State: s.State}, fmt.Errorf("abandon submission: %w", err)
		}
	}
	t := &Turn{}
	s.State = StateAbandoned
	s.FailedStep = ""
	s.PendingValue = nil
	s.LastError = ""
	e.say(s, t, KindCompletion, "No problem. This conversation has been closed.", nil)
	e.finish(s, t)
	return *t, nil
}

// commit stores the answer for the field under the cursor and advances.
func (e *Engine) commit(ctx context.Context, s *Session, t *Turn, value any) error {
	f, ok := s.Current()
	if !ok {
		return ErrSessionClosed
	}
	id, err := e.store.UpsertField(ctx, s.SubmissionID, s.ChatflowID, f.Name, value)
	if err != nil {
		e.fail(s, t, StepAnswer, value, err)
		return fmt.Errorf("save answer %q: %w", f.Name, err)
	}
	s.SubmissionID = &id
	s.Data[f.Name] = value
	s.State = StateAwaitingAnswer
	s.FailedStep = ""
	s.PendingValue = nil
	s.LastError = ""
	s.Cursor++

	if s.Cursor < len(s.Fields) {
		p, err := promptFor(s.Fields[s.Cursor])
		if err != nil {
			return err
		}
		e.say(s, t, KindPrompt, p.Label, p)
		return nil
	}
	return e.complete(ctx, s, t)
}

func (e *Engine) complete(ctx context.Context, s *Session, t *Turn) error {
	if s.SubmissionID != nil {
		if err := e.store.Finalize(ctx, s.SubmissionID, s.ChatflowID, maps.Clone(s.Data), chatflow.SubmissionCompleted); err != nil {
			e.fail(s, t, StepFinalize, nil, err)
			return fmt.Errorf("finalize submission: %w", err)
		}
	}
	s.State = StateCompleted
	s.FailedStep = ""
	s.PendingValue = nil
	s.LastError = ""
	e.say(s, t, KindCompletion, "Thank you! Your responses have been submitted.", nil)
	return nil
}

func (e *Engine) fail(s *Session, t *Turn, step Step, pending any, err error) {
	s.State = StateErrored
	s.FailedStep = step
	s.PendingValue = pending
	s.LastError = err.Error()
	msg := "We couldn't save your answer. Please try again."
	if step == StepFinalize {
		msg = "We couldn't submit your responses. Please try again."
	}
	e.say(s, t, KindError, msg, nil)
}

func (e *Engine) say(s *Session, t *Turn, kind Kind, text string, p *Prompt) {
	u := Utterance{Role: RoleBot, Kind: kind, Text: text, Field: p, At: e.now()}
	s.Transcript = append(s.Transcript, u)
	t.Utterances = append(t.Utterances, u)
}

func (e *Engine) hear(s *Session, t *Turn, kind Kind, text string) {
	u := Utterance{Role: RoleUser, Kind: kind, Text: text, At: e.now()}
	s.Transcript = append(s.Transcript, u)
	t.Utterances = append(t.Utterances, u)
}

func (e *Engine) finish(s *Session, t *Turn) {
	s.UpdatedAt = e.now()
	t.State = s.State
	t.SubmissionID = s.SubmissionID
	if p, err := s.CurrentPrompt(); err == nil && s.State != StateErrored {
		t.Prompt = p
	}
}

func greeting(name string) string {
	if name == "" {
		return "Hi! Let's get started."
	}
	return fmt.Sprintf("Hi! Let's get started with %s.", name)
}

func invalidText(err error) string {
	var ia *fields.InvalidAnswerError
	if errors.As(err, &ia) {
		return "That doesn't look right: " + ia.Reason + "."
	}
	return "That answer can't be used here."
}
