// Package engine is the conversational submission state machine. A Session
// walks a cursor over a validated schema, echoes each answer in display form
// and persists it before moving on.
package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/chatflow-backend/internal/chatflow/fields"
	"github.com/yungbote/chatflow-backend/internal/chatflow/schema"
)

type State string

const (
	StateAwaitingAnswer State = "awaiting_answer"
	StateCompleted      State = "completed"
	StateErrored        State = "errored"
	StateAbandoned      State = "abandoned"
)

// Step names the persistence call that failed in an errored session.
type Step string

const (
	StepAnswer   Step = "answer"
	StepFinalize Step = "finalize"
)

type Role string

const (
	RoleBot  Role = "bot"
	RoleUser Role = "user"
)

type Kind string

const (
	KindGreeting   Kind = "greeting"
	KindPrompt     Kind = "prompt"
	KindEcho       Kind = "echo"
	KindInvalid    Kind = "invalid"
	KindError      Kind = "error"
	KindCompletion Kind = "completion"
)

// Prompt describes how the current field should be asked.
type Prompt struct {
	FieldID     string            `json:"id"`
	Name        string            `json:"name"`
	Label       string            `json:"label"`
	Type        fields.Type       `json:"type"`
	Affordance  fields.Affordance `json:"affordance"`
	InputMode   string            `json:"input_mode,omitempty"`
	Required    bool              `json:"required"`
	Placeholder string            `json:"placeholder,omitempty"`
	HelperText  string            `json:"helper_text,omitempty"`
	Options     []string          `json:"options,omitempty"`
}

type Utterance struct {
	Role  Role      `json:"role"`
	Kind  Kind      `json:"kind"`
	Text  string    `json:"text"`
	Field *Prompt   `json:"field,omitempty"`
	At    time.Time `json:"at"`
}

// Session is the full conversational state. It is serialisable so it can be
// kept in an external session store between requests.
type Session struct {
	ID           uuid.UUID      `json:"id"`
	ChatflowID   uuid.UUID      `json:"chatflow_id"`
	ChatflowName string         `json:"chatflow_name"`
	Fields       []schema.Field `json:"fields"`
	Cursor       int            `json:"cursor"`
	SubmissionID *uuid.UUID     `json:"submission_id,omitempty"`
	Data         map[string]any `json:"data"`
	State        State          `json:"state"`
	FailedStep   Step           `json:"failed_step,omitempty"`
	PendingValue any            `json:"pending_value,omitempty"`
	LastError    string         `json:"last_error,omitempty"`
	Transcript   []Utterance    `json:"transcript"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewSession builds a session over an already validated schema.
func NewSession(id, chatflowID uuid.UUID, chatflowName string, s schema.ChatflowSchema) *Session {
	now := time.Now().UTC()
	fs := make([]schema.Field, len(s.Fields))
	copy(fs, s.Fields)
	return &Session{
		ID:           id,
		ChatflowID:   chatflowID,
		ChatflowName: chatflowName,
		Fields:       fs,
		Data:         map[string]any{},
		State:        StateAwaitingAnswer,
		Transcript:   []Utterance{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *Session) Done() bool {
	return s.State == StateCompleted || s.State == StateAbandoned
}

// Current returns the field under the cursor.
func (s *Session) Current() (schema.Field, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Fields) {
		return schema.Field{}, false
	}
	return s.Fields[s.Cursor], true
}

// CurrentPrompt is the prompt for the field awaiting an answer, if any.
func (s *Session) CurrentPrompt() (*Prompt, error) {
	if s.Done() {
		return nil, nil
	}
	f, ok := s.Current()
	if !ok {
		return nil, nil
	}
	return promptFor(f)
}

func promptFor(f schema.Field) (*Prompt, error) {
	spec, err := fields.Lookup(f.Type)
	if err != nil {
		return nil, err
	}
	choices, err := fields.Choices(f.Type, f.Options)
	if err != nil {
		return nil, err
	}
	return &Prompt{
		FieldID:     f.ID,
		Name:        f.Name,
		Label:       f.Label,
		Type:        f.Type,
		Affordance:  spec.Affordance,
		InputMode:   spec.InputMode,
		Required:    f.Required,
		Placeholder: f.Placeholder,
		HelperText:  f.HelperText,
		Options:     choices,
	}, nil
}
