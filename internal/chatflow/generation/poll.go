package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/chatflow-backend/internal/chatflow/schema"
	"github.com/yungbote/chatflow-backend/internal/platform/httpx"
)

type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

var (
	// ErrPollTimeout means generation was still running after every attempt.
	// It is not a failure.
	ErrPollTimeout      = errors.New("generation still running")
	ErrGenerationFailed = errors.New("generation failed")
)

type StatusResult struct {
	Name   string         `json:"name"`
	Fields []schema.Field `json:"fields"`
}

type Status struct {
	State            State         `json:"state"`
	GenerationStatus string        `json:"generation_status,omitempty"`
	JobID            string        `json:"job_id,omitempty"`
	Stage            string        `json:"stage,omitempty"`
	Progress         int           `json:"progress,omitempty"`
	Result           *StatusResult `json:"result,omitempty"`
	Error            string        `json:"error,omitempty"`
}

type PollOptions struct {
	Attempts int
	Interval time.Duration
}

func (o PollOptions) withDefaults() PollOptions {
	if o.Attempts <= 0 {
		o.Attempts = 30
	}
	if o.Interval <= 0 {
		o.Interval = 2 * time.Second
	}
	return o
}

// Poll calls fetch until generation completes or fails, or attempts run out.
func Poll(ctx context.Context, fetch func(context.Context) (Status, error), opts PollOptions) (Status, error) {
	opts = opts.withDefaults()
	var last Status
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		st, err := fetch(ctx)
		if err != nil {
			return st, err
		}
		last = st
		switch st.State {
		case StateCompleted:
			return st, nil
		case StateFailed:
			return st, fmt.Errorf("%w: %s", ErrGenerationFailed, st.Error)
		}
		if attempt == opts.Attempts {
			break
		}
		if err := httpx.SleepCtx(ctx, opts.Interval); err != nil {
			return last, err
		}
	}
	return last, ErrPollTimeout
}
