package generation

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPollCompletes(t *testing.T) {
	calls := 0
	fetch := func(context.Context) (Status, error) {
		calls++
		if calls < 3 {
			return Status{State: StateRunning}, nil
		}
		return Status{State: StateCompleted, Result: &StatusResult{Name: "Done"}}, nil
	}
	st, err := Poll(context.Background(), fetch, PollOptions{Attempts: 5, Interval: time.Millisecond})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if st.Result == nil || st.Result.Name != "Done" || calls != 3 {
		t.Fatalf("unexpected poll result %+v after %d calls", st, calls)
	}
}

func TestPollTimeoutIsDistinctFromFailure(t *testing.T) {
	calls := 0
	fetch := func(context.Context) (Status, error) {
		calls++
		return Status{State: StateRunning}, nil
	}
	_, err := Poll(context.Background(), fetch, PollOptions{Attempts: 4, Interval: time.Millisecond})
	if !errors.Is(err, ErrPollTimeout) || errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}
}

func TestPollFailed(t *testing.T) {
	fetch := func(context.Context) (Status, error) {
		return Status{State: StateFailed, Error: "validate: bad"}, nil
	}
	_, err := Poll(context.Background(), fetch, PollOptions{Attempts: 3, Interval: time.Millisecond})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}
