package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/chatflow-backend/internal/data/repos"
	"github.com/yungbote/chatflow-backend/internal/data/repos/testutil"
	domainjobs "github.com/yungbote/chatflow-backend/internal/domain/jobs"
	"github.com/yungbote/chatflow-backend/internal/jobs/runtime"
	"github.com/yungbote/chatflow-backend/internal/platform/dbctx"
)

type panicHandler struct{}

func (panicHandler) Type() string { return "explode" }
func (panicHandler) Run(*runtime.Context) error { panic("kaboom") }

type okHandler struct{ runs *int }

func (okHandler) Type() string { return "ok" }
func (h okHandler) Run(jc *runtime.Context) error {
	*h.runs++
	jc.Succeed("done", nil)
	return nil
}

func seed(t *testing.T, repo repos.JobRunRepo, jobType string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if _, err := repo.Create(dbctx.Context{Ctx: context.Background()}, []*domainjobs.JobRun{{
		ID: id, JobType: jobType, Status: domainjobs.StatusQueued, Stage: "queued",
	}}); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return id
}

func TestRunOnceOutcomes(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.NewJobRunRepo(db, log)

	runs := 0
	reg := runtime.NewRegistry()
	if err := reg.Register(okHandler{runs: &runs}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(panicHandler{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	w := NewWorker(db, log, repo, reg, nil, Config{MaxAttempts: 1, StaleRunning: time.Minute})
	ctx := context.Background()

	if w.RunOnce(ctx, 1) {
		t.Fatalf("RunOnce on empty queue should report false")
	}

	cases := []struct {
		jobType   string
		wantState string
		wantStage string
	}{
		{"ok", domainjobs.StatusSucceeded, "done"},
		{"explode", domainjobs.StatusFailed, "panic"},
		{"unknown", domainjobs.StatusFailed, "dispatch"},
	}
	for _, tc := range cases {
		t.Run(tc.jobType, func(t *testing.T) {
			id := seed(t, repo, tc.jobType)
			if !w.RunOnce(ctx, 1) {
				t.Fatalf("expected a job to run")
			}
			got, err := repo.GetByID(dbctx.Context{Ctx: ctx}, id)
			if err != nil {
				t.Fatalf("GetByID: %v", err)
			}
			if got.Status != tc.wantState || got.Stage != tc.wantStage {
				t.Fatalf("got status=%s stage=%s, want %s/%s", got.Status, got.Stage, tc.wantState, tc.wantStage)
			}
		})
	}
	if runs != 1 {
		t.Fatalf("ok handler ran %d times", runs)
	}
}

func TestConfigNormalized(t *testing.T) {
	c := Config{}.normalized()
	if c.Concurrency != 1 || c.MaxAttempts != 1 || c.PollInterval != time.Second || c.StaleRunning != 10*time.Minute {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	w := NewWorker(db, log, repos.NewJobRunRepo(db, log), runtime.NewRegistry(), nil, Config{Concurrency: 2, PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}
