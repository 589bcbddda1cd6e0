package jobrun

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/chatflow-backend/internal/data/repos"
	types "github.com/yungbote/chatflow-backend/internal/domain"
	domainjobs "github.com/yungbote/chatflow-backend/internal/domain/jobs"
	"github.com/yungbote/chatflow-backend/internal/platform/dbctx"
	"github.com/yungbote/chatflow-backend/internal/platform/errs"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
)

// Executor runs an already claimed job; jobs/worker.Worker satisfies it.
type Executor interface {
	Execute(ctx context.Context, job *types.JobRun)
	MaxAttempts() int
}

type Activities struct {
	Log      *logger.Logger
	Jobs     repos.JobRunRepo
	Executor Executor
}

// Execute claims the job and runs its handler once. A failed attempt with
// budget left is returned as a retryable error so Temporal schedules the next
// attempt; the final failure is reported in the Result.
func (a *Activities) Execute(ctx context.Context, jobID string) (Result, error) {
	res := Result{JobID: strings.TrimSpace(jobID)}
	if a == nil || a.Jobs == nil || a.Executor == nil {
		return res, fmt.Errorf("jobrun: activity not configured")
	}
	id, err := uuid.Parse(res.JobID)
	if err != nil || id == uuid.Nil {
		return res, temporal.NewNonRetryableApplicationError("jobrun: invalid job_id", errTypeNotFound, err)
	}

	job, err := a.Jobs.ClaimByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return res, temporal.NewNonRetryableApplicationError("jobrun: job not found", errTypeNotFound, err)
		}
		return res, err
	}
	if job == nil {
		// Already succeeded or canceled; a duplicate delivery.
		current, err := a.Jobs.GetByID(dbctx.Context{Ctx: ctx}, id)
		if err != nil {
			return res, err
		}
		return fill(res, current), nil
	}

	stop := startHeartbeat(ctx)
	a.Executor.Execute(ctx, job)
	stop()

	updated, err := a.Jobs.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return res, err
	}
	res = fill(res, updated)
	if updated.Status == domainjobs.StatusFailed && updated.Attempts < a.Executor.MaxAttempts() {
		if a.Log != nil {
			a.Log.Warn("Job attempt failed; Temporal will retry", "job_id", id, "attempt", updated.Attempts, "stage", updated.Stage, "error", updated.Error)
		}
		return res, temporal.NewApplicationError("jobrun: attempt failed: "+updated.Error, errTypeAttemptFailed)
	}
	return res, nil
}

func fill(res Result, job *types.JobRun) Result {
	res.Status = job.Status
	res.Stage = job.Stage
	res.Attempts = job.Attempts
	res.Error = job.Error
	return res
}

func startHeartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(10 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
