package jobrun

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/chatflow-backend/internal/data/repos"
	"github.com/yungbote/chatflow-backend/internal/data/repos/testutil"
	domainjobs "github.com/yungbote/chatflow-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/chatflow-backend/internal/jobs/runtime"
	"github.com/yungbote/chatflow-backend/internal/jobs/worker"
	"github.com/yungbote/chatflow-backend/internal/platform/dbctx"
)

func flakyActivity(failures int32, final Result) (func(context.Context, string) (Result, error), *int32) {
	var calls int32
	return func(_ context.Context, jobID string) (Result, error) {
		n := atomic.AddInt32(&calls, 1)
		if n <= failures {
			return Result{JobID: jobID, Status: domainjobs.StatusFailed}, temporal.NewApplicationError("attempt failed", errTypeAttemptFailed)
		}
		final.JobID = jobID
		return final, nil
	}, &calls
}

func TestWorkflowRetriesUntilSuccess(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	act, calls := flakyActivity(2, Result{Status: domainjobs.StatusSucceeded})
	env.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	env.RegisterActivityWithOptions(act, activity.RegisterOptions{Name: ActivityExecute})

	env.ExecuteWorkflow(WorkflowName, "job-1", 3)
	require.True(t, env.IsWorkflowCompleted())
	assert.NoError(t, env.GetWorkflowError())
	assert.EqualValues(t, 3, atomic.LoadInt32(calls))
}

func TestWorkflowStopsAtMaxAttempts(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	act, calls := flakyActivity(10, Result{Status: domainjobs.StatusSucceeded})
	env.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	env.RegisterActivityWithOptions(act, activity.RegisterOptions{Name: ActivityExecute})

	env.ExecuteWorkflow(WorkflowName, "job-1", 2)
	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
	assert.EqualValues(t, 2, atomic.LoadInt32(calls))
}

func TestWorkflowReportsFinalFailure(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	act, _ := flakyActivity(0, Result{Status: domainjobs.StatusFailed, Stage: "generate", Error: "boom"})
	env.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	env.RegisterActivityWithOptions(act, activity.RegisterOptions{Name: ActivityExecute})

	env.ExecuteWorkflow(WorkflowName, "job-1", 1)
	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage=generate")
}

type stubHandler struct {
	jobType string
	err     error
}

func (h stubHandler) Type() string { return h.jobType }

func (h stubHandler) Run(jc *jobrt.Context) error {
	if h.err != nil {
		jc.Fail("stub", h.err)
		return nil
	}
	jc.Succeed("done", map[string]any{"ok": true})
	return nil
}

func newActivityEnv(t *testing.T, maxAttempts int) (*testsuite.TestActivityEnvironment, repos.JobRunRepo) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	jobs := repos.NewJobRunRepo(db, log)

	registry := jobrt.NewRegistry()
	require.NoError(t, registry.Register(stubHandler{jobType: "ok"}))
	require.NoError(t, registry.Register(stubHandler{jobType: "broken", err: errors.New("boom")}))
	w := worker.NewWorker(db, log, jobs, registry, nil, worker.Config{MaxAttempts: maxAttempts, StaleRunning: time.Minute})

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestActivityEnvironment()
	acts := &Activities{Log: log, Jobs: jobs, Executor: w}
	env.RegisterActivityWithOptions(acts.Execute, activity.RegisterOptions{Name: ActivityExecute})
	return env, jobs
}

func seedJob(t *testing.T, jobs repos.JobRunRepo, jobType string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := jobs.Create(dbctx.Context{Ctx: context.Background()}, []*domainjobs.JobRun{{
		ID:      id,
		JobType: jobType,
		Status:  domainjobs.StatusQueued,
		Stage:   "queued",
	}})
	require.NoError(t, err)
	return id
}

func TestActivityRunsJob(t *testing.T) {
	env, jobs := newActivityEnv(t, 3)
	id := seedJob(t, jobs, "ok")

	val, err := env.ExecuteActivity(ActivityExecute, id.String())
	require.NoError(t, err)
	var res Result
	require.NoError(t, val.Get(&res))
	assert.Equal(t, domainjobs.StatusSucceeded, res.Status)
	assert.Equal(t, 1, res.Attempts)

	// A duplicate delivery does not run the job again.
	val, err = env.ExecuteActivity(ActivityExecute, id.String())
	require.NoError(t, err)
	require.NoError(t, val.Get(&res))
	assert.Equal(t, 1, res.Attempts)
}

func TestActivityFailedAttemptIsRetryable(t *testing.T) {
	env, jobs := newActivityEnv(t, 2)
	id := seedJob(t, jobs, "broken")

	_, err := env.ExecuteActivity(ActivityExecute, id.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempt failed")

	val, err := env.ExecuteActivity(ActivityExecute, id.String())
	require.NoError(t, err, "final attempt reports failure in the result")
	var res Result
	require.NoError(t, val.Get(&res))
	assert.Equal(t, domainjobs.StatusFailed, res.Status)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "boom", res.Error)
}

func TestActivityUnknownJob(t *testing.T) {
	env, _ := newActivityEnv(t, 1)
	_, err := env.ExecuteActivity(ActivityExecute, uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
