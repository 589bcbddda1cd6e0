package chatflow_generate_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chatflow-backend/internal/chatflow/generation"
	"github.com/yungbote/chatflow-backend/internal/data/repos"
	"github.com/yungbote/chatflow-backend/internal/data/repos/testutil"
	domainchatflow "github.com/yungbote/chatflow-backend/internal/domain/chatflow"
	domainjobs "github.com/yungbote/chatflow-backend/internal/domain/jobs"
	"github.com/yungbote/chatflow-backend/internal/jobs/pipeline/chatflow_generate"
	jobrt "github.com/yungbote/chatflow-backend/internal/jobs/runtime"
	"github.com/yungbote/chatflow-backend/internal/jobs/worker"
	"github.com/yungbote/chatflow-backend/internal/platform/dbctx"
	"github.com/yungbote/chatflow-backend/internal/platform/errs"
	"github.com/yungbote/chatflow-backend/internal/services"
)

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *recordingMetrics) ObserveGeneration(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

type failingApply struct {
	services.ChatflowService
}

func (f failingApply) ApplyGeneration(context.Context, uuid.UUID, generation.Result) error {
	return errors.New("disk full")
}

type harness struct {
	chatflows services.ChatflowService
	jobRepo   repos.JobRunRepo
	worker    *worker.Worker
	metrics   *recordingMetrics
}

func newHarness(t *testing.T, maxAttempts int, wrap func(services.ChatflowService) chatflow_generate.Chatflows) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)

	jobRepo := repos.NewJobRunRepo(db, log)
	eventRepo := repos.NewJobRunEventRepo(db, log)
	notify := services.NewJobNotifier(log, eventRepo, nil)
	jobs := services.NewJobService(db, log, jobRepo, eventRepo, notify, nil, "", maxAttempts)
	chatflows := services.NewChatflowService(db, log, repos.NewChatflowRepo(db, log), jobs, nil, "")

	var target chatflow_generate.Chatflows = chatflows
	if wrap != nil {
		target = wrap(chatflows)
	}
	metrics := &recordingMetrics{}
	registry := jobrt.NewRegistry()
	orch := generation.NewOrchestrator(nil, log, nil)
	require.NoError(t, registry.Register(chatflow_generate.New(log, target, orch, metrics)))

	w := worker.NewWorker(db, log, jobRepo, registry, notify, worker.Config{
		Concurrency:  1,
		PollInterval: 10 * time.Millisecond,
		MaxAttempts:  maxAttempts,
		RetryDelay:   0,
		StaleRunning: time.Minute,
	})
	return &harness{chatflows: chatflows, jobRepo: jobRepo, worker: w, metrics: metrics}
}

func TestGenerateAppliesResult(t *testing.T) {
	h := newHarness(t, 3, nil)
	ctx := context.Background()

	cf, job, err := h.chatflows.Create(ctx, "collect name and a preference")
	require.NoError(t, err)
	require.True(t, h.worker.RunOnce(ctx, 1))
	assert.False(t, h.worker.RunOnce(ctx, 1), "queue should be drained")

	st, err := h.chatflows.GetGenerationStatus(ctx, cf.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.StateCompleted, st.State)
	require.NotNil(t, st.Result)
	assert.Equal(t, generation.UntitledName, st.Result.Name)
	assert.Len(t, st.Result.Fields, len(generation.MockSchema().Fields))

	got, err := h.jobRepo.GetByID(dbctx.Context{Ctx: ctx}, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domainjobs.StatusSucceeded, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, []string{"succeeded"}, h.metrics.outcomes)
}

func TestGenerateFailureMarksChatflowOnFinalAttempt(t *testing.T) {
	h := newHarness(t, 2, func(s services.ChatflowService) chatflow_generate.Chatflows {
		return failingApply{ChatflowService: s}
	})
	ctx := context.Background()

	cf, job, err := h.chatflows.Create(ctx, "collect name")
	require.NoError(t, err)

	require.True(t, h.worker.RunOnce(ctx, 1))
	st, err := h.chatflows.GetGenerationStatus(ctx, cf.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.StateRunning, st.State, "a retry is still pending")

	time.Sleep(20 * time.Millisecond)
	require.True(t, h.worker.RunOnce(ctx, 1))
	st, err = h.chatflows.GetGenerationStatus(ctx, cf.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.StateFailed, st.State)
	assert.Equal(t, "apply: disk full", st.Error)

	got, err := h.jobRepo.GetByID(dbctx.Context{Ctx: ctx}, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domainjobs.StatusFailed, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.False(t, h.worker.RunOnce(ctx, 1), "attempts exhausted")
}

func TestGenerateSkipsSupersededJob(t *testing.T) {
	h := newHarness(t, 3, nil)
	ctx := context.Background()

	cf, first, err := h.chatflows.Create(ctx, "collect name")
	require.NoError(t, err)
	_, err = h.chatflows.StartGeneration(ctx, cf.ID, "")
	require.True(t, errors.Is(err, errs.ErrConflict), "queued job must block a restart, got %v", err)

	// The first attempt failed with retries left; an operator restarts anyway.
	require.NoError(t, h.jobRepo.UpdateFields(dbctx.Context{Ctx: ctx}, first.ID, map[string]interface{}{
		"status":   domainjobs.StatusFailed,
		"attempts": 1,
	}))
	second, err := h.chatflows.StartGeneration(ctx, cf.ID, "")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	require.True(t, h.worker.RunOnce(ctx, 1))
	got, err := h.jobRepo.GetByID(dbctx.Context{Ctx: ctx}, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domainjobs.StatusSucceeded, got.Status)
	assert.Equal(t, "superseded", got.Stage)

	require.True(t, h.worker.RunOnce(ctx, 1))
	stored, err := h.chatflows.Get(ctx, cf.ID)
	require.NoError(t, err)
	assert.Equal(t, domainchatflow.GenerationSucceeded, stored.GenerationStatus)
	assert.Equal(t, []string{"superseded", "succeeded"}, h.metrics.outcomes)
}

func TestGenerateMissingChatflowID(t *testing.T) {
	h := newHarness(t, 1, nil)
	ctx := context.Background()
	job, err := h.jobRepo.Create(dbctx.Context{Ctx: ctx}, []*domainjobs.JobRun{{
		ID:      uuid.New(),
		JobType: services.JobTypeChatflowGenerate,
		Status:  domainjobs.StatusQueued,
	}})
	require.NoError(t, err)

	require.True(t, h.worker.RunOnce(ctx, 1))
	got, err := h.jobRepo.GetByID(dbctx.Context{Ctx: ctx}, job[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domainjobs.StatusFailed, got.Status)
	assert.Equal(t, "validate", got.Stage)
}
