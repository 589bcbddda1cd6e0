package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/chatflow-backend/internal/data/repos"
	types "github.com/yungbote/chatflow-backend/internal/domain"
	domainjobs "github.com/yungbote/chatflow-backend/internal/domain/jobs"
	"github.com/yungbote/chatflow-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatflow-backend/internal/platform/dbctx"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
)

type JobNotifier interface {
	JobCreated(ctx context.Context, job *types.JobRun)
	JobProgress(ctx context.Context, job *types.JobRun, stage string, progress int, message string)
	JobFailed(ctx context.Context, job *types.JobRun, stage string, errorMessage string)
	JobDone(ctx context.Context, job *types.JobRun)
}

// JobEventPublisher fans job events out to other processes (Redis pub/sub).
type JobEventPublisher interface {
	PublishJobEvent(ctx context.Context, ev *types.JobRunEvent) error
}

type jobNotifier struct {
	log    *logger.Logger
	events repos.JobRunEventRepo
	bus    JobEventPublisher
}

// NewJobNotifier records every job event in job_run_event and, when bus is
// non-nil, publishes it. Both sinks are best-effort.
func NewJobNotifier(baseLog *logger.Logger, events repos.JobRunEventRepo, bus JobEventPublisher) JobNotifier {
	return &jobNotifier{
		log:    baseLog.With("service", "JobNotifier"),
		events: events,
		bus:    bus,
	}
}

func (n *jobNotifier) JobCreated(ctx context.Context, job *types.JobRun) {
	n.record(ctx, job, domainjobs.JobEventCreated, job.Stage, job.Progress, job.Message, nil)
}

func (n *jobNotifier) JobProgress(ctx context.Context, job *types.JobRun, stage string, progress int, message string) {
	n.record(ctx, job, domainjobs.JobEventProgress, stage, progress, message, nil)
}

func (n *jobNotifier) JobFailed(ctx context.Context, job *types.JobRun, stage string, errorMessage string) {
	n.record(ctx, job, domainjobs.JobEventFailed, stage, job.Progress, "", map[string]any{
		"error":    errorMessage,
		"attempts": job.Attempts,
	})
}

func (n *jobNotifier) JobDone(ctx context.Context, job *types.JobRun) {
	n.record(ctx, job, domainjobs.JobEventSucceeded, job.Stage, 100, job.Message, nil)
}

func (n *jobNotifier) record(ctx context.Context, job *types.JobRun, kind domainjobs.JobEventKind, stage string, progress int, message string, data map[string]any) {
	if job == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ev := &types.JobRunEvent{
		ID:        uuid.New(),
		JobID:     job.ID,
		JobType:   job.JobType,
		Kind:      kind,
		Status:    job.Status,
		Stage:     stage,
		Progress:  progress,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if len(data) > 0 {
		b, _ := json.Marshal(data)
		ev.Data = datatypes.JSON(b)
	}

	kv := []interface{}{
		"job_id", job.ID,
		"job_type", job.JobType,
		"kind", kind,
		"status", job.Status,
		"stage", stage,
		"progress", progress,
	}
	kv = append(kv, ctxutil.LogFields(ctx)...)
	if kind == domainjobs.JobEventFailed {
		n.log.Warn("Job event", append(kv, "error", data["error"])...)
	} else {
		n.log.Debug("Job event", kv...)
	}

	if n.events != nil {
		if err := n.events.Create(dbctx.Context{Ctx: ctx}, ev); err != nil {
			n.log.Warn("Failed to record job event", "job_id", job.ID, "kind", kind, "error", err)
		}
	}
	if n.bus != nil {
		if err := n.bus.PublishJobEvent(ctx, ev); err != nil {
			n.log.Warn("Failed to publish job event", "job_id", job.ID, "kind", kind, "error", err)
		}
	}
}
