package handlers

import (
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/chatflow-backend/internal/domain"
	domainjobs "github.com/yungbote/chatflow-backend/internal/domain/jobs"
	"github.com/yungbote/chatflow-backend/internal/http/response"
	"github.com/yungbote/chatflow-backend/internal/platform/dbctx"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
	"github.com/yungbote/chatflow-backend/internal/services"
)

// JobEventSource delivers live job events. The Redis job event bus
// implements it.
type JobEventSource interface {
	Subscribe(ctx context.Context, onEvent func(*types.JobRunEvent)) error
}

type JobHandler struct {
	log    *logger.Logger
	jobs   services.JobService
	events JobEventSource

	keepAlive time.Duration
}

func NewJobHandler(log *logger.Logger, jobs services.JobService, events JobEventSource) *JobHandler {
	return &JobHandler{
		log:       log.With("handler", "JobHandler"),
		jobs:      jobs,
		events:    events,
		keepAlive: 15 * time.Second,
	}
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := parseIDParam(c, "id", "invalid_job_id")
	if !ok {
		return
	}
	job, err := h.jobs.Get(dbctx.Context{Ctx: c.Request.Context()}, jobID)
	if err != nil {
		response.RespondServiceError(c, err, nil)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// GET /api/jobs/:id/events
//
// Streams the stored timeline as server-sent events, then live events until
// the job reaches a terminal status or the client goes away. Without an event
// source only the stored timeline is sent.
func (h *JobHandler) StreamEvents(c *gin.Context) {
	jobID, ok := parseIDParam(c, "id", "invalid_job_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	job, err := h.jobs.Get(dbctx.Context{Ctx: ctx}, jobID)
	if err != nil {
		response.RespondServiceError(c, err, nil)
		return
	}

	live := make(chan *types.JobRunEvent, 32)
	if h.events != nil && !jobTerminal(job.Status) {
		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		err := h.events.Subscribe(subCtx, func(ev *types.JobRunEvent) {
			if ev == nil || ev.JobID != jobID {
				return
			}
			select {
			case live <- ev:
			default:
				h.log.Warn("job event stream lagging, dropping event", "job_id", jobID, "kind", ev.Kind)
			}
		})
		if err != nil {
			h.log.Warn("job event subscribe failed", "job_id", jobID, "error", err)
			close(live)
		}
	} else {
		close(live)
	}

	stored, err := h.jobs.ListEvents(dbctx.Context{Ctx: ctx}, jobID, 0)
	if err != nil {
		response.RespondServiceError(c, err, nil)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	seen := make(map[uuid.UUID]bool, len(stored))
	for _, ev := range stored {
		seen[ev.ID] = true
	}
	pending := stored
	done := jobTerminal(job.Status)
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	c.Stream(func(w io.Writer) bool {
		if len(pending) > 0 {
			for _, ev := range pending {
				c.SSEvent(string(ev.Kind), ev)
				if jobTerminal(ev.Status) {
					done = true
				}
			}
			pending = nil
			return !done
		}
		if done {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-live:
			if !ok {
				return false
			}
			if seen[ev.ID] {
				return true
			}
			seen[ev.ID] = true
			c.SSEvent(string(ev.Kind), ev)
			return !jobTerminal(ev.Status)
		case <-ticker.C:
			c.SSEvent("keepalive", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}

func jobTerminal(status string) bool {
	switch status {
	case domainjobs.StatusSucceeded, domainjobs.StatusFailed, domainjobs.StatusCanceled:
		return true
	}
	return false
}
