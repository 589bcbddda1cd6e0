package chatflow_generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	jobrt "github.com/yungbote/chatflow-backend/internal/jobs/runtime"
)

const (
	outcomeSucceeded  = "succeeded"
	outcomeFailed     = "failed"
	outcomeCanceled   = "canceled"
	outcomeSuperseded = "superseded"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	chatflowID, ok := jc.PayloadUUID("chatflow_id")
	if !ok || chatflowID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing chatflow_id"))
		return nil
	}

	cf, err := p.chatflows.Get(jc.Ctx, chatflowID)
	if err != nil {
		p.fail(jc, chatflowID, "load", err)
		return nil
	}
	// A later StartGeneration re-pointed the chatflow at a newer job.
	if cf.GenerationJobID != nil && *cf.GenerationJobID != jc.Job.ID {
		p.observe(outcomeSuperseded, 0)
		jc.Succeed("superseded", map[string]any{
			"chatflow_id": chatflowID.String(),
			"superseded":  cf.GenerationJobID.String(),
		})
		return nil
	}
	description := jc.PayloadString("description")
	if description == "" {
		description = strings.TrimSpace(cf.Description)
	}

	if err := p.chatflows.MarkGenerationRunning(jc.Ctx, chatflowID, jc.Job.ID); err != nil {
		p.fail(jc, chatflowID, "start", err)
		return nil
	}
	jc.Progress("generate", 10, "Generating chatflow schema")

	start := time.Now()
	res, err := p.orch.Run(jc.Ctx, description)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Leave the chatflow alone; the job is reclaimed or retried.
			p.observe(outcomeCanceled, time.Since(start))
			jc.Fail("canceled", err)
			return nil
		}
		p.observe(outcomeFailed, time.Since(start))
		p.fail(jc, chatflowID, "generate", err)
		return nil
	}

	jc.Progress("apply", 90, "Saving chatflow schema")
	if err := p.chatflows.ApplyGeneration(jc.Ctx, chatflowID, res); err != nil {
		p.observe(outcomeFailed, time.Since(start))
		p.fail(jc, chatflowID, "apply", err)
		return nil
	}
	p.observe(outcomeSucceeded, res.Duration)

	p.log.Info("Chatflow generated",
		"chatflow_id", chatflowID,
		"job_id", jc.Job.ID,
		"name", res.Name,
		"fields", len(res.Schema.Fields),
		"analyze_fallback", res.AnalyzeFallback,
		"generate_fallback", res.GenerateFallback,
		"duration_ms", res.Duration.Milliseconds(),
	)
	jc.Succeed("done", map[string]any{
		"chatflow_id":       chatflowID.String(),
		"name":              res.Name,
		"fields":            len(res.Schema.Fields),
		"analyze_fallback":  res.AnalyzeFallback,
		"generate_fallback": res.GenerateFallback,
	})
	return nil
}

// fail records the job failure. The chatflow is only marked failed once no
// retry is left, so pollers keep seeing "running" between attempts.
func (p *Pipeline) fail(jc *jobrt.Context, chatflowID uuid.UUID, stage string, err error) {
	jc.Fail(stage, err)
	if !jc.FinalAttempt() {
		p.log.Warn("Chatflow generation attempt failed; will retry",
			"chatflow_id", chatflowID,
			"job_id", jc.Job.ID,
			"attempt", jc.Job.Attempts,
			"stage", stage,
			"error", err,
		)
		return
	}
	reason := stage + ": " + err.Error()
	if mErr := p.chatflows.MarkGenerationFailed(context.WithoutCancel(jc.Ctx), chatflowID, reason); mErr != nil {
		p.log.Error("MarkGenerationFailed failed", "chatflow_id", chatflowID, "error", mErr)
	}
}

func (p *Pipeline) observe(outcome string, d time.Duration) {
	if p.metrics != nil {
		p.metrics.ObserveGeneration(outcome, d)
	}
}
