package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	domainjobs "github.com/yungbote/chatflow-backend/internal/domain/jobs"
)

// Workflow drives one job run. Each activity execution is one job attempt, so
// Temporal's activity retry policy is the job retry budget.
func Workflow(ctx workflow.Context, jobID string, maxAttempts int) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		jobID = strings.TrimSpace(workflow.GetInfo(ctx).WorkflowExecution.ID)
	}
	if jobID == "" {
		return temporal.NewNonRetryableApplicationError("jobrun: missing job_id", errTypeNotFound, nil)
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        5 * time.Second,
			BackoffCoefficient:     2,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        int32(maxAttempts),
			NonRetryableErrorTypes: []string{errTypeNotFound},
		},
	})

	var out Result
	if err := workflow.ExecuteActivity(ctx, ActivityExecute, jobID).Get(ctx, &out); err != nil {
		return err
	}
	if out.Status == domainjobs.StatusFailed {
		return fmt.Errorf("job failed (stage=%s): %s", out.Stage, out.Error)
	}
	return nil
}
