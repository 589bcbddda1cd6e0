package domain

import (
	"github.com/yungbote/chatflow-backend/internal/domain/chatflow"
	"github.com/yungbote/chatflow-backend/internal/domain/jobs"
)

type (
	Chatflow         = chatflow.Chatflow
	ChatflowStatus   = chatflow.Status
	GenerationStatus = chatflow.GenerationStatus
	Submission       = chatflow.Submission
	SubmissionStatus = chatflow.SubmissionStatus

	JobRun      = jobs.JobRun
	JobRunEvent = jobs.JobRunEvent
)

// Models lists every persisted model, in migration order.
func Models() []any {
	return []any{
		&chatflow.Chatflow{},
		&chatflow.Submission{},
		&jobs.JobRun{},
		&jobs.JobRunEvent{},
	}
}
