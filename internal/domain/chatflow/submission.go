package chatflow

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SubmissionStatus string

const (
	SubmissionInProgress SubmissionStatus = "IN_PROGRESS"
	SubmissionCompleted  SubmissionStatus = "COMPLETED"
	SubmissionAbandoned  SubmissionStatus = "ABANDONED"
)

func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionCompleted || s == SubmissionAbandoned
}

func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionInProgress, SubmissionCompleted, SubmissionAbandoned:
		return true
	}
	return false
}

// Submission holds one end user's answers keyed by field name.
type Submission struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ChatflowID  uuid.UUID        `gorm:"type:uuid;column:chatflow_id;not null;index" json:"chatflow_id"`
	Data        datatypes.JSON   `gorm:"column:data;type:jsonb;not null" json:"data"`
	Status      SubmissionStatus `gorm:"column:status;not null;index" json:"status"`
	CompletedAt *time.Time       `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time        `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"not null" json:"updated_at"`
}

func (Submission) TableName() string { return "chatflow_submission" }
