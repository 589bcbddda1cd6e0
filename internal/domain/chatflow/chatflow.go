package chatflow

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
	StatusArchived  Status = "ARCHIVED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// GenerationStatus tracks the background schema pipeline independently of
// whether a schema document is present.
type GenerationStatus string

const (
	GenerationPending   GenerationStatus = "pending"
	GenerationRunning   GenerationStatus = "running"
	GenerationSucceeded GenerationStatus = "succeeded"
	GenerationFailed    GenerationStatus = "failed"
)

// EmptySchema is the stored placeholder before generation succeeds.
var EmptySchema = datatypes.JSON([]byte(`{}`))

type Chatflow struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Name             string           `gorm:"column:name;not null" json:"name"`
	Description      string           `gorm:"column:description;not null" json:"description"`
	Schema           datatypes.JSON   `gorm:"column:schema;type:jsonb;not null" json:"schema"`
	Status           Status           `gorm:"column:status;not null;index" json:"status"`
	ShareToken       string           `gorm:"column:share_token;not null;uniqueIndex" json:"share_token"`
	GenerationStatus GenerationStatus `gorm:"column:generation_status;not null;index" json:"generation_status"`
	GenerationError  string           `gorm:"column:generation_error" json:"generation_error,omitempty"`
	GenerationJobID  *uuid.UUID       `gorm:"type:uuid;column:generation_job_id" json:"generation_job_id,omitempty"`
	PublishedAt      *time.Time       `gorm:"column:published_at" json:"published_at,omitempty"`
	CreatedAt        time.Time        `gorm:"not null;index" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"not null" json:"updated_at"`
}

func (Chatflow) TableName() string { return "chatflow" }
