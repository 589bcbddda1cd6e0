package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/chatflow-backend/internal/data/repos/chatflow"
	"github.com/yungbote/chatflow-backend/internal/data/repos/jobs"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
)

type ChatflowRepo = chatflow.ChatflowRepo
type SubmissionRepo = chatflow.SubmissionRepo
type ChatflowListOptions = chatflow.ListOptions

type JobRunRepo = jobs.JobRunRepo
type JobRunEventRepo = jobs.JobRunEventRepo

func NewChatflowRepo(db *gorm.DB, log *logger.Logger) ChatflowRepo {
	return chatflow.NewChatflowRepo(db, log)
}

func NewSubmissionRepo(db *gorm.DB, log *logger.Logger) SubmissionRepo {
	return chatflow.NewSubmissionRepo(db, log)
}

func NewJobRunRepo(db *gorm.DB, log *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, log)
}

func NewJobRunEventRepo(db *gorm.DB, log *logger.Logger) JobRunEventRepo {
	return jobs.NewJobRunEventRepo(db, log)
}
