package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/chatflow-backend/internal/data/repos"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
)

type Repos struct {
	Chatflow    repos.ChatflowRepo
	Submission  repos.SubmissionRepo
	JobRun      repos.JobRunRepo
	JobRunEvent repos.JobRunEventRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Chatflow:    repos.NewChatflowRepo(db, log),
		Submission:  repos.NewSubmissionRepo(db, log),
		JobRun:      repos.NewJobRunRepo(db, log),
		JobRunEvent: repos.NewJobRunEventRepo(db, log),
	}
}
