package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/chatflow-backend/internal/data/repos/repoerr"
	types "github.com/yungbote/chatflow-backend/internal/domain"
	"github.com/yungbote/chatflow-backend/internal/platform/dbctx"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
)

type JobRunEventRepo interface {
	Create(dbc dbctx.Context, ev *types.JobRunEvent) error
	ListByJob(dbc dbctx.Context, jobID uuid.UUID, limit int) ([]*types.JobRunEvent, error)
}

type jobRunEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunEventRepo(db *gorm.DB, baseLog *logger.Logger) JobRunEventRepo {
	return &jobRunEventRepo{db: db, log: baseLog.With("repo", "JobRunEventRepo")}
}

func (r *jobRunEventRepo) Create(dbc dbctx.Context, ev *types.JobRunEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	return repoerr.MapError("create job run event", dbc.DB(r.db).Create(ev).Error)
}

func (r *jobRunEventRepo) ListByJob(dbc dbctx.Context, jobID uuid.UUID, limit int) ([]*types.JobRunEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*types.JobRunEvent
	err := dbc.DB(r.db).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, repoerr.MapError("list job run events", err)
	}
	return out, nil
}
