package chatflow

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/chatflow-backend/internal/data/repos/repoerr"
	types "github.com/yungbote/chatflow-backend/internal/domain"
	"github.com/yungbote/chatflow-backend/internal/platform/dbctx"
	"github.com/yungbote/chatflow-backend/internal/platform/errs"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
)

type ListOptions struct {
	Status types.ChatflowStatus
	Limit  int
	Offset int
}

type ChatflowRepo interface {
	Create(dbc dbctx.Context, cf *types.Chatflow) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Chatflow, error)
	// GetForUpdate row-locks the chatflow until dbc.Tx ends.
	GetForUpdate(dbc dbctx.Context, id uuid.UUID) (*types.Chatflow, error)
	GetByShareToken(dbc dbctx.Context, token string) (*types.Chatflow, error)
	ExistsByShareToken(dbc dbctx.Context, token string) (bool, error)
	List(dbc dbctx.Context, opts ListOptions) ([]*types.Chatflow, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type chatflowRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatflowRepo(db *gorm.DB, baseLog *logger.Logger) ChatflowRepo {
	return &chatflowRepo{
		db:  db,
		log: baseLog.With("repo", "ChatflowRepo"),
	}
}

func (r *chatflowRepo) Create(dbc dbctx.Context, cf *types.Chatflow) error {
	if cf == nil {
		return errs.ErrInvalidArgument
	}
	if cf.ID == uuid.Nil {
		cf.ID = uuid.New()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	if cf.CreatedAt.IsZero() {
		cf.CreatedAt = now
	}
	cf.UpdatedAt = now
	if err := dbc.DB(r.db).Create(cf).Error; err != nil {
		return repoerr.MapError("create chatflow", err)
	}
	return nil
}

func (r *chatflowRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Chatflow, error) {
	if id == uuid.Nil {
		return nil, errs.ErrNotFound
	}
	var cf types.Chatflow
	if err := dbc.DB(r.db).Where("id = ?", id).First(&cf).Error; err != nil {
		return nil, repoerr.MapError("get chatflow", err)
	}
	return &cf, nil
}

func (r *chatflowRepo) GetForUpdate(dbc dbctx.Context, id uuid.UUID) (*types.Chatflow, error) {
	if id == uuid.Nil {
		return nil, errs.ErrNotFound
	}
	var cf types.Chatflow
	err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&cf).Error
	if err != nil {
		return nil, repoerr.MapError("lock chatflow", err)
	}
	return &cf, nil
}

func (r *chatflowRepo) GetByShareToken(dbc dbctx.Context, token string) (*types.Chatflow, error) {
	if token == "" {
		return nil, errs.ErrNotFound
	}
	var cf types.Chatflow
	if err := dbc.DB(r.db).Where("share_token = ?", token).First(&cf).Error; err != nil {
		return nil, repoerr.MapError("get chatflow by share token", err)
	}
	return &cf, nil
}

func (r *chatflowRepo) ExistsByShareToken(dbc dbctx.Context, token string) (bool, error) {
	var count int64
	err := dbc.DB(r.db).
		Model(&types.Chatflow{}).
		Where("share_token = ?", token).
		Count(&count).Error
	if err != nil {
		return false, repoerr.MapError("check share token", err)
	}
	return count > 0, nil
}

func (r *chatflowRepo) List(dbc dbctx.Context, opts ListOptions) ([]*types.Chatflow, error) {
	q := dbc.DB(r.db).Model(&types.Chatflow{})
	if opts.Status != "" {
		q = q.Where("status = ?", opts.Status)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	var out []*types.Chatflow
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, repoerr.MapError("list chatflows", err)
	}
	return out, nil
}

// UpdateFields applies updates in one statement. It reports ErrNotFound when
// no row matched.
func (r *chatflowRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return errs.ErrNotFound
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := dbc.DB(r.db).
		Model(&types.Chatflow{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return repoerr.MapError("update chatflow", res.Error)
	}
	if res.RowsAffected == 0 {
		return repoerr.MapError("update chatflow", gorm.ErrRecordNotFound)
	}
	return nil
}

