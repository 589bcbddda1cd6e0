package chatflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/chatflow-backend/internal/data/repos/repoerr"
	types "github.com/yungbote/chatflow-backend/internal/domain"
	domainchatflow "github.com/yungbote/chatflow-backend/internal/domain/chatflow"
	"github.com/yungbote/chatflow-backend/internal/platform/dbctx"
	"github.com/yungbote/chatflow-backend/internal/platform/errs"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
)

type SubmissionRepo interface {
	// UpsertField merges one answer. A nil or unknown id creates the row.
	UpsertField(dbc dbctx.Context, submissionID *uuid.UUID, chatflowID uuid.UUID, fieldName string, value any) (*types.Submission, error)
	// Finalize merges data and moves the submission to a terminal status.
	// Repeating a COMPLETED finalize returns the stored row untouched. A
	// finalize that would create an empty row returns errs.ErrNotFound.
	Finalize(dbc dbctx.Context, submissionID *uuid.UUID, chatflowID uuid.UUID, data map[string]any, status types.SubmissionStatus) (*types.Submission, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Submission, error)
	ListByChatflow(dbc dbctx.Context, chatflowID uuid.UUID) ([]*types.Submission, error)
}

type submissionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubmissionRepo(db *gorm.DB, baseLog *logger.Logger) SubmissionRepo {
	return &submissionRepo{
		db:  db,
		log: baseLog.With("repo", "SubmissionRepo"),
	}
}

func (r *submissionRepo) UpsertField(dbc dbctx.Context, submissionID *uuid.UUID, chatflowID uuid.UUID, fieldName string, value any) (*types.Submission, error) {
	if chatflowID == uuid.Nil || fieldName == "" {
		return nil, errs.ErrInvalidArgument
	}
	var out *types.Submission
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		sub, err := r.lockOrNew(tx, submissionID, chatflowID)
		if err != nil {
			return err
		}
		if sub.Status.Terminal() {
			return fmt.Errorf("%w: submission %s is %s", errs.ErrClosed, sub.ID, sub.Status)
		}
		data, err := decodeData(sub.Data)
		if err != nil {
			return err
		}
		data[fieldName] = value
		sub.Status = domainchatflow.SubmissionInProgress
		if err := r.save(tx, sub, data); err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, repoerr.MapError("upsert submission field", err)
	}
	return out, nil
}

func (r *submissionRepo) Finalize(dbc dbctx.Context, submissionID *uuid.UUID, chatflowID uuid.UUID, data map[string]any, status types.SubmissionStatus) (*types.Submission, error) {
	if chatflowID == uuid.Nil || !status.Terminal() {
		return nil, errs.ErrInvalidArgument
	}
	var out *types.Submission
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		sub, err := r.lockOrNew(tx, submissionID, chatflowID)
		if err != nil {
			return err
		}
		if sub.Status.Terminal() {
			if sub.Status == status {
				out = sub
				return nil
			}
			return fmt.Errorf("%w: submission %s is %s", errs.ErrClosed, sub.ID, sub.Status)
		}
		// No row exists until a field has been answered.
		if sub.CreatedAt.IsZero() && len(data) == 0 {
			return fmt.Errorf("%w: no answers recorded for submission", errs.ErrNotFound)
		}
		merged, err := decodeData(sub.Data)
		if err != nil {
			return err
		}
		for k, v := range data {
			merged[k] = v
		}
		sub.Status = status
		if status == domainchatflow.SubmissionCompleted {
			now := time.Now().UTC().Truncate(time.Microsecond)
			sub.CompletedAt = &now
		}
		if err := r.save(tx, sub, merged); err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, repoerr.MapError("finalize submission", err)
	}
	return out, nil
}

func (r *submissionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Submission, error) {
	var sub types.Submission
	if err := dbc.DB(r.db).Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, repoerr.MapError("get submission", err)
	}
	return &sub, nil
}

func (r *submissionRepo) ListByChatflow(dbc dbctx.Context, chatflowID uuid.UUID) ([]*types.Submission, error) {
	var out []*types.Submission
	err := dbc.DB(r.db).
		Where("chatflow_id = ?", chatflowID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, repoerr.MapError("list submissions", err)
	}
	return out, nil
}

// lockOrNew loads the submission for update, or returns an unsaved row when
// the id is nil or unknown. A row owned by another chatflow is not found.
func (r *submissionRepo) lockOrNew(tx *gorm.DB, submissionID *uuid.UUID, chatflowID uuid.UUID) (*types.Submission, error) {
	if submissionID != nil && *submissionID != uuid.Nil {
		var sub types.Submission
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", *submissionID).
			First(&sub).Error
		switch {
		case err == nil:
			if sub.ChatflowID != chatflowID {
				return nil, fmt.Errorf("%w: submission %s", errs.ErrNotFound, sub.ID)
			}
			return &sub, nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}
	}
	id := uuid.New()
	if submissionID != nil && *submissionID != uuid.Nil {
		id = *submissionID
	}
	return &types.Submission{
		ID:         id,
		ChatflowID: chatflowID,
		Status:     domainchatflow.SubmissionInProgress,
	}, nil
}

func (r *submissionRepo) save(tx *gorm.DB, sub *types.Submission, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: encode submission data: %v", errs.ErrInvalidArgument, err)
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	sub.Data = datatypes.JSON(raw)
	sub.UpdatedAt = now
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
		return tx.Create(sub).Error
	}
	return tx.Model(&types.Submission{}).
		Where("id = ?", sub.ID).
		Updates(map[string]interface{}{
			"data":         sub.Data,
			"status":       sub.Status,
			"completed_at": sub.CompletedAt,
			"updated_at":   now,
		}).Error
}

func decodeData(raw datatypes.JSON) (map[string]any, error) {
	out := map[string]any{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode submission data: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
