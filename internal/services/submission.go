package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/chatflow-backend/internal/data/repos"
	types "github.com/yungbote/chatflow-backend/internal/domain"
	domainchatflow "github.com/yungbote/chatflow-backend/internal/domain/chatflow"
	"github.com/yungbote/chatflow-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatflow-backend/internal/platform/dbctx"
	"github.com/yungbote/chatflow-backend/internal/platform/errs"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
)

type SubmissionMetrics interface {
	ObserveAnswer(outcome string)
	ObserveFinalize(status string)
}

type SubmissionService interface {
	// UpsertField merges one answer and returns the submission id, creating
	// the submission on the first call.
	UpsertField(ctx context.Context, submissionID *uuid.UUID, chatflowID uuid.UUID, fieldName string, value any) (uuid.UUID, error)
	// Finalize is idempotent: repeating it for a finished submission changes
	// nothing.
	Finalize(ctx context.Context, submissionID *uuid.UUID, chatflowID uuid.UUID, data map[string]any, status types.SubmissionStatus) error
	Get(ctx context.Context, id uuid.UUID) (*types.Submission, error)
	List(ctx context.Context, chatflowID uuid.UUID) ([]*types.Submission, error)
}

type submissionService struct {
	log       *logger.Logger
	repo      repos.SubmissionRepo
	chatflows repos.ChatflowRepo
	metrics   SubmissionMetrics
}

func NewSubmissionService(baseLog *logger.Logger, repo repos.SubmissionRepo, chatflows repos.ChatflowRepo, metrics SubmissionMetrics) SubmissionService {
	return &submissionService{
		log:       baseLog.With("service", "SubmissionService"),
		repo:      repo,
		chatflows: chatflows,
		metrics:   metrics,
	}
}

func (s *submissionService) UpsertField(ctx context.Context, submissionID *uuid.UUID, chatflowID uuid.UUID, fieldName string, value any) (uuid.UUID, error) {
	fieldName = strings.TrimSpace(fieldName)
	if fieldName == "" {
		return uuid.Nil, fmt.Errorf("%w: field name is required", errs.ErrInvalidArgument)
	}
	sub, err := s.upsertField(ctx, submissionID, chatflowID, fieldName, value)
	if err != nil {
		s.observeAnswer("error")
		s.log.Warn("Submission upsert failed", append([]interface{}{
			"chatflow_id", chatflowID,
			"field", fieldName,
			"error", err,
		}, ctxutil.LogFields(ctx)...)...)
		return uuid.Nil, err
	}
	s.observeAnswer("stored")
	return sub.ID, nil
}

// upsertField only opens a new submission while the chatflow is published.
// Rows that already exist keep accepting answers until they are finalized.
func (s *submissionService) upsertField(ctx context.Context, submissionID *uuid.UUID, chatflowID uuid.UUID, fieldName string, value any) (*types.Submission, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if submissionID == nil {
		cf, err := s.chatflows.GetByID(dbc, chatflowID)
		if err != nil {
			return nil, err
		}
		if cf.Status != domainchatflow.StatusPublished {
			return nil, fmt.Errorf("%w: chatflow is not accepting responses", errs.ErrNotFound)
		}
	}
	return s.repo.UpsertField(dbc, submissionID, chatflowID, fieldName, value)
}

func (s *submissionService) Finalize(ctx context.Context, submissionID *uuid.UUID, chatflowID uuid.UUID, data map[string]any, status types.SubmissionStatus) error {
	sub, err := s.repo.Finalize(dbctx.Context{Ctx: ctx}, submissionID, chatflowID, data, status)
	if err != nil {
		s.log.Warn("Submission finalize failed", append([]interface{}{
			"chatflow_id", chatflowID,
			"status", status,
			"error", err,
		}, ctxutil.LogFields(ctx)...)...)
		return err
	}
	if s.metrics != nil {
		s.metrics.ObserveFinalize(string(sub.Status))
	}
	s.log.Info("Submission finalized", "chatflow_id", chatflowID, "submission_id", sub.ID, "status", sub.Status)
	return nil
}

func (s *submissionService) Get(ctx context.Context, id uuid.UUID) (*types.Submission, error) {
	return s.repo.GetByID(dbctx.Context{Ctx: ctx}, id)
}

func (s *submissionService) List(ctx context.Context, chatflowID uuid.UUID) ([]*types.Submission, error) {
	if _, err := s.chatflows.GetByID(dbctx.Context{Ctx: ctx}, chatflowID); err != nil {
		return nil, err
	}
	return s.repo.ListByChatflow(dbctx.Context{Ctx: ctx}, chatflowID)
}

func (s *submissionService) observeAnswer(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveAnswer(outcome)
	}
}
