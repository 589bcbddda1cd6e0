package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/chatflow-backend/internal/chatflow/generation"
	"github.com/yungbote/chatflow-backend/internal/chatflow/schema"
	"github.com/yungbote/chatflow-backend/internal/data/repos"
	types "github.com/yungbote/chatflow-backend/internal/domain"
	domainchatflow "github.com/yungbote/chatflow-backend/internal/domain/chatflow"
	"github.com/yungbote/chatflow-backend/internal/platform/dbctx"
	"github.com/yungbote/chatflow-backend/internal/platform/errs"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
)

const (
	JobTypeChatflowGenerate = "chatflow_generate"
	EntityTypeChatflow      = "chatflow"
)

// Cache is a byte cache keyed by string. The Redis client implements it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ChatflowPatch holds operator edits. Nil members are left unchanged.
type ChatflowPatch struct {
	Name   *string                `json:"name,omitempty"`
	Schema json.RawMessage        `json:"schema,omitempty"`
	Status *domainchatflow.Status `json:"status,omitempty"`
}

// PublicChatflow is what an anonymous caller holding the share token sees.
type PublicChatflow struct {
	ID     uuid.UUID      `json:"id"`
	Name   string         `json:"name"`
	Fields []schema.Field `json:"fields"`
}

type PublishResult struct {
	Chatflow   *types.Chatflow `json:"chatflow"`
	ShareToken string          `json:"share_token"`
	ShareURL   string          `json:"share_url"`
}

type ChatflowService interface {
	// Create stores the placeholder and queues generation in one transaction.
	// It returns as soon as both rows are committed.
	Create(ctx context.Context, description string) (*types.Chatflow, *types.JobRun, error)
	CreatePlaceholder(ctx context.Context, description string) (*types.Chatflow, error)
	StartGeneration(ctx context.Context, chatflowID uuid.UUID, description string) (*types.JobRun, error)
	GetGenerationStatus(ctx context.Context, chatflowID uuid.UUID) (generation.Status, error)

	Get(ctx context.Context, id uuid.UUID) (*types.Chatflow, error)
	List(ctx context.Context, opts repos.ChatflowListOptions) ([]*types.Chatflow, error)
	Update(ctx context.Context, id uuid.UUID, patch ChatflowPatch) (*types.Chatflow, error)
	Publish(ctx context.Context, id uuid.UUID) (*PublishResult, error)
	GetPublic(ctx context.Context, token string) (*PublicChatflow, error)
	// Schema returns the validated schema of a chatflow. An empty document
	// yields an empty, not ready schema.
	Schema(cf *types.Chatflow) (schema.ChatflowSchema, error)

	MarkGenerationRunning(ctx context.Context, id uuid.UUID, jobID uuid.UUID) error
	ApplyGeneration(ctx context.Context, id uuid.UUID, res generation.Result) error
	MarkGenerationFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type chatflowService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   repos.ChatflowRepo
	jobs   JobService
	tokens *ShareTokenGenerator
	cache  Cache

	shareBaseURL string
}

func NewChatflowService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.ChatflowRepo,
	jobs JobService,
	cache Cache,
	shareBaseURL string,
) ChatflowService {
	s := &chatflowService{
		db:           db,
		log:          baseLog.With("service", "ChatflowService"),
		repo:         repo,
		jobs:         jobs,
		cache:        cache,
		shareBaseURL: strings.TrimRight(strings.TrimSpace(shareBaseURL), "/"),
	}
	s.tokens = NewShareTokenGenerator(nil)
	return s
}

func (s *chatflowService) Create(ctx context.Context, description string) (*types.Chatflow, *types.JobRun, error) {
	var (
		cf  *types.Chatflow
		job *types.JobRun
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		var err error
		cf, err = s.createPlaceholder(dbc, description)
		if err != nil {
			return err
		}
		job, err = s.enqueueGeneration(dbc, cf, description)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if err := s.jobs.Dispatch(dbctx.Context{Ctx: ctx}, job.ID); err != nil {
		s.log.Error("Generation dispatch failed", "chatflow_id", cf.ID, "job_id", job.ID, "error", err)
		_ = s.MarkGenerationFailed(ctx, cf.ID, "dispatch: "+err.Error())
		return cf, job, err
	}
	s.log.Info("Chatflow created", "chatflow_id", cf.ID, "job_id", job.ID)
	return cf, job, nil
}

func (s *chatflowService) CreatePlaceholder(ctx context.Context, description string) (*types.Chatflow, error) {
	return s.createPlaceholder(dbctx.Context{Ctx: ctx}, description)
}

func (s *chatflowService) createPlaceholder(dbc dbctx.Context, description string) (*types.Chatflow, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", errs.ErrInvalidArgument)
	}
	gen := *s.tokens
	gen.Exists = func(ctx context.Context, token string) (bool, error) {
		return s.repo.ExistsByShareToken(dbctx.Context{Ctx: ctx, Tx: dbc.Tx}, token)
	}
	token, err := gen.Generate(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	cf := &types.Chatflow{
		ID:               uuid.New(),
		Name:             generation.GeneratingName,
		Description:      description,
		Schema:           domainchatflow.EmptySchema,
		Status:           domainchatflow.StatusDraft,
		ShareToken:       token,
		GenerationStatus: domainchatflow.GenerationPending,
	}
	if err := s.repo.Create(dbc, cf); err != nil {
		return nil, err
	}
	return cf, nil
}

func (s *chatflowService) StartGeneration(ctx context.Context, chatflowID uuid.UUID, description string) (*types.JobRun, error) {
	var (
		cf  *types.Chatflow
		job *types.JobRun
	)
	// The row lock serializes concurrent starts so only one sees no runnable job.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		var err error
		cf, err = s.repo.GetForUpdate(dbc, chatflowID)
		if err != nil {
			return err
		}
		if cf.GenerationStatus == domainchatflow.GenerationRunning {
			return fmt.Errorf("%w: generation already running", errs.ErrConflict)
		}
		busy, err := s.jobs.HasRunnableForEntity(dbc, EntityTypeChatflow, cf.ID, JobTypeChatflowGenerate)
		if err != nil {
			return err
		}
		if busy {
			return fmt.Errorf("%w: generation already queued", errs.ErrConflict)
		}
		if strings.TrimSpace(description) == "" {
			description = cf.Description
		}
		job, err = s.enqueueGeneration(dbc, cf, description)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Dispatch(dbctx.Context{Ctx: ctx}, job.ID); err != nil {
		_ = s.MarkGenerationFailed(ctx, cf.ID, "dispatch: "+err.Error())
		return job, err
	}
	s.log.Info("Chatflow generation restarted", "chatflow_id", cf.ID, "job_id", job.ID)
	return job, nil
}

func (s *chatflowService) enqueueGeneration(dbc dbctx.Context, cf *types.Chatflow, description string) (*types.JobRun, error) {
	job, err := s.jobs.Enqueue(dbc, JobTypeChatflowGenerate, EntityTypeChatflow, &cf.ID, map[string]any{
		"chatflow_id": cf.ID.String(),
		"description": description,
	})
	if err != nil {
		return job, err
	}
	if err := s.repo.UpdateFields(dbc, cf.ID, map[string]interface{}{
		"generation_job_id": job.ID,
		"generation_status": domainchatflow.GenerationPending,
		"generation_error":  "",
	}); err != nil {
		return job, err
	}
	cf.GenerationJobID = &job.ID
	cf.GenerationStatus = domainchatflow.GenerationPending
	cf.GenerationError = ""
	return job, nil
}

func (s *chatflowService) GetGenerationStatus(ctx context.Context, chatflowID uuid.UUID) (generation.Status, error) {
	cf, err := s.repo.GetByID(dbctx.Context{Ctx: ctx}, chatflowID)
	if err != nil {
		return generation.Status{}, err
	}
	st := generation.Status{GenerationStatus: string(cf.GenerationStatus)}
	job, err := s.jobs.GetLatestForEntity(dbctx.Context{Ctx: ctx}, EntityTypeChatflow, cf.ID, JobTypeChatflowGenerate)
	if err != nil {
		return generation.Status{}, err
	}
	if job != nil {
		st.JobID = job.ID.String()
		st.Stage = job.Stage
		st.Progress = job.Progress
	}
	switch cf.GenerationStatus {
	case domainchatflow.GenerationFailed:
		st.State = generation.StateFailed
		st.Error = cf.GenerationError
		return st, nil
	case domainchatflow.GenerationSucceeded:
		sc, err := s.Schema(cf)
		if err != nil {
			return generation.Status{}, err
		}
		st.State = generation.StateCompleted
		st.Result = &generation.StatusResult{Name: cf.Name, Fields: sc.Fields}
		return st, nil
	default:
		st.State = generation.StateRunning
		return st, nil
	}
}

func (s *chatflowService) Get(ctx context.Context, id uuid.UUID) (*types.Chatflow, error) {
	return s.repo.GetByID(dbctx.Context{Ctx: ctx}, id)
}

func (s *chatflowService) List(ctx context.Context, opts repos.ChatflowListOptions) ([]*types.Chatflow, error) {
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", errs.ErrInvalidArgument, opts.Status)
	}
	if opts.Limit <= 0 || opts.Limit > 200 {
		opts.Limit = 50
	}
	return s.repo.List(dbctx.Context{Ctx: ctx}, opts)
}

func (s *chatflowService) Schema(cf *types.Chatflow) (schema.ChatflowSchema, error) {
	if cf == nil || schema.IsEmptyDocument(cf.Schema) {
		return schema.ChatflowSchema{Fields: []schema.Field{}}, nil
	}
	return schema.ValidateJSON(cf.Schema)
}

func (s *chatflowService) Update(ctx context.Context, id uuid.UUID, patch ChatflowPatch) (*types.Chatflow, error) {
	cf, err := s.repo.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", errs.ErrInvalidArgument)
		}
		updates["name"] = name
	}

	current, err := s.Schema(cf)
	if err != nil {
		return nil, err
	}
	if len(patch.Schema) > 0 {
		validated, err := schema.ValidateJSON(patch.Schema)
		if err != nil {
			return nil, err
		}
		raw, err := validated.JSON()
		if err != nil {
			return nil, err
		}
		updates["schema"] = datatypes.JSON(raw)
		current = validated
	}

	nextStatus := cf.Status
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", errs.ErrInvalidArgument, *patch.Status)
		}
		nextStatus = *patch.Status
		if nextStatus != cf.Status {
			updates["status"] = nextStatus
			if nextStatus == domainchatflow.StatusPublished {
				updates["published_at"] = time.Now().UTC()
			}
		}
	}
	// A published chatflow always carries a usable schema.
	if nextStatus == domainchatflow.StatusPublished && !current.IsReady() {
		return nil, fmt.Errorf("%w: chatflow has no fields to publish", errs.ErrNotReady)
	}

	if len(updates) == 0 {
		return cf, nil
	}
	if err := s.repo.UpdateFields(dbctx.Context{Ctx: ctx}, id, updates); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cf.ShareToken)
	return s.repo.GetByID(dbctx.Context{Ctx: ctx}, id)
}

func (s *chatflowService) Publish(ctx context.Context, id uuid.UUID) (*PublishResult, error) {
	cf, err := s.repo.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, err
	}
	sc, err := s.Schema(cf)
	if err != nil {
		return nil, err
	}
	if !sc.IsReady() {
		return nil, fmt.Errorf("%w: chatflow has no fields to publish", errs.ErrNotReady)
	}
	if cf.Status != domainchatflow.StatusPublished {
		now := time.Now().UTC().Truncate(time.Microsecond)
		if err := s.repo.UpdateFields(dbctx.Context{Ctx: ctx}, id, map[string]interface{}{
			"status":       domainchatflow.StatusPublished,
			"published_at": now,
		}); err != nil {
			return nil, err
		}
		s.invalidate(ctx, cf.ShareToken)
		cf.Status = domainchatflow.StatusPublished
		cf.PublishedAt = &now
		s.log.Info("Chatflow published", "chatflow_id", cf.ID)
	}
	return &PublishResult{
		Chatflow:   cf,
		ShareToken: cf.ShareToken,
		ShareURL:   s.ShareURL(cf.ShareToken),
	}, nil
}

func (s *chatflowService) ShareURL(token string) string {
	if s.shareBaseURL == "" {
		return "/c/" + token
	}
	return s.shareBaseURL + "/c/" + token
}

func (s *chatflowService) GetPublic(ctx context.Context, token string) (*PublicChatflow, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errs.ErrNotFound
	}
	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, publicCacheKey(token))
		if err != nil {
			s.log.Warn("Public chatflow cache read failed", "share_token", token, "error", err)
		} else if ok {
			var pc PublicChatflow
			if err := json.Unmarshal(raw, &pc); err == nil {
				return &pc, nil
			}
		}
	}

	cf, err := s.repo.GetByShareToken(dbctx.Context{Ctx: ctx}, token)
	if err != nil {
		return nil, err
	}
	// Drafts and archived chatflows are indistinguishable from unknown tokens.
	if cf.Status != domainchatflow.StatusPublished {
		return nil, fmt.Errorf("get public chatflow: %w", errs.ErrNotFound)
	}
	sc, err := s.Schema(cf)
	if err != nil {
		return nil, err
	}
	pc := &PublicChatflow{ID: cf.ID, Name: cf.Name, Fields: sc.Fields}

	if s.cache != nil {
		if raw, err := json.Marshal(pc); err == nil {
			if err := s.cache.Set(ctx, publicCacheKey(token), raw); err != nil {
				s.log.Warn("Public chatflow cache write failed", "share_token", token, "error", err)
			}
		}
	}
	return pc, nil
}

func (s *chatflowService) MarkGenerationRunning(ctx context.Context, id uuid.UUID, jobID uuid.UUID) error {
	updates := map[string]interface{}{
		"generation_status": domainchatflow.GenerationRunning,
		"generation_error":  "",
	}
	if jobID != uuid.Nil {
		updates["generation_job_id"] = jobID
	}
	return s.repo.UpdateFields(dbctx.Context{Ctx: ctx}, id, updates)
}

// ApplyGeneration writes schema, name and status in a single update so a
// poller never sees a half-applied result.
func (s *chatflowService) ApplyGeneration(ctx context.Context, id uuid.UUID, res generation.Result) error {
	validated, err := schema.Validate(res.Schema)
	if err != nil {
		return err
	}
	raw, err := validated.JSON()
	if err != nil {
		return err
	}
	name := strings.TrimSpace(res.Name)
	if name == "" {
		name = generation.UntitledName
	}
	cf, err := s.repo.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateFields(dbctx.Context{Ctx: ctx}, id, map[string]interface{}{
		"schema":            datatypes.JSON(raw),
		"name":              name,
		"generation_status": domainchatflow.GenerationSucceeded,
		"generation_error":  "",
	}); err != nil {
		return err
	}
	s.invalidate(ctx, cf.ShareToken)
	return nil
}

func (s *chatflowService) MarkGenerationFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return s.repo.UpdateFields(dbctx.Context{Ctx: ctx}, id, map[string]interface{}{
		"generation_status": domainchatflow.GenerationFailed,
		"generation_error":  reason,
	})
}

func (s *chatflowService) invalidate(ctx context.Context, token string) {
	if s.cache == nil || token == "" {
		return
	}
	if err := s.cache.Delete(ctx, publicCacheKey(token)); err != nil {
		s.log.Warn("Public chatflow cache invalidation failed", "share_token", token, "error", err)
	}
}

func publicCacheKey(token string) string { return "chatflow:public:" + token }
