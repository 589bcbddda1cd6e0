package chatflow_generate

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/chatflow-backend/internal/chatflow/generation"
	types "github.com/yungbote/chatflow-backend/internal/domain"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
	"github.com/yungbote/chatflow-backend/internal/services"
)

// Chatflows is the slice of services.ChatflowService the handler writes through.
type Chatflows interface {
	Get(ctx context.Context, id uuid.UUID) (*types.Chatflow, error)
	MarkGenerationRunning(ctx context.Context, id uuid.UUID, jobID uuid.UUID) error
	ApplyGeneration(ctx context.Context, id uuid.UUID, res generation.Result) error
	MarkGenerationFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type Metrics interface {
	ObserveGeneration(outcome string, d time.Duration)
}

type Pipeline struct {
	log       *logger.Logger
	chatflows Chatflows
	orch      *generation.Orchestrator
	metrics   Metrics
}

func New(baseLog *logger.Logger, chatflows Chatflows, orch *generation.Orchestrator, metrics Metrics) *Pipeline {
	return &Pipeline{
		log:       baseLog.With("job", services.JobTypeChatflowGenerate),
		chatflows: chatflows,
		orch:      orch,
		metrics:   metrics,
	}
}

func (p *Pipeline) Type() string { return services.JobTypeChatflowGenerate }
