package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/chatflow-backend/internal/chatflow/generation"
	"github.com/yungbote/chatflow-backend/internal/clients/redis"
	"github.com/yungbote/chatflow-backend/internal/jobs/pipeline/chatflow_generate"
	"github.com/yungbote/chatflow-backend/internal/jobs/runtime"
	"github.com/yungbote/chatflow-backend/internal/jobs/worker"
	"github.com/yungbote/chatflow-backend/internal/observability"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
	"github.com/yungbote/chatflow-backend/internal/services"
	"github.com/yungbote/chatflow-backend/internal/temporalx/temporalworker"
)

type Services struct {
	JobNotifier services.JobNotifier
	JobService  services.JobService
	Chatflow    services.ChatflowService
	Submission  services.SubmissionService
	Session     services.SessionService
	Upload      services.UploadService

	JobRegistry    *runtime.Registry
	JobWorker      *worker.Worker
	TemporalWorker *temporalworker.Runner
	JobEvents      *redis.JobEventBus
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	var (
		bus      *redis.JobEventBus
		cache    services.Cache
		sessions services.SessionStore
	)
	if clients.Redis != nil {
		bus = redis.NewJobEventBus(log, clients.Redis, cfg.Redis.JobEventsChannel)
		cache = redis.NewCache(clients.Redis, cfg.Redis.CacheTTL)
		sessions = redis.NewSessionStore(clients.Redis, cfg.Redis.SessionTTL)
	} else {
		sessions = services.NewMemorySessionStore(cfg.Redis.SessionTTL)
	}

	var publisher services.JobEventPublisher
	if bus != nil {
		publisher = bus
	}
	jobNotifier := services.NewJobNotifier(log, repos.JobRunEvent, publisher)
	jobService := services.NewJobService(
		db,
		log,
		repos.JobRun,
		repos.JobRunEvent,
		jobNotifier,
		clients.Temporal,
		cfg.Temporal.TaskQueue,
		cfg.Worker.MaxAttempts,
	)

	chatflowService := services.NewChatflowService(db, log, repos.Chatflow, jobService, cache, cfg.ShareBaseURL)
	submissionService := services.NewSubmissionService(log, repos.Submission, repos.Chatflow, metrics)
	sessionService := services.NewSessionService(log, chatflowService, submissionService, sessions)
	uploadService := services.NewUploadService(log, sessions, clients.Objects)

	var llm generation.LLM
	if clients.OpenAI != nil {
		llm = clients.OpenAI
	}
	orch := generation.NewOrchestrator(llm, log, metrics)

	jobRegistry := runtime.NewRegistry()
	if err := jobRegistry.Register(chatflow_generate.New(log, chatflowService, orch, metrics)); err != nil {
		return Services{}, err
	}

	var (
		jobWorker      *worker.Worker
		temporalRunner *temporalworker.Runner
	)
	if cfg.RunWorker {
		jobWorker = worker.NewWorker(db, log, repos.JobRun, jobRegistry, jobNotifier, cfg.Worker)
		if clients.Temporal != nil {
			w, err := temporalworker.NewRunner(log, clients.Temporal, repos.JobRun, jobWorker)
			if err != nil {
				return Services{}, fmt.Errorf("init temporal worker: %w", err)
			}
			temporalRunner = w
		}
	}

	return Services{
		JobNotifier:    jobNotifier,
		JobService:     jobService,
		Chatflow:       chatflowService,
		Submission:     submissionService,
		Session:        sessionService,
		Upload:         uploadService,
		JobRegistry:    jobRegistry,
		JobWorker:      jobWorker,
		TemporalWorker: temporalRunner,
		JobEvents:      bus,
	}, nil
}
