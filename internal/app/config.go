package app

import (
	"strings"

	"github.com/yungbote/chatflow-backend/internal/clients/openai"
	"github.com/yungbote/chatflow-backend/internal/clients/redis"
	"github.com/yungbote/chatflow-backend/internal/data/db"
	"github.com/yungbote/chatflow-backend/internal/jobs/worker"
	"github.com/yungbote/chatflow-backend/internal/platform/envutil"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
	"github.com/yungbote/chatflow-backend/internal/platform/objstore"
	"github.com/yungbote/chatflow-backend/internal/temporalx"
)

type Config struct {
	Port         string
	ServiceName  string
	Environment  string
	Version      string
	ShareBaseURL string
	CORSOrigins  []string

	// RunServer serves HTTP; RunWorker executes jobs (in-process pool, or
	// the Temporal worker when Temporal is configured).
	RunServer bool
	RunWorker bool

	DB       db.Config
	Redis    redis.Config
	OpenAI   openai.Config
	Temporal temporalx.Config
	Worker   worker.Config
	Objects  objstore.Config
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:         envutil.String("PORT", "8080"),
		ServiceName:  envutil.String("OTEL_SERVICE_NAME", "chatflow"),
		Environment:  envutil.String("ENVIRONMENT", "development"),
		Version:      envutil.String("SERVICE_VERSION", "dev"),
		ShareBaseURL: envutil.String("SHARE_BASE_URL", ""),
		CORSOrigins:  splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),
		RunServer:    envutil.Bool("RUN_SERVER", true),
		RunWorker:    envutil.Bool("RUN_WORKER", true),
		DB:           db.ConfigFromEnv(),
		Redis:        redis.ConfigFromEnv(),
		OpenAI:       openai.ConfigFromEnv(),
		Temporal:     temporalx.LoadConfig(),
		Worker:       worker.ConfigFromEnv(),
		Objects:      objstore.ConfigFromEnv(),
	}
	log.Info("Config loaded",
		"port", cfg.Port,
		"db_driver", cfg.DB.Driver,
		"run_server", cfg.RunServer,
		"run_worker", cfg.RunWorker,
		"redis", cfg.Redis.Enabled(),
		"openai", cfg.OpenAI.APIKey != "",
		"temporal", cfg.Temporal.Address != "",
		"object_storage_mode", cfg.Objects.Mode,
	)
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
