package app

import (
	"context"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/chatflow-backend/internal/http"
	httpH "github.com/yungbote/chatflow-backend/internal/http/handlers"
	"github.com/yungbote/chatflow-backend/internal/observability"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Chatflow *httpH.ChatflowHandler
	Public   *httpH.PublicHandler
	Session  *httpH.SessionHandler
	Job      *httpH.JobHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services, clients Clients) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Pinger{
		"db": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if clients.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return clients.Redis.Ping(ctx).Err() }
	}

	var events httpH.JobEventSource
	if services.JobEvents != nil {
		events = services.JobEvents
	}
	return Handlers{
		Health:   httpH.NewHealthHandler(checks),
		Chatflow: httpH.NewChatflowHandler(services.Chatflow, services.Submission),
		Public:   httpH.NewPublicHandler(services.Chatflow, services.Session),
		Session:  httpH.NewSessionHandler(services.Session, services.Upload),
		Job:      httpH.NewJobHandler(log, services.JobService, events),
	}
}

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		CORSOrigins:     cfg.CORSOrigins,
		ServiceName:     cfg.ServiceName,
		HealthHandler:   handlers.Health,
		ChatflowHandler: handlers.Chatflow,
		PublicHandler:   handlers.Public,
		SessionHandler:  handlers.Session,
		JobHandler:      handlers.Job,
	})
}
