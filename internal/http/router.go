package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/chatflow-backend/internal/http/handlers"
	httpMW "github.com/yungbote/chatflow-backend/internal/http/middleware"
	"github.com/yungbote/chatflow-backend/internal/observability"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins []string
	ServiceName string

	ChatflowHandler *httpH.ChatflowHandler
	PublicHandler   *httpH.PublicHandler
	SessionHandler  *httpH.SessionHandler
	JobHandler      *httpH.JobHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "chatflow"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")

	// Chatflows (operator)
	if cfg.ChatflowHandler != nil {
		api.POST("/chatflows", cfg.ChatflowHandler.Create)
		api.GET("/chatflows", cfg.ChatflowHandler.List)
		api.GET("/chatflows/:id", cfg.ChatflowHandler.Get)
		api.PATCH("/chatflows/:id", cfg.ChatflowHandler.Update)
		api.GET("/chatflows/:id/generation", cfg.ChatflowHandler.GenerationStatus)
		api.POST("/chatflows/:id/publish", cfg.ChatflowHandler.Publish)
		api.GET("/chatflows/:id/submissions", cfg.ChatflowHandler.ListSubmissions)
	}

	// Job
	if cfg.JobHandler != nil {
		api.GET("/jobs/:id", cfg.JobHandler.GetJob)
		api.GET("/jobs/:id/events", cfg.JobHandler.StreamEvents)
	}

	public := api.Group("/public")
	{
		if cfg.PublicHandler != nil {
			public.GET("/chatflows/:token", cfg.PublicHandler.GetChatflow)
			public.PUT("/chatflows/:token/submissions/fields", cfg.PublicHandler.SubmitField)
			public.POST("/chatflows/:token/submissions/finalize", cfg.PublicHandler.SubmitFinal)
		}

		// Conversational sessions
		if cfg.SessionHandler != nil {
			public.POST("/chatflows/:token/sessions", cfg.SessionHandler.Start)
			public.GET("/sessions/:id", cfg.SessionHandler.Get)
			public.POST("/sessions/:id/answers", cfg.SessionHandler.Answer)
			public.POST("/sessions/:id/retry", cfg.SessionHandler.Retry)
			public.POST("/sessions/:id/abandon", cfg.SessionHandler.Abandon)
			public.POST("/sessions/:id/files", cfg.SessionHandler.Upload)
		}
	}

	return r
}
