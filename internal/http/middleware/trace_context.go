package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/chatflow-backend/internal/platform/ctxutil"
)

const (
	HeaderTraceID   = "X-Trace-Id"
	HeaderRequestID = "X-Request-Id"
	HeaderSessionID = "X-Chatflow-Session"
)

// AttachTraceContext stores correlation ids on the request context and echoes
// them back. Trace ids prefer the caller's header, then the active span.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		td := &ctxutil.TraceData{
			TraceID:   firstNonEmpty(c.GetHeader(HeaderTraceID), spanTraceID(c)),
			RequestID: firstNonEmpty(c.GetHeader(HeaderRequestID), uuid.NewString()),
			SessionID: sessionParam(c),
		}
		if td.TraceID == "" {
			td.TraceID = uuid.NewString()
		}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))

		h := c.Writer.Header()
		h.Set(HeaderTraceID, td.TraceID)
		h.Set(HeaderRequestID, td.RequestID)
		if td.SessionID != "" {
			h.Set(HeaderSessionID, td.SessionID)
		}
		c.Next()
	}
}

func spanTraceID(c *gin.Context) string {
	sc := trace.SpanContextFromContext(c.Request.Context())
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// sessionParam reads the :id of /sessions/:id routes.
func sessionParam(c *gin.Context) string {
	if !strings.Contains(c.FullPath(), "/sessions/:id") {
		return ""
	}
	return c.Param("id")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
