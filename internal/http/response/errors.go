package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chatflow-backend/internal/chatflow/fields"
	"github.com/yungbote/chatflow-backend/internal/chatflow/schema"
	"github.com/yungbote/chatflow-backend/internal/platform/apierr"
	"github.com/yungbote/chatflow-backend/internal/platform/errs"
)

// Classify maps a service error onto an HTTP status and a stable code.
// Schema validation errors carry their issue list as details.
func Classify(err error) *apierr.Error {
	if err == nil {
		return nil
	}
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae
	}
	var ve *schema.ValidationError
	switch {
	case errors.As(err, &ve):
		return apierr.WithDetails(http.StatusUnprocessableEntity, "invalid_schema", err, ve.Issues)
	case errors.Is(err, fields.ErrInvalidAnswer):
		return apierr.New(http.StatusUnprocessableEntity, "invalid_answer", err)
	case errors.Is(err, fields.ErrUnknownFieldType):
		return apierr.New(http.StatusUnprocessableEntity, "unknown_field_type", err)
	case errors.Is(err, errs.ErrNotFound):
		return apierr.New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, errs.ErrInvalidArgument):
		return apierr.New(http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, errs.ErrNotReady):
		return apierr.New(http.StatusConflict, "not_ready", err)
	case errors.Is(err, errs.ErrClosed):
		return apierr.New(http.StatusConflict, "closed", err)
	case errors.Is(err, errs.ErrConflict):
		return apierr.New(http.StatusConflict, "conflict", err)
	case errors.Is(err, errs.ErrPersistence):
		return apierr.New(http.StatusServiceUnavailable, "persistence_error", err)
	}
	return apierr.From(err)
}

// RespondServiceError renders err using Classify. extra, when non-nil,
// replaces the classified details.
func RespondServiceError(c *gin.Context, err error, extra any) {
	ae := Classify(err)
	details := ae.Details
	if extra != nil {
		details = extra
	}
	if ae.Status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}
	RespondErrorWithDetails(c, ae.Status, ae.Code, ae, details)
}
