package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	domainchatflow "github.com/yungbote/chatflow-backend/internal/domain/chatflow"
	"github.com/yungbote/chatflow-backend/internal/http/response"
	"github.com/yungbote/chatflow-backend/internal/services"
)

// PublicHandler serves anonymous callers holding a share token.
type PublicHandler struct {
	chatflows services.ChatflowService
	sessions  services.SessionService
}

func NewPublicHandler(chatflows services.ChatflowService, sessions services.SessionService) *PublicHandler {
	return &PublicHandler{chatflows: chatflows, sessions: sessions}
}

// GET /api/public/chatflows/:token
func (h *PublicHandler) GetChatflow(c *gin.Context) {
	pc, err := h.chatflows.GetPublic(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.RespondServiceError(c, err, nil)
		return
	}
	response.RespondOK(c, gin.H{"chatflow": pc})
}

type submitFieldRequest struct {
	SubmissionID string `json:"submission_id"`
	FieldName    string `json:"field_name"`
	FieldValue   any    `json:"field_value"`
}

// PUT /api/public/chatflows/:token/submissions/fields
func (h *PublicHandler) SubmitField(c *gin.Context) {
	var req submitFieldRequest
	if !bindJSON(c, &req) {
		return
	}
	subID, err := optionalUUID(req.SubmissionID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_submission_id", err)
		return
	}
	id, err := h.sessions.SubmitField(c.Request.Context(), c.Param("token"), subID, req.FieldName, req.FieldValue)
	if err != nil {
		response.RespondServiceError(c, err, nil)
		return
	}
	response.RespondOK(c, gin.H{"submission_id": id})
}

type submitFinalRequest struct {
	SubmissionID string         `json:"submission_id"`
	Data         map[string]any `json:"data"`
	Status       string         `json:"status"`
}

// POST /api/public/chatflows/:token/submissions/finalize
func (h *PublicHandler) SubmitFinal(c *gin.Context) {
	var req submitFinalRequest
	if !bindJSON(c, &req) {
		return
	}
	subID, err := optionalUUID(req.SubmissionID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_submission_id", err)
		return
	}
	status := domainchatflow.SubmissionStatus(req.Status)
	if status == "" {
		status = domainchatflow.SubmissionCompleted
	}
	if !status.Valid() {
		response.RespondError(c, http.StatusBadRequest, "invalid_status", fmt.Errorf("unknown submission status %q", req.Status))
		return
	}
	if err := h.sessions.SubmitFinal(c.Request.Context(), c.Param("token"), subID, req.Data, status); err != nil {
		response.RespondServiceError(c, err, nil)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
