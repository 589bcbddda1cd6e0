package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chatflow-backend/internal/data/repos"
	domainchatflow "github.com/yungbote/chatflow-backend/internal/domain/chatflow"
	"github.com/yungbote/chatflow-backend/internal/http/response"
	"github.com/yungbote/chatflow-backend/internal/services"
)

type ChatflowHandler struct {
	chatflows   services.ChatflowService
	submissions services.SubmissionService
}

func NewChatflowHandler(chatflows services.ChatflowService, submissions services.SubmissionService) *ChatflowHandler {
	return &ChatflowHandler{chatflows: chatflows, submissions: submissions}
}

type createChatflowRequest struct {
	Description string `json:"description"`
}

// POST /api/chatflows
func (h *ChatflowHandler) Create(c *gin.Context) {
	var req createChatflowRequest
	if !bindJSON(c, &req) {
		return
	}
	cf, job, err := h.chatflows.Create(c.Request.Context(), req.Description)
	if err != nil {
		response.RespondServiceError(c, err, nil)
		return
	}
	response.RespondAccepted(c, gin.H{"chatflow": cf, "job": job})
}

// GET /api/chatflows
func (h *ChatflowHandler) List(c *gin.Context) {
	opts := repos.ChatflowListOptions{
		Status: domainchatflow.Status(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		Limit:  queryInt(c, "limit", 0),
		Offset: queryInt(c, "offset", 0),
	}
	list, err := h.chatflows.List(c.Request.Context(), opts)
	if err != nil {
		response.RespondServiceError(c, err, nil)
		return
	}
	response.RespondOK(c, gin.H{"chatflows": list})
}

// GET /api/chatflows/:id
func (h *ChatflowHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "invalid_chatflow_id")
	if !ok {
		return
	}
	cf, err := h.chatflows.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err, nil)
		return
	}
	response.RespondOK(c, gin.H{"chatflow": cf})
}

// PATCH /api/chatflows/:id
func (h *ChatflowHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "invalid_chatflow_id")
	if !ok {
		return
	}
	var patch services.ChatflowPatch
	if !bindJSON(c, &patch) {
		return
	}
	cf, err := h.chatflows.Update(c.Request.Context(), id, patch)
	if err != nil {
		response.RespondServiceError(c, err, nil)
		return
	}
	response.RespondOK(c, gin.H{"chatflow": cf})
}

// GET /api/chatflows/:id/generation
func (h *ChatflowHandler) GenerationStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "invalid_chatflow_id")
	if !ok {
		return
	}
	st, err := h.chatflows.GetGenerationStatus(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err, nil)
		return
	}
	response.RespondOK(c, st)
}

// POST /api/chatflows/:id/publish
func (h *ChatflowHandler) Publish(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "invalid_chatflow_id")
	if !ok {
		return
	}
	res, err := h.chatflows.Publish(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err, nil)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/chatflows/:id/submissions
func (h *ChatflowHandler) ListSubmissions(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "invalid_chatflow_id")
	if !ok {
		return
	}
	subs, err := h.submissions.List(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": subs})
}
