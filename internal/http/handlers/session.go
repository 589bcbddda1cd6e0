package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/chatflow-backend/internal/chatflow/engine"
	"github.com/yungbote/chatflow-backend/internal/http/response"
	"github.com/yungbote/chatflow-backend/internal/services"
)

type SessionHandler struct {
	sessions services.SessionService
	uploads  services.UploadService
}

func NewSessionHandler(sessions services.SessionService, uploads services.UploadService) *SessionHandler {
	return &SessionHandler{sessions: sessions, uploads: uploads}
}

// sessionView is the client-facing projection of a session. Fields and raw
// data stay server side.
type sessionView struct {
	ID           uuid.UUID          `json:"id"`
	ChatflowID   uuid.UUID          `json:"chatflow_id"`
	ChatflowName string             `json:"chatflow_name"`
	State        engine.State       `json:"state"`
	SubmissionID *uuid.UUID         `json:"submission_id,omitempty"`
	Prompt       *engine.Prompt     `json:"prompt,omitempty"`
	LastError    string             `json:"last_error,omitempty"`
	Transcript   []engine.Utterance `json:"transcript"`
}

func viewOf(s *engine.Session) *sessionView {
	if s == nil {
		return nil
	}
	p, _ := s.CurrentPrompt()
	return &sessionView{
		ID:           s.ID,
		ChatflowID:   s.ChatflowID,
		ChatflowName: s.ChatflowName,
		State:        s.State,
		SubmissionID: s.SubmissionID,
		Prompt:       p,
		LastError:    s.LastError,
		Transcript:   s.Transcript,
	}
}

// POST /api/public/chatflows/:token/sessions
func (h *SessionHandler) Start(c *gin.Context) {
	sess, out, err := h.sessions.Start(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.RespondServiceError(c, err, nil)
		return
	}
	response.RespondCreated(c, gin.H{"session": viewOf(sess), "utterances": out})
}

// GET /api/public/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	sess, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err, nil)
		return
	}
	response.RespondOK(c, gin.H{"session": viewOf(sess)})
}

type answerRequest struct {
	Value any `json:"value"`
}

// POST /api/public/sessions/:id/answers
func (h *SessionHandler) Answer(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	var req answerRequest
	if !bindJSON(c, &req) {
		return
	}
	sess, turn, err := h.sessions.Answer(c.Request.Context(), id, req.Value)
	h.respondTurn(c, sess, turn, err)
}

// POST /api/public/sessions/:id/retry
func (h *SessionHandler) Retry(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	sess, turn, err := h.sessions.Retry(c.Request.Context(), id)
	h.respondTurn(c, sess, turn, err)
}

// POST /api/public/sessions/:id/abandon
func (h *SessionHandler) Abandon(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	sess, turn, err := h.sessions.Abandon(c.Request.Context(), id)
	h.respondTurn(c, sess, turn, err)
}

// POST /api/public/sessions/:id/files
func (h *SessionHandler) Upload(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxUploadBytes+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	if fh.Size > services.MaxUploadBytes {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large", fmt.Errorf("file exceeds %d bytes", services.MaxUploadBytes))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()

	key, err := h.uploads.Upload(c.Request.Context(), id, c.PostForm("field"), fh.Filename, f)
	if err != nil {
		response.RespondServiceError(c, err, nil)
		return
	}
	response.RespondCreated(c, gin.H{"key": key})
}

// respondTurn renders an engine step. Failed steps still carry the turn so
// the client can show the re-prompt or the retry offer.
func (h *SessionHandler) respondTurn(c *gin.Context, sess *engine.Session, turn engine.Turn, err error) {
	if err != nil {
		var details any
		if sess != nil {
			details = gin.H{"session": viewOf(sess), "turn": turn}
		}
		response.RespondServiceError(c, err, details)
		return
	}
	response.RespondOK(c, gin.H{"session": viewOf(sess), "turn": turn})
}
