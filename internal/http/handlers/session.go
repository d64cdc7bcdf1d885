package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/tutorloop-backend/internal/exercise"
	"github.com/yungbote/tutorloop-backend/internal/http/response"
	"github.com/yungbote/tutorloop-backend/internal/platform/ctxutil"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/services"
)

type SessionHandler struct {
	sessions services.SessionService
}

func NewSessionHandler(sessions services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type startSessionRequest struct {
	StudentID uuid.UUID `json:"student_id" binding:"required"`
	UnitID    uuid.UUID `json:"unit_id" binding:"required"`
}

type answerRequest struct {
	Action exercise.Action `json:"action" binding:"required"`
	Data   json.RawMessage `json:"data"`
}

// POST /api/sessions
func (h *SessionHandler) StartSession(c *gin.Context) {
	teacherID, ok := teacherFromContext(c)
	if !ok {
		return
	}
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	snap, err := h.sessions.StartSession(dbctx.Context{Ctx: c.Request.Context()}, teacherID, req.StudentID, req.UnitID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"state": snap})
}

// GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	teacherID, ok := teacherFromContext(c)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	snap, err := h.sessions.GetFullState(dbctx.Context{Ctx: c.Request.Context()}, sessionID, teacherID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"state": snap})
}

// POST /api/sessions/:id/answer
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	teacherID, ok := teacherFromContext(c)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.sessions.SubmitAnswer(dbctx.Context{Ctx: c.Request.Context()}, sessionID, teacherID, req.Action, req.Data)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/sessions/:id/end
func (h *SessionHandler) EndSession(c *gin.Context) {
	teacherID, ok := teacherFromContext(c)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	snap, err := h.sessions.EndSession(dbctx.Context{Ctx: c.Request.Context()}, sessionID, teacherID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"state": snap})
}

func teacherFromContext(c *gin.Context) (uuid.UUID, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.TeacherID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return uuid.Nil, false
	}
	return rd.TeacherID, true
}

func uuidParam(c *gin.Context, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, code, err)
		return uuid.Nil, false
	}
	return id, true
}
