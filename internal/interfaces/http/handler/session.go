package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"course-rag-api/internal/application/session"
	"course-rag-api/internal/interfaces/http/dto"
)

// SessionHandler 会话处理器
type SessionHandler struct {
	sessions *session.Store
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(sessions *session.Store) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Clear 清除会话历史
// @Summary 清除会话
// @Description 删除指定会话的全部历史轮次
// @Tags Session
// @Produce json
// @Param session_id path string true "会话标识"
// @Success 200 {object} dto.Response[dto.SessionClearedResponse]
// @Router /api/session/{session_id} [delete]
func (h *SessionHandler) Clear(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		dto.BadRequest(c, "session_id is required")
		return
	}

	if !h.sessions.Clear(sessionID) {
		dto.NotFound(c, "session not found")
		return
	}

	dto.Success(c, dto.SessionClearedResponse{
		SessionID: sessionID,
		Cleared:   true,
	})
}
