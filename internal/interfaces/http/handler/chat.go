// Package handler 提供 HTTP 请求处理器
package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"course-rag-api/internal/application/chat"
	"course-rag-api/internal/application/session"
	"course-rag-api/internal/interfaces/http/dto"
	"course-rag-api/pkg/logger"
)

// ChatHandler 问答处理器
type ChatHandler struct {
	orchestrator *chat.Orchestrator
	sessions     *session.Store
}

// NewChatHandler 创建问答处理器
func NewChatHandler(orchestrator *chat.Orchestrator, sessions *session.Store) *ChatHandler {
	return &ChatHandler{
		orchestrator: orchestrator,
		sessions:     sessions,
	}
}

// Query 问答接口
// @Summary 课程内容问答
// @Description 对课程语料提问，未携带 session_id 时创建新会话并随答案返回
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body dto.QueryRequest true "问答请求"
// @Success 200 {object} dto.Response[dto.QueryResponse]
// @Router /api/query [post]
func (h *ChatHandler) Query(c *gin.Context) {
	var req dto.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		dto.BadRequest(c, "query must not be empty")
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = h.sessions.Create()
	}

	ctx := logger.WithContext(c.Request.Context(), logger.SessionIDKey, sessionID)

	answer, sources, err := h.orchestrator.Answer(ctx, sessionID, req.Query)
	if err != nil {
		logger.Error(ctx, "问答处理失败", err)
		dto.FromError(c, err)
		return
	}

	items := make([]dto.SourceItem, 0, len(sources))
	for _, s := range sources {
		items = append(items, dto.SourceItem{Text: s.Text, Link: s.Link})
	}

	dto.Success(c, dto.QueryResponse{
		Answer:    answer,
		Sources:   items,
		SessionID: sessionID,
	})
}
