package handler

import (
	"github.com/gin-gonic/gin"

	"course-rag-api/internal/application/retrieval"
	"course-rag-api/internal/interfaces/http/dto"
	"course-rag-api/pkg/logger"
)

// CourseHandler 课程信息处理器
type CourseHandler struct {
	engine *retrieval.Engine
}

// NewCourseHandler 创建课程信息处理器
func NewCourseHandler(engine *retrieval.Engine) *CourseHandler {
	return &CourseHandler{engine: engine}
}

// Stats 课程统计接口
// @Summary 课程统计
// @Description 返回已摄取的课程数量与标题列表
// @Tags Course
// @Produce json
// @Success 200 {object} dto.Response[dto.CourseStatsResponse]
// @Router /api/courses [get]
func (h *CourseHandler) Stats(c *gin.Context) {
	titles, err := h.engine.ListCourseTitles(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "课程列表查询失败", err)
		dto.ServiceUnavailable(c, "course catalog unavailable")
		return
	}

	dto.Success(c, dto.CourseStatsResponse{
		TotalCourses: len(titles),
		CourseTitles: titles,
	})
}

// Outlines 课程大纲接口
// @Summary 课程大纲列表
// @Description 返回全部课程的大纲（标题、链接、课时列表）
// @Tags Course
// @Produce json
// @Success 200 {object} dto.Response[[]retrieval.CourseOutline]
// @Router /api/courses/outlines [get]
func (h *CourseHandler) Outlines(c *gin.Context) {
	outlines, err := h.engine.ListOutlines(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "课程大纲查询失败", err)
		dto.ServiceUnavailable(c, "course catalog unavailable")
		return
	}

	dto.Success(c, outlines)
}
