package dto

// QueryRequest 问答请求
type QueryRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"session_id"`
}

// SourceItem 答案引用来源
type SourceItem struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// QueryResponse 问答响应
type QueryResponse struct {
	Answer    string       `json:"answer"`
	Sources   []SourceItem `json:"sources"`
	SessionID string       `json:"session_id"`
}

// CourseStatsResponse 课程统计响应
type CourseStatsResponse struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// SessionClearedResponse 会话清除响应
type SessionClearedResponse struct {
	SessionID string `json:"session_id"`
	Cleared   bool   `json:"cleared"`
}
