// Package retrieval 提供课程内容的向量检索能力：
// 课程名模糊解析（粗粒度目录索引）与正文语义检索（细粒度分片索引）。
package retrieval

// SearchResult 单条检索结果
type SearchResult struct {
	Content      string  `json:"content"`
	CourseTitle  string  `json:"course_title"`
	LessonNumber int     `json:"lesson_number"`
	ChunkIndex   int     `json:"chunk_index"`
	Similarity   float64 `json:"similarity"`
}

// SearchInput 检索输入
type SearchInput struct {
	Query string
	// CourseName 课程名片段，非空时先经目录索引模糊解析为精确标题
	CourseName string
	// LessonNumber 课时编号过滤，nil 表示不限
	LessonNumber *int
	// TopK 返回的最大分片数，<=0 时使用引擎默认值
	TopK int
}

// LessonRef 课程大纲中的课时条目，目录集合以 JSON 数组存储
type LessonRef struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// CourseOutline 课程大纲
type CourseOutline struct {
	Title      string      `json:"title"`
	Link       string      `json:"link,omitempty"`
	Instructor string      `json:"instructor,omitempty"`
	Lessons    []LessonRef `json:"lessons"`
}
