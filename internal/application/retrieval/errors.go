package retrieval

import "errors"

var (
	// ErrVectorDisabled 表示向量检索/索引能力未配置（Milvus 或 Embedder 不可用）。
	ErrVectorDisabled = errors.New("vector retrieval is disabled")

	// ErrCourseNotFound 表示课程名模糊解析无命中（目录为空）。
	ErrCourseNotFound = errors.New("no matching course found")
)
