package retrieval

import "context"

// VectorRepository 定义应用层对“向量存储/检索”的最小依赖（port）。
// 由基础设施层提供具体实现（例如 Milvus）。
type VectorRepository interface {
	EnsureCollections(ctx context.Context) error
	HasCourse(ctx context.Context, title string) (bool, error)
	InsertCatalogEntry(ctx context.Context, entry *VectorCatalogEntry) error
	InsertChunks(ctx context.Context, chunks []*VectorChunk) error
	SearchCatalog(ctx context.Context, queryVector []float32) (*CatalogHit, error)
	SearchChunks(ctx context.Context, params *VectorSearchParams) ([]*ChunkHit, error)
	ListCatalog(ctx context.Context) ([]*CatalogHit, error)
}

type VectorSearchParams struct {
	QueryVector  []float32
	CourseTitle  string
	LessonNumber *int
	TopK         int
}

// CatalogHit 目录条目（检索命中或列表项）
type CatalogHit struct {
	ID          string
	Score       float32
	Title       string
	Instructor  string
	Link        string
	LessonsJSON string
}

// ChunkHit 内容分片命中
type ChunkHit struct {
	ID           string
	Score        float32
	Content      string
	CourseTitle  string
	LessonNumber int
	ChunkIndex   int
}

// VectorCatalogEntry 待写入的目录条目
type VectorCatalogEntry struct {
	ID          string
	Title       string
	Instructor  string
	Link        string
	LessonsJSON string
	Vector      []float32
}

// VectorChunk 待写入的内容分片
type VectorChunk struct {
	ID           string
	CourseTitle  string
	LessonNumber int
	ChunkIndex   int
	Content      string
	Vector       []float32
}
