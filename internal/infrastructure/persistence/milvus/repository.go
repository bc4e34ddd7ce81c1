// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"course-rag-api/pkg/metrics"
)

// Repository 向量检索仓储
type Repository struct {
	client *Client
}

// NewRepository 创建向量检索仓储
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// ChunkSearchParams 内容检索参数
type ChunkSearchParams struct {
	QueryVector []float32
	// CourseTitle 非空时限定在指定课程内检索（精确匹配）
	CourseTitle string
	// LessonNumber 非 nil 时限定在指定课时内检索
	LessonNumber *int
	TopK         int
}

// ChunkResult 内容检索结果
type ChunkResult struct {
	ID           string
	Score        float32
	Content      string
	CourseTitle  string
	LessonNumber int64
	ChunkIndex   int64
}

// CatalogResult 目录检索结果
type CatalogResult struct {
	ID          string
	Score       float32
	Title       string
	Instructor  string
	Link        string
	LessonsJSON string
}

// escapeExpr 转义过滤表达式中的字符串字面量
// 课程标题来自外部文档，可能包含引号和反斜杠
func escapeExpr(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// CreateCollection 创建集合
func (r *Repository) CreateCollection(ctx context.Context, schema *entity.Schema) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", schema.CollectionName)))
	defer span.End()

	collName := r.client.CollectionName(schema.CollectionName)
	schema.CollectionName = collName

	err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// CreateIndex 创建 HNSW 索引
func (r *Repository) CreateIndex(ctx context.Context, collection string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	collName := r.client.CollectionName(collection)

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = r.client.milvus.CreateIndex(ctx, collName, "vector", idx, false)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// EnsureCollections 确保两个集合与索引可用（不存在则创建）。
// 约束：不会做 drop/rebuild 等破坏性操作。
func (r *Repository) EnsureCollections(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}

	for _, spec := range []struct {
		name   string
		schema *entity.Schema
	}{
		{CollectionCourseCatalog, CourseCatalogSchema()},
		{CollectionCourseContent, CourseContentSchema()},
	} {
		exists, err := r.client.HasCollection(ctx, spec.name)
		if err != nil {
			return err
		}
		if !exists {
			if err := r.CreateCollection(ctx, spec.schema); err != nil {
				return err
			}
			if err := r.CreateIndex(ctx, spec.name); err != nil {
				return err
			}
		}

		// 尝试确保集合已加载（若已加载，Milvus 会返回成功）
		if err := r.client.LoadCollection(ctx, spec.name); err != nil {
			return err
		}
	}

	return nil
}

// InsertCatalogEntry 插入课程目录条目
func (r *Repository) InsertCatalogEntry(ctx context.Context, e *CatalogEntry) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.InsertCatalogEntry",
		trace.WithAttributes(attribute.String("title", e.Title)))
	defer span.End()

	collName := r.client.CollectionName(CollectionCourseCatalog)

	idCol := entity.NewColumnVarChar("id", []string{e.ID})
	vectorCol := entity.NewColumnFloatVector("vector", VectorDimension, [][]float32{e.Vector})
	titleCol := entity.NewColumnVarChar("title", []string{e.Title})
	instructorCol := entity.NewColumnVarChar("instructor", []string{e.Instructor})
	linkCol := entity.NewColumnVarChar("link", []string{e.Link})
	lessonsCol := entity.NewColumnVarChar("lessons_json", []string{e.LessonsJSON})

	_, err := r.client.milvus.Insert(ctx, collName, "",
		idCol, vectorCol, titleCol, instructorCol, linkCol, lessonsCol)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert catalog entry: %w", err)
	}

	return nil
}

// InsertChunks 插入课程内容分片
func (r *Repository) InsertChunks(ctx context.Context, chunks []*ContentChunk) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.InsertChunks",
		trace.WithAttributes(attribute.Int("count", len(chunks))))
	defer span.End()

	if len(chunks) == 0 {
		return nil
	}

	collName := r.client.CollectionName(CollectionCourseContent)

	ids := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	courseTitles := make([]string, len(chunks))
	lessonNumbers := make([]int64, len(chunks))
	chunkIndexes := make([]int64, len(chunks))
	contents := make([]string, len(chunks))

	for i, c := range chunks {
		ids[i] = c.ID
		vectors[i] = c.Vector
		courseTitles[i] = c.CourseTitle
		lessonNumbers[i] = c.LessonNumber
		chunkIndexes[i] = c.ChunkIndex
		contents[i] = c.Content
	}

	idCol := entity.NewColumnVarChar("id", ids)
	vectorCol := entity.NewColumnFloatVector("vector", VectorDimension, vectors)
	titleCol := entity.NewColumnVarChar("course_title", courseTitles)
	lessonCol := entity.NewColumnInt64("lesson_number", lessonNumbers)
	indexCol := entity.NewColumnInt64("chunk_index", chunkIndexes)
	contentCol := entity.NewColumnVarChar("content", contents)

	_, err := r.client.milvus.Insert(ctx, collName, "",
		idCol, vectorCol, titleCol, lessonCol, indexCol, contentCol)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	return nil
}

// SearchCatalog 目录语义检索，返回最相近的一门课程；目录为空时返回 nil
func (r *Repository) SearchCatalog(ctx context.Context, queryVector []float32) (*CatalogResult, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchCatalog")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.MilvusSearchDuration.WithLabelValues(CollectionCourseCatalog).Observe(time.Since(start).Seconds())
	}()

	collName := r.client.CollectionName(CollectionCourseCatalog)

	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		collName,
		nil,
		"",
		[]string{"id", "title", "instructor", "link", "lessons_json"},
		[]entity.Vector{entity.FloatVector(queryVector)},
		"vector",
		entity.COSINE,
		1,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		metrics.MilvusSearchTotal.WithLabelValues(CollectionCourseCatalog, "error").Inc()
		return nil, fmt.Errorf("failed to search catalog: %w", err)
	}
	metrics.MilvusSearchTotal.WithLabelValues(CollectionCourseCatalog, "success").Inc()

	for _, result := range results {
		if result.ResultCount == 0 {
			continue
		}
		cr := &CatalogResult{
			Score: result.Scores[0],
		}
		if col, ok := result.Fields.GetColumn("id").(*entity.ColumnVarChar); ok {
			cr.ID = col.Data()[0]
		}
		if col, ok := result.Fields.GetColumn("title").(*entity.ColumnVarChar); ok {
			cr.Title = col.Data()[0]
		}
		if col, ok := result.Fields.GetColumn("instructor").(*entity.ColumnVarChar); ok {
			cr.Instructor = col.Data()[0]
		}
		if col, ok := result.Fields.GetColumn("link").(*entity.ColumnVarChar); ok {
			cr.Link = col.Data()[0]
		}
		if col, ok := result.Fields.GetColumn("lessons_json").(*entity.ColumnVarChar); ok {
			cr.LessonsJSON = col.Data()[0]
		}
		span.SetAttributes(attribute.String("resolved_title", cr.Title))
		return cr, nil
	}

	return nil, nil
}

// SearchChunks 内容语义检索，支持按课程与课时过滤
func (r *Repository) SearchChunks(ctx context.Context, params *ChunkSearchParams) ([]*ChunkResult, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchChunks",
		trace.WithAttributes(
			attribute.String("course_title", params.CourseTitle),
			attribute.Int("top_k", params.TopK),
		))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.MilvusSearchDuration.WithLabelValues(CollectionCourseContent).Observe(time.Since(start).Seconds())
	}()

	collName := r.client.CollectionName(CollectionCourseContent)

	// 构建过滤表达式
	var conditions []string
	if params.CourseTitle != "" {
		conditions = append(conditions, fmt.Sprintf(`course_title == "%s"`, escapeExpr(params.CourseTitle)))
	}
	if params.LessonNumber != nil {
		conditions = append(conditions, fmt.Sprintf(`lesson_number == %d`, *params.LessonNumber))
	}
	filter := strings.Join(conditions, " && ")

	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		collName,
		nil,
		filter,
		[]string{"id", "content", "course_title", "lesson_number", "chunk_index"},
		[]entity.Vector{entity.FloatVector(params.QueryVector)},
		"vector",
		entity.COSINE,
		params.TopK,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		metrics.MilvusSearchTotal.WithLabelValues(CollectionCourseContent, "error").Inc()
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	metrics.MilvusSearchTotal.WithLabelValues(CollectionCourseContent, "success").Inc()

	var chunkResults []*ChunkResult
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			cr := &ChunkResult{
				Score: result.Scores[i],
			}
			if col, ok := result.Fields.GetColumn("id").(*entity.ColumnVarChar); ok {
				cr.ID = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("content").(*entity.ColumnVarChar); ok {
				cr.Content = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("course_title").(*entity.ColumnVarChar); ok {
				cr.CourseTitle = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("lesson_number").(*entity.ColumnInt64); ok {
				cr.LessonNumber = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("chunk_index").(*entity.ColumnInt64); ok {
				cr.ChunkIndex = col.Data()[i]
			}
			chunkResults = append(chunkResults, cr)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(chunkResults)))
	return chunkResults, nil
}

// HasCourse 检查课程标题是否已入库（精确匹配）
func (r *Repository) HasCourse(ctx context.Context, title string) (bool, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return false, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.HasCourse",
		trace.WithAttributes(attribute.String("title", title)))
	defer span.End()

	collName := r.client.CollectionName(CollectionCourseCatalog)
	expr := fmt.Sprintf(`title == "%s"`, escapeExpr(title))

	rs, err := r.client.milvus.Query(ctx, collName, nil, expr, []string{"id"})
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to query catalog: %w", err)
	}

	for _, col := range rs {
		if col.Name() == "id" {
			return col.Len() > 0, nil
		}
	}
	return false, nil
}

// catalogPageSize 目录分页查询的单页条数
const catalogPageSize = 1000

// ListCatalog 列出全部课程目录条目（不含向量），按固定页长翻页直到取完
func (r *Repository) ListCatalog(ctx context.Context) ([]*CatalogResult, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.ListCatalog")
	defer span.End()

	collName := r.client.CollectionName(CollectionCourseCatalog)

	entries, err := collectPages(catalogPageSize, func(offset int) ([]*CatalogResult, error) {
		rs, err := r.client.milvus.Query(ctx, collName, nil, `id != ""`,
			[]string{"id", "title", "instructor", "link", "lessons_json"},
			client.WithLimit(catalogPageSize),
			client.WithOffset(int64(offset)))
		if err != nil {
			return nil, fmt.Errorf("failed to list catalog: %w", err)
		}
		return catalogEntriesFromColumns(rs), nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(entries)))
	return entries, nil
}

// collectPages 以固定页长反复拉取直到返回不满一页
func collectPages(pageSize int, fetch func(offset int) ([]*CatalogResult, error)) ([]*CatalogResult, error) {
	var out []*CatalogResult
	for offset := 0; ; offset += pageSize {
		page, err := fetch(offset)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
	}
}

// catalogEntriesFromColumns 将列式查询结果逐行映射为目录条目
func catalogEntriesFromColumns(rs client.ResultSet) []*CatalogResult {
	cols := make(map[string]*entity.ColumnVarChar)
	count := 0
	for _, col := range rs {
		if vc, ok := col.(*entity.ColumnVarChar); ok {
			cols[col.Name()] = vc
			count = vc.Len()
		}
	}

	entries := make([]*CatalogResult, 0, count)
	for i := 0; i < count; i++ {
		e := &CatalogResult{}
		if col, ok := cols["id"]; ok {
			e.ID = col.Data()[i]
		}
		if col, ok := cols["title"]; ok {
			e.Title = col.Data()[i]
		}
		if col, ok := cols["instructor"]; ok {
			e.Instructor = col.Data()[i]
		}
		if col, ok := cols["link"]; ok {
			e.Link = col.Data()[i]
		}
		if col, ok := cols["lessons_json"]; ok {
			e.LessonsJSON = col.Data()[i]
		}
		entries = append(entries, e)
	}
	return entries
}

// DeleteCourse 删除课程的目录条目与全部内容分片（用于全量重建）
func (r *Repository) DeleteCourse(ctx context.Context, title string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.DeleteCourse",
		trace.WithAttributes(attribute.String("title", title)))
	defer span.End()

	catalogExpr := fmt.Sprintf(`title == "%s"`, escapeExpr(title))
	if err := r.client.milvus.Delete(ctx, r.client.CollectionName(CollectionCourseCatalog), "", catalogExpr); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete catalog entry: %w", err)
	}

	contentExpr := fmt.Sprintf(`course_title == "%s"`, escapeExpr(title))
	if err := r.client.milvus.Delete(ctx, r.client.CollectionName(CollectionCourseContent), "", contentExpr); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete content chunks: %w", err)
	}

	return nil
}
