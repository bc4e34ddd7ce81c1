// Package ingest 负责课程文档的解析、分片与向量索引写入。
// 摄取只在服务启动阶段执行，查询路径不会触发写入。
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	einoembedding "github.com/cloudwego/eino/components/embedding"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"course-rag-api/internal/application/retrieval"
	"course-rag-api/internal/config"
	"course-rag-api/internal/domain/entity"
	"course-rag-api/internal/infrastructure/embedding"
	"course-rag-api/pkg/errors"
	"course-rag-api/pkg/logger"
	"course-rag-api/pkg/metrics"
)

const (
	defaultChunkSizeRunes     = 800
	defaultChunkOverlapRunes  = 100
	defaultChunkLookbackRunes = 100
	defaultEmbeddingBatch     = 32

	// ingestConcurrency 目录摄取的并发文档数，瓶颈在 Embedding 远程调用
	ingestConcurrency = 4
)

// Ingestor 文档摄取器
type Ingestor struct {
	embedder einoembedding.Embedder
	vector   retrieval.VectorRepository

	chunkSizeRunes     int
	chunkOverlapRunes  int
	chunkLookbackRunes int
	embeddingBatchSize int

	// titleLocks 按课程标题串行化“查重-写入”窗口，
	// 保证并发摄取同名文档时目录里至多出现一条记录
	titleLocks sync.Map
}

// Report 一次目录摄取的统计结果
type Report struct {
	CoursesAdded   int `json:"courses_added"`
	CoursesSkipped int `json:"courses_skipped"`
	CoursesFailed  int `json:"courses_failed"`
	ChunksIndexed  int `json:"chunks_indexed"`
}

// NewIngestor 创建文档摄取器
func NewIngestor(embedder einoembedding.Embedder, vectorRepo retrieval.VectorRepository, cfg *config.RAGConfig, embeddingBatchSize int) *Ingestor {
	i := &Ingestor{
		embedder:           embedder,
		vector:             vectorRepo,
		chunkSizeRunes:     defaultChunkSizeRunes,
		chunkOverlapRunes:  defaultChunkOverlapRunes,
		chunkLookbackRunes: defaultChunkLookbackRunes,
		embeddingBatchSize: embeddingBatchSize,
	}
	if cfg != nil {
		if cfg.ChunkSizeRunes > 0 {
			i.chunkSizeRunes = cfg.ChunkSizeRunes
		}
		if cfg.ChunkOverlapRunes >= 0 {
			i.chunkOverlapRunes = cfg.ChunkOverlapRunes
		}
		if cfg.ChunkLookbackRunes >= 0 {
			i.chunkLookbackRunes = cfg.ChunkLookbackRunes
		}
	}
	if i.embeddingBatchSize <= 0 {
		i.embeddingBatchSize = defaultEmbeddingBatch
	}
	return i
}

func (i *Ingestor) Enabled() bool {
	return i != nil && i.embedder != nil && i.vector != nil
}

// AddCourse 将课程写入目录与内容索引。
// 同名课程已存在时整体跳过（语料级去重边界），返回 added=false；
// 同名课程的并发调用被串行化，无论调用顺序目录里只落一条。
func (i *Ingestor) AddCourse(ctx context.Context, course *entity.Course) (added bool, chunkCount int, err error) {
	if !i.Enabled() {
		return false, 0, retrieval.ErrVectorDisabled
	}
	if course == nil || strings.TrimSpace(course.Title) == "" {
		return false, 0, errors.New(errors.CodeDocumentInvalid, "course has no title")
	}
	if err := i.vector.EnsureCollections(ctx); err != nil {
		return false, 0, err
	}

	unlock := i.lockTitle(course.Title)
	defer unlock()

	exists, err := i.vector.HasCourse(ctx, course.Title)
	if err != nil {
		return false, 0, err
	}
	if exists {
		logger.Info(ctx, "课程已存在，跳过摄取", "title", course.Title)
		return false, 0, nil
	}

	chunks := i.chunkCourse(course)

	// 目录条目与全部分片一次性批量向量化
	embedInputs := make([]string, 0, len(chunks)+1)
	embedInputs = append(embedInputs, catalogEmbedText(course))
	for _, c := range chunks {
		embedInputs = append(embedInputs, chunkEmbedText(course.Title, c))
	}

	vectors64, err := embedding.BatchEmbed(ctx, i.embedder, embedInputs, i.embeddingBatchSize)
	if err != nil {
		return false, 0, errors.Wrap(err, errors.CodeEmbeddingFailed, "failed to embed course content")
	}
	if len(vectors64) != len(embedInputs) {
		return false, 0, fmt.Errorf("embedding count mismatch: want %d got %d", len(embedInputs), len(vectors64))
	}

	entry := &retrieval.VectorCatalogEntry{
		ID:          uuid.NewString(),
		Title:       course.Title,
		Instructor:  course.Instructor,
		Link:        course.Link,
		LessonsJSON: lessonsJSON(course),
		Vector:      embedding.ToFloat32(vectors64[0]),
	}

	vectorChunks := make([]*retrieval.VectorChunk, 0, len(chunks))
	for idx, c := range chunks {
		vectorChunks = append(vectorChunks, &retrieval.VectorChunk{
			ID:           uuid.NewString(),
			CourseTitle:  c.CourseTitle,
			LessonNumber: c.LessonNumber,
			ChunkIndex:   c.ChunkIndex,
			Content:      c.Content,
			Vector:       embedding.ToFloat32(vectors64[idx+1]),
		})
	}

	if err := i.vector.InsertCatalogEntry(ctx, entry); err != nil {
		return false, 0, err
	}
	if err := i.vector.InsertChunks(ctx, vectorChunks); err != nil {
		return false, 0, err
	}

	logger.Info(ctx, "课程摄取完成",
		"title", course.Title,
		"lessons", len(course.Lessons),
		"chunks", len(vectorChunks),
	)
	return true, len(vectorChunks), nil
}

// IngestDirectory 摄取目录下的全部课程文档，按固定并发数并行处理。
// 单篇文档非法只影响该文档，不会中断整个目录的摄取。
func (i *Ingestor) IngestDirectory(ctx context.Context, docsPath string) (*Report, error) {
	if !i.Enabled() {
		return nil, retrieval.ErrVectorDisabled
	}

	dirEntries, err := os.ReadDir(docsPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIngestionFailed, "failed to read docs directory")
	}

	names := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(de.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}
		names = append(names, de.Name())
	}
	sort.Strings(names)

	// 集合只需创建一次，避免并发摄取时重复建表
	if err := i.vector.EnsureCollections(ctx); err != nil {
		return nil, err
	}

	report := &Report{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestConcurrency)
	for _, name := range names {
		name := name
		g.Go(func() error {
			status, chunkCount := i.ingestFile(gctx, docsPath, name)

			mu.Lock()
			switch status {
			case "added":
				report.CoursesAdded++
				report.ChunksIndexed += chunkCount
			case "skipped":
				report.CoursesSkipped++
			default:
				report.CoursesFailed++
			}
			mu.Unlock()

			metrics.IngestDocumentsTotal.WithLabelValues(status).Inc()
			if chunkCount > 0 {
				metrics.IngestChunksTotal.Add(float64(chunkCount))
			}
			return nil
		})
	}
	// 单篇失败不返回 error，g.Wait 仅用于同步
	_ = g.Wait()

	logger.Info(ctx, "目录摄取完成",
		"path", docsPath,
		"added", report.CoursesAdded,
		"skipped", report.CoursesSkipped,
		"failed", report.CoursesFailed,
		"chunks", report.ChunksIndexed,
	)
	return report, nil
}

// lockTitle 获取指定标题的互斥锁，返回解锁函数
func (i *Ingestor) lockTitle(title string) func() {
	v, _ := i.titleLocks.LoadOrStore(title, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// ingestFile 摄取单个课程文档，返回状态（added/skipped/failed）与写入的分片数
func (i *Ingestor) ingestFile(ctx context.Context, docsPath, name string) (string, int) {
	raw, err := os.ReadFile(filepath.Join(docsPath, name))
	if err != nil {
		logger.Error(ctx, "读取课程文档失败", err, "file", name)
		return "failed", 0
	}

	course, err := ParseDocument(string(raw), name)
	if err != nil {
		logger.Error(ctx, "解析课程文档失败", err, "file", name)
		return "failed", 0
	}

	added, chunkCount, err := i.AddCourse(ctx, course)
	if err != nil {
		logger.Error(ctx, "课程摄取失败", err, "file", name, "title", course.Title)
		return "failed", 0
	}
	if !added {
		return "skipped", 0
	}
	return "added", chunkCount
}

// chunkCourse 将课程全部课时正文切分为分片，分片序号在课程内连续递增
func (i *Ingestor) chunkCourse(course *entity.Course) []entity.CourseChunk {
	var out []entity.CourseChunk
	chunkIndex := 0
	for _, lesson := range course.Lessons {
		for _, piece := range splitLessonBody(lesson.Body, i.chunkSizeRunes, i.chunkOverlapRunes, i.chunkLookbackRunes) {
			out = append(out, entity.CourseChunk{
				Content:      piece,
				CourseTitle:  course.Title,
				LessonNumber: lesson.Number,
				ChunkIndex:   chunkIndex,
			})
			chunkIndex++
		}
	}
	return out
}

// catalogEmbedText 目录条目的向量化文本：标题加讲师加课时标题
func catalogEmbedText(course *entity.Course) string {
	var b strings.Builder
	b.WriteString(course.Title)
	if course.Instructor != "" {
		b.WriteString("\n讲师：" + course.Instructor)
	}
	for _, l := range course.Lessons {
		b.WriteString(fmt.Sprintf("\nLesson %d: %s", l.Number, l.Title))
	}
	return b.String()
}

// chunkEmbedText 分片的向量化文本：带课程与课时上下文前缀，提升召回质量。
// 存储的 Content 保持原文，保证分片拼接可还原课时正文。
func chunkEmbedText(courseTitle string, c entity.CourseChunk) string {
	return fmt.Sprintf("课程：%s\n课时：%d\n%s", courseTitle, c.LessonNumber, c.Content)
}

func lessonsJSON(course *entity.Course) string {
	refs := make([]retrieval.LessonRef, 0, len(course.Lessons))
	for _, l := range course.Lessons {
		refs = append(refs, retrieval.LessonRef{
			Number: l.Number,
			Title:  l.Title,
			Link:   l.Link,
		})
	}
	b, err := json.Marshal(refs)
	if err != nil {
		return "[]"
	}
	return string(b)
}
