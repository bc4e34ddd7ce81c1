package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
)

const (
	defaultMaxResults     = 5
	defaultEmbeddingBatch = 32
)

// Engine 检索引擎。目录集合负责课程名模糊解析，内容集合负责正文召回。
// 课时链接从目录的 lessons_json 惰性加载并缓存，避免每次引用来源都查一次 Milvus。
type Engine struct {
	embedder embedding.Embedder
	vector   VectorRepository

	maxResults int

	mu          sync.RWMutex
	lessonLinks map[string]map[int]string
	courseLinks map[string]string
}

// NewEngine 创建检索引擎
func NewEngine(embedder embedding.Embedder, vectorRepo VectorRepository, maxResults int) *Engine {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Engine{
		embedder:    embedder,
		vector:      vectorRepo,
		maxResults:  maxResults,
		lessonLinks: make(map[string]map[int]string),
		courseLinks: make(map[string]string),
	}
}

func (e *Engine) Enabled() bool {
	return e != nil && e.embedder != nil && e.vector != nil
}

func (e *Engine) ensureReady(ctx context.Context) error {
	if e == nil || e.vector == nil {
		return ErrVectorDisabled
	}
	return e.vector.EnsureCollections(ctx)
}

// ResolveCourseName 将课程名片段模糊解析为精确标题。
// 不设相似度阈值：目录非空即返回 top-1 命中；目录为空返回 ErrCourseNotFound。
func (e *Engine) ResolveCourseName(ctx context.Context, nameFragment string) (string, error) {
	if !e.Enabled() {
		return "", ErrVectorDisabled
	}
	nameFragment = strings.TrimSpace(nameFragment)
	if nameFragment == "" {
		return "", fmt.Errorf("course name fragment is empty")
	}
	if err := e.ensureReady(ctx); err != nil {
		return "", err
	}

	emb, err := e.embedQuery(ctx, nameFragment)
	if err != nil {
		return "", err
	}

	hit, err := e.vector.SearchCatalog(ctx, emb)
	if err != nil {
		return "", err
	}
	if hit == nil || strings.TrimSpace(hit.Title) == "" {
		return "", ErrCourseNotFound
	}
	return hit.Title, nil
}

// Search 正文语义检索。CourseName 非空时先解析为精确标题再做元数据过滤；
// 过滤命中不存在的课程时返回空结果而非错误。
func (e *Engine) Search(ctx context.Context, in SearchInput) ([]SearchResult, error) {
	if !e.Enabled() {
		return nil, ErrVectorDisabled
	}
	in.Query = strings.TrimSpace(in.Query)
	if in.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if in.TopK <= 0 {
		in.TopK = e.maxResults
	}
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}

	courseTitle := ""
	if strings.TrimSpace(in.CourseName) != "" {
		resolved, err := e.ResolveCourseName(ctx, in.CourseName)
		if err != nil {
			return nil, err
		}
		courseTitle = resolved
	}

	emb, err := e.embedQuery(ctx, in.Query)
	if err != nil {
		return nil, err
	}

	hits, err := e.vector.SearchChunks(ctx, &VectorSearchParams{
		QueryVector:  emb,
		CourseTitle:  courseTitle,
		LessonNumber: in.LessonNumber,
		TopK:         in.TopK,
	})
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		if h == nil {
			continue
		}
		results = append(results, SearchResult{
			Content:      strings.TrimSpace(h.Content),
			CourseTitle:  h.CourseTitle,
			LessonNumber: h.LessonNumber,
			ChunkIndex:   h.ChunkIndex,
			Similarity:   1 - float64(h.Score), // 将“距离”转换为更直观的相似度（COSINE: distance=1-cos）
		})
	}
	return results, nil
}

// GetLessonLink 获取课时链接，不存在返回空串。首次访问时从目录整体加载。
func (e *Engine) GetLessonLink(ctx context.Context, courseTitle string, lessonNumber int) string {
	e.mu.RLock()
	if links, ok := e.lessonLinks[courseTitle]; ok {
		link := links[lessonNumber]
		e.mu.RUnlock()
		return link
	}
	e.mu.RUnlock()

	if err := e.refreshLinkCache(ctx); err != nil {
		return ""
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if links, ok := e.lessonLinks[courseTitle]; ok {
		return links[lessonNumber]
	}
	return ""
}

// GetCourseLink 获取课程链接，不存在返回空串
func (e *Engine) GetCourseLink(ctx context.Context, courseTitle string) string {
	e.mu.RLock()
	if link, ok := e.courseLinks[courseTitle]; ok {
		e.mu.RUnlock()
		return link
	}
	e.mu.RUnlock()

	if err := e.refreshLinkCache(ctx); err != nil {
		return ""
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.courseLinks[courseTitle]
}

// ListOutlines 列出全部课程大纲（课程分析接口使用）
func (e *Engine) ListOutlines(ctx context.Context) ([]CourseOutline, error) {
	if e == nil || e.vector == nil {
		return nil, ErrVectorDisabled
	}
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}

	entries, err := e.vector.ListCatalog(ctx)
	if err != nil {
		return nil, err
	}

	outlines := make([]CourseOutline, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		outline := CourseOutline{
			Title:      entry.Title,
			Link:       entry.Link,
			Instructor: entry.Instructor,
		}
		if strings.TrimSpace(entry.LessonsJSON) != "" {
			if err := json.Unmarshal([]byte(entry.LessonsJSON), &outline.Lessons); err != nil {
				// 大纲损坏不影响标题列表，保留无课时的条目
				outline.Lessons = nil
			}
		}
		outlines = append(outlines, outline)
	}
	return outlines, nil
}

// ListCourseTitles 列出全部课程标题
func (e *Engine) ListCourseTitles(ctx context.Context) ([]string, error) {
	outlines, err := e.ListOutlines(ctx)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(outlines))
	for _, o := range outlines {
		titles = append(titles, o.Title)
	}
	return titles, nil
}

func (e *Engine) refreshLinkCache(ctx context.Context) error {
	outlines, err := e.ListOutlines(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range outlines {
		links := make(map[int]string, len(o.Lessons))
		for _, l := range o.Lessons {
			if l.Link != "" {
				links[l.Number] = l.Link
			}
		}
		e.lessonLinks[o.Title] = links
		e.courseLinks[o.Title] = o.Link
	}
	return nil
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if e == nil || e.embedder == nil {
		return nil, ErrVectorDisabled
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, fmt.Errorf("query is empty")
	}
	v64, err := e.embedder.EmbedStrings(ctx, []string{q})
	if err != nil {
		return nil, err
	}
	if len(v64) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	vec := v64[0]
	out := make([]float32, 0, len(vec))
	for _, x := range vec {
		out = append(out, float32(x))
	}
	return out, nil
}
