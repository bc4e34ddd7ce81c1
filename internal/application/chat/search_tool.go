// Package chat 实现问答编排：两阶段 LLM 调用协议与课程检索工具。
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"course-rag-api/internal/application/retrieval"
	"course-rag-api/pkg/metrics"
)

// ToolNameSearchCourseContent 暴露给模型的检索工具名
const ToolNameSearchCourseContent = "search_course_content"

// Source 答案引用来源。Text 为“课程 - 课时”标签，Link 可为空。
type Source struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// SearchCourseTool 课程内容检索工具。
// 引用来源作为旁路数据写入请求上下文里的 sourceSink，由编排器取走后呈现给调用方，
// 不进入模型可见的工具结果文本。
type SearchCourseTool struct {
	engine *retrieval.Engine
}

// NewSearchCourseTool 创建检索工具
func NewSearchCourseTool(engine *retrieval.Engine) *SearchCourseTool {
	return &SearchCourseTool{engine: engine}
}

func (t *SearchCourseTool) GetType() string { return ToolNameSearchCourseContent }

func (t *SearchCourseTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolNameSearchCourseContent,
		Desc: "Search course materials with smart course name matching and lesson filtering.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "What to search for in the course content",
				Required: true,
			},
			"course_name": {
				Type: schema.String,
				Desc: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
			},
			"lesson_number": {
				Type: schema.Integer,
				Desc: "Specific lesson number to search within (e.g. 1, 2, 3)",
			},
		}),
	}, nil
}

var _ tool.InvokableTool = (*SearchCourseTool)(nil)

// InvokableRun 执行检索并格式化为模型可读文本。
// 课程名无法解析与检索无命中都是可恢复的未命中，以说明文本返回；
// 只有底层服务故障才返回 error，由编排器折叠进第二次调用。
func (t *SearchCourseTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	start := time.Now()
	defer func() {
		metrics.ToolCallDuration.WithLabelValues(ToolNameSearchCourseContent).Observe(time.Since(start).Seconds())
	}()

	var args struct {
		Query        string `json:"query"`
		CourseName   string `json:"course_name,omitempty"`
		LessonNumber *int   `json:"lesson_number,omitempty"`
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		metrics.ToolCallTotal.WithLabelValues(ToolNameSearchCourseContent, "error").Inc()
		return "", fmt.Errorf("invalid tool arguments: %w", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		metrics.ToolCallTotal.WithLabelValues(ToolNameSearchCourseContent, "error").Inc()
		return "", fmt.Errorf("query is required")
	}

	results, err := t.engine.Search(ctx, retrieval.SearchInput{
		Query:        args.Query,
		CourseName:   args.CourseName,
		LessonNumber: args.LessonNumber,
	})
	if err != nil {
		if errors.Is(err, retrieval.ErrCourseNotFound) {
			metrics.ToolCallTotal.WithLabelValues(ToolNameSearchCourseContent, "miss").Inc()
			return fmt.Sprintf("No course found matching '%s'", args.CourseName), nil
		}
		metrics.ToolCallTotal.WithLabelValues(ToolNameSearchCourseContent, "error").Inc()
		return "", err
	}

	if len(results) == 0 {
		metrics.ToolCallTotal.WithLabelValues(ToolNameSearchCourseContent, "miss").Inc()
		return t.formatMiss(args.CourseName, args.LessonNumber), nil
	}

	metrics.ToolCallTotal.WithLabelValues(ToolNameSearchCourseContent, "success").Inc()
	return t.formatResults(ctx, results), nil
}

// sourceSink 单次问答的引用来源暂存区，通过 context 传递，
// 每次请求各持一份，并发问答之间互不可见
type sourceSink struct {
	mu      sync.Mutex
	sources []Source
}

type sourceSinkKey struct{}

// withSourceSink 在 ctx 上挂载一个新的来源暂存区
func withSourceSink(ctx context.Context) (context.Context, *sourceSink) {
	sink := &sourceSink{}
	return context.WithValue(ctx, sourceSinkKey{}, sink), sink
}

func sinkFromContext(ctx context.Context) *sourceSink {
	sink, _ := ctx.Value(sourceSinkKey{}).(*sourceSink)
	return sink
}

func (s *sourceSink) put(sources []Source) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.sources = sources
	s.mu.Unlock()
}

// take 取走暂存的引用来源并清空
func (s *sourceSink) take() []Source {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sources := s.sources
	s.sources = nil
	return sources
}

func (t *SearchCourseTool) formatMiss(courseName string, lessonNumber *int) string {
	var b strings.Builder
	b.WriteString("No relevant content found")
	if strings.TrimSpace(courseName) != "" {
		b.WriteString(fmt.Sprintf(" in course '%s'", courseName))
	}
	if lessonNumber != nil {
		b.WriteString(fmt.Sprintf(" in lesson %d", *lessonNumber))
	}
	b.WriteString(".")
	return b.String()
}

// formatResults 拼接结果文本，并按课时去重收集引用来源写入当前请求的 sourceSink
func (t *SearchCourseTool) formatResults(ctx context.Context, results []retrieval.SearchResult) string {
	var blocks []string
	var sources []Source
	seen := make(map[string]bool)

	for _, r := range results {
		label := fmt.Sprintf("%s - Lesson %d", r.CourseTitle, r.LessonNumber)
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", label, r.Content))

		if seen[label] {
			continue
		}
		seen[label] = true
		sources = append(sources, Source{
			Text: label,
			Link: t.engine.GetLessonLink(ctx, r.CourseTitle, r.LessonNumber),
		})
	}

	sinkFromContext(ctx).put(sources)

	return strings.Join(blocks, "\n\n")
}
