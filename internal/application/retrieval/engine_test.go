package retrieval

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.1, 0.2, 0.3}
	}
	return out, nil
}

type stubVectorRepo struct {
	catalogHit *CatalogHit
	chunkHits  []*ChunkHit
	listHits   []*CatalogHit

	lastChunkParams *VectorSearchParams
	searchErr       error
}

func (s *stubVectorRepo) EnsureCollections(context.Context) error { return nil }

func (s *stubVectorRepo) HasCourse(context.Context, string) (bool, error) { return false, nil }

func (s *stubVectorRepo) InsertCatalogEntry(context.Context, *VectorCatalogEntry) error { return nil }

func (s *stubVectorRepo) InsertChunks(context.Context, []*VectorChunk) error { return nil }

func (s *stubVectorRepo) SearchCatalog(context.Context, []float32) (*CatalogHit, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.catalogHit, nil
}

func (s *stubVectorRepo) SearchChunks(_ context.Context, params *VectorSearchParams) ([]*ChunkHit, error) {
	s.lastChunkParams = params
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.chunkHits, nil
}

func (s *stubVectorRepo) ListCatalog(context.Context) ([]*CatalogHit, error) {
	return s.listHits, nil
}

func mustLessonsJSON(t *testing.T, refs []LessonRef) string {
	t.Helper()
	b, err := json.Marshal(refs)
	require.NoError(t, err)
	return string(b)
}

func TestResolveCourseName(t *testing.T) {
	repo := &stubVectorRepo{
		catalogHit: &CatalogHit{Title: "Introduction to MCP", Score: 0.12},
	}
	e := NewEngine(&stubEmbedder{}, repo, 5)

	title, err := e.ResolveCourseName(context.Background(), "MCP")
	require.NoError(t, err)
	assert.Equal(t, "Introduction to MCP", title)
}

func TestResolveCourseName_EmptyCatalog(t *testing.T) {
	e := NewEngine(&stubEmbedder{}, &stubVectorRepo{}, 5)

	_, err := e.ResolveCourseName(context.Background(), "anything")
	require.ErrorIs(t, err, ErrCourseNotFound)
}

func TestResolveCourseName_EmptyFragment(t *testing.T) {
	e := NewEngine(&stubEmbedder{}, &stubVectorRepo{}, 5)
	_, err := e.ResolveCourseName(context.Background(), "   ")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCourseNotFound)
}

func TestSearch(t *testing.T) {
	repo := &stubVectorRepo{
		chunkHits: []*ChunkHit{
			{Content: " first hit ", CourseTitle: "Course A", LessonNumber: 1, ChunkIndex: 0, Score: 0.2},
			{Content: "second hit", CourseTitle: "Course A", LessonNumber: 2, ChunkIndex: 3, Score: 0.5},
		},
	}
	e := NewEngine(&stubEmbedder{}, repo, 5)

	results, err := e.Search(context.Background(), SearchInput{Query: "what is a vector"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "first hit", results[0].Content)
	assert.InDelta(t, 0.8, results[0].Similarity, 1e-6)
	assert.InDelta(t, 0.5, results[1].Similarity, 1e-6)
	assert.Equal(t, 3, results[1].ChunkIndex)

	require.NotNil(t, repo.lastChunkParams)
	assert.Equal(t, 5, repo.lastChunkParams.TopK)
	assert.Empty(t, repo.lastChunkParams.CourseTitle)
}

func TestSearch_ResolvesCourseName(t *testing.T) {
	repo := &stubVectorRepo{
		catalogHit: &CatalogHit{Title: "Advanced Retrieval"},
		chunkHits:  []*ChunkHit{{Content: "hit", CourseTitle: "Advanced Retrieval", LessonNumber: 4}},
	}
	e := NewEngine(&stubEmbedder{}, repo, 5)

	lesson := 4
	results, err := e.Search(context.Background(), SearchInput{
		Query:        "chunking",
		CourseName:   "retrieval",
		LessonNumber: &lesson,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// 过滤条件使用解析后的精确标题
	assert.Equal(t, "Advanced Retrieval", repo.lastChunkParams.CourseTitle)
	require.NotNil(t, repo.lastChunkParams.LessonNumber)
	assert.Equal(t, 4, *repo.lastChunkParams.LessonNumber)
}

func TestSearch_CourseNotFound(t *testing.T) {
	e := NewEngine(&stubEmbedder{}, &stubVectorRepo{}, 5)

	_, err := e.Search(context.Background(), SearchInput{Query: "q", CourseName: "missing"})
	require.ErrorIs(t, err, ErrCourseNotFound)
}

func TestSearch_EmptyQuery(t *testing.T) {
	e := NewEngine(&stubEmbedder{}, &stubVectorRepo{}, 5)
	_, err := e.Search(context.Background(), SearchInput{Query: "  "})
	require.Error(t, err)
}

func TestSearch_TopKOverride(t *testing.T) {
	repo := &stubVectorRepo{}
	e := NewEngine(&stubEmbedder{}, repo, 5)

	_, err := e.Search(context.Background(), SearchInput{Query: "q", TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.lastChunkParams.TopK)
}

func TestGetLessonLink(t *testing.T) {
	repo := &stubVectorRepo{
		listHits: []*CatalogHit{
			{
				Title: "Course A",
				Link:  "https://example.com/a",
				LessonsJSON: mustLessonsJSON(t, []LessonRef{
					{Number: 1, Title: "One", Link: "https://example.com/a/1"},
					{Number: 2, Title: "Two"},
				}),
			},
		},
	}
	e := NewEngine(&stubEmbedder{}, repo, 5)

	ctx := context.Background()
	assert.Equal(t, "https://example.com/a/1", e.GetLessonLink(ctx, "Course A", 1))
	assert.Empty(t, e.GetLessonLink(ctx, "Course A", 2))
	assert.Empty(t, e.GetLessonLink(ctx, "Course A", 99))
	assert.Empty(t, e.GetLessonLink(ctx, "Unknown Course", 1))

	assert.Equal(t, "https://example.com/a", e.GetCourseLink(ctx, "Course A"))
	assert.Empty(t, e.GetCourseLink(ctx, "Unknown Course"))
}

func TestListOutlines(t *testing.T) {
	repo := &stubVectorRepo{
		listHits: []*CatalogHit{
			{
				Title:      "Course A",
				Instructor: "Alice",
				LessonsJSON: mustLessonsJSON(t, []LessonRef{
					{Number: 1, Title: "One"},
				}),
			},
			{Title: "Course B", LessonsJSON: "{corrupt"},
		},
	}
	e := NewEngine(&stubEmbedder{}, repo, 5)

	outlines, err := e.ListOutlines(context.Background())
	require.NoError(t, err)
	require.Len(t, outlines, 2)

	assert.Equal(t, "Course A", outlines[0].Title)
	require.Len(t, outlines[0].Lessons, 1)
	assert.Equal(t, "One", outlines[0].Lessons[0].Title)

	// 大纲 JSON 损坏时仍保留标题条目
	assert.Equal(t, "Course B", outlines[1].Title)
	assert.Nil(t, outlines[1].Lessons)
}

func TestListCourseTitles(t *testing.T) {
	repo := &stubVectorRepo{
		listHits: []*CatalogHit{{Title: "A"}, {Title: "B"}},
	}
	e := NewEngine(&stubEmbedder{}, repo, 5)

	titles, err := e.ListCourseTitles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, titles)
}

func TestEngine_Disabled(t *testing.T) {
	e := NewEngine(nil, nil, 5)
	_, err := e.Search(context.Background(), SearchInput{Query: "q"})
	require.ErrorIs(t, err, ErrVectorDisabled)

	_, err = e.ResolveCourseName(context.Background(), "q")
	require.ErrorIs(t, err, ErrVectorDisabled)
}
