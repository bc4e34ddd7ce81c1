package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-rag-api/internal/application/retrieval"
	"course-rag-api/internal/application/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0}
	}
	return out, nil
}

type stubVectorRepo struct {
	listHits []*retrieval.CatalogHit
	listErr  error
}

func (s *stubVectorRepo) EnsureCollections(context.Context) error { return nil }

func (s *stubVectorRepo) HasCourse(context.Context, string) (bool, error) { return false, nil }

func (s *stubVectorRepo) InsertCatalogEntry(context.Context, *retrieval.VectorCatalogEntry) error {
	return nil
}

func (s *stubVectorRepo) InsertChunks(context.Context, []*retrieval.VectorChunk) error { return nil }

func (s *stubVectorRepo) SearchCatalog(context.Context, []float32) (*retrieval.CatalogHit, error) {
	return nil, nil
}

func (s *stubVectorRepo) SearchChunks(context.Context, *retrieval.VectorSearchParams) ([]*retrieval.ChunkHit, error) {
	return nil, nil
}

func (s *stubVectorRepo) ListCatalog(context.Context) ([]*retrieval.CatalogHit, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.listHits, nil
}

func TestSessionHandler_Clear(t *testing.T) {
	store := session.NewStore(2)
	id := store.Create()
	store.Append(id, "q", "a")

	r := gin.New()
	r.DELETE("/api/session/:session_id", NewSessionHandler(store).Clear)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/session/"+id, nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Code int `json:"code"`
		Data struct {
			SessionID string `json:"session_id"`
			Cleared   bool   `json:"cleared"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 200, resp.Code)
	assert.Equal(t, id, resp.Data.SessionID)
	assert.True(t, resp.Data.Cleared)

	assert.Empty(t, store.Formatted(id))
}

func TestSessionHandler_ClearNotFound(t *testing.T) {
	r := gin.New()
	r.DELETE("/api/session/:session_id", NewSessionHandler(session.NewStore(2)).Clear)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/session/unknown", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCourseHandler_Stats(t *testing.T) {
	repo := &stubVectorRepo{
		listHits: []*retrieval.CatalogHit{
			{Title: "Course A"},
			{Title: "Course B"},
		},
	}
	engine := retrieval.NewEngine(stubEmbedder{}, repo, 5)

	r := gin.New()
	r.GET("/api/courses", NewCourseHandler(engine).Stats)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			TotalCourses int      `json:"total_courses"`
			CourseTitles []string `json:"course_titles"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.TotalCourses)
	assert.Equal(t, []string{"Course A", "Course B"}, resp.Data.CourseTitles)
}

func TestCourseHandler_StatsUnavailable(t *testing.T) {
	repo := &stubVectorRepo{listErr: assert.AnError}
	engine := retrieval.NewEngine(stubEmbedder{}, repo, 5)

	r := gin.New()
	r.GET("/api/courses", NewCourseHandler(engine).Stats)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCourseHandler_Outlines(t *testing.T) {
	repo := &stubVectorRepo{
		listHits: []*retrieval.CatalogHit{
			{Title: "Course A", Link: "https://example.com/a", LessonsJSON: `[{"number":1,"title":"One"}]`},
		},
	}
	engine := retrieval.NewEngine(stubEmbedder{}, repo, 5)

	r := gin.New()
	r.GET("/api/courses/outlines", NewCourseHandler(engine).Outlines)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/courses/outlines", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []retrieval.CourseOutline `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Course A", resp.Data[0].Title)
	require.Len(t, resp.Data[0].Lessons, 1)
	assert.Equal(t, 1, resp.Data[0].Lessons[0].Number)
}

func TestChatHandler_RejectsInvalidBody(t *testing.T) {
	store := session.NewStore(2)
	r := gin.New()
	r.POST("/api/query", NewChatHandler(nil, store).Query)

	cases := []struct {
		name string
		body string
	}{
		{"not json", "{broken"},
		{"missing query", `{}`},
		{"blank query", `{"query":"   "}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}
