package milvus

import (
	"context"

	"course-rag-api/internal/application/retrieval"
)

// RetrievalVectorRepository 将 Milvus 仓储适配为应用层的 VectorRepository port
type RetrievalVectorRepository struct {
	repo *Repository
}

func NewRetrievalVectorRepository(repo *Repository) *RetrievalVectorRepository {
	return &RetrievalVectorRepository{repo: repo}
}

var _ retrieval.VectorRepository = (*RetrievalVectorRepository)(nil)

func (r *RetrievalVectorRepository) EnsureCollections(ctx context.Context) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	return r.repo.EnsureCollections(ctx)
}

func (r *RetrievalVectorRepository) HasCourse(ctx context.Context, title string) (bool, error) {
	if r == nil || r.repo == nil {
		return false, retrieval.ErrVectorDisabled
	}
	return r.repo.HasCourse(ctx, title)
}

func (r *RetrievalVectorRepository) InsertCatalogEntry(ctx context.Context, entry *retrieval.VectorCatalogEntry) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	if entry == nil {
		return nil
	}
	return r.repo.InsertCatalogEntry(ctx, &CatalogEntry{
		ID:          entry.ID,
		Vector:      entry.Vector,
		Title:       entry.Title,
		Instructor:  entry.Instructor,
		Link:        entry.Link,
		LessonsJSON: entry.LessonsJSON,
	})
}

func (r *RetrievalVectorRepository) InsertChunks(ctx context.Context, chunks []*retrieval.VectorChunk) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	if len(chunks) == 0 {
		return nil
	}

	out := make([]*ContentChunk, 0, len(chunks))
	for i := range chunks {
		c := chunks[i]
		if c == nil {
			continue
		}
		out = append(out, &ContentChunk{
			ID:           c.ID,
			Vector:       c.Vector,
			CourseTitle:  c.CourseTitle,
			LessonNumber: int64(c.LessonNumber),
			ChunkIndex:   int64(c.ChunkIndex),
			Content:      c.Content,
		})
	}
	return r.repo.InsertChunks(ctx, out)
}

func (r *RetrievalVectorRepository) SearchCatalog(ctx context.Context, queryVector []float32) (*retrieval.CatalogHit, error) {
	if r == nil || r.repo == nil {
		return nil, retrieval.ErrVectorDisabled
	}
	hit, err := r.repo.SearchCatalog(ctx, queryVector)
	if err != nil {
		return nil, err
	}
	if hit == nil {
		return nil, nil
	}
	return &retrieval.CatalogHit{
		ID:          hit.ID,
		Score:       hit.Score,
		Title:       hit.Title,
		Instructor:  hit.Instructor,
		Link:        hit.Link,
		LessonsJSON: hit.LessonsJSON,
	}, nil
}

func (r *RetrievalVectorRepository) SearchChunks(ctx context.Context, params *retrieval.VectorSearchParams) ([]*retrieval.ChunkHit, error) {
	if r == nil || r.repo == nil {
		return nil, retrieval.ErrVectorDisabled
	}
	if params == nil {
		return nil, nil
	}

	out, err := r.repo.SearchChunks(ctx, &ChunkSearchParams{
		QueryVector:  params.QueryVector,
		CourseTitle:  params.CourseTitle,
		LessonNumber: params.LessonNumber,
		TopK:         params.TopK,
	})
	if err != nil {
		return nil, err
	}

	results := make([]*retrieval.ChunkHit, 0, len(out))
	for i := range out {
		h := out[i]
		if h == nil {
			continue
		}
		results = append(results, &retrieval.ChunkHit{
			ID:           h.ID,
			Score:        h.Score,
			Content:      h.Content,
			CourseTitle:  h.CourseTitle,
			LessonNumber: int(h.LessonNumber),
			ChunkIndex:   int(h.ChunkIndex),
		})
	}
	return results, nil
}

func (r *RetrievalVectorRepository) ListCatalog(ctx context.Context) ([]*retrieval.CatalogHit, error) {
	if r == nil || r.repo == nil {
		return nil, retrieval.ErrVectorDisabled
	}
	entries, err := r.repo.ListCatalog(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*retrieval.CatalogHit, 0, len(entries))
	for i := range entries {
		e := entries[i]
		if e == nil {
			continue
		}
		out = append(out, &retrieval.CatalogHit{
			ID:          e.ID,
			Title:       e.Title,
			Instructor:  e.Instructor,
			Link:        e.Link,
			LessonsJSON: e.LessonsJSON,
		})
	}
	return out, nil
}
