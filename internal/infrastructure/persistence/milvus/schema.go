// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionCourseCatalog 课程目录集合（粗粒度，每门课程一条）
	CollectionCourseCatalog = "course_catalog"
	// CollectionCourseContent 课程内容集合（细粒度，每个分片一条）
	CollectionCourseContent = "course_content"

	// VectorDimension 向量维度
	VectorDimension = 1536
)

// CourseCatalogSchema 课程目录 Collection Schema
// 向量由课程元信息文本生成，用于模糊课程名解析
func CourseCatalogSchema() *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionCourseCatalog,
		Description:    "Course metadata for fuzzy course name resolution",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": "1536",
				},
			},
			{
				Name:     "title",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "instructor",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "256",
				},
			},
			{
				Name:     "link",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				Name:     "lessons_json",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
		},
	}
}

// CourseContentSchema 课程内容 Collection Schema
func CourseContentSchema() *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionCourseContent,
		Description:    "Course content chunks for semantic search",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": "1536",
				},
			},
			{
				Name:     "course_title",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "lesson_number",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
		},
	}
}

// CatalogEntry 课程目录数据结构
type CatalogEntry struct {
	ID          string    `json:"id"`
	Vector      []float32 `json:"vector"`
	Title       string    `json:"title"`
	Instructor  string    `json:"instructor"`
	Link        string    `json:"link"`
	LessonsJSON string    `json:"lessons_json"`
}

// ContentChunk 课程内容分片数据结构
type ContentChunk struct {
	ID           string    `json:"id"`
	Vector       []float32 `json:"vector"`
	CourseTitle  string    `json:"course_title"`
	LessonNumber int64     `json:"lesson_number"`
	ChunkIndex   int64     `json:"chunk_index"`
	Content      string    `json:"content"`
}
