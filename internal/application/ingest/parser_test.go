package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "course-rag-api/pkg/errors"
)

const sampleDoc = `Course Title: Building RAG Applications
Course Link: https://example.com/courses/rag
Course Instructor: Jane Smith

Lesson 1: Introduction
Lesson Link: https://example.com/courses/rag/lesson/1
Welcome to the course.
This lesson covers the basics.

Lesson 2: Vector Stores
Vector stores hold embeddings.
`

func TestParseDocument(t *testing.T) {
	course, err := ParseDocument(sampleDoc, "rag.txt")
	require.NoError(t, err)

	assert.Equal(t, "Building RAG Applications", course.Title)
	assert.Equal(t, "https://example.com/courses/rag", course.Link)
	assert.Equal(t, "Jane Smith", course.Instructor)
	require.Len(t, course.Lessons, 2)

	first := course.Lessons[0]
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, "Introduction", first.Title)
	assert.Equal(t, "https://example.com/courses/rag/lesson/1", first.Link)
	assert.Equal(t, "Welcome to the course.\nThis lesson covers the basics.", first.Body)

	second := course.Lessons[1]
	assert.Equal(t, 2, second.Number)
	assert.Equal(t, "Vector Stores", second.Title)
	assert.Empty(t, second.Link)
	assert.Equal(t, "Vector stores hold embeddings.", second.Body)
}

func TestParseDocument_MissingTitle(t *testing.T) {
	doc := "Course Instructor: Nobody\n\nLesson 1: Intro\nBody text.\n"
	course, err := ParseDocument(doc, "broken.txt")
	require.Error(t, err)
	assert.Nil(t, course)

	var appErr *pkgerrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.CodeDocumentInvalid, appErr.Code)
}

func TestParseDocument_CRLF(t *testing.T) {
	doc := "Course Title: CRLF Course\r\n\r\nLesson 1: Only\r\nLine one.\r\nLine two.\r\n"
	course, err := ParseDocument(doc, "crlf.txt")
	require.NoError(t, err)
	assert.Equal(t, "CRLF Course", course.Title)
	require.Len(t, course.Lessons, 1)
	assert.Equal(t, "Line one.\nLine two.", course.Lessons[0].Body)
}

func TestParseDocument_NoLessons(t *testing.T) {
	course, err := ParseDocument("Course Title: Header Only\n", "header.txt")
	require.NoError(t, err)
	assert.Equal(t, "Header Only", course.Title)
	assert.Empty(t, course.Lessons)
}

func TestParseDocument_LessonLinkMustBeFirstBodyLine(t *testing.T) {
	doc := `Course Title: Link Position

Lesson 1: Intro
Some text first.
Lesson Link: https://example.com/late
`
	course, err := ParseDocument(doc, "pos.txt")
	require.NoError(t, err)
	require.Len(t, course.Lessons, 1)

	// 非首行的 Lesson Link 按普通正文处理
	assert.Empty(t, course.Lessons[0].Link)
	assert.Contains(t, course.Lessons[0].Body, "Lesson Link: https://example.com/late")
}

func TestParseDocument_LessonMarkerVariants(t *testing.T) {
	doc := "Course Title: Markers\n\nLesson 10: Double Digits\nContent here.\n"
	course, err := ParseDocument(doc, "markers.txt")
	require.NoError(t, err)
	require.Len(t, course.Lessons, 1)
	assert.Equal(t, 10, course.Lessons[0].Number)
	assert.Equal(t, "Double Digits", course.Lessons[0].Title)
}
