package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"course-rag-api/internal/domain/entity"
	"course-rag-api/pkg/errors"
)

const (
	headerTitlePrefix      = "Course Title:"
	headerLinkPrefix       = "Course Link:"
	headerInstructorPrefix = "Course Instructor:"
	lessonLinkPrefix       = "Lesson Link:"
)

var lessonMarkerRe = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

// ParseDocument 解析课程文档。格式为头部块（Course Title/Link/Instructor）
// 加若干以 "Lesson <n>: <title>" 开头的课时块，课时首行后可跟 "Lesson Link:" 行。
// 头部缺失标题视为文档非法，整篇拒绝摄取。
func ParseDocument(raw, source string) (*entity.Course, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	course := &entity.Course{}
	var current *entity.Lesson
	var body strings.Builder
	inHeader := true

	flushLesson := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(body.String())
		course.Lessons = append(course.Lessons, *current)
		current = nil
		body.Reset()
	}

	for _, line := range lines {
		if m := lessonMarkerRe.FindStringSubmatch(line); m != nil {
			flushLesson()
			inHeader = false
			number, _ := strconv.Atoi(m[1])
			current = &entity.Lesson{
				Number: number,
				Title:  strings.TrimSpace(m[2]),
			}
			continue
		}

		if inHeader {
			switch {
			case strings.HasPrefix(line, headerTitlePrefix):
				course.Title = strings.TrimSpace(strings.TrimPrefix(line, headerTitlePrefix))
			case strings.HasPrefix(line, headerLinkPrefix):
				course.Link = strings.TrimSpace(strings.TrimPrefix(line, headerLinkPrefix))
			case strings.HasPrefix(line, headerInstructorPrefix):
				course.Instructor = strings.TrimSpace(strings.TrimPrefix(line, headerInstructorPrefix))
			}
			continue
		}

		if current != nil && current.Link == "" && body.Len() == 0 && strings.HasPrefix(line, lessonLinkPrefix) {
			current.Link = strings.TrimSpace(strings.TrimPrefix(line, lessonLinkPrefix))
			continue
		}

		if current != nil {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	flushLesson()

	if course.Title == "" {
		return nil, errors.New(errors.CodeDocumentInvalid, "course document missing title").
			WithDetail("source: " + source)
	}

	return course, nil
}
