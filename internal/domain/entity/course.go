// Package entity 定义领域实体
package entity

import "strings"

// Course 课程。标题为全局唯一主键，摄取后不可变。
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Lesson 课时。编号在所属课程内唯一。
type Lesson struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
	Body   string `json:"body"`
}

// NewCourse 创建课程实体
func NewCourse(title, link, instructor string) *Course {
	return &Course{
		Title:      strings.TrimSpace(title),
		Link:       strings.TrimSpace(link),
		Instructor: strings.TrimSpace(instructor),
	}
}

// LessonByNumber 按编号查找课时，未找到返回 nil
func (c *Course) LessonByNumber(number int) *Lesson {
	for i := range c.Lessons {
		if c.Lessons[i].Number == number {
			return &c.Lessons[i]
		}
	}
	return nil
}

// CourseChunk 课时正文的定长分片，向量索引的最小单元。
// ChunkIndex 为分片在整个课程内的序号，用于幂等重建与上下文扩展。
type CourseChunk struct {
	Content      string `json:"content"`
	CourseTitle  string `json:"course_title"`
	LessonNumber int    `json:"lesson_number"`
	ChunkIndex   int    `json:"chunk_index"`
}
