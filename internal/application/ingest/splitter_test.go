package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLessonBody_Empty(t *testing.T) {
	assert.Nil(t, splitLessonBody("", 800, 100, 100))
	assert.Nil(t, splitLessonBody("   \n\t  ", 800, 100, 100))
}

func TestSplitLessonBody_SingleChunk(t *testing.T) {
	body := "A short lesson body that fits in one chunk."
	chunks := splitLessonBody(body, 800, 100, 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, body, chunks[0])
}

func TestSplitLessonBody_TrimsInput(t *testing.T) {
	chunks := splitLessonBody("  hello world  \n", 800, 100, 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0])
}

func TestSplitLessonBody_SentenceBoundary(t *testing.T) {
	body := "Alpha beta. Gamma delta epsilon zeta."
	chunks := splitLessonBody(body, 20, 5, 10)

	require.Equal(t, []string{
		"Alpha beta.",
		"beta. Gamma delta",
		"delta epsilon zeta.",
	}, chunks)
}

func TestSplitLessonBody_BreakAtLookbackEdge(t *testing.T) {
	// 空白恰好落在回溯窗口的起点（end-lookback）上，也应被选为切分点
	body := "abcdefg hijklmnopqrstu"
	chunks := splitLessonBody(body, 10, 0, 3)

	require.Equal(t, []string{
		"abcdefg",
		"hijklmnop",
		"qrstu",
	}, chunks)
}

func TestSplitLessonBody_HardCutWithoutWhitespace(t *testing.T) {
	body := strings.Repeat("a", 25)
	chunks := splitLessonBody(body, 10, 0, 5)

	require.Equal(t, []string{
		strings.Repeat("a", 10),
		strings.Repeat("a", 10),
		strings.Repeat("a", 5),
	}, chunks)
}

func TestSplitLessonBody_ChunkSizeRespected(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("word ")
	}
	chunks := splitLessonBody(b.String(), 100, 20, 30)

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 100)
		assert.NotEmpty(t, c)
	}
}

func TestSplitLessonBody_OverlapCarriesText(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString(string(rune('a'+i%26)) + "word" + string(rune('0'+i%10)) + " ")
	}
	chunks := splitLessonBody(b.String(), 100, 30, 20)
	require.Greater(t, len(chunks), 1)

	// 后一分片的开头应落在前一分片的重叠区间内
	for i := 1; i < len(chunks); i++ {
		head := []rune(chunks[i])
		if len(head) > 10 {
			head = head[:10]
		}
		assert.Contains(t, chunks[i-1], strings.TrimSpace(string(head)))
	}
}

func TestSplitLessonBody_InvalidOverlapFallsBack(t *testing.T) {
	body := strings.Repeat("x", 30)
	// overlap >= size 时按无重叠处理，窗口必须持续前进
	chunks := splitLessonBody(body, 10, 10, 0)
	require.Equal(t, []string{
		strings.Repeat("x", 10),
		strings.Repeat("x", 10),
		strings.Repeat("x", 10),
	}, chunks)
}

func TestSplitLessonBody_CJKSentences(t *testing.T) {
	body := "第一句话。 第二句话内容更长一些。 第三句话收尾。"
	chunks := splitLessonBody(body, 12, 2, 6)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 12)
	}
}
