package ingest

import (
	"strings"
	"unicode"
)

// splitLessonBody 将课时正文切分为带重叠的定长分片。
// 切分点在回溯窗口内优先选择句末标点后的空白，其次是任意空白，避免截断单词；
// 回溯窗口内没有干净断点时退化为定宽硬切。
func splitLessonBody(s string, sizeRunes, overlapRunes, lookbackRunes int) []string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil
	}
	if sizeRunes <= 0 {
		return []string{raw}
	}
	if overlapRunes < 0 || overlapRunes >= sizeRunes {
		overlapRunes = 0
	}
	if lookbackRunes < 0 || lookbackRunes >= sizeRunes {
		lookbackRunes = 0
	}

	runes := []rune(raw)
	if len(runes) <= sizeRunes {
		return []string{raw}
	}

	out := make([]string, 0, (len(runes)/(sizeRunes-overlapRunes))+1)
	start := 0
	for start < len(runes) {
		end := start + sizeRunes
		if end >= len(runes) {
			chunk := strings.TrimSpace(string(runes[start:]))
			if chunk != "" {
				out = append(out, chunk)
			}
			break
		}

		cut := findBreak(runes, start, end, lookbackRunes)
		chunk := strings.TrimSpace(string(runes[start:cut]))
		if chunk != "" {
			out = append(out, chunk)
		}

		next := cut - overlapRunes
		if next <= start {
			// 断点回溯过深时放弃重叠，保证窗口前进
			next = cut
		}
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return out
}

// findBreak 在 [end-lookback, end) 内寻找切分点，返回分片的结束下标
func findBreak(runes []rune, start, end, lookback int) int {
	limit := end - lookback
	if limit <= start {
		limit = start + 1
	}

	// 第一优先级：句末标点后跟空白
	for i := end - 1; i >= limit; i-- {
		if isSentenceEnd(runes[i-1]) && unicode.IsSpace(runes[i]) {
			return i
		}
	}

	// 第二优先级：任意空白
	for i := end - 1; i >= limit; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}

	return end
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
