package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateAndFormatted(t *testing.T) {
	s := NewStore(2)

	id := s.Create()
	require.NotEmpty(t, id)
	assert.Empty(t, s.Formatted(id))

	s.Append(id, "What is MCP?", "MCP is a protocol.")
	assert.Equal(t, "User: What is MCP?\nAssistant: MCP is a protocol.", s.Formatted(id))

	s.Append(id, "Tell me more.", "It standardizes tool access.")
	assert.Equal(t,
		"User: What is MCP?\nAssistant: MCP is a protocol.\n"+
			"User: Tell me more.\nAssistant: It standardizes tool access.",
		s.Formatted(id))
}

func TestStore_EvictsOldestTurns(t *testing.T) {
	s := NewStore(2)
	id := s.Create()

	s.Append(id, "q1", "a1")
	s.Append(id, "q2", "a2")
	s.Append(id, "q3", "a3")

	got := s.Formatted(id)
	assert.NotContains(t, got, "q1")
	assert.Contains(t, got, "q2")
	assert.Contains(t, got, "q3")
	// 最旧的一轮先被淘汰
	assert.Equal(t, "User: q2\nAssistant: a2\nUser: q3\nAssistant: a3", got)
}

func TestStore_UnknownSession(t *testing.T) {
	s := NewStore(2)
	assert.Empty(t, s.Formatted("missing"))
	assert.False(t, s.Clear("missing"))
}

func TestStore_AppendCreatesLazily(t *testing.T) {
	s := NewStore(2)

	// 调用方可能携带上一进程遗留的会话标识
	s.Append("carried-over", "q", "a")
	assert.Equal(t, "User: q\nAssistant: a", s.Formatted("carried-over"))
	assert.Equal(t, 1, s.Count())
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(2)
	id := s.Create()
	s.Append(id, "q", "a")

	assert.True(t, s.Clear(id))
	assert.Empty(t, s.Formatted(id))
	assert.Zero(t, s.Count())

	// 二次清除返回 false
	assert.False(t, s.Clear(id))
}

func TestStore_SessionsAreIsolated(t *testing.T) {
	s := NewStore(2)
	a := s.Create()
	b := s.Create()

	s.Append(a, "question a", "answer a")
	s.Append(b, "question b", "answer b")

	assert.NotContains(t, s.Formatted(a), "question b")
	assert.NotContains(t, s.Formatted(b), "question a")
}

func TestStore_DefaultMaxTurns(t *testing.T) {
	s := NewStore(0)
	id := s.Create()
	for i := 0; i < 5; i++ {
		s.Append(id, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}
	got := s.Formatted(id)
	assert.NotContains(t, got, "q2")
	assert.Contains(t, got, "q3")
	assert.Contains(t, got, "q4")
}

func TestStore_ConcurrentAppend(t *testing.T) {
	s := NewStore(4)
	id := s.Create()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Append(id, fmt.Sprintf("q%d", n), fmt.Sprintf("a%d", n))
		}(i)
	}
	wg.Wait()

	// 并发追加后仍只保留上限轮数
	got := s.Formatted(id)
	assert.NotEmpty(t, got)
	assert.Equal(t, 1, s.Count())
}
