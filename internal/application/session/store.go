// Package session 提供进程级会话历史存储。
// 历史只保留最近 N 轮（FIFO 淘汰），进程退出即丢弃。
package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"course-rag-api/internal/domain/entity"
	"course-rag-api/pkg/metrics"
)

const defaultMaxTurns = 2

type conversation struct {
	mu    sync.Mutex
	turns []entity.Turn
}

// Store 会话存储。不同会话互相独立，同一会话的读写串行化。
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*conversation
	maxTurns int
}

// NewStore 创建会话存储
func NewStore(maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &Store{
		sessions: make(map[string]*conversation),
		maxTurns: maxTurns,
	}
}

// Create 创建新会话并返回其标识
func (s *Store) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &conversation{}
	s.mu.Unlock()
	metrics.ActiveSessions.Inc()
	return id
}

// Append 追加一轮对话；超出上限时淘汰最旧的一轮。
// 会话不存在时惰性创建（调用方可能携带上一进程遗留的会话标识）。
func (s *Store) Append(sessionID, userText, assistantText string) {
	conv := s.getOrCreate(sessionID)

	conv.mu.Lock()
	defer conv.mu.Unlock()

	conv.turns = append(conv.turns, entity.NewTurn(userText, assistantText))
	if overflow := len(conv.turns) - s.maxTurns; overflow > 0 {
		conv.turns = conv.turns[overflow:]
	}
}

// Formatted 渲染会话的保留轮次为单段对话上下文文本，无历史时返回空串
func (s *Store) Formatted(sessionID string) string {
	s.mu.RLock()
	conv, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return ""
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	if len(conv.turns) == 0 {
		return ""
	}

	var b strings.Builder
	for i, turn := range conv.turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("User: %s\nAssistant: %s", turn.UserText, turn.AssistantText))
	}
	return b.String()
}

// Clear 清空并移除会话，会话不存在时返回 false
func (s *Store) Clear(sessionID string) bool {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if ok {
		metrics.ActiveSessions.Dec()
	}
	return ok
}

// Count 当前会话数
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) getOrCreate(sessionID string) *conversation {
	s.mu.RLock()
	conv, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return conv
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok = s.sessions[sessionID]; ok {
		return conv
	}
	conv = &conversation{}
	s.sessions[sessionID] = conv
	metrics.ActiveSessions.Inc()
	return conv
}
