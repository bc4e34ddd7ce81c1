package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-rag-api/internal/application/retrieval"
	"course-rag-api/internal/application/session"
	pkgerrors "course-rag-api/pkg/errors"
)

type modelCall struct {
	messages []*schema.Message
	bound    bool
	tools    []*schema.ToolInfo
}

type modelState struct {
	mu      sync.Mutex
	replies []*schema.Message
	err     error
	calls   []modelCall
}

// scriptedModel 按预设脚本逐次返回回复，并记录每次调用是否绑定了工具
type scriptedModel struct {
	state *modelState
	bound bool
	tools []*schema.ToolInfo
}

var _ model.ToolCallingChatModel = (*scriptedModel)(nil)

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	m.state.calls = append(m.state.calls, modelCall{
		messages: input,
		bound:    m.bound,
		tools:    m.tools,
	})
	if m.state.err != nil {
		return nil, m.state.err
	}
	if len(m.state.replies) == 0 {
		return nil, fmt.Errorf("no scripted reply left")
	}
	reply := m.state.replies[0]
	m.state.replies = m.state.replies[1:]
	return reply, nil
}

func (m *scriptedModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not supported")
}

func (m *scriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return &scriptedModel{state: m.state, bound: true, tools: tools}, nil
}

func newScriptedModel(replies ...*schema.Message) *scriptedModel {
	return &scriptedModel{state: &modelState{replies: replies}}
}

func assistantReply(content string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: content}
}

func toolCallReply(id, name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{ID: id, Function: schema.FunctionCall{Name: name, Arguments: args}},
		},
	}
}

func searchableRepo() *fakeVectorRepo {
	return &fakeVectorRepo{
		chunkHits: []*retrieval.ChunkHit{
			{Content: "Chunk one.", CourseTitle: "Course A", LessonNumber: 1, Score: 0.1},
		},
	}
}

func TestAnswer_DirectReply(t *testing.T) {
	m := newScriptedModel(assistantReply("Paris is the capital of France."))
	sessions := session.NewStore(2)
	o := NewOrchestrator(m, newTestTool(&fakeVectorRepo{}), sessions)

	answer, sources, err := o.Answer(context.Background(), "s1", "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", answer)
	assert.Nil(t, sources)

	// 仅一次模型调用，且携带检索工具声明
	require.Len(t, m.state.calls, 1)
	first := m.state.calls[0]
	assert.True(t, first.bound)
	require.Len(t, first.tools, 1)
	assert.Equal(t, ToolNameSearchCourseContent, first.tools[0].Name)

	// 历史已落会话
	assert.Contains(t, sessions.Formatted("s1"), "Paris is the capital of France.")
}

func TestAnswer_ToolRound(t *testing.T) {
	m := newScriptedModel(
		toolCallReply("call-1", ToolNameSearchCourseContent, `{"query":"what is mcp"}`),
		assistantReply("MCP is covered in Lesson 1."),
	)
	sessions := session.NewStore(2)
	o := NewOrchestrator(m, newTestTool(searchableRepo()), sessions)

	answer, sources, err := o.Answer(context.Background(), "s1", "What is MCP?")
	require.NoError(t, err)
	assert.Equal(t, "MCP is covered in Lesson 1.", answer)

	require.Len(t, sources, 1)
	assert.Equal(t, "Course A - Lesson 1", sources[0].Text)

	// 恰好两次调用：第一次绑定工具，第二次不绑定
	require.Len(t, m.state.calls, 2)
	assert.True(t, m.state.calls[0].bound)
	assert.False(t, m.state.calls[1].bound)

	// 第二次调用的消息序列包含助手的工具请求与工具结果
	second := m.state.calls[1].messages
	require.GreaterOrEqual(t, len(second), 4)
	toolMsg := second[len(second)-1]
	assert.Equal(t, schema.Tool, toolMsg.Role)
	assert.Equal(t, "call-1", toolMsg.ToolCallID)
	assert.Equal(t, "[Course A - Lesson 1]\nChunk one.", toolMsg.Content)
}

func TestAnswer_UnknownToolFolded(t *testing.T) {
	m := newScriptedModel(
		toolCallReply("call-1", "bogus_tool", `{}`),
		assistantReply("final"),
	)
	o := NewOrchestrator(m, newTestTool(&fakeVectorRepo{}), session.NewStore(2))

	answer, sources, err := o.Answer(context.Background(), "s1", "q")
	require.NoError(t, err)
	assert.Equal(t, "final", answer)
	assert.Empty(t, sources)

	second := m.state.calls[1].messages
	toolMsg := second[len(second)-1]
	assert.Equal(t, "Tool 'bogus_tool' is not available.", toolMsg.Content)
}

func TestAnswer_ToolFailureFolded(t *testing.T) {
	m := newScriptedModel(
		toolCallReply("call-1", ToolNameSearchCourseContent, `{"query":"q"}`),
		assistantReply("degraded answer"),
	)
	repo := &fakeVectorRepo{searchErr: assert.AnError}
	o := NewOrchestrator(m, newTestTool(repo), session.NewStore(2))

	answer, _, err := o.Answer(context.Background(), "s1", "q")
	require.NoError(t, err)
	assert.Equal(t, "degraded answer", answer)

	second := m.state.calls[1].messages
	toolMsg := second[len(second)-1]
	assert.Contains(t, toolMsg.Content, "Tool execution failed:")
}

func TestAnswer_EmptyQuery(t *testing.T) {
	o := NewOrchestrator(newScriptedModel(), newTestTool(&fakeVectorRepo{}), session.NewStore(2))

	_, _, err := o.Answer(context.Background(), "s1", "   ")
	require.Error(t, err)

	var appErr *pkgerrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.CodeInvalidParam, appErr.Code)
}

func TestAnswer_ModelFailure(t *testing.T) {
	m := newScriptedModel()
	m.state.err = assert.AnError
	o := NewOrchestrator(m, newTestTool(&fakeVectorRepo{}), session.NewStore(2))

	_, _, err := o.Answer(context.Background(), "s1", "q")
	require.Error(t, err)

	var appErr *pkgerrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.CodeLLMCallFailed, appErr.Code)
}

func TestAnswer_HistoryInSystemPrompt(t *testing.T) {
	m := newScriptedModel(assistantReply("second answer"))
	sessions := session.NewStore(2)
	sessions.Append("s1", "earlier question", "earlier answer")

	o := NewOrchestrator(m, newTestTool(&fakeVectorRepo{}), sessions)
	_, _, err := o.Answer(context.Background(), "s1", "follow-up")
	require.NoError(t, err)

	sysMsg := m.state.calls[0].messages[0]
	assert.Equal(t, schema.System, sysMsg.Role)
	assert.Contains(t, sysMsg.Content, "Previous conversation:")
	assert.Contains(t, sysMsg.Content, "User: earlier question")
	assert.Contains(t, sysMsg.Content, "Assistant: earlier answer")
}

func TestAnswer_NoHistoryOmitsPreamble(t *testing.T) {
	m := newScriptedModel(assistantReply("answer"))
	o := NewOrchestrator(m, newTestTool(&fakeVectorRepo{}), session.NewStore(2))

	_, _, err := o.Answer(context.Background(), "fresh", "q")
	require.NoError(t, err)

	sysMsg := m.state.calls[0].messages[0]
	assert.NotContains(t, sysMsg.Content, "Previous conversation:")
}
