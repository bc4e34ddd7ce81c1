package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"course-rag-api/internal/application/session"
	"course-rag-api/pkg/errors"
	"course-rag-api/pkg/logger"
	"course-rag-api/pkg/metrics"
)

// Orchestrator 问答编排器，驱动两阶段调用协议：
// 第一次调用携带工具声明，模型可直接作答或请求检索；
// 若请求检索则执行工具并发起第二次调用，第二次调用不再携带工具，
// 从结构上保证每个问题至多一轮检索。
type Orchestrator struct {
	chatModel model.BaseChatModel
	tool      *SearchCourseTool
	sessions  *session.Store
}

// NewOrchestrator 创建问答编排器
func NewOrchestrator(chatModel model.BaseChatModel, searchTool *SearchCourseTool, sessions *session.Store) *Orchestrator {
	return &Orchestrator{
		chatModel: chatModel,
		tool:      searchTool,
		sessions:  sessions,
	}
}

// Answer 回答一个问题，返回答案文本与引用来源。
// 外部服务故障不在内部重试，直接以错误返回给调用方。
func (o *Orchestrator) Answer(ctx context.Context, sessionID, query string) (string, []Source, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil, errors.New(errors.CodeInvalidParam, "query is required")
	}

	start := time.Now()
	toolUsed := "false"
	defer func() {
		metrics.QueryDuration.WithLabelValues(toolUsed).Observe(time.Since(start).Seconds())
	}()

	history := o.sessions.Formatted(sessionID)
	messages := []*schema.Message{
		schema.SystemMessage(buildSystemPrompt(history)),
		schema.UserMessage(query),
	}

	// 第一阶段：绑定工具后调用模型
	first, err := o.bindTools(ctx)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error", toolUsed).Inc()
		return "", nil, err
	}

	reply, err := first.Generate(ctx, messages)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error", toolUsed).Inc()
		return "", nil, errors.Wrap(err, errors.CodeLLMCallFailed, "llm call failed")
	}

	// 模型直接作答，无需检索
	if len(reply.ToolCalls) == 0 {
		answer := strings.TrimSpace(reply.Content)
		o.sessions.Append(sessionID, query, answer)
		metrics.QueryTotal.WithLabelValues("success", toolUsed).Inc()
		return answer, nil, nil
	}

	toolUsed = "true"
	messages = append(messages, reply)

	// 引用来源经本次请求专属的 sourceSink 旁路传递，并发问答互不串扰
	ctx, sink := withSourceSink(ctx)

	// 按请求顺序执行工具调用；单次调用的故障折叠为错误文本结果，
	// 让第二次调用仍能得到一个完整的回答而不是中断整轮。
	for _, tc := range reply.ToolCalls {
		messages = append(messages, schema.ToolMessage(o.runToolCall(ctx, tc), tc.ID))
	}

	sources := sink.take()

	// 第二阶段：在未绑定工具的基础模型上生成最终回答
	final, err := o.chatModel.Generate(ctx, messages)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error", toolUsed).Inc()
		return "", nil, errors.Wrap(err, errors.CodeLLMCallFailed, "llm call failed")
	}

	answer := strings.TrimSpace(final.Content)
	o.sessions.Append(sessionID, query, answer)
	metrics.QueryTotal.WithLabelValues("success", toolUsed).Inc()
	return answer, sources, nil
}

// bindTools 将检索工具绑定到模型；模型不支持工具调用时直接报错
func (o *Orchestrator) bindTools(ctx context.Context) (model.BaseChatModel, error) {
	tcm, ok := o.chatModel.(model.ToolCallingChatModel)
	if !ok {
		return nil, errors.New(errors.CodeLLMProviderError, "chat model does not support tool calling")
	}

	info, err := o.tool.Info(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternalError, "failed to build tool info")
	}

	withTools, err := tcm.WithTools([]*schema.ToolInfo{info})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeLLMProviderError, "failed to bind tools")
	}
	return withTools, nil
}

func (o *Orchestrator) runToolCall(ctx context.Context, tc schema.ToolCall) string {
	if tc.Function.Name != ToolNameSearchCourseContent {
		logger.Warn(ctx, "模型请求了未知工具", "tool", tc.Function.Name)
		return fmt.Sprintf("Tool '%s' is not available.", tc.Function.Name)
	}

	out, err := o.tool.InvokableRun(ctx, tc.Function.Arguments)
	if err != nil {
		logger.Error(ctx, "检索工具执行失败", err, "tool", tc.Function.Name)
		return fmt.Sprintf("Tool execution failed: %v", err)
	}
	return out
}
