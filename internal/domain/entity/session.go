package entity

import "time"

// Turn 一轮对话：一条用户消息与对应的助手回答
type Turn struct {
	UserText      string    `json:"user_text"`
	AssistantText string    `json:"assistant_text"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewTurn 创建对话轮次
func NewTurn(userText, assistantText string) Turn {
	return Turn{
		UserText:      userText,
		AssistantText: assistantText,
		CreatedAt:     time.Now(),
	}
}
