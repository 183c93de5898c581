package core

import "context"

type LLMMessageRole string

const (
	LLMMessageRoleUser      LLMMessageRole = "user"
	LLMMessageRoleAssistant LLMMessageRole = "assistant"
	LLMMessageRoleSystem    LLMMessageRole = "system"
)

// LLMMessage represents a message exchanged with the LLM.
type LLMMessage struct {
	Role    LLMMessageRole `json:"role"`    // Role of the message sender (e.g., user, assistant, system).
	Message string         `json:"message"` // Content of the message.
}

// LLMResponseFormat selects how the model is asked to shape its reply.
type LLMResponseFormat string

const (
	LLMResponseFormatText LLMResponseFormat = "text"
	LLMResponseFormatJSON LLMResponseFormat = "json_object"
)

type LLMContext struct {
	Messages       []LLMMessage
	ResponseFormat LLMResponseFormat
}

func (c *LLMContext) AddSystemMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleSystem, Message: text})
}

func (c *LLMContext) AddUserMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleUser, Message: text})
}

func (c *LLMContext) AddAssistantMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleAssistant, Message: text})
}

// GetLastAssistantMessage returns the most recent assistant message, or "".
func (c *LLMContext) GetLastAssistantMessage() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == LLMMessageRoleAssistant {
			return c.Messages[i].Message
		}
	}
	return ""
}

// LLMService produces a single completion for a conversation.
type LLMService interface {
	Complete(ctx context.Context, llmContext LLMContext) (string, error)
	Name() string
}
