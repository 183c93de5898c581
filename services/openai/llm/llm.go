package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"avatarkit/core"

	"github.com/sashabaranov/go-openai"
)

// Defaults match the persona prompt the avatar was tuned with.
const (
	DefaultModel       = "gpt-3.5-turbo-1106"
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.6
)

// OpenAILLMService implements core.LLMService for OpenAI and any
// OpenAI-compatible endpoint.
type OpenAILLMService struct {
	client *openai.Client
	config Config
	logger *core.Logger
}

// Config holds the configuration for OpenAI service
type Config struct {
	APIKey         string  `json:"api_key"`
	BaseURL        string  `json:"base_url,omitempty"`
	Model          string  `json:"model"`
	MaxTokens      int     `json:"max_tokens"`
	Temperature    float32 `json:"temperature"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// ErrEmptyCompletion is returned when the provider answers without any choices.
var ErrEmptyCompletion = errors.New("completion returned no choices")

// NewOpenAILLMService creates a new instance of OpenAILLMService
func NewOpenAILLMService(config Config, logger *core.Logger) *OpenAILLMService {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.Temperature == 0 {
		config.Temperature = DefaultTemperature
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = 60
	}
	if logger == nil {
		logger = core.GetLogger()
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAILLMService{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: logger.With(map[string]interface{}{"service": "openai_llm", "model": config.Model}),
	}
}

func (s *OpenAILLMService) Name() string {
	return "openai"
}

// Validate reports ErrMissingCredentials when no API key is configured.
func (s *OpenAILLMService) Validate() error {
	if s.config.APIKey == "" {
		return fmt.Errorf("openai llm: %w", core.ErrMissingCredentials)
	}
	return nil
}

// Complete runs a single non-streaming completion and returns the first
// choice's content.
func (s *OpenAILLMService) Complete(ctx context.Context, llmContext core.LLMContext) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.config.TimeoutSeconds)*time.Second)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Messages:    s.convertMessages(llmContext.Messages),
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	}
	if llmContext.ResponseFormat == core.LLMResponseFormatJSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai llm: create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai llm: %w", ErrEmptyCompletion)
	}

	s.logger.Debug("completion finished",
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"finish_reason", string(resp.Choices[0].FinishReason),
	)
	return resp.Choices[0].Message.Content, nil
}

// convertMessages converts core messages to OpenAI messages
func (s *OpenAILLMService) convertMessages(messages []core.LLMMessage) []openai.ChatCompletionMessage {
	openAIMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		openAIMessages = append(openAIMessages, openai.ChatCompletionMessage{
			Role:    s.convertRole(msg.Role),
			Content: msg.Message,
		})
	}
	return openAIMessages
}

// convertRole converts core role to OpenAI role
func (s *OpenAILLMService) convertRole(role core.LLMMessageRole) string {
	switch role {
	case core.LLMMessageRoleAssistant:
		return openai.ChatMessageRoleAssistant
	case core.LLMMessageRoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}
