// Package textgen is the optional text-generation collaborator used to
// enrich notification content.
//
// Nothing in the notification pipeline depends on a Generator being
// present or fast: callers bound every call with a timeout and fall back
// to deterministic templates.
package textgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Generator produces free text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrEmptyResponse is returned when the model produced no usable text.
var ErrEmptyResponse = errors.New("textgen: empty response")

// Config configures the OpenAI-backed generator.
type Config struct {
	APIKey       string  `yaml:"-" env:"API_KEY"`
	Model        string  `yaml:"model" env:"MODEL"`
	BaseURL      string  `yaml:"base_url" env:"BASE_URL"`
	SystemPrompt string  `yaml:"system_prompt" env:"SYSTEM_PROMPT"`
	MaxTokens    int     `yaml:"max_tokens" env:"MAX_TOKENS"`
	Temperature  float32 `yaml:"temperature" env:"TEMPERATURE"`
}

// DefaultConfig returns the defaults used when fields are left empty.
func DefaultConfig() Config {
	return Config{
		Model:        openai.GPT4oMini,
		SystemPrompt: "You write short, factual briefings for people inside a simulated nation. Never add facts that are not in the prompt.",
		MaxTokens:    200,
		Temperature:  0.3,
	}
}

// OpenAI generates text with the chat completions API.
type OpenAI struct {
	client *openai.Client
	cfg    Config
	logger *slog.Logger
}

// NewOpenAI builds a generator. An API key is required.
func NewOpenAI(cfg Config, logger *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("textgen: API key not set")
	}
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = def.SystemPrompt
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	logger.Info("text generator initialised", "model", cfg.Model)
	return &OpenAI{client: openai.NewClientWithConfig(oc), cfg: cfg, logger: logger}, nil
}

// Generate sends prompt as the user message and returns the first choice.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.cfg.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxCompletionTokens: o.cfg.MaxTokens,
		Temperature:         o.cfg.Temperature,
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("textgen: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	o.logger.Debug("text generated", "finish_reason", resp.Choices[0].FinishReason)
	return text, nil
}
