package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/xaenox/support-triage/internal/models"
)

// LangChainGenerator talks to OpenAI-compatible servers such as a local
// Ollama through langchaingo. Those servers do not all honour json_schema
// response formats, so the schema is appended to the system instruction and
// JSON mode is requested instead.
type LangChainGenerator struct {
	llm         llms.Model
	maxTokens   int
	temperature float64
}

func NewLangChainGenerator(cfg OpenAIConfig) (*LangChainGenerator, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("langchain: init: %w", err)
	}

	return &LangChainGenerator{
		llm:         llm,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (g *LangChainGenerator) Generate(ctx context.Context, req Request) (string, error) {
	schema, err := json.Marshal(&req.Schema)
	if err != nil {
		return "", fmt.Errorf("langchain: marshal schema: %w", err)
	}
	system := req.System + "\nRespond only with a JSON object matching this schema:\n" + string(schema)

	content := make([]llms.MessageContent, 0, len(req.Messages)+1)
	content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, system))
	for _, m := range req.Messages {
		content = append(content, llms.TextParts(chatMessageType(m.Role), m.Content))
	}

	opts := []llms.CallOption{
		llms.WithJSONMode(),
		llms.WithTemperature(g.temperature),
	}
	if g.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(g.maxTokens))
	}

	resp, err := g.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("langchain: generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func chatMessageType(role models.Role) llms.ChatMessageType {
	switch role {
	case models.RoleAssistant:
		return llms.ChatMessageTypeAI
	case models.RoleSystem:
		return llms.ChatMessageTypeSystem
	default:
		return llms.ChatMessageTypeHuman
	}
}
