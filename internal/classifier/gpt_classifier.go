package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/xaenox/support-triage/internal/llm"
	"github.com/xaenox/support-triage/internal/models"
	"go.uber.org/zap"
)

// MaxFollowUps bounds the questions asked in a single turn.
const MaxFollowUps = 3

const systemPrompt = `You are a support intake triage assistant for a managed service provider.
Classify each client request into exactly one category:
- website: Website changes & support
- email: Email issues & mailbox setup
- social: Social media requests
- admin: Administrative requests (invoicing, accounts, etc.)

When you need clarification, propose up to 3 concise follow-up questions. Stop asking follow ups when you are confident you can create a useful internal ticket.
When you stop, return an empty followUps list and a one sentence summary of the request.`

const schemaName = "triage_schema"

var triageSchema = jsonschema.Definition{
	Type:                 jsonschema.Object,
	AdditionalProperties: false,
	Required:             []string{"category", "followUps", "stop"},
	Properties: map[string]jsonschema.Definition{
		"category": {
			Type: jsonschema.String,
			Enum: []string{
				string(models.CategoryWebsite),
				string(models.CategoryEmail),
				string(models.CategorySocial),
				string(models.CategoryAdmin),
			},
		},
		"followUps": {
			Type:  jsonschema.Array,
			Items: &jsonschema.Definition{Type: jsonschema.String},
		},
		"stop":    {Type: jsonschema.Boolean},
		"summary": {Type: jsonschema.String},
	},
}

var (
	errUnavailable = errors.New("classifier unavailable")
	errUnparsable  = errors.New("unparsable output")
	errSchema      = errors.New("schema violation")
)

// GPTResponse is the structured output contract of the model.
type GPTResponse struct {
	Category  *models.Category `json:"category"`
	FollowUps []string         `json:"followUps"`
	Stop      *bool            `json:"stop"`
	Summary   *string          `json:"summary"`
}

// GPTConfig is fixed at construction. Enabled is false when no credential is
// configured, in which case every call goes straight to the heuristic.
type GPTConfig struct {
	Enabled   bool
	Generator llm.Generator
}

// GPTClassifier asks a text-generation service for a triage decision and
// falls back to the heuristic classifier on any failure.
type GPTClassifier struct {
	generator llm.Generator
	enabled   bool
	fallback  *HeuristicClassifier
	logger    *zap.Logger
}

func NewGPTClassifier(cfg GPTConfig, logger *zap.Logger) *GPTClassifier {
	return &GPTClassifier{
		generator: cfg.Generator,
		enabled:   cfg.Enabled && cfg.Generator != nil,
		fallback:  NewHeuristicClassifier(),
		logger:    logger,
	}
}

// Enabled reports whether the external service is used at all.
func (c *GPTClassifier) Enabled() bool {
	return c.enabled
}

// ClassifyAndAsk always returns exactly one decision. Errors from the
// external call never reach the caller.
func (c *GPTClassifier) ClassifyAndAsk(ctx context.Context, messages []models.ChatMessage) models.Decision {
	if !c.enabled {
		return c.fallback.Decide(messages)
	}

	decision, err := c.ask(ctx, messages)
	if err != nil {
		c.logger.Warn("Falling back to heuristic classification",
			zap.Error(err),
			zap.Int("messages", len(messages)))
	}
	return orFallback(decision, err, func() models.Decision {
		return c.fallback.Decide(messages)
	})
}

// orFallback keeps a successful model decision and otherwise uses fallback.
func orFallback(decision models.Decision, err error, fallback func() models.Decision) models.Decision {
	if err != nil {
		return fallback()
	}
	return decision
}

func (c *GPTClassifier) ask(ctx context.Context, messages []models.ChatMessage) (models.Decision, error) {
	raw, err := c.generator.Generate(ctx, llm.Request{
		System:     systemPrompt,
		Messages:   messages,
		SchemaName: schemaName,
		Schema:     triageSchema,
	})
	if err != nil {
		return models.Decision{}, fmt.Errorf("%w: %v", errUnavailable, err)
	}
	return parseDecision(raw)
}

// parseDecision decodes and validates the model output. Defaults follow the
// schema: followUps empty, stop false.
func parseDecision(raw string) (models.Decision, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	var resp GPTResponse
	if err := dec.Decode(&resp); err != nil {
		return models.Decision{}, fmt.Errorf("%w: %v", errUnparsable, err)
	}
	if dec.More() {
		return models.Decision{}, fmt.Errorf("%w: trailing data", errUnparsable)
	}

	if resp.Category == nil {
		return models.Decision{}, fmt.Errorf("%w: missing category", errSchema)
	}
	if !resp.Category.Valid() {
		return models.Decision{}, fmt.Errorf("%w: unknown category %q", errSchema, *resp.Category)
	}

	decision := models.Decision{
		Category:  *resp.Category,
		FollowUps: []string{},
	}
	if resp.Stop != nil {
		decision.Stop = *resp.Stop
	}
	if resp.Summary != nil {
		decision.Summary = strings.TrimSpace(*resp.Summary)
	}

	if !decision.Stop {
		for _, q := range resp.FollowUps {
			if q = strings.TrimSpace(q); q != "" {
				decision.FollowUps = append(decision.FollowUps, q)
			}
		}
		if len(decision.FollowUps) > MaxFollowUps {
			decision.FollowUps = decision.FollowUps[:MaxFollowUps]
		}
	}

	return decision, nil
}
