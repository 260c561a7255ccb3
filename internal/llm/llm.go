// Package llm adapts external text-generation services to a single
// structured-output call used by the triage classifier.
package llm

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/xaenox/support-triage/internal/models"
)

// ErrEmptyResponse is returned when the service replies without any choice.
var ErrEmptyResponse = errors.New("llm: empty response")

// Request is one structured-output generation call.
type Request struct {
	// System is prepended to Messages as a system instruction.
	System     string
	Messages   []models.ChatMessage
	SchemaName string
	Schema     jsonschema.Definition
}

// Generator returns the raw JSON text produced for req. Any failure,
// including a timeout, is reported as an error.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
