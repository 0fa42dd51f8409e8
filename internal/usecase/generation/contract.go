package generation

import (
	"context"

	"github.com/kailas-cloud/reviewqa/internal/domain"
)

// LLM completes a fully rendered prompt.
type LLM interface {
	Complete(ctx context.Context, prompt string) (domain.CompletionResult, error)
}
