package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/reviewqa/internal/domain"
	"github.com/kailas-cloud/reviewqa/internal/metrics"
)

// DefaultLLMModel is the local chat model.
const DefaultLLMModel = "llama3.1:8b"

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

// Temperature is always sent: zero is a meaningful setting.
type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// LLM generates completions through Ollama's /api/generate endpoint.
type LLM struct {
	client      *client
	model       string
	temperature float64
	maxTokens   int
}

// NewLLM creates an Ollama language model provider.
func NewLLM(cfg Config, temperature float64, maxTokens int) *LLM {
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	return &LLM{
		client:      newClient(cfg),
		model:       cfg.Model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// Complete implements domain.LLM with a single non-streaming generation.
func (l *LLM) Complete(ctx context.Context, prompt string) (domain.CompletionResult, error) {
	req := generateRequest{
		Model:  l.model,
		Prompt: prompt,
		Options: generateOptions{
			Temperature: l.temperature,
			NumPredict:  l.maxTokens,
		},
	}

	start := time.Now()
	var resp generateResponse
	err := l.client.postJSON(ctx, "/api/generate", req, &resp)
	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(providerName, l.model, "error").Inc()
		return domain.CompletionResult{}, fmt.Errorf("ollama generate: %v: %w", err, domain.ErrGenerationProviderError)
	}
	if resp.Response == "" {
		metrics.GenerationRequestsTotal.WithLabelValues(providerName, l.model, "error").Inc()
		return domain.CompletionResult{}, fmt.Errorf("empty completion: %w", domain.ErrGenerationProviderError)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(providerName, l.model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(providerName, l.model).Observe(duration.Seconds())
	metrics.GenerationTokensTotal.WithLabelValues(providerName, l.model, "prompt").Add(float64(resp.PromptEvalCount))
	metrics.GenerationTokensTotal.WithLabelValues(providerName, l.model, "completion").Add(float64(resp.EvalCount))

	return domain.CompletionResult{
		Text:             resp.Response,
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
	}, nil
}
