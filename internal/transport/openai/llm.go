package openai

import (
	"context"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewqa/internal/domain"
	"github.com/kailas-cloud/reviewqa/internal/metrics"
)

// LLM is a chat-completion language model using the OpenAI-compatible API.
type LLM struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// NewLLM creates a chat-completion provider. cfg.Model is the chat model id.
func NewLLM(cfg *Config, temperature float64, maxTokens int) *LLM {
	return &LLM{
		client:      newClient(cfg),
		model:       cfg.Model,
		temperature: float32(temperature),
		maxTokens:   maxTokens,
		logger:      cfg.Logger,
	}
}

// Complete sends prompt as a single user message and returns the reply verbatim.
func (l *LLM) Complete(ctx context.Context, prompt string) (domain.CompletionResult, error) {
	temperature := l.temperature
	if temperature == 0 {
		// omitempty on the request field would drop an explicit zero
		temperature = math.SmallestNonzeroFloat32
	}

	req := openai.ChatCompletionRequest{
		Model: l.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   l.maxTokens, //nolint:staticcheck // compatible gateways reject max_completion_tokens
	}

	start := time.Now()
	resp, err := l.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(providerName, l.model, "error").Inc()
		return domain.CompletionResult{}, parseAPIError("chat completion", err, domain.ErrGenerationProviderError)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		metrics.GenerationRequestsTotal.WithLabelValues(providerName, l.model, "error").Inc()
		return domain.CompletionResult{}, fmt.Errorf("empty completion: %w", domain.ErrGenerationProviderError)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(providerName, l.model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(providerName, l.model).Observe(duration.Seconds())
	metrics.GenerationTokensTotal.WithLabelValues(providerName, l.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.GenerationTokensTotal.WithLabelValues(providerName, l.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	l.logger.Debug("chat completion",
		zap.String("model", l.model),
		zap.Duration("duration", duration),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)

	return domain.CompletionResult{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
