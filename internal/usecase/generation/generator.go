// Package generation turns retrieved review chunks into an answer.
package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/reviewqa/internal/domain"
)

// PromptTemplate is the "stuff" question-answering prompt.
// {context} and {question} are substituted before the model is called.
const PromptTemplate = "Use the following pieces of context to answer the question at the end. " +
	"If you don't know the answer, just say that you don't know, don't try to make up an answer.\n\n" +
	"{context}\n\n" +
	"Question: {question}\n" +
	"Helpful Answer:"

// contextSeparator joins retrieved chunk texts.
const contextSeparator = "\n\n"

// StuffGenerator places every retrieved chunk into a single prompt.
type StuffGenerator struct {
	llm LLM
}

// NewStuffGenerator creates a generator backed by llm.
func NewStuffGenerator(llm LLM) *StuffGenerator {
	return &StuffGenerator{llm: llm}
}

// Generate answers query from hits. Token usage is recorded on the request's usage collector.
func (g *StuffGenerator) Generate(ctx context.Context, query string, hits []domain.SearchHit) (string, error) {
	res, err := g.llm.Complete(ctx, BuildPrompt(query, hits))
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	domain.UsageFromContext(ctx).AddCompletion(res.PromptTokens, res.CompletionTokens)
	return res.Text, nil
}

// BuildPrompt renders PromptTemplate for query and hits in retrieval order.
func BuildPrompt(query string, hits []domain.SearchHit) string {
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Chunk.Text
	}
	r := strings.NewReplacer(
		"{context}", strings.Join(texts, contextSeparator),
		"{question}", query,
	)
	return r.Replace(PromptTemplate)
}
