package query

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/reviewqa/internal/domain"
	"github.com/kailas-cloud/reviewqa/internal/logger"
	"github.com/kailas-cloud/reviewqa/internal/metrics"
)

// --- Mocks ---

type mockCounter struct {
	mu     sync.Mutex
	value  int64
	incErr error
	getErr error
}

func (m *mockCounter) Increment(_ context.Context) error {
	if m.incErr != nil {
		return m.incErr
	}
	m.mu.Lock()
	m.value++
	m.mu.Unlock()
	return nil
}

func (m *mockCounter) Get(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, m.getErr
}

type mockEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0}, TotalTokens: 6}, nil
}

type mockRetriever struct {
	mu   sync.Mutex
	k    int
	hits []domain.SearchHit
	err  error
}

func (m *mockRetriever) Search(_ context.Context, _ []float32, k int) ([]domain.SearchHit, error) {
	m.mu.Lock()
	m.k = k
	m.mu.Unlock()
	return m.hits, m.err
}

type mockGenerator struct {
	mu     sync.Mutex
	calls  int
	answer string
	err    error
	hits   []domain.SearchHit
}

func (m *mockGenerator) Generate(_ context.Context, _ string, hits []domain.SearchHit) (string, error) {
	m.mu.Lock()
	m.calls++
	m.hits = hits
	m.mu.Unlock()
	return m.answer, m.err
}

type fixture struct {
	counter   *mockCounter
	embedder  *mockEmbedder
	retriever *mockRetriever
	generator *mockGenerator
	svc       *Service
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		counter:  &mockCounter{},
		embedder: &mockEmbedder{},
		retriever: &mockRetriever{hits: []domain.SearchHit{
			{Chunk: domain.Chunk{ID: "0-0", Text: "The food was overpriced."}, Score: 0.9},
		}},
		generator: &mockGenerator{answer: "Visitors often complain about food prices."},
	}
	f.svc = New(f.counter, f.embedder, f.retriever, f.generator, cfg, zap.NewNop())
	f.svc.MarkReady()
	return f
}

// --- Tests ---

func TestAnswer_Completed(t *testing.T) {
	f := newFixture(Config{})
	before := testutil.ToFloat64(metrics.QueryRequestsTotal.WithLabelValues(OutcomeCompleted))

	ctx, usage := domain.NewContextWithUsage(context.Background())
	answer, err := f.svc.Answer(ctx, "What are common complaints about food?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Visitors often complain about food prices." {
		t.Errorf("unexpected answer %q", answer)
	}
	if f.retriever.k != DefaultTopK {
		t.Errorf("expected k=%d, got %d", DefaultTopK, f.retriever.k)
	}
	if len(f.generator.hits) != 1 {
		t.Errorf("expected retrieved hits passed to generator, got %d", len(f.generator.hits))
	}
	if f.counter.value != 1 {
		t.Errorf("expected counter 1, got %d", f.counter.value)
	}
	if usage.EmbeddingTokens != 6 {
		t.Errorf("expected 6 embedding tokens, got %d", usage.EmbeddingTokens)
	}
	after := testutil.ToFloat64(metrics.QueryRequestsTotal.WithLabelValues(OutcomeCompleted))
	if after-before != 1 {
		t.Errorf("expected completed outcome +1, got %v", after-before)
	}
}

func TestAnswer_EmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\n\t"} {
		f := newFixture(Config{})

		answer, err := f.svc.Answer(context.Background(), q)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", q, err)
		}
		if !strings.Contains(answer, "Query cannot be empty.") {
			t.Errorf("expected empty-query answer for %q, got %q", q, answer)
		}
		if f.embedder.calls != 0 || f.generator.calls != 0 {
			t.Errorf("providers must not be called for %q", q)
		}
		if f.counter.value != 1 {
			t.Errorf("empty queries are still counted, got %d", f.counter.value)
		}
	}
}

func TestAnswer_EmptyQueryWhileUnavailable(t *testing.T) {
	f := newFixture(Config{})
	f.svc.MarkUnavailable(domain.ErrDataSourceUnavailable)

	answer, err := f.svc.Answer(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != EmptyQueryAnswer {
		t.Errorf("expected %q, got %q", EmptyQueryAnswer, answer)
	}
}

func TestAnswer_Unavailable(t *testing.T) {
	f := newFixture(Config{})
	f.svc.MarkUnavailable(domain.ErrDataSourceUnavailable)

	_, err := f.svc.Answer(context.Background(), "hello")
	if !errors.Is(err, domain.ErrPipelineUnavailable) {
		t.Fatalf("expected ErrPipelineUnavailable, got %v", err)
	}
	if !errors.Is(err, domain.ErrDataSourceUnavailable) {
		t.Errorf("expected build cause to be kept, got %v", err)
	}
	if f.embedder.calls != 0 {
		t.Error("embedder must not be called when unavailable")
	}
	if f.svc.Ready() {
		t.Error("expected not ready")
	}
}

func TestAnswer_NotReadyWithoutCause(t *testing.T) {
	svc := New(&mockCounter{}, &mockEmbedder{}, &mockRetriever{}, &mockGenerator{}, Config{}, zap.NewNop())

	_, err := svc.Answer(context.Background(), "hello")
	if !errors.Is(err, domain.ErrPipelineUnavailable) {
		t.Fatalf("expected ErrPipelineUnavailable, got %v", err)
	}
	if svc.BuildError() != nil {
		t.Errorf("expected no build error, got %v", svc.BuildError())
	}
}

func TestAnswer_StageFailures(t *testing.T) {
	providerErr := errors.New("connection reset by peer")
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{"increment", func(f *fixture) { f.counter.incErr = providerErr }},
		{"get", func(f *fixture) { f.counter.getErr = providerErr }},
		{"embed", func(f *fixture) { f.embedder.err = providerErr }},
		{"retrieve", func(f *fixture) { f.retriever.err = providerErr }},
		{"generate", func(f *fixture) { f.generator.err = providerErr }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(Config{})
			tt.setup(f)

			answer, err := f.svc.Answer(context.Background(), "hello")
			if !errors.Is(err, domain.ErrPipelineFailed) {
				t.Fatalf("expected ErrPipelineFailed, got %v", err)
			}
			if !errors.Is(err, providerErr) {
				t.Errorf("expected cause to be wrapped, got %v", err)
			}
			if answer != "" {
				t.Errorf("expected no partial answer, got %q", answer)
			}
		})
	}
}

func TestAnswer_NoRetry(t *testing.T) {
	f := newFixture(Config{})
	f.generator.err = domain.ErrGenerationProviderError

	_, _ = f.svc.Answer(context.Background(), "hello")
	if f.generator.calls != 1 {
		t.Errorf("expected exactly 1 generation attempt, got %d", f.generator.calls)
	}
}

func TestAnswer_LogsCounterAndLatency(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	f := newFixture(Config{TopK: 3})
	f.counter.value = 41

	ctx := logger.ContextWithLogger(context.Background(), zap.New(core))
	if _, err := f.svc.Answer(ctx, "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.retriever.k != 3 {
		t.Errorf("expected k=3, got %d", f.retriever.k)
	}

	entries := logs.FilterMessage("Query answered").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_counter"] != int64(42) {
		t.Errorf("expected request_counter 42, got %v", fields["request_counter"])
	}
	if _, ok := fields["llm_invoke_latency"]; !ok {
		t.Error("expected llm_invoke_latency field")
	}
}

func TestAnswer_ConcurrentCountsAll(t *testing.T) {
	f := newFixture(Config{MaxConcurrent: 2})

	const n = 16
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Answer(context.Background(), "q"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if f.counter.value != n {
		t.Errorf("expected counter %d, got %d", n, f.counter.value)
	}
}

func TestAnswer_IgnoresCallerCancellation(t *testing.T) {
	f := newFixture(Config{MaxConcurrent: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.svc.Answer(ctx, "q"); err != nil {
		t.Fatalf("expected answer despite cancelled caller, got %v", err)
	}
}
