package indexing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewqa/internal/chunker"
	"github.com/kailas-cloud/reviewqa/internal/domain"
	"github.com/kailas-cloud/reviewqa/internal/metrics"
	"github.com/kailas-cloud/reviewqa/internal/vectorindex/memory"
)

// --- Mocks ---

type mockSource struct {
	rows []domain.Review
	err  error
}

func (m *mockSource) Load(_ context.Context) ([]domain.Review, error) { return m.rows, m.err }

type mockEmbedder struct {
	mu         sync.Mutex
	err        error
	batchSizes []int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text)), 1}}, m.err
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.mu.Lock()
	m.batchSizes = append(m.batchSizes, len(texts))
	m.mu.Unlock()
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

type recordingIndex struct {
	chunks  []domain.Chunk
	vectors [][]float32
	err     error
}

func (r *recordingIndex) Build(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	r.chunks, r.vectors = chunks, vectors
	return r.err
}

func reviews(n int) []domain.Review {
	rows := make([]domain.Review, n)
	for i := range rows {
		rows[i] = domain.Review{Fields: []domain.Field{
			{Name: "Review_ID", Value: fmt.Sprint(i), Present: true},
			{Name: "Branch", Value: "Disneyland_Paris", Present: true},
			{Name: "Review_Text", Value: fmt.Sprintf("review number %d", i), Present: true},
		}}
	}
	return rows
}

func newSplitter(t *testing.T) *chunker.RecursiveSplitter {
	t.Helper()
	s, err := chunker.NewRecursiveSplitter(500, 80)
	if err != nil {
		t.Fatalf("splitter: %v", err)
	}
	return s
}

// --- Tests ---

func TestBuild_EmbedsEveryChunkInOrder(t *testing.T) {
	emb := &mockEmbedder{}
	idx := &recordingIndex{}
	svc := New(&mockSource{rows: reviews(10)}, newSplitter(t), emb, idx,
		Config{BatchSize: 3, Workers: 2}, zap.NewNop())

	stats, err := svc.Build(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Documents != 10 || stats.Chunks != 10 || stats.Dimensions != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if len(idx.vectors) != len(idx.chunks) {
		t.Fatalf("expected one vector per chunk, got %d/%d", len(idx.vectors), len(idx.chunks))
	}
	for i, c := range idx.chunks {
		if idx.vectors[i][0] != float32(len(c.Text)) {
			t.Errorf("vector %d does not belong to chunk %q", i, c.ID)
		}
	}
	if len(emb.batchSizes) != 4 {
		t.Errorf("expected 4 batches, got %v", emb.batchSizes)
	}
	if got := testutil.ToFloat64(metrics.IndexChunks); got != 10 {
		t.Errorf("expected index_chunks 10, got %v", got)
	}
}

func TestBuild_AppliesLimit(t *testing.T) {
	idx := &recordingIndex{}
	svc := New(&mockSource{rows: reviews(25)}, newSplitter(t), &mockEmbedder{}, idx,
		Config{Limit: 5}, zap.NewNop())

	stats, err := svc.Build(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Documents != 5 {
		t.Errorf("expected 5 documents, got %d", stats.Documents)
	}
	if idx.chunks[len(idx.chunks)-1].ID != "4-0" {
		t.Errorf("expected last chunk from document 4, got %q", idx.chunks[len(idx.chunks)-1].ID)
	}
}

func TestBuild_SourceError(t *testing.T) {
	src := &mockSource{err: fmt.Errorf("open: %w", domain.ErrDataSourceUnavailable)}
	svc := New(src, newSplitter(t), &mockEmbedder{}, &recordingIndex{}, Config{}, zap.NewNop())

	_, err := svc.Build(context.Background())
	if !errors.Is(err, domain.ErrDataSourceUnavailable) {
		t.Fatalf("expected ErrDataSourceUnavailable, got %v", err)
	}
}

func TestBuild_EmptyCorpus(t *testing.T) {
	svc := New(&mockSource{}, newSplitter(t), &mockEmbedder{}, &recordingIndex{}, Config{}, zap.NewNop())

	_, err := svc.Build(context.Background())
	if !errors.Is(err, domain.ErrDataSourceUnavailable) {
		t.Fatalf("expected ErrDataSourceUnavailable, got %v", err)
	}
}

func TestBuild_EmbeddingError(t *testing.T) {
	idx := &recordingIndex{}
	emb := &mockEmbedder{err: domain.ErrEmbeddingProviderError}
	svc := New(&mockSource{rows: reviews(3)}, newSplitter(t), emb, idx, Config{}, zap.NewNop())

	_, err := svc.Build(context.Background())
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
	if idx.chunks != nil {
		t.Error("index must not be built after an embedding failure")
	}
}

func TestBuild_IndexError(t *testing.T) {
	idx := &recordingIndex{err: domain.ErrVectorDimMismatch}
	svc := New(&mockSource{rows: reviews(2)}, newSplitter(t), &mockEmbedder{}, idx, Config{}, zap.NewNop())

	_, err := svc.Build(context.Background())
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestBuild_SearchableMemoryIndex(t *testing.T) {
	idx := memory.New()
	svc := New(&mockSource{rows: reviews(4)}, newSplitter(t), &mockEmbedder{}, idx, Config{}, zap.NewNop())

	if _, err := svc.Build(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Len() != 4 {
		t.Fatalf("expected 4 indexed chunks, got %d", idx.Len())
	}
	hits, err := idx.Search(context.Background(), []float32{1, 1}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 4 {
		t.Errorf("expected 4 hits, got %d", len(hits))
	}
}
