package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kailas-cloud/reviewqa/internal/domain"
)

func newSplitter(t *testing.T) *RecursiveSplitter {
	t.Helper()
	s, err := NewRecursiveSplitter(500, 80)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%04d", i)
	}
	return strings.Join(parts, " ")
}

func TestNewRecursiveSplitter_Invalid(t *testing.T) {
	cases := []struct{ size, overlap int }{
		{0, 0},
		{-1, 0},
		{100, -1},
		{100, 100},
	}
	for _, c := range cases {
		if _, err := NewRecursiveSplitter(c.size, c.overlap); err == nil {
			t.Errorf("expected error for size=%d overlap=%d", c.size, c.overlap)
		}
	}
}

func TestSplitText_ShortTextSingleChunk(t *testing.T) {
	s := newSplitter(t)
	text := "Rating: 5. Review_Text: Loved the parade.\n\nBranch: Disneyland_Paris."

	chunks := s.SplitText(text)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("expected %q, got %q", text, chunks[0])
	}
}

func TestSplitText_EmptyText(t *testing.T) {
	s := newSplitter(t)
	if chunks := s.SplitText("   "); len(chunks) != 0 {
		t.Errorf("expected no chunks, got %v", chunks)
	}
}

func TestSplitText_RespectsSizeAndOverlap(t *testing.T) {
	s := newSplitter(t)
	chunks := s.SplitText(words(400))

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 500 {
			t.Errorf("chunk %d has %d runes", i, n)
		}
		if c != strings.TrimSpace(c) {
			t.Errorf("chunk %d not trimmed", i)
		}
	}
	for i := 1; i < len(chunks); i++ {
		first := strings.Fields(chunks[i])[0]
		if !strings.Contains(chunks[i-1], first) {
			t.Errorf("chunk %d does not overlap previous: %q", i, first)
		}
	}
}

func TestSplitText_CoversAllWords(t *testing.T) {
	s := newSplitter(t)
	chunks := s.SplitText(words(300))
	joined := strings.Join(chunks, " ")

	for i := 0; i < 300; i++ {
		w := fmt.Sprintf("word%04d", i)
		if !strings.Contains(joined, w) {
			t.Fatalf("missing %s", w)
		}
	}
}

func TestSplitText_CharacterFallback(t *testing.T) {
	s := newSplitter(t)
	chunks := s.SplitText(strings.Repeat("a", 1200))

	want := []int{500, 500, 360}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, n := range want {
		if len(chunks[i]) != n {
			t.Errorf("chunk %d: expected %d chars, got %d", i, n, len(chunks[i]))
		}
	}
}

func TestSplitText_CountsRunes(t *testing.T) {
	s := newSplitter(t)
	chunks := s.SplitText(strings.Repeat("é", 600))

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if n := utf8.RuneCountInString(chunks[0]); n != 500 {
		t.Errorf("expected 500 runes, got %d", n)
	}
	if n := utf8.RuneCountInString(chunks[1]); n != 180 {
		t.Errorf("expected 180 runes, got %d", n)
	}
}

func TestSplitText_PrefersParagraphs(t *testing.T) {
	s := newSplitter(t)
	p1 := strings.Repeat("x", 300)
	p2 := strings.Repeat("y", 300)

	chunks := s.SplitText(p1 + "\n\n" + p2)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0] != p1 || chunks[1] != p2 {
		t.Errorf("expected paragraph boundaries, got %q / %q", chunks[0][:10], chunks[1][:10])
	}
}

func TestSplitDocuments_CopiesMetadata(t *testing.T) {
	s := newSplitter(t)
	meta := domain.Metadata{Park: "Disneyland_California", Country: "Canada", Rating: "4", Date: "2019-1"}
	docs := []domain.Document{
		{Text: "short review.", Metadata: domain.Metadata{Park: "p0"}},
		{Text: words(200), Metadata: meta},
	}

	chunks := s.SplitDocuments(docs)

	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	if chunks[0].ID != "0-0" || chunks[0].Metadata.Park != "p0" {
		t.Errorf("unexpected first chunk %+v", chunks[0])
	}
	for i, c := range chunks[1:] {
		if c.ID != fmt.Sprintf("1-%d", i) {
			t.Errorf("expected id 1-%d, got %s", i, c.ID)
		}
		if c.Metadata != meta {
			t.Errorf("metadata not copied: %+v", c.Metadata)
		}
	}
}
