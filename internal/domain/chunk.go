package domain

// Chunk is a bounded fragment of a Document, the unit stored in the vector index.
type Chunk struct {
	ID       string
	Text     string
	Metadata Metadata
}

// SearchHit is a chunk returned by a nearest-neighbour lookup.
// Score is a similarity: higher is closer.
type SearchHit struct {
	Chunk Chunk
	Score float64
}
