package domain

// PipelineConfig holds the retrieval and generation tuning knobs.
type PipelineConfig struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	LimitDocs    int
	Temperature  float64
	MaxTokens    int
}

// DefaultPipelineConfig returns the settings the review corpus was tuned with.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ChunkSize:    500,
		ChunkOverlap: 80,
		TopK:         5,
		LimitDocs:    1000,
		Temperature:  0.0,
		MaxTokens:    500,
	}
}

// KeyPrefix namespaces every key this service writes to a shared key-value store.
const KeyPrefix = "reviewqa:"
