package db

import (
	"errors"
	"fmt"
)

// VectorIndexSpec describes a HASH-backed FT index with one FLOAT32 HNSW
// vector field compared by cosine distance.
type VectorIndexSpec struct {
	Name   string
	Prefix string

	TextFields []string
	TagFields  []string

	// VectorField is the hash field holding the encoded vector;
	// VectorAlias, when set, is the name queries refer to it by.
	VectorField string
	VectorAlias string
	Dim         int

	M              int // HNSW max edges per node, 0 = server default
	EFConstruction int // 0 = server default
}

// Validate checks that the spec can be turned into an FT.CREATE command.
func (s *VectorIndexSpec) Validate() error {
	switch {
	case s.Name == "":
		return errors.New("index name is required")
	case s.Prefix == "":
		return errors.New("key prefix is required")
	case s.VectorField == "":
		return errors.New("vector field is required")
	case s.Dim <= 0:
		return fmt.Errorf("vector dimension must be positive, got %d", s.Dim)
	}

	seen := map[string]bool{s.VectorField: true}
	if s.VectorAlias != "" {
		seen[s.VectorAlias] = true
	}
	for _, names := range [][]string{s.TextFields, s.TagFields} {
		for _, n := range names {
			if n == "" {
				return errors.New("empty field name")
			}
			if seen[n] {
				return fmt.Errorf("duplicate field name: %s", n)
			}
			seen[n] = true
		}
	}
	return nil
}

// QueryField is the vector field name KNN queries must use.
func (s *VectorIndexSpec) QueryField() string {
	if s.VectorAlias != "" {
		return s.VectorAlias
	}
	return s.VectorField
}

// KNNQuery is the input for a vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string
	Vector       []float32
	K            int
	ReturnFields []string
}

// KNNHit is one document returned by SearchKNN, nearest first.
// Score is cosine similarity (1 - distance).
type KNNHit struct {
	Key    string
	Score  float64
	Fields map[string]string
}
