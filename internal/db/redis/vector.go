package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/reviewqa/internal/db"
)

const scoreField = "__vector_score"

// CreateVectorIndex issues FT.CREATE for spec.
func (s *Store) CreateVectorIndex(ctx context.Context, spec *db.VectorIndexSpec) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("index spec: %w", err)
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(createArgs(spec)...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: "FT.CREATE", Err: err}
	}
	return nil
}

// DropIndex removes an FT index. With deleteDocs the indexed hashes go too.
func (s *Store) DropIndex(ctx context.Context, name string, deleteDocs bool) error {
	args := []string{name}
	if deleteDocs {
		args = append(args, "DD")
	}
	if err := s.do(ctx, s.b().Arbitrary("FT.DROPINDEX").Args(args...).Build()).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: "FT.DROPINDEX", Err: err}
	}
	return nil
}

// HSetMulti writes every item in a single DoMulti round-trip.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, len(items))
	for _, item := range items {
		cmd := s.b().Hset().Key(item.Key).FieldValue()
		for k, v := range item.Fields {
			cmd = cmd.FieldValue(k, v)
		}
		cmds = append(cmds, cmd.Build())
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: "HSET", Err: fmt.Errorf("key %s: %w", items[i].Key, err)}
		}
	}
	return nil
}

// SearchKNN returns the q.K nearest hashes, nearest first.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) ([]db.KNNHit, error) {
	switch {
	case q.IndexName == "":
		return nil, fmt.Errorf("index name is required")
	case len(q.Vector) == 0:
		return nil, fmt.Errorf("vector is required")
	case q.K <= 0:
		return nil, fmt.Errorf("k must be positive, got %d", q.K)
	case q.VectorField == "":
		return nil, fmt.Errorf("vector field is required")
	}

	k := strconv.Itoa(q.K)
	args := []string{q.IndexName, "*=>[KNN " + k + " @" + q.VectorField + " $BLOB]"}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)+1))
		args = append(args, q.ReturnFields...)
		args = append(args, scoreField)
	}
	args = append(args,
		"SORTBY", scoreField,
		"LIMIT", "0", k,
		"PARAMS", "2", "BLOB", EncodeVector(q.Vector),
		"DIALECT", "2",
	)

	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, &db.Error{Op: "FT.SEARCH", Err: err}
	}
	return parseKNNReply(raw)
}

// EncodeVector packs v as little-endian FLOAT32, the layout FT vector fields expect.
func EncodeVector(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return string(buf)
}

// createArgs renders FT.CREATE arguments:
// name ON HASH PREFIX 1 p SCHEMA text.. TEXT tag.. TAG vec [AS alias] VECTOR HNSW n attrs..
func createArgs(spec *db.VectorIndexSpec) []string {
	args := []string{spec.Name, "ON", "HASH", "PREFIX", "1", spec.Prefix, "SCHEMA"}
	for _, f := range spec.TextFields {
		args = append(args, f, "TEXT")
	}
	for _, f := range spec.TagFields {
		args = append(args, f, "TAG")
	}

	args = append(args, spec.VectorField)
	if spec.VectorAlias != "" {
		args = append(args, "AS", spec.VectorAlias)
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(spec.Dim),
		"DISTANCE_METRIC", "COSINE",
	}
	if spec.M > 0 {
		attrs = append(attrs, "M", strconv.Itoa(spec.M))
	}
	if spec.EFConstruction > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(spec.EFConstruction))
	}

	args = append(args, "VECTOR", "HNSW", strconv.Itoa(len(attrs)))
	return append(args, attrs...)
}

// parseKNNReply decodes the RESP2 reply [total, key1, [f, v, ...], key2, ...].
func parseKNNReply(raw []rueidis.RedisMessage) ([]db.KNNHit, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if _, err := raw[0].AsInt64(); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	hits := make([]db.KNNHit, 0, (len(raw)-1)/2)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			return nil, fmt.Errorf("parse key %d: %w", i/2, err)
		}
		pairs, err := raw[i+1].ToArray()
		if err != nil {
			return nil, fmt.Errorf("parse fields of %s: %w", key, err)
		}

		hit := db.KNNHit{Key: key, Fields: make(map[string]string, len(pairs)/2)}
		for j := 0; j+1 < len(pairs); j += 2 {
			name, nerr := pairs[j].ToString()
			value, verr := pairs[j+1].ToString()
			if nerr != nil || verr != nil {
				continue
			}
			if name == scoreField {
				if d, perr := strconv.ParseFloat(value, 64); perr == nil {
					hit.Score = 1 - d
				}
				continue
			}
			hit.Fields[name] = value
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
