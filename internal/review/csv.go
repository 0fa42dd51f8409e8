package review

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/kailas-cloud/reviewqa/internal/domain"
)

// Supported source encodings.
const (
	EncodingLatin1 = "latin1"
	EncodingUTF8   = "utf-8"
)

// naTokens are the cell values treated as null, matching what pandas' read_csv
// recognises by default.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// CSVSource reads review rows from a CSV file with a header line.
type CSVSource struct {
	path     string
	encoding string
}

// NewCSVSource creates a source. An empty encoding means latin1.
func NewCSVSource(path, encoding string) *CSVSource {
	if encoding == "" {
		encoding = EncodingLatin1
	}
	return &CSVSource{path: path, encoding: encoding}
}

// Load reads every row of the file. A missing or unreadable file is reported
// as domain.ErrDataSourceUnavailable.
func (s *CSVSource) Load(ctx context.Context) ([]domain.Review, error) {
	if s.path == "" {
		return nil, fmt.Errorf("csv path is not configured: %w", domain.ErrDataSourceUnavailable)
	}

	f, err := os.Open(filepath.Clean(s.path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", s.path, domain.ErrDataSourceUnavailable, err)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	switch strings.ToLower(s.encoding) {
	case EncodingLatin1, "iso-8859-1", "latin-1":
		r = charmap.ISO8859_1.NewDecoder().Reader(f)
	case EncodingUTF8, "utf8":
	default:
		return nil, fmt.Errorf("unsupported encoding %q", s.encoding)
	}

	rows, err := parse(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", s.path, domain.ErrDataSourceUnavailable, err)
	}
	return rows, nil
}

func parse(ctx context.Context, r io.Reader) ([]domain.Review, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file")
		}
		return nil, fmt.Errorf("header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows []domain.Review
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(rows)+1, err)
		}

		fields := make([]domain.Field, len(header))
		for i, name := range header {
			var value string
			if i < len(record) {
				value = record[i]
			}
			_, isNA := naTokens[value]
			fields[i] = domain.Field{Name: name, Value: value, Present: !isNA}
		}
		rows = append(rows, domain.Review{Fields: fields})
	}

	return rows, nil
}
