// Package review turns rows of the review corpus into retrievable documents.
package review

import (
	"strings"

	"github.com/kailas-cloud/reviewqa/internal/domain"
)

// Column names checked for each metadata attribute, canonical name first.
var (
	parkColumns    = []string{"park", "Park", "Branch"}
	countryColumns = []string{"Reviewer_Location", "country"}
	ratingColumns  = []string{"Rating", "rating"}
	dateColumns    = []string{"Date", "Year_Month"}
)

// Normalize flattens a row into "name: value" pairs joined by ". " with a
// trailing period. Absent cells are skipped entirely.
func Normalize(r domain.Review) domain.Document {
	parts := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		if !f.Present {
			continue
		}
		parts = append(parts, f.Name+": "+f.Value)
	}

	return domain.Document{
		Text: strings.Join(parts, ". ") + ".",
		Metadata: domain.Metadata{
			Park:    firstOf(r, parkColumns),
			Country: firstOf(r, countryColumns),
			Rating:  firstOf(r, ratingColumns),
			Date:    firstOf(r, dateColumns),
		},
	}
}

// NormalizeAll normalizes rows preserving their order.
func NormalizeAll(rows []domain.Review) []domain.Document {
	docs := make([]domain.Document, len(rows))
	for i, r := range rows {
		docs[i] = Normalize(r)
	}
	return docs
}

func firstOf(r domain.Review, columns []string) string {
	for _, c := range columns {
		if v, ok := r.Lookup(c); ok && v != "" {
			return v
		}
	}
	return domain.MissingValue
}
