package domain

// MissingValue marks a metadata attribute that no column of the row provided.
const MissingValue = "unknown"

// Field is a single named cell of a review row. Present is false for null cells.
type Field struct {
	Name    string
	Value   string
	Present bool
}

// Review is one row of the source corpus, fields kept in column order.
type Review struct {
	Fields []Field
}

// Lookup returns the value of the first present field named name.
func (r Review) Lookup(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name && f.Present {
			return f.Value, true
		}
	}
	return "", false
}

// Metadata is the structured part of a review carried by every chunk.
type Metadata struct {
	Park    string `json:"park"`
	Country string `json:"country"`
	Rating  string `json:"rating"`
	Date    string `json:"date"`
}

// Document is a normalized review: flattened text plus metadata.
type Document struct {
	Text     string
	Metadata Metadata
}
