package db

import "testing"

func validSpec() VectorIndexSpec {
	return VectorIndexSpec{
		Name:        "reviewqa:idx:chunks",
		Prefix:      "reviewqa:chunk:run:",
		TextFields:  []string{"text"},
		TagFields:   []string{"park", "country"},
		VectorField: "__vector",
		VectorAlias: "vector",
		Dim:         768,
	}
}

func TestVectorIndexSpec_Validate(t *testing.T) {
	s := validSpec()
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*VectorIndexSpec)
	}{
		{"no name", func(s *VectorIndexSpec) { s.Name = "" }},
		{"no prefix", func(s *VectorIndexSpec) { s.Prefix = "" }},
		{"no vector field", func(s *VectorIndexSpec) { s.VectorField = "" }},
		{"zero dim", func(s *VectorIndexSpec) { s.Dim = 0 }},
		{"empty tag", func(s *VectorIndexSpec) { s.TagFields = append(s.TagFields, "") }},
		{"duplicate", func(s *VectorIndexSpec) { s.TagFields = append(s.TagFields, "text") }},
		{"alias clash", func(s *VectorIndexSpec) { s.TextFields = []string{"vector"} }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := validSpec()
			tc.mutate(&s)
			if err := s.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestVectorIndexSpec_QueryField(t *testing.T) {
	s := validSpec()
	if got := s.QueryField(); got != "vector" {
		t.Errorf("expected vector, got %s", got)
	}
	s.VectorAlias = ""
	if got := s.QueryField(); got != "__vector" {
		t.Errorf("expected __vector, got %s", got)
	}
}
