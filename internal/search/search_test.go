package search

import (
	"testing"

	"github.com/kdimtricp/detectsnap/internal/models"
)

func testRecords() []models.Record {
	return []models.Record{
		{ID: "1", URI: "a.jpg", Detections: []models.Detection{{Class: "dog", Confidence: 0.6}, {Class: "cat", Confidence: 0.9}}},
		{ID: "2", URI: "b.jpg", Detections: []models.Detection{{Class: "Hotdog", Confidence: 0.95}}},
		{ID: "3", URI: "c.jpg", Detections: []models.Detection{{Class: "person", Confidence: 0.4}}},
		{ID: "4", URI: "d.jpg", Detections: []models.Detection{{Class: "dog", Confidence: 0.8}}},
	}
}

func ids(records []models.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{
			name:  "zero query returns listing order",
			query: Query{},
			want:  []string{"1", "2", "3", "4"},
		},
		{
			name:  "class substring ranked by confidence",
			query: Query{Class: "DOG"},
			want:  []string{"2", "4", "1"},
		},
		{
			name:  "min confidence across classes",
			query: Query{MinConfidence: 0.85},
			want:  []string{"2", "1"},
		},
		{
			name:  "class and min confidence",
			query: Query{Class: "dog", MinConfidence: 0.7},
			want:  []string{"2", "4"},
		},
		{
			name:  "limit",
			query: Query{Class: "dog", Limit: 1},
			want:  []string{"2"},
		},
		{
			name:  "no match",
			query: Query{Class: "giraffe"},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Search(testRecords(), tt.query))
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}
