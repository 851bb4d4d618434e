// Package search filters saved records by what was detected in them.
package search

import (
	"sort"
	"strings"

	"github.com/kdimtricp/detectsnap/internal/models"
)

// Query matches records with at least one detection whose class contains
// Class (case-insensitive) at or above MinConfidence. The zero Query matches
// everything.
type Query struct {
	Class         string
	MinConfidence float64
	Limit         int
}

func (q Query) IsZero() bool {
	return q.Class == "" && q.MinConfidence == 0 && q.Limit == 0
}

// Search returns matching records ranked by their best matching confidence,
// highest first. Ties keep listing order. The zero Query returns records
// unchanged.
func Search(records []models.Record, q Query) []models.Record {
	if q.IsZero() {
		return records
	}

	class := strings.ToLower(strings.TrimSpace(q.Class))

	type hit struct {
		record models.Record
		score  float64
	}
	hits := make([]hit, 0, len(records))
	for _, r := range records {
		best, ok := bestMatch(r.Detections, class, q.MinConfidence)
		if !ok {
			continue
		}
		hits = append(hits, hit{record: r, score: best})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}

	out := make([]models.Record, len(hits))
	for i, h := range hits {
		out[i] = h.record
	}
	return out
}

func bestMatch(detections []models.Detection, class string, minConfidence float64) (float64, bool) {
	best, found := 0.0, false
	for _, d := range detections {
		if class != "" && !strings.Contains(strings.ToLower(d.Class), class) {
			continue
		}
		if d.Confidence < minConfidence {
			continue
		}
		if !found || d.Confidence > best {
			best, found = d.Confidence, true
		}
	}
	return best, found
}
