package models

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// DateLayout is the ISO-8601 layout used for Record.Date.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

// Detection is one recognized object instance as returned by the detection service.
type Detection struct {
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox,omitempty"`
}

// Valid reports whether the detection carries a usable label.
// Confidence is type-checked at parse time, so only the label is checked here.
func (d Detection) Valid() bool {
	return d.Class != ""
}

// BBoxLabel renders the bounding box for display.
func (d Detection) BBoxLabel() string {
	if len(d.BBox) == 0 {
		return "unavailable"
	}
	return fmt.Sprint(d.BBox)
}

// Record is a committed capture session.
type Record struct {
	ID         string      `json:"id"`
	URI        string      `json:"uri"`
	Detections []Detection `json:"detections"`
	Date       string      `json:"date"`
}

func NewRecord(id, uri string, detections []Detection, createdAt time.Time) *Record {
	return &Record{
		ID:         id,
		URI:        uri,
		Detections: CloneDetections(detections),
		Date:       createdAt.UTC().Format(DateLayout),
	}
}

// Validate checks the preconditions for persisting a record.
func (r *Record) Validate() error {
	if r == nil {
		return &PreconditionError{Reason: "record is nil"}
	}
	if len(r.Detections) == 0 {
		return &PreconditionError{Reason: "record has no detections"}
	}
	if r.ID == "" {
		return &PreconditionError{Reason: "record has no id"}
	}
	if r.URI == "" {
		return &PreconditionError{Reason: "record has no image reference"}
	}
	return nil
}

// Preview returns at most n detections in service order.
func (r *Record) Preview(n int) []Detection {
	if n < 0 || n >= len(r.Detections) {
		return r.Detections
	}
	return r.Detections[:n]
}

// CreatedAt parses Date back into a time.
func (r *Record) CreatedAt() (time.Time, error) {
	return time.Parse(DateLayout, r.Date)
}

func CloneDetections(in []Detection) []Detection {
	if in == nil {
		return nil
	}
	out := make([]Detection, len(in))
	for i, d := range in {
		out[i] = d
		if d.BBox != nil {
			out[i].BBox = append([]float64(nil), d.BBox...)
		}
	}
	return out
}

// IDSource hands out record ids derived from the creation time in milliseconds.
// Ids are strictly increasing within a process, so saves issued in the same
// millisecond still get distinct ids.
type IDSource struct {
	mu   sync.Mutex
	last int64
}

func (s *IDSource) Next(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := t.UnixMilli()
	if ms <= s.last {
		ms = s.last + 1
	}
	s.last = ms
	return strconv.FormatInt(ms, 10)
}
