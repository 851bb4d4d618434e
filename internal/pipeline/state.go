package pipeline

import (
	"context"

	"github.com/kdimtricp/detectsnap/internal/models"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseProcessing Phase = "processing"
	PhaseReviewing  Phase = "reviewing"
)

// Outcome tells apart how the detections under review were obtained. An
// empty result and a failed call both show no detections but are not the
// same thing.
type Outcome string

const (
	OutcomeNone     Outcome = ""
	OutcomeDetected Outcome = "detected"
	OutcomeEmpty    Outcome = "empty"
	OutcomeFailed   Outcome = "failed"
	OutcomeLoaded   Outcome = "loaded"
)

// State is the single value describing a session. Snapshots handed out by
// the controller are deep copies.
type State struct {
	Phase      Phase              `json:"phase"`
	Browsing   bool               `json:"browsing"`
	Busy       bool               `json:"busy"`
	ImageRef   string             `json:"image_ref,omitempty"`
	Detections []models.Detection `json:"detections"`
	Outcome    Outcome            `json:"outcome,omitempty"`

	// RecordID is set when the detections under review are already stored,
	// either because they were committed or selected from the listing.
	RecordID string          `json:"record_id,omitempty"`
	Error    *SurfacedError  `json:"error,omitempty"`
	Saved    []models.Record `json:"saved"`
}

// SurfacedError is the user-visible form of the last failure.
type SurfacedError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s State) clone() State {
	out := s
	out.Detections = models.CloneDetections(s.Detections)
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	if s.Saved != nil {
		out.Saved = make([]models.Record, len(s.Saved))
		for i, r := range s.Saved {
			out.Saved[i] = r
			out.Saved[i].Detections = models.CloneDetections(r.Detections)
		}
	}
	return out
}

// CaptureResult is what the capture collaborator hands back.
type CaptureResult struct {
	URI      string `json:"uri"`
	Canceled bool   `json:"canceled"`
}

// Capturer is the external camera or gallery picker.
type Capturer interface {
	Capture(ctx context.Context) (CaptureResult, error)
}
