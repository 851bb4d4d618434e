package ai

import (
	"bytes"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/kdimtricp/detectsnap/internal/models"
)

// InvalidResponseError describes a response whose top-level shape does not
// carry a detections array. It is logged as a warning and never returned to
// callers: such a response yields an empty detection list.
type InvalidResponseError struct {
	Reason string
}

func (e *InvalidResponseError) Error() string {
	return "invalid detection response: " + e.Reason
}

// ParseDetections validates a raw service response and returns the valid
// detections in response order. A body that is not valid JSON is a response
// error; any other shape without a usable detections array is downgraded to
// an empty result and a warning.
func ParseDetections(body []byte, logger *zap.SugaredLogger) ([]models.Detection, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	if !json.Valid(body) {
		return nil, &DetectionError{Kind: KindResponse, Op: "decode response", Err: errMalformedJSON}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil || top == nil {
		logger.Warnw("detection response format warning", "error", &InvalidResponseError{Reason: "response is not an object"})
		return []models.Detection{}, nil
	}

	raw, ok := top["detections"]
	if !ok {
		logger.Warnw("detection response format warning", "error", &InvalidResponseError{Reason: "missing detections field"})
		return []models.Detection{}, nil
	}

	var candidates []json.RawMessage
	if err := json.Unmarshal(raw, &candidates); err != nil || candidates == nil {
		logger.Warnw("detection response format warning", "error", &InvalidResponseError{Reason: "detections is not an array"})
		return []models.Detection{}, nil
	}

	detections := make([]models.Detection, 0, len(candidates))
	dropped := 0
	for _, c := range candidates {
		d, ok := parseCandidate(c)
		if !ok {
			dropped++
			continue
		}
		detections = append(detections, d)
	}
	if dropped > 0 {
		logger.Debugw("dropped malformed detections", "dropped", dropped, "kept", len(detections))
	}

	return detections, nil
}

func parseCandidate(raw json.RawMessage) (models.Detection, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.Detection{}, false
	}

	var class string
	if err := json.Unmarshal(fields["class"], &class); err != nil || class == "" {
		return models.Detection{}, false
	}

	confidence, ok := asNumber(fields["confidence"])
	if !ok {
		return models.Detection{}, false
	}

	d := models.Detection{Class: class, Confidence: confidence}
	if bbox, ok := fields["bbox"]; ok {
		d.BBox = parseBBox(bbox)
	}
	return d, d.Valid()
}

// asNumber accepts only JSON numbers, so "0.5" and null are rejected.
func asNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

// parseBBox accepts a plain coordinate array or the {x1,y1,x2,y2} object the
// inference server emits. Anything else is treated as absent.
func parseBBox(raw json.RawMessage) []float64 {
	var coords []float64
	if err := json.Unmarshal(raw, &coords); err == nil {
		if len(coords) == 0 {
			return nil
		}
		return coords
	}

	var corners struct {
		X1 *float64 `json:"x1"`
		Y1 *float64 `json:"y1"`
		X2 *float64 `json:"x2"`
		Y2 *float64 `json:"y2"`
	}
	if err := json.Unmarshal(raw, &corners); err != nil {
		return nil
	}
	if corners.X1 == nil || corners.Y1 == nil || corners.X2 == nil || corners.Y2 == nil {
		return nil
	}
	return []float64{*corners.X1, *corners.Y1, *corners.X2, *corners.Y2}
}

// errorDetail extracts the FastAPI-style {"detail": "..."} message, if any.
func errorDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	return string(payload.Detail)
}
