package ai

import (
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kdimtricp/detectsnap/internal/models"
)

func newObservedLogger() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core).Sugar(), logs
}

func TestParseDetections(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected []models.Detection
		warns    int
	}{
		{
			name: "drops malformed candidates",
			body: `{"detections":[{"class":"cat","confidence":0.9},{"class":"","confidence":0.5},{"confidence":"x"}]}`,
			expected: []models.Detection{
				{Class: "cat", Confidence: 0.9},
			},
		},
		{
			name:     "missing detections field",
			body:     `{"predictions":[{"class":"cat","confidence":0.9}]}`,
			expected: []models.Detection{},
			warns:    1,
		},
		{
			name:     "detections is not an array",
			body:     `{"detections":"none"}`,
			expected: []models.Detection{},
			warns:    1,
		},
		{
			name:     "top level array",
			body:     `[{"class":"cat","confidence":0.9}]`,
			expected: []models.Detection{},
			warns:    1,
		},
		{
			name:     "empty detections is not an error",
			body:     `{"detections":[]}`,
			expected: []models.Detection{},
		},
		{
			name: "string confidence and numeric class are rejected",
			body: `{"detections":[{"class":"dog","confidence":"0.8"},{"class":7,"confidence":0.8},{"class":"dog","confidence":null},{"class":"car","confidence":1}]}`,
			expected: []models.Detection{
				{Class: "car", Confidence: 1},
			},
		},
		{
			name: "bbox as array and as corner object",
			body: `{"detections":[` +
				`{"class":"cat","confidence":0.9,"bbox":[1,2,3,4]},` +
				`{"class":"dog","confidence":0.7,"bbox":{"x1":10.5,"y1":20,"x2":30,"y2":40.25}},` +
				`{"class":"bus","confidence":0.6,"bbox":{"x1":1}},` +
				`{"class":"car","confidence":0.5,"bbox":null}]}`,
			expected: []models.Detection{
				{Class: "cat", Confidence: 0.9, BBox: []float64{1, 2, 3, 4}},
				{Class: "dog", Confidence: 0.7, BBox: []float64{10.5, 20, 30, 40.25}},
				{Class: "bus", Confidence: 0.6},
				{Class: "car", Confidence: 0.5},
			},
		},
		{
			name: "keeps response order and extra fields are ignored",
			body: `{"image_info":{"width":640,"height":480},"detection_count":2,"detections":[{"class":"b","confidence":0.1},{"class":"a","confidence":0.2}]}`,
			expected: []models.Detection{
				{Class: "b", Confidence: 0.1},
				{Class: "a", Confidence: 0.2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := newObservedLogger()

			got, err := ParseDetections([]byte(tt.body), logger)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected %+v, got %+v", tt.expected, got)
			}

			warns := logs.FilterLevelExact(zapcore.WarnLevel).Len()
			if warns != tt.warns {
				t.Errorf("expected %d warnings, got %d", tt.warns, warns)
			}
		})
	}
}

func TestParseDetectionsInvalidJSON(t *testing.T) {
	_, err := ParseDetections([]byte("<html>bad gateway</html>"), nil)
	if err == nil {
		t.Fatal("expected error for non-JSON body")
	}

	var detErr *DetectionError
	if !errors.As(err, &detErr) {
		t.Fatalf("expected DetectionError, got %T", err)
	}
	if detErr.Kind != KindResponse {
		t.Errorf("expected kind %q, got %q", KindResponse, detErr.Kind)
	}
}

func TestErrorDetail(t *testing.T) {
	if got := errorDetail([]byte(`{"detail":"File must be an image"}`)); got != "File must be an image" {
		t.Errorf("unexpected detail %q", got)
	}
	if got := errorDetail([]byte(`not json`)); got != "" {
		t.Errorf("expected empty detail, got %q", got)
	}
}
