package ai

import (
	"context"
	"time"

	"github.com/kdimtricp/detectsnap/internal/models"
)

// Detector turns an image reference into a list of validated detections.
type Detector interface {
	Detect(ctx context.Context, imageRef string) ([]models.Detection, error)
}

type Config struct {
	// Endpoint is the full URL of the detect route, e.g. http://host:8000/detect.
	Endpoint string
	// HealthEndpoint defaults to Endpoint with its last path element replaced by "health".
	HealthEndpoint string
	// Timeout of zero leaves the bound to the network layer.
	Timeout time.Duration
	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize int64
}

func NewConfig(endpoint string) *Config {
	return &Config{
		Endpoint:        endpoint,
		MaxResponseSize: 8 << 20,
	}
}
