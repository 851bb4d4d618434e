package ai

import "fmt"

// ErrorKind classifies a failed detection call.
type ErrorKind string

const (
	// KindNetwork covers transport failures and non-2xx responses.
	KindNetwork ErrorKind = "network"
	// KindResponse covers bodies that cannot be read or decoded.
	KindResponse ErrorKind = "response"
	// KindImage covers image references that cannot be read.
	KindImage ErrorKind = "image"
)

// DetectionError is returned by Detect when the call could not produce a
// result. It must be surfaced to the user.
type DetectionError struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *DetectionError) Error() string {
	msg := fmt.Sprintf("detection %s error: %s", e.Kind, e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}
