package pipeline

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/kdimtricp/detectsnap/internal/ai"
	"github.com/kdimtricp/detectsnap/internal/models"
	"github.com/kdimtricp/detectsnap/internal/storage"
)

var (
	// ErrBusy is returned while a detection call or storage operation is in flight.
	ErrBusy = errors.New("pipeline: operation in progress")
	// ErrRecordNotFound is returned when selecting an id missing from the listing.
	ErrRecordNotFound = errors.New("pipeline: record not found")
)

// TransitionError is returned for events that are not legal in the current state.
type TransitionError struct {
	Event string
	Phase Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("pipeline: %s not allowed while %s", e.Event, e.Phase)
}

func errorKind(err error) string {
	var (
		detErr     *ai.DetectionError
		precondErr *models.PreconditionError
		initErr    *storage.StorageInitError
		writeErr   *storage.StorageWriteError
		readErr    *storage.StorageReadError
		transErr   *TransitionError
	)
	switch {
	case errors.As(err, &detErr):
		return "detection_" + string(detErr.Kind)
	case errors.As(err, &precondErr):
		return "precondition"
	case errors.As(err, &initErr):
		return "storage_init"
	case errors.As(err, &writeErr):
		return "storage_write"
	case errors.As(err, &readErr):
		return "storage_read"
	case errors.As(err, &transErr):
		return "transition"
	case errors.Is(err, ErrBusy):
		return "busy"
	default:
		return "internal"
	}
}

// Surface converts err into the form kept in State.Error.
func Surface(err error) *SurfacedError {
	if err == nil {
		return nil
	}
	return &SurfacedError{Kind: errorKind(err), Message: err.Error()}
}
