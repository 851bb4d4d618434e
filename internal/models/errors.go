package models

// PreconditionError is returned when a commit or save is attempted on a
// record that must not be persisted, e.g. one without detections.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}
