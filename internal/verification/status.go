package verification

import "errors"

// Status is the single current stage of a verification session.
type Status string

const (
	StatusCollectingData Status = "collecting-data"
	StatusIdle           Status = "idle"
	StatusScanning       Status = "scanning"
	StatusProcessing     Status = "processing"
	StatusSuccess        Status = "success"
	StatusFailed         Status = "failed"
)

// Terminal reports whether s ends an attempt.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

var (
	// ErrInvalidTransition is returned when an operation is not allowed in the current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNoFace is returned when a scan is started without a detected face.
	ErrNoFace = errors.New("no face detected")

	// ErrEngineNotReady is returned when a scan is started before the tracker runs.
	ErrEngineNotReady = errors.New("tracking engine not ready")

	// ErrClosed is returned after the machine has been torn down.
	ErrClosed = errors.New("verification session closed")
)
