package tracking

import (
	"context"
	"errors"
	"time"
)

// EngineState is the lifecycle of the external landmark tracker.
type EngineState string

const (
	StateLoading EngineState = "loading"
	StateReady   EngineState = "ready"
	StateDenied  EngineState = "denied"
	StateError   EngineState = "error"
)

// Terminal reports whether the state ends the session's tracking for good.
func (s EngineState) Terminal() bool {
	return s == StateDenied || s == StateError
}

// ParseEngineState maps a reported state name to an EngineState.
func ParseEngineState(v string) (EngineState, error) {
	switch s := EngineState(v); s {
	case StateLoading, StateReady, StateDenied, StateError:
		return s, nil
	default:
		return "", ErrUnknownState
	}
}

var (
	// ErrUnknownState is returned for unrecognised engine state names.
	ErrUnknownState = errors.New("unknown engine state")

	// ErrEngineStopped is returned when an engine is used after Stop.
	ErrEngineStopped = errors.New("tracking engine stopped")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("tracking engine already started")
)

// Landmark is one normalised face mesh point.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Detection is the tracker output for one camera frame. Faces holds zero or
// one landmark set; Frame optionally carries the encoded camera image.
type Detection struct {
	Faces [][]Landmark
	Frame []byte
	At    time.Time
}

// FacePresent reports whether the frame contained a face.
func (d Detection) FacePresent() bool {
	return len(d.Faces) > 0 && len(d.Faces[0]) > 0
}

// Stream describes the camera feed the tracker attaches to.
type Stream struct {
	DeviceID string
	Width    int
	Height   int
}

// DefaultStream is the 640x480 feed the scanner requests.
var DefaultStream = Stream{Width: 640, Height: 480}

// Engine is a face-landmark tracker hosted outside this process.
type Engine interface {
	Start(ctx context.Context, stream Stream) error
	OnFrame(fn func(Detection))
	OnState(fn func(state EngineState, reason string))
	Stop() error
}
