package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultReadyTimeout bounds how long the tracker may stay in loading.
const DefaultReadyTimeout = 10 * time.Second

// Adapter turns an Engine's callbacks into the flags the verification flow
// reads: whether a face is in view, the latest camera frame and the engine state.
type Adapter struct {
	engine       Engine
	logger       *slog.Logger
	readyTimeout time.Duration

	mu          sync.RWMutex
	state       EngineState
	reason      string
	facePresent bool
	frame       []byte
	timer       *time.Timer
	stopped     bool
}

// NewAdapter wraps engine. A non-positive readyTimeout uses DefaultReadyTimeout.
func NewAdapter(engine Engine, readyTimeout time.Duration, logger *slog.Logger) *Adapter {
	if readyTimeout <= 0 {
		readyTimeout = DefaultReadyTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		engine:       engine,
		logger:       logger,
		readyTimeout: readyTimeout,
		state:        StateLoading,
	}
}

// Start attaches the engine to the stream and arms the readiness timeout.
func (a *Adapter) Start(ctx context.Context, stream Stream) error {
	a.engine.OnFrame(a.handleFrame)
	a.engine.OnState(a.handleState)
	if err := a.engine.Start(ctx, stream); err != nil {
		a.setTerminal(StateError, fmt.Sprintf("tracking engine failed to start: %v", err))
		return fmt.Errorf("start tracking engine: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateLoading {
		a.timer = time.AfterFunc(a.readyTimeout, a.readinessExpired)
	}
	return nil
}

func (a *Adapter) readinessExpired() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateLoading || a.stopped {
		return
	}
	a.state = StateError
	a.reason = fmt.Sprintf("tracking engine not ready after %s", a.readyTimeout)
	a.logger.Warn("tracking readiness timeout", slog.Duration("timeout", a.readyTimeout))
}

func (a *Adapter) handleFrame(d Detection) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Terminal() || a.stopped {
		return
	}
	if a.state == StateLoading {
		a.markReadyLocked()
	}
	a.facePresent = d.FacePresent()
	if len(d.Frame) > 0 {
		a.frame = d.Frame
	}
}

func (a *Adapter) handleState(state EngineState, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Terminal() || a.stopped {
		return
	}
	switch state {
	case StateReady:
		a.markReadyLocked()
	case StateDenied, StateError:
		a.stopTimerLocked()
		a.state = state
		a.reason = reason
		a.facePresent = false
		a.logger.Warn("tracking engine unavailable", slog.String("state", string(state)), slog.String("reason", reason))
	}
}

func (a *Adapter) markReadyLocked() {
	a.stopTimerLocked()
	a.state = StateReady
	a.reason = ""
}

func (a *Adapter) stopTimerLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Adapter) setTerminal(state EngineState, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopTimerLocked()
	a.state = state
	a.reason = reason
	a.facePresent = false
}

// FacePresent reports whether the most recent frame contained a face.
func (a *Adapter) FacePresent() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.facePresent
}

// State returns the engine state and, for terminal states, the reason.
func (a *Adapter) State() (EngineState, string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state, a.reason
}

// Ready reports whether the engine is running.
func (a *Adapter) Ready() bool {
	state, _ := a.State()
	return state == StateReady
}

// LatestFrame returns the most recent encoded camera frame, if any.
func (a *Adapter) LatestFrame() ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.frame) == 0 {
		return nil, false
	}
	return a.frame, true
}

// Stop releases the engine.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	a.stopTimerLocked()
	a.mu.Unlock()
	return a.engine.Stop()
}

// Message returns the full-screen text shown for an engine state.
func Message(state EngineState, reason string) string {
	switch state {
	case StateLoading:
		return "Initializing biometric engine..."
	case StateDenied:
		return "Camera access denied. Enable camera permissions and reload the page."
	case StateError:
		if reason != "" {
			return "Biometric engine failed: " + reason + ". Retry or reload the page."
		}
		return "Biometric engine failed to load. Retry or reload the page."
	default:
		return ""
	}
}
