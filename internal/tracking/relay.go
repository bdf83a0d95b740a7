package tracking

import (
	"context"
	"sync"
)

type stateReport struct {
	state  EngineState
	reason string
}

// RelayEngine is an Engine whose frames and state changes are pushed in by the
// browser that actually runs the tracker. Frames pass through a single-slot
// channel where the newest frame replaces any undelivered one. States and
// frames travel on separate channels, so a state report and a later frame
// may be delivered in either order.
type RelayEngine struct {
	mu      sync.Mutex
	frames  chan Detection
	states  chan stateReport
	onFrame func(Detection)
	onState func(EngineState, string)
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	stopped bool
}

// NewRelayEngine builds an idle relay engine.
func NewRelayEngine() *RelayEngine {
	return &RelayEngine{
		frames: make(chan Detection, 1),
		states: make(chan stateReport, 4),
		done:   make(chan struct{}),
	}
}

// OnFrame registers the per-frame callback. Must be called before Start.
func (e *RelayEngine) OnFrame(fn func(Detection)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onFrame = fn
}

// OnState registers the state callback. Must be called before Start.
func (e *RelayEngine) OnState(fn func(EngineState, string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onState = fn
}

// Start begins delivering pushed events to the registered callbacks.
func (e *RelayEngine) Start(ctx context.Context, _ Stream) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrEngineStopped
	}
	if e.started {
		return ErrAlreadyStarted
	}
	e.started = true
	ctx, e.cancel = context.WithCancel(ctx)
	go e.pump(ctx, e.onFrame, e.onState)
	return nil
}

func (e *RelayEngine) pump(ctx context.Context, onFrame func(Detection), onState func(EngineState, string)) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-e.states:
			if onState != nil {
				onState(r.state, r.reason)
			}
		case d := <-e.frames:
			if onFrame != nil {
				onFrame(d)
			}
		}
	}
}

// Push offers a detection. A pending undelivered detection is dropped in
// favour of the new one.
func (e *RelayEngine) Push(d Detection) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrEngineStopped
	}
	for {
		select {
		case e.frames <- d:
			return nil
		default:
		}
		select {
		case <-e.frames:
		default:
		}
	}
}

// Report relays a tracker state change such as camera denial.
func (e *RelayEngine) Report(state EngineState, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrEngineStopped
	}
	r := stateReport{state: state, reason: reason}
	for {
		select {
		case e.states <- r:
			return nil
		default:
		}
		// a burst of state reports only matters for its latest entries
		select {
		case <-e.states:
		default:
		}
	}
}

// Stop halts delivery and waits for the pump to exit.
func (e *RelayEngine) Stop() error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	started := e.started
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()
	if started {
		<-e.done
	}
	return nil
}
