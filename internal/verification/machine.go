package verification

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thevault/vault/internal/capture"
	"github.com/thevault/vault/internal/challenge"
	"github.com/thevault/vault/internal/classifier"
	"github.com/thevault/vault/internal/identity"
	"github.com/thevault/vault/internal/tracking"
)

// FaceSignal is the tracking state the machine reads.
type FaceSignal interface {
	FacePresent() bool
	Ready() bool
	State() (tracking.EngineState, string)
	LatestFrame() ([]byte, bool)
}

// Capturer encodes a raw camera frame into the snapshot sent for classification.
type Capturer func(frame []byte) (capture.Image, error)

// Timings controls the timer-driven transitions.
type Timings struct {
	Dwell           time.Duration
	Flash           time.Duration
	ClassifyTimeout time.Duration
}

// DefaultTimings are the production dwell, flash and classification bounds.
var DefaultTimings = Timings{
	Dwell:           3500 * time.Millisecond,
	Flash:           600 * time.Millisecond,
	ClassifyTimeout: 30 * time.Second,
}

// Event describes one observable change of the machine.
type Event struct {
	Status         Status    `json:"status"`
	Previous       Status    `json:"previous"`
	ChallengeIndex int       `json:"challenge_index"`
	Flash          bool      `json:"flash"`
	At             time.Time `json:"at"`
}

// StatusChanged reports whether the event moved the machine to a new status.
func (e Event) StatusChanged() bool {
	return e.Status != e.Previous
}

// Outcome is reported once for every attempt that reaches a terminal status.
type Outcome struct {
	AttemptID   string
	Identity    identity.UserIdentity
	Challenges  []challenge.Challenge
	Status      Status
	Verdict     classifier.Verdict
	StartedAt   time.Time
	CompletedAt time.Time
}

// Config wires a Machine to its collaborators.
type Config struct {
	Signal     FaceSignal
	Classifier classifier.Classifier
	Capture    Capturer
	Timings    Timings
	Rand       *rand.Rand
	Logger     *slog.Logger

	// OnEvent is called synchronously for every change, under the machine
	// lock. It must not call back into the Machine.
	OnEvent func(Event)

	// OnOutcome is called outside the lock when an attempt finishes.
	OnOutcome func(Outcome)
}

// Machine sequences identity capture, challenges, capture and classification.
// Its exported methods are the only way the status changes.
type Machine struct {
	cfg Config

	mu        sync.Mutex
	status    Status
	identity  *identity.UserIdentity
	seq       *challenge.Sequence
	progress  float64
	flash     bool
	verdict   *classifier.Verdict
	attempt   uint64
	attemptID string
	startedAt time.Time
	timer     *time.Timer
	closed    bool
	subs      map[int]chan Event
	nextSub   int
}

// NewMachine builds a machine in collecting-data.
func NewMachine(cfg Config) (*Machine, error) {
	if cfg.Signal == nil {
		return nil, fmt.Errorf("face signal is required")
	}
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if cfg.Capture == nil {
		cfg.Capture = capture.Snapshot
	}
	if cfg.Timings.Dwell <= 0 {
		cfg.Timings.Dwell = DefaultTimings.Dwell
	}
	if cfg.Timings.Flash <= 0 {
		cfg.Timings.Flash = DefaultTimings.Flash
	}
	if cfg.Timings.ClassifyTimeout <= 0 {
		cfg.Timings.ClassifyTimeout = DefaultTimings.ClassifyTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Machine{
		cfg:    cfg,
		status: StatusCollectingData,
		subs:   make(map[int]chan Event),
	}, nil
}

// Status returns the current status.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// SubmitIdentity accepts a validated identity: collecting-data -> idle. The
// stored display name is trimmed.
func (m *Machine) SubmitIdentity(in identity.UserIdentity) error {
	u, err := identity.New(in.DisplayName, in.WalletAddress)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireLocked(StatusCollectingData); err != nil {
		return err
	}
	m.identity = &u
	m.setStatusLocked(StatusIdle)
	return nil
}

// Start begins a scan: idle -> scanning. A face must currently be detected.
func (m *Machine) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireLocked(StatusIdle); err != nil {
		return err
	}
	if m.identity == nil {
		return fmt.Errorf("%w: identity missing", ErrInvalidTransition)
	}
	if !m.cfg.Signal.Ready() {
		return ErrEngineNotReady
	}
	if !m.cfg.Signal.FacePresent() {
		return ErrNoFace
	}

	picked, err := challenge.Sample(m.cfg.Rand, challenge.SequenceLength)
	if err != nil {
		return err
	}
	seq, err := challenge.NewSequence(picked)
	if err != nil {
		return err
	}

	m.attempt++
	m.attemptID = uuid.NewString()
	m.startedAt = time.Now().UTC()
	m.seq = seq
	m.progress = 0
	m.verdict = nil
	m.setStatusLocked(StatusScanning)
	m.armLocked(m.cfg.Timings.Dwell, m.dwellElapsed)

	m.cfg.Logger.Info("verification scan started",
		slog.String("attempt_id", m.attemptID),
		slog.String("challenges", seq.Describe()),
	)
	return nil
}

// Reset returns a finished attempt to identity entry and drops the identity.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireTerminalLocked(); err != nil {
		return err
	}
	m.identity = nil
	m.clearAttemptLocked()
	m.setStatusLocked(StatusCollectingData)
	return nil
}

// Retry returns a finished attempt to idle, keeping the identity.
func (m *Machine) Retry() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireTerminalLocked(); err != nil {
		return err
	}
	m.clearAttemptLocked()
	m.setStatusLocked(StatusIdle)
	return nil
}

// Close tears the machine down. Pending timers are stopped; a classification
// already in flight is left to finish and its result is dropped.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.stopTimerLocked()
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
}

// Subscribe returns a channel of events and a function that releases it.
// Slow subscribers miss events rather than block the machine.
func (m *Machine) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan Event, buffer)
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			close(sub)
			delete(m.subs, id)
		}
	}
}

func (m *Machine) requireLocked(want Status) error {
	if m.closed {
		return ErrClosed
	}
	if m.status != want {
		return fmt.Errorf("%w: %s requires %s", ErrInvalidTransition, m.status, want)
	}
	return nil
}

func (m *Machine) requireTerminalLocked() error {
	if m.closed {
		return ErrClosed
	}
	if !m.status.Terminal() {
		return fmt.Errorf("%w: cannot reset from %s", ErrInvalidTransition, m.status)
	}
	return nil
}

func (m *Machine) clearAttemptLocked() {
	m.stopTimerLocked()
	m.seq = nil
	m.progress = 0
	m.flash = false
	m.verdict = nil
	m.attemptID = ""
}

func (m *Machine) setStatusLocked(next Status) {
	prev := m.status
	m.status = next
	m.emitLocked(prev)
}

func (m *Machine) emitLocked(prev Status) {
	ev := Event{Status: m.status, Previous: prev, Flash: m.flash, At: time.Now().UTC()}
	if m.seq != nil {
		ev.ChallengeIndex = m.seq.Index()
	}
	if m.cfg.OnEvent != nil {
		m.cfg.OnEvent(ev)
	}
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (m *Machine) armLocked(d time.Duration, fn func(gen uint64)) {
	m.stopTimerLocked()
	gen := m.attempt
	m.timer = time.AfterFunc(d, func() { fn(gen) })
}

func (m *Machine) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// currentLocked reports whether gen still names the live attempt in status want.
func (m *Machine) currentLocked(gen uint64, want Status) bool {
	return !m.closed && gen == m.attempt && m.status == want
}

func (m *Machine) dwellElapsed(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.currentLocked(gen, StatusScanning) {
		return
	}
	if m.seq.Advance() {
		m.progress = m.seq.Progress()
		m.emitLocked(m.status)
		m.armLocked(m.cfg.Timings.Dwell, m.dwellElapsed)
		return
	}
	m.progress = 100
	m.flash = true
	m.setStatusLocked(StatusProcessing)
	m.armLocked(m.cfg.Timings.Flash, m.flashElapsed)
}

func (m *Machine) flashElapsed(gen uint64) {
	m.mu.Lock()
	if !m.currentLocked(gen, StatusProcessing) {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	text := m.seq.Describe()
	m.mu.Unlock()

	verdict := m.captureAndClassify(text)
	m.finish(gen, verdict)
}

func (m *Machine) captureAndClassify(text string) classifier.Verdict {
	frame, ok := m.cfg.Signal.LatestFrame()
	if !ok {
		return classifier.Negative(capture.ErrNoFrame)
	}
	img, err := m.cfg.Capture(frame)
	if err != nil {
		return classifier.Negative(fmt.Errorf("capture frame: %w", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timings.ClassifyTimeout)
	defer cancel()

	result := make(chan classifier.Verdict, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- classifier.Negative(fmt.Errorf("classifier panic: %v", r))
			}
		}()
		result <- m.cfg.Classifier.Classify(ctx, classifier.Request{
			ImageJPEG:     img.JPEG,
			ChallengeText: text,
		})
	}()

	select {
	case v := <-result:
		return v
	case <-ctx.Done():
		return classifier.Negative(ctx.Err())
	}
}

func (m *Machine) finish(gen uint64, verdict classifier.Verdict) {
	m.mu.Lock()
	if !m.currentLocked(gen, StatusProcessing) {
		m.mu.Unlock()
		m.cfg.Logger.Debug("dropping late classification result")
		return
	}
	next := StatusFailed
	if verdict.IsReal {
		next = StatusSuccess
	}
	m.flash = false
	m.verdict = &verdict
	m.setStatusLocked(next)

	out := Outcome{
		AttemptID:   m.attemptID,
		Identity:    *m.identity,
		Challenges:  m.seq.Items(),
		Status:      next,
		Verdict:     verdict,
		StartedAt:   m.startedAt,
		CompletedAt: time.Now().UTC(),
	}
	onOutcome := m.cfg.OnOutcome
	m.mu.Unlock()

	m.cfg.Logger.Info("verification completed",
		slog.String("attempt_id", out.AttemptID),
		slog.String("status", string(out.Status)),
		slog.Float64("confidence", verdict.Confidence),
		slog.String("sentiment", verdict.Sentiment),
	)
	if onOutcome != nil {
		onOutcome(out)
	}
}
