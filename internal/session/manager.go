package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/thevault/vault/internal/attempt"
	"github.com/thevault/vault/internal/classifier"
	"github.com/thevault/vault/internal/dashboard"
	"github.com/thevault/vault/internal/notification"
	"github.com/thevault/vault/internal/tracking"
	"github.com/thevault/vault/internal/verification"
)

const (
	defaultTTL       = 15 * time.Minute
	outcomeTimeout   = 5 * time.Second
	sweepDivisor     = 4
	minSweepInterval = time.Second
)

// ErrNotFound is returned for unknown or already closed sessions.
var ErrNotFound = errors.New("session not found")

// Session is one browser tab's verification flow.
type Session struct {
	ID        string
	CreatedAt time.Time
	Machine   *verification.Machine
	Tracker   *tracking.Adapter
	Engine    *tracking.RelayEngine
	Feed      *dashboard.Feed

	lastSeen atomic.Int64
}

// Touch marks the session as active.
func (s *Session) Touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) close() {
	s.Machine.Close()
	_ = s.Tracker.Stop()
}

// Options configures the Manager.
type Options struct {
	Timings      verification.Timings
	ReadyTimeout time.Duration
	TTL          time.Duration
	Classifier   classifier.Classifier
	Attempts     *attempt.Service
	Notifier     notification.Notifier
	Logger       *slog.Logger
}

// Manager owns every live session.
type Manager struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager builds a session manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{opts: opts, sessions: make(map[string]*Session)}, nil
}

// Create starts a new session with its own tracker and state machine.
func (m *Manager) Create(_ context.Context) (*Session, error) {
	id := uuid.NewString()
	logger := m.opts.Logger.With(slog.String("session_id", id))

	engine := tracking.NewRelayEngine()
	tracker := tracking.NewAdapter(engine, m.opts.ReadyTimeout, logger)
	feed := dashboard.NewFeed()

	machine, err := verification.NewMachine(verification.Config{
		Signal:     tracker,
		Classifier: m.opts.Classifier,
		Timings:    m.opts.Timings,
		Logger:     logger,
		OnEvent:    feed.Observe,
		OnOutcome: func(out verification.Outcome) {
			m.recordOutcome(id, out, logger)
		},
	})
	if err != nil {
		return nil, err
	}
	// the engine outlives the creating request
	if err := tracker.Start(context.Background(), tracking.DefaultStream); err != nil {
		machine.Close()
		return nil, err
	}

	s := &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Machine:   machine,
		Tracker:   tracker,
		Engine:    engine,
		Feed:      feed,
	}
	s.Touch()

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	logger.Info("session created")
	return s, nil
}

func (m *Manager) recordOutcome(sessionID string, out verification.Outcome, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), outcomeTimeout)
	defer cancel()

	if m.opts.Attempts != nil {
		if _, err := m.opts.Attempts.Record(ctx, sessionID, out); err != nil {
			logger.Error("record attempt", slog.String("attempt_id", out.AttemptID), slog.Any("error", err))
		}
	}
	if m.opts.Notifier != nil {
		kind := notification.KindVerificationFailed
		body := "Access Denied: " + out.Verdict.Reasoning
		if out.Status == verification.StatusSuccess {
			kind = notification.KindVerificationSucceeded
			body = "Identity Confirmed for " + out.Identity.DisplayName
		}
		msg := notification.Message{Kind: kind, Destination: out.Identity.WalletAddress, Body: body}
		if err := m.opts.Notifier.Send(ctx, msg); err != nil {
			logger.Warn("send notification", slog.Any("error", err))
		}
	}
}

// Get returns a live session and marks it active.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.Touch()
	return s, nil
}

// Close tears a session down: timers stop, the tracker is released and any
// in-flight classification result is discarded.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.close()
	m.opts.Logger.Info("session closed", slog.String("session_id", id))
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle longer than the TTL and returns how many it closed.
func (m *Manager) Sweep(now time.Time) int {
	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastSeen()) > m.opts.TTL {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.close()
		m.opts.Logger.Info("session expired", slog.String("session_id", s.ID))
	}
	return len(expired)
}

// Run sweeps expired sessions until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	interval := m.opts.TTL / sweepDivisor
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Sweep(now)
		}
	}
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}
