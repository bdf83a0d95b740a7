package tracking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func face() [][]Landmark {
	return [][]Landmark{{{X: 0.5, Y: 0.5, Z: 0}}}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func startAdapter(t *testing.T, timeout time.Duration) (*Adapter, *RelayEngine) {
	t.Helper()
	engine := NewRelayEngine()
	adapter := NewAdapter(engine, timeout, discardLogger())
	if err := adapter.Start(context.Background(), DefaultStream); err != nil {
		t.Fatalf("start adapter: %v", err)
	}
	t.Cleanup(func() { _ = adapter.Stop() })
	return adapter, engine
}

func TestAdapterTracksFacePresence(t *testing.T) {
	adapter, engine := startAdapter(t, time.Second)

	if err := engine.Push(Detection{Faces: face(), Frame: []byte("jpeg")}); err != nil {
		t.Fatalf("push: %v", err)
	}
	waitFor(t, adapter.FacePresent)
	if !adapter.Ready() {
		t.Fatal("expected first frame to mark engine ready")
	}
	frame, ok := adapter.LatestFrame()
	if !ok || string(frame) != "jpeg" {
		t.Fatalf("unexpected latest frame %q", frame)
	}

	if err := engine.Push(Detection{}); err != nil {
		t.Fatalf("push empty: %v", err)
	}
	waitFor(t, func() bool { return !adapter.FacePresent() })
	if frame, _ := adapter.LatestFrame(); string(frame) != "jpeg" {
		t.Fatal("frame without image should keep previous frame")
	}
}

func TestAdapterReadinessTimeout(t *testing.T) {
	adapter, _ := startAdapter(t, 20*time.Millisecond)
	waitFor(t, func() bool {
		state, _ := adapter.State()
		return state == StateError
	})
	_, reason := adapter.State()
	if reason == "" {
		t.Fatal("expected timeout reason")
	}
}

func TestAdapterDeniedIsTerminal(t *testing.T) {
	adapter, engine := startAdapter(t, time.Second)
	if err := engine.Report(StateDenied, "NotAllowedError"); err != nil {
		t.Fatalf("report: %v", err)
	}
	waitFor(t, func() bool {
		state, _ := adapter.State()
		return state == StateDenied
	})

	_ = engine.Report(StateReady, "")
	_ = engine.Push(Detection{Faces: face()})
	time.Sleep(30 * time.Millisecond)
	state, _ := adapter.State()
	if state != StateDenied {
		t.Fatalf("expected denied to stick, got %s", state)
	}
	if adapter.FacePresent() {
		t.Fatal("face must not be reported after denial")
	}
}

type failingEngine struct{ *RelayEngine }

func (f *failingEngine) Start(context.Context, Stream) error { return errors.New("script load failed") }

func TestAdapterStartFailure(t *testing.T) {
	engine := &failingEngine{RelayEngine: NewRelayEngine()}
	adapter := NewAdapter(engine, time.Second, discardLogger())
	if err := adapter.Start(context.Background(), DefaultStream); err == nil {
		t.Fatal("expected start error")
	}
	state, reason := adapter.State()
	if state != StateError || reason == "" {
		t.Fatalf("expected error state with reason, got %s %q", state, reason)
	}
}

func TestRelayEngineLatestFrameWins(t *testing.T) {
	engine := NewRelayEngine()
	for i := 0; i < 5; i++ {
		if err := engine.Push(Detection{Frame: []byte{byte(i)}}); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	got := <-engine.frames
	if got.Frame[0] != 4 {
		t.Fatalf("expected latest frame 4, got %d", got.Frame[0])
	}
}

func TestRelayEngineStop(t *testing.T) {
	_, engine := startAdapter(t, time.Second)
	if err := engine.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := engine.Push(Detection{}); !errors.Is(err, ErrEngineStopped) {
		t.Fatalf("expected ErrEngineStopped, got %v", err)
	}
	if err := engine.Start(context.Background(), DefaultStream); !errors.Is(err, ErrEngineStopped) {
		t.Fatalf("expected ErrEngineStopped on restart, got %v", err)
	}
}

func TestParseEngineState(t *testing.T) {
	if s, err := ParseEngineState("denied"); err != nil || s != StateDenied {
		t.Fatalf("parse denied: %v %v", s, err)
	}
	if _, err := ParseEngineState("sleepy"); !errors.Is(err, ErrUnknownState) {
		t.Fatalf("expected ErrUnknownState, got %v", err)
	}
}
