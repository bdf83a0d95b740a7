// Package dashboard renders the presentation side of a session: the system
// log feed, the fabricated neural-feed metrics and the per-status screen copy.
// None of the telemetry here is measured.
package dashboard

import (
	"sync"

	"github.com/thevault/vault/internal/verification"
)

// FeedSize is the number of log lines kept, newest first.
const FeedSize = 10

var statusLines = map[verification.Status][]string{
	verification.StatusCollectingData: {"> [SYS] Awaiting identity handshake..."},
	verification.StatusIdle:           {"> [SYS] Identity received. Biometric pipeline ready."},
	verification.StatusScanning: {
		"> [SYS] Initializing MFPL Visual Challenge Engine",
		"> [CV] FaceMesh loading landmarks: 478 count",
	},
	verification.StatusProcessing: {
		"> [AI] Gemini Multimodal Analysis: active",
		"> [AI] Evaluating texture depth & sentiment",
	},
	verification.StatusSuccess: {
		"> [WEB3] Verification confirmed. Minting SBT...",
		"> [TX] Hash generated via 0x92f3...e21c",
	},
	verification.StatusFailed: {
		"> [WARN] Anomaly detected: Synthetic rigid motion",
		"> [ERR] Access Denied: Biometric mismatch",
	},
}

// Feed is the bounded system log shown beside the scanner.
type Feed struct {
	mu    sync.Mutex
	lines []string
}

// NewFeed returns a feed seeded with the collecting-data line.
func NewFeed() *Feed {
	f := &Feed{}
	f.Record(verification.StatusCollectingData)
	return f
}

// Record appends the lines for status.
func (f *Feed) Record(status verification.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, line := range statusLines[status] {
		f.lines = append([]string{line}, f.lines...)
	}
	if len(f.lines) > FeedSize {
		f.lines = f.lines[:FeedSize]
	}
}

// Observe records status changes from a machine event stream.
func (f *Feed) Observe(e verification.Event) {
	if e.StatusChanged() {
		f.Record(e.Status)
	}
}

// Lines returns the feed, newest first.
func (f *Feed) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.lines))
	copy(out, f.lines)
	return out
}

// Metric is one neural-feed gauge.
type Metric struct {
	Label   string  `json:"label"`
	Value   string  `json:"value"`
	Percent float64 `json:"percent,omitempty"`
}

// Metrics returns the static gauges shown in the neural feed.
func Metrics() []Metric {
	return []Metric{
		{Label: "Jitter", Value: "0.042ms", Percent: 15},
		{Label: "Depth Confidence", Value: "98.2%", Percent: 98},
		{Label: "Network Latency", Value: "12ms"},
	}
}
