package verification

import (
	"github.com/thevault/vault/internal/challenge"
	"github.com/thevault/vault/internal/classifier"
	"github.com/thevault/vault/internal/tracking"
)

// View is a read-only snapshot of the machine for presentation.
type View struct {
	Status         Status               `json:"status"`
	AttemptID      string               `json:"attempt_id,omitempty"`
	DisplayName    string               `json:"display_name,omitempty"`
	FirstName      string               `json:"first_name,omitempty"`
	WalletAddress  string               `json:"wallet_address,omitempty"`
	ShortWallet    string               `json:"short_wallet,omitempty"`
	Challenge      *challenge.Challenge `json:"challenge,omitempty"`
	ChallengeIndex int                  `json:"challenge_index"`
	ChallengeTotal int                  `json:"challenge_total"`
	Progress       float64              `json:"progress"`
	Flash          bool                 `json:"flash"`
	FacePresent    bool                 `json:"face_present"`
	FaceLost       bool                 `json:"face_lost"`
	CanStart       bool                 `json:"can_start"`
	Engine         tracking.EngineState `json:"engine"`
	EngineMessage  string               `json:"engine_message,omitempty"`
	Verdict        *classifier.Verdict  `json:"verdict,omitempty"`
}

// View returns the current presentation snapshot. ChallengeIndex is 1-based
// while scanning and 0 otherwise.
func (m *Machine) View() View {
	face := m.cfg.Signal.FacePresent()
	engine, reason := m.cfg.Signal.State()

	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		Status:        m.status,
		AttemptID:     m.attemptID,
		Progress:      m.progress,
		Flash:         m.flash,
		FacePresent:   face,
		Engine:        engine,
		EngineMessage: tracking.Message(engine, reason),
	}
	if m.identity != nil {
		v.DisplayName = m.identity.DisplayName
		v.FirstName = m.identity.FirstName()
		v.WalletAddress = m.identity.WalletAddress
		v.ShortWallet = m.identity.ShortWallet()
	}
	if m.seq != nil {
		v.ChallengeTotal = m.seq.Len()
		if m.status == StatusScanning {
			current := m.seq.Current()
			v.Challenge = &current
			v.ChallengeIndex = m.seq.Index() + 1
		}
	}
	if m.verdict != nil {
		verdict := *m.verdict
		v.Verdict = &verdict
	}
	v.FaceLost = m.status == StatusScanning && !face
	v.CanStart = m.status == StatusIdle && m.identity != nil && face && engine == tracking.StateReady
	return v
}
