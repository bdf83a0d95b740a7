package dashboard

import (
	"fmt"

	"github.com/thevault/vault/internal/tracking"
	"github.com/thevault/vault/internal/verification"
)

// Screen is the copy shown in the scanner panel for a view.
type Screen struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Action   string `json:"action,omitempty"`
	Banner   string `json:"banner,omitempty"`
}

// Render picks the scanner panel copy for v. Terminal engine states take the
// whole screen regardless of the verification status; a loading engine only
// hides the idle screen.
func Render(v verification.View) Screen {
	if v.Engine.Terminal() || (v.Engine == tracking.StateLoading && v.Status == verification.StatusIdle) {
		return Screen{Title: "Biometric Engine", Detail: v.EngineMessage}
	}

	var s Screen
	switch v.Status {
	case verification.StatusCollectingData:
		s = Screen{
			Title:    "Identity Handshake",
			Subtitle: "Protocol initialization required",
			Detail:   "Personal data is processed via ZK-proof. Nothing is stored on central servers.",
			Action:   "PROCEED TO BIOMETRICS",
		}
	case verification.StatusIdle:
		s = Screen{
			Title:    fmt.Sprintf("Ready, %s", v.FirstName),
			Subtitle: fmt.Sprintf("Target Wallet: %s", v.ShortWallet),
			Action:   "WAITING FOR FACE...",
		}
		if v.CanStart {
			s.Action = "START MFPL SCAN"
		}
	case verification.StatusScanning:
		s = Screen{Title: fmt.Sprintf("Challenge %d of %d", v.ChallengeIndex, v.ChallengeTotal)}
		if v.Challenge != nil {
			s.Subtitle = v.Challenge.Description
		}
	case verification.StatusProcessing:
		s = Screen{
			Title:    "Chroma-Reflection Audit",
			Subtitle: "Testing skin response to light flash...",
		}
	case verification.StatusSuccess:
		s = Screen{
			Title:    "Identity Confirmed",
			Subtitle: v.DisplayName,
			Detail:   fmt.Sprintf("SBT MINTED TO %s...", prefix(v.WalletAddress, 10)),
		}
	case verification.StatusFailed:
		s = Screen{
			Title:    "Access Denied",
			Subtitle: fmt.Sprintf("Synthetic latency detected for %s", v.DisplayName),
		}
		if v.Verdict != nil {
			s.Detail = v.Verdict.Reasoning
		}
	}
	if v.FaceLost {
		s.Banner = "FACE LOST: RE-CENTER"
	}
	return s
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
