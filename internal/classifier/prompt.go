package classifier

import "fmt"

// Prompt builds the forensic audit instruction sent with the snapshot.
func Prompt(challengeText string) string {
	return fmt.Sprintf(`AUDIT LOG: Liveness Detection for High-Value Asset Access.

SCENARIO: User was prompted with: "%s".
Current frame captured during a high-intensity Blue Chroma-Flash.

TASK: Perform a deep forensic analysis of this image to detect:
1. SYNTHETIC RIGIDITY: Does the facial muscle movement look mathematically perfect or naturally chaotic?
2. MOIRE PATTERNS: Look for micro-grid artifacts suggesting the camera is filming an LCD screen (Injection Attack).
3. REFLECTIVE AUDIT: Is there a blue tint reflection on the eyes or skin consistent with the screen's flash?
4. BOUNDARY ANALYSIS: Check for "ghosting" around the chin or hair-line which suggests a real-time deepfake mask overlay.

Return a JSON object with 'isReal' (boolean), 'confidence' (number 0-1), 'sentiment' (string: 'fluid' or 'rigid'),
and 'reasoning' (concise forensic summary).`, challengeText)
}
