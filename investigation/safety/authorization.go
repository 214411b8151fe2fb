package safety

import "github.com/olorin-ai/hybrid-investigator/investigation/state"

// authorizeAIControl implements §4.3's AI-control authorization ladder:
// the first matching rule wins, most restrictive first.
func authorizeAIControl(level state.ConfidenceLevel, pressure float64, hasCritical bool) bool {
	switch {
	case hasCritical:
		return false
	case pressure < 0.35:
		return true
	case level == state.ConfidenceHigh && pressure < 0.6:
		return true
	case level == state.ConfidenceMedium && pressure < 0.8:
		return true
	case level == state.ConfidenceUnknown && pressure < 0.5:
		return true
	default:
		return false
	}
}
