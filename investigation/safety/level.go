package safety

import "github.com/olorin-ai/hybrid-investigator/investigation/state"

// deriveLevel implements §4.3's safety-level derivation, using the
// age-decayed override count from effectiveOverrideCount (SPEC_FULL §7)
// instead of the raw override tally so a single early override doesn't
// permanently over-penalize an otherwise healthy, long investigation.
func (m *Manager) deriveLevel(s state.InvestigationState) Level {
	overrides := effectiveOverrideCount(s)

	switch {
	case s.OrchestratorLoops > 20 || overrides > 3:
		return LevelEmergency
	case s.AIConfidenceLevel == state.ConfidenceLow || overrides > 1:
		return LevelStrict
	case s.AIConfidenceLevel == state.ConfidenceHigh && overrides == 0:
		return LevelPermissive
	default:
		return LevelStandard
	}
}

// effectiveOverrideCount decays one count per 5 clean loops elapsed since
// each override, using the loop count recorded in MetricsAtOverride at
// override time. An override missing that metric never decays.
func effectiveOverrideCount(s state.InvestigationState) float64 {
	var total float64
	for _, override := range s.SafetyOverrides {
		loopsAtOverride, ok := override.MetricsAtOverride["orchestrator_loops"]
		if !ok {
			total++
			continue
		}
		loopsSince := float64(s.OrchestratorLoops) - loopsAtOverride
		if loopsSince < 0 {
			loopsSince = 0
		}
		decay := float64(int(loopsSince) / 5)
		weight := 1.0 - decay
		if weight < 0 {
			weight = 0
		}
		total += weight
	}
	return total
}
