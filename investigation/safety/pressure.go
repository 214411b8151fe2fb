package safety

import (
	"time"

	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

const warmUpLoops = 3

// resourcePressure is 0 during the 3-loop warm-up, else the weighted sum
// of four per-axis progressive_pressure scores (§4.3).
func resourcePressure(s state.InvestigationState, limits state.DynamicLimits, now time.Time) float64 {
	if s.OrchestratorLoops < warmUpLoops {
		return 0
	}

	elapsedMinutes := now.Sub(s.StartTime).Minutes()

	toolP := progressivePressure(float64(s.ToolExecutionAttempts), float64(limits.MaxToolExecutions))
	loopP := progressivePressure(float64(s.OrchestratorLoops), float64(limits.MaxOrchestratorLoops))
	timeP := progressivePressure(elapsedMinutes, float64(limits.MaxInvestigationTimeMinutes))
	domainP := progressivePressure(float64(len(s.DomainsCompleted)), float64(limits.MaxDomainAttempts))

	overall := 0.4*toolP + 0.3*loopP + 0.2*timeP + 0.1*domainP
	return clamp01(overall)
}

// progressivePressure implements §4.3's two-segment curve: a gentle slope
// up to 70% of the limit, then a steeper one from 70% to 100% (and beyond).
func progressivePressure(current, limit float64) float64 {
	if current <= 0 || limit <= 0 {
		return 0
	}
	ratio := current / limit
	if ratio <= 0.7 {
		return ratio * 0.5
	}
	p := 0.35 + ((ratio-0.7)/0.3)*0.65
	return clamp01(p)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
