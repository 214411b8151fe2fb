package safety

import (
	"time"

	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

const evidenceGateWarmUpLoops = 3

// raiseConcerns implements §4.3's five concern triggers, each with its own
// severity escalation rule.
func raiseConcerns(s state.InvestigationState, limits state.DynamicLimits, pressure float64, evidenceFloor float64, now time.Time) []state.SafetyConcern {
	var concerns []state.SafetyConcern

	if limits.MaxOrchestratorLoops > 0 {
		ratio := float64(s.OrchestratorLoops) / float64(limits.MaxOrchestratorLoops)
		if ratio >= 1.0 {
			concerns = append(concerns, concern(state.ConcernLoopRisk, state.SeverityCritical,
				"orchestrator_loops has reached its effective limit", now))
		} else if ratio >= 0.8 {
			concerns = append(concerns, concern(state.ConcernLoopRisk, state.SeverityHigh,
				"orchestrator_loops is approaching its effective limit", now))
		}
	}

	if pressure >= 0.9 {
		concerns = append(concerns, concern(state.ConcernResourcePressure, state.SeverityCritical,
			"resource pressure has reached a critical level", now))
	} else if pressure >= limits.ResourcePressureThreshold {
		concerns = append(concerns, concern(state.ConcernResourcePressure, state.SeverityHigh,
			"resource pressure has exceeded its configured threshold", now))
	}

	if drop, ok := confidenceDrop(s); ok && drop >= 0.3 {
		concerns = append(concerns, concern(state.ConcernConfidenceDrop, state.SeverityMedium,
			"confidence dropped sharply across the last two samples", now))
	}

	if s.OrchestratorLoops >= evidenceGateWarmUpLoops && evidenceQuality(s) < evidenceFloor {
		concerns = append(concerns, concern(state.ConcernEvidenceInsufficient, state.SeverityMedium,
			"evidence quality remains below the configured floor", now))
	}

	if limits.MaxInvestigationTimeMinutes > 0 {
		elapsed := now.Sub(s.StartTime).Minutes()
		if elapsed >= float64(limits.MaxInvestigationTimeMinutes) {
			concerns = append(concerns, concern(state.ConcernTimeoutRisk, state.SeverityCritical,
				"investigation has exceeded its time limit", now))
		} else if elapsed >= 0.8*float64(limits.MaxInvestigationTimeMinutes) {
			concerns = append(concerns, concern(state.ConcernTimeoutRisk, state.SeverityHigh,
				"investigation is approaching its time limit", now))
		}
	}

	return concerns
}

func concern(t state.ConcernType, sev state.Severity, msg string, now time.Time) state.SafetyConcern {
	return state.SafetyConcern{Type: t, Severity: sev, Message: msg, Timestamp: now}
}

func confidenceDrop(s state.InvestigationState) (float64, bool) {
	n := len(s.ConfidenceEvolution)
	if n < 2 {
		return 0, false
	}
	prev := s.ConfidenceEvolution[n-2].Confidence
	last := s.ConfidenceEvolution[n-1].Confidence
	return prev - last, true
}

// evidenceQuality reads the most recent AIDecision's self-reported
// evidence quality, avoiding a dependency on investigation/confidence's
// internal factor computation.
func evidenceQuality(s state.InvestigationState) float64 {
	if len(s.AIDecisions) == 0 {
		return 0
	}
	return s.AIDecisions[len(s.AIDecisions)-1].EvidenceQuality
}
