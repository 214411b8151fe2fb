package confidence

import (
	"fmt"
	"time"

	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

// RecordAssessment applies an Assess result to state the way the
// ai_confidence_assessment node must (§4.2, §7): a non-provider assessment
// failure never raises — it becomes a fallback UNKNOWN/0.5 decision plus an
// appended error record, and either way the result is folded in through
// UpdateAIConfidence so confidence_evolution stays append-only.
func RecordAssessment(s state.InvestigationState, decision state.AIDecision, assessErr error, trigger string, now time.Time) state.InvestigationState {
	if assessErr != nil {
		decision = state.AIDecision{
			Confidence:      0.5,
			ConfidenceLevel: state.ConfidenceUnknown,
			Strategy:        state.StrategyComprehensive,
			Reasoning:       []string{fmt.Sprintf("assessment_failed: %v", assessErr)},
			Timestamp:       now,
		}
		s = state.AppendError(s, "ai_confidence_assessment", fmt.Sprintf("assessment_failed: %v", assessErr), now)
	}
	return state.UpdateAIConfidence(s, decision, trigger)
}
