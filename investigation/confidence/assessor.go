package confidence

import (
	"context"
	"time"

	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

// Assessor is the confidence assessor port (spec §6.5): assess(state) →
// AIDecision. Implementations may use an LLM or pure heuristics. A
// non-nil error here is always a ProviderError (propagates per §7). A
// recoverable provider-call failure is reported as an UNKNOWN/0.5 decision,
// and an unparseable model reply falls back to the heuristic score, so the
// node boundary never has to special-case either.
type Assessor interface {
	Assess(ctx context.Context, s state.InvestigationState) (state.AIDecision, error)
}

// HeuristicAssessor is the deterministic, LLM-free implementation used in
// MOCK/DEMO mode and as the Anthropic/Bedrock assessors' scoring core.
type HeuristicAssessor struct {
	DomainWeights map[string]float64
	Now           func() time.Time
}

// NewHeuristicAssessor builds a HeuristicAssessor over the given per-domain
// evidence weights (internal/config.EvidenceConfig.DomainWeights).
func NewHeuristicAssessor(domainWeights map[string]float64) *HeuristicAssessor {
	return &HeuristicAssessor{DomainWeights: domainWeights, Now: time.Now}
}

func (a *HeuristicAssessor) Assess(_ context.Context, s state.InvestigationState) (state.AIDecision, error) {
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}
	factors := ComputeFactors(s, a.DomainWeights)
	return Score(s, factors, now), nil
}
