// Package confidence implements the Confidence Engine (C2): a weighted
// multi-factor score over investigation evidence, a confidence-level
// bucket, and a first-match-wins strategy selection (spec §4.2).
package confidence

import (
	"sort"
	"time"

	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

// Weights sum to 1.0, per §4.2's table.
const (
	WeightSnowflakeQuality      = 0.35
	WeightToolsQuality          = 0.25
	WeightDomainsQuality        = 0.20
	WeightPatternRecognition    = 0.15
	WeightInvestigationVelocity = 0.05
)

// DomainOrder is the priority order C2 walks when recommending the next
// domain agent, derived from the default domain evidence weights
// (internal/config's risk=1.2, authentication=1.1, network=device=1.0,
// logs=0.9, location=0.8).
var DomainOrder = []string{"risk", "authentication", "network", "device", "logs", "location"}

// Factors is the per-investigation inputs to the weighted score, computed
// once per assessment and reusable by any Assessor implementation (the
// heuristic default, or an LLM-backed one refining PatternRecognition).
type Factors struct {
	SnowflakeQuality      float64
	ToolsQuality          float64
	DomainsQuality        float64
	PatternRecognition    float64
	InvestigationVelocity float64

	EvidenceQuality     float64
	InitialRiskScore    *float64
	DominantDomainShare float64
	DominantDomains     []string
	HasRiskIndicators   bool
	MissingInputs       bool
	RemainingDomains    []string
	RiskIndicators      []string
}

// ComputeFactors derives Factors from a state snapshot. domainWeights maps
// domain name to its evidence weight (internal/config.EvidenceConfig.DomainWeights);
// a nil or empty map falls back to equal weighting.
func ComputeFactors(s state.InvestigationState, domainWeights map[string]float64) Factors {
	f := Factors{RiskIndicators: s.RiskIndicators, HasRiskIndicators: len(s.RiskIndicators) > 0}

	if s.SnowflakeCompleted {
		f.SnowflakeQuality = s.SnowflakeQuality
	}
	f.ToolsQuality = s.ToolsQuality

	var sum float64
	var n int
	weightedConfidence := map[string]float64{}
	var totalWeight float64
	for domain := range s.DomainsCompleted {
		finding, ok := s.DomainFindings[domain]
		if !ok || finding.Status != state.FindingOK {
			continue
		}
		sum += finding.Confidence
		n++
		w := domainWeight(domainWeights, domain)
		weightedConfidence[domain] = w * finding.Confidence
		totalWeight += w * finding.Confidence
	}
	if n > 0 {
		f.DomainsQuality = sum / float64(n)
	}

	f.DominantDomains, f.DominantDomainShare = dominantDomains(weightedConfidence, totalWeight)
	f.PatternRecognition = heuristicPatternRecognition(s)
	f.InvestigationVelocity = investigationVelocity(s, n)
	f.EvidenceQuality = (f.DomainsQuality + f.ToolsQuality) / 2

	if len(s.DomainFindings) > 0 {
		for _, finding := range s.DomainFindings {
			if finding.RiskScore != nil {
				v := *finding.RiskScore
				f.InitialRiskScore = &v
				break
			}
		}
	}

	f.MissingInputs = !s.SnowflakeCompleted && n == 0 && len(s.ToolResults) == 0

	for _, domain := range DomainOrder {
		if !s.DomainsCompleted[domain] {
			f.RemainingDomains = append(f.RemainingDomains, domain)
		}
	}

	return f
}

func domainWeight(weights map[string]float64, domain string) float64 {
	if w, ok := weights[domain]; ok {
		return w
	}
	return 1.0
}

// dominantDomains returns the (at most two) domains with the highest
// weighted confidence and their combined share of totalWeight, used by
// both the FOCUSED and CRITICAL_PATH strategy checks.
func dominantDomains(weighted map[string]float64, total float64) ([]string, float64) {
	if total <= 0 || len(weighted) == 0 {
		return nil, 0
	}
	type entry struct {
		domain string
		weight float64
	}
	entries := make([]entry, 0, len(weighted))
	for d, w := range weighted {
		entries = append(entries, entry{d, w})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].weight > entries[j].weight })

	var cumulative float64
	var domains []string
	for i, e := range entries {
		if i >= 2 {
			break
		}
		cumulative += e.weight
		domains = append(domains, e.domain)
	}
	return domains, cumulative / total
}

// heuristicPatternRecognition is the default, non-LLM estimate of the
// pattern_recognition factor: more distinct risk indicators imply stronger
// corroborated signal, saturating at 5 distinct indicators.
func heuristicPatternRecognition(s state.InvestigationState) float64 {
	seen := map[string]bool{}
	for _, indicator := range s.RiskIndicators {
		seen[indicator] = true
	}
	if len(seen) == 0 {
		return 0
	}
	score := float64(len(seen)) / 5.0
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// investigationVelocity rewards evidence gathered per orchestrator loop:
// more completed domains (plus snowflake) per loop means the investigation
// is converging efficiently rather than looping without new evidence.
func investigationVelocity(s state.InvestigationState, completedDomains int) float64 {
	units := float64(completedDomains)
	if s.SnowflakeCompleted {
		units++
	}
	loops := s.OrchestratorLoops
	if loops < 1 {
		loops = 1
	}
	v := units / float64(loops)
	if v > 1.0 {
		v = 1.0
	}
	return v
}

// Level maps a numeric confidence score to its coarse bucket (§4.2).
func Level(confidence float64, missingInputs bool) state.ConfidenceLevel {
	switch {
	case missingInputs:
		return state.ConfidenceUnknown
	case confidence >= 0.8:
		return state.ConfidenceHigh
	case confidence >= 0.4:
		return state.ConfidenceMedium
	default:
		return state.ConfidenceLow
	}
}

// SelectStrategy applies §4.2's first-match-wins strategy rule.
func SelectStrategy(confidence float64, level state.ConfidenceLevel, f Factors) state.Strategy {
	switch {
	case level == state.ConfidenceUnknown || f.EvidenceQuality < 0.3:
		return state.StrategyComprehensive
	case confidence >= 0.85 && f.HasRiskIndicators && len(f.DominantDomains) >= 1 && f.DominantDomainShare >= 0.5:
		return state.StrategyCriticalPath
	case confidence >= 0.75 && f.InitialRiskScore != nil && *f.InitialRiskScore < 0.2:
		return state.StrategyMinimal
	case confidence >= 0.6 && len(f.DominantDomains) >= 1 && len(f.DominantDomains) <= 2 && f.DominantDomainShare >= 0.7:
		return state.StrategyFocused
	default:
		return state.StrategyAdaptive
	}
}

// RecommendAction picks the next action per §4.2: snowflake first, then
// tools if their yield is still weak, then the highest-priority remaining
// domain agent, then summary once nothing remains.
func RecommendAction(s state.InvestigationState, f Factors) string {
	if !s.SnowflakeCompleted {
		return "snowflake_analysis"
	}
	if f.ToolsQuality < 0.5 && s.ToolExecutionAttempts < s.DynamicLimits.MaxToolExecutions {
		return "tools"
	}
	if len(f.RemainingDomains) > 0 {
		return f.RemainingDomains[0] + "_agent"
	}
	return "summary"
}

// ResourceImpact estimates the cost of following the recommendation, used
// to populate AIDecision.ResourceImpact.
func ResourceImpact(strategy state.Strategy) state.ResourceImpact {
	switch strategy {
	case state.StrategyComprehensive:
		return state.ResourceImpactHigh
	case state.StrategyMinimal, state.StrategyCriticalPath:
		return state.ResourceImpactLow
	default:
		return state.ResourceImpactMedium
	}
}

// Score folds Factors into a complete AIDecision: the weighted confidence
// score, its level, the selected strategy, the recommended action, and a
// reasoning trail built from the reasoning templates (reasoning.go).
func Score(s state.InvestigationState, f Factors, now time.Time) state.AIDecision {
	confidence := f.SnowflakeQuality*WeightSnowflakeQuality +
		f.ToolsQuality*WeightToolsQuality +
		f.DomainsQuality*WeightDomainsQuality +
		f.PatternRecognition*WeightPatternRecognition +
		f.InvestigationVelocity*WeightInvestigationVelocity

	level := Level(confidence, f.MissingInputs)
	strategy := SelectStrategy(confidence, level, f)
	action := RecommendAction(s, f)

	decision := state.AIDecision{
		Confidence:                confidence,
		ConfidenceLevel:           level,
		RecommendedAction:         action,
		Reasoning:                 reasoningTrail(f, strategy),
		EvidenceQuality:           f.EvidenceQuality,
		InvestigationCompleteness: completeness(s),
		Strategy:                  strategy,
		ResourceImpact:            ResourceImpact(strategy),
		Timestamp:                 now,
	}

	if action != "tools" && action != "snowflake_analysis" && action != "summary" {
		decision.AgentsToActivate = append([]string(nil), f.RemainingDomains...)
	}

	return decision
}

func completeness(s state.InvestigationState) float64 {
	total := len(DomainOrder)
	if total == 0 {
		return 0
	}
	return float64(len(s.DomainsCompleted)) / float64(total)
}
