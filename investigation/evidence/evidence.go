// Package evidence implements the evidence gate and risk finalization step
// of the summary node (C6, spec §4.6).
package evidence

import (
	"time"

	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

// Gate is evidence gating's outcome: either risk finalization proceeds, or
// the investigation carries a null risk for a documented reason.
type Gate struct {
	Strength float64
	Blocked  bool
	Concern  *state.SafetyConcern
}

// EvaluateGate implements §4.6 step 1-2: evidence_strength is the weighted
// mean of DomainFinding.Confidence across OK findings meeting the
// min-items floor; falling below minimumFloor blocks risk finalization.
func EvaluateGate(s state.InvestigationState, domainWeights map[string]float64, minItemsPerDomain int, minimumFloor float64, now time.Time) Gate {
	var weightedSum, weightTotal float64
	for domain, finding := range s.DomainFindings {
		if finding.Status != state.FindingOK || len(finding.Evidence) < minItemsPerDomain {
			continue
		}
		w := domainWeights[domain]
		if w == 0 {
			w = 1.0
		}
		weightedSum += finding.Confidence * w
		weightTotal += w
	}

	strength := 0.0
	if weightTotal > 0 {
		strength = weightedSum / weightTotal
	}

	if strength < minimumFloor {
		concern := state.SafetyConcern{
			Type:      state.ConcernEvidenceInsufficient,
			Severity:  state.SeverityMedium,
			Message:   "evidence_strength below minimum_evidence_floor; risk_score withheld",
			Timestamp: now,
		}
		return Gate{Strength: strength, Blocked: true, Concern: &concern}
	}

	return Gate{Strength: strength, Blocked: false}
}

// reconstructionDomains are the domains projected from existing agent
// results when domain_findings is empty (§4.6 step 1 of finalization).
var reconstructionDomains = []string{"device", "network", "location", "logs", "authentication"}

const defaultReconstructedConfidence = 0.35

// Reconstruct builds domain findings by projecting per-domain ToolResults
// entries when no domain agent ran, so risk finalization still has
// something to average over. When s.DomainFindings is non-empty it is
// returned as is; otherwise a new map is built. It does not mutate s.
func Reconstruct(s state.InvestigationState) map[string]state.DomainFinding {
	if len(s.DomainFindings) > 0 {
		return s.DomainFindings
	}

	findings := make(map[string]state.DomainFinding, len(reconstructionDomains))
	for _, domain := range reconstructionDomains {
		raw, ok := s.ToolResults[domain]
		if !ok {
			continue
		}
		payload, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}

		finding := state.DomainFinding{
			Confidence: defaultReconstructedConfidence,
			Status:     state.FindingOK,
		}
		if score, ok := payload["risk_score"].(float64); ok {
			finding.RiskScore = &score
		}
		if conf, ok := payload["confidence"].(float64); ok {
			finding.Confidence = conf
		}
		finding.Evidence = firstNonEmpty(payload, "evidence", "indicators", "analysis")
		findings[domain] = finding
	}
	return findings
}

func firstNonEmpty(payload map[string]interface{}, keys ...string) []string {
	for _, key := range keys {
		if raw, ok := payload[key]; ok {
			if list := toStringList(raw); len(list) > 0 {
				return list
			}
		}
	}
	return nil
}

func toStringList(raw interface{}) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// Finalization is risk finalization's output (§4.6 step 2-3).
type Finalization struct {
	RiskScore       float64
	ConfidenceScore float64
	FraudLikelihood string
}

// Finalize implements §4.6 steps 2-3: a confidence-and-weight weighted mean
// risk score across domains, clamped to [0,1], plus the averaged confidence
// of OK domains.
func Finalize(findings map[string]state.DomainFinding, domainWeights map[string]float64) Finalization {
	var weightedSum, weightTotal, confidenceSum float64
	var okCount int

	for domain, finding := range findings {
		if finding.Status != state.FindingOK || finding.RiskScore == nil {
			continue
		}
		w := domainWeights[domain]
		if w == 0 {
			w = 1.0
		}
		weight := finding.Confidence * w
		weightedSum += *finding.RiskScore * weight
		weightTotal += weight
	}

	for _, finding := range findings {
		if finding.Status == state.FindingOK {
			confidenceSum += finding.Confidence
			okCount++
		}
	}

	risk := 0.0
	if weightTotal > 0 {
		risk = weightedSum / weightTotal
	}
	risk = clamp01(risk)

	confidence := 0.0
	if okCount > 0 {
		confidence = confidenceSum / float64(okCount)
	}

	return Finalization{
		RiskScore:       risk,
		ConfidenceScore: confidence,
		FraudLikelihood: categorize(risk),
	}
}

// categorize implements §4.6's reporting-only fraud-likelihood bucketing.
func categorize(risk float64) string {
	switch {
	case risk >= 0.9:
		return "VERY_HIGH"
	case risk >= 0.7:
		return "HIGH"
	case risk >= 0.5:
		return "MODERATE"
	case risk >= 0.3:
		return "LOW"
	default:
		return "VERY_LOW"
	}
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
