package evidence_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/olorin-ai/hybrid-investigator/investigation/evidence"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

func riskPtr(v float64) *float64 { return &v }

var _ = Describe("EvaluateGate", func() {
	// BR-HIO-501: evidence gating (§4.6 step 1-2).
	weights := map[string]float64{"network": 1.0, "device": 1.0}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	It("blocks and records a concern when evidence_strength is below the floor", func() {
		s := state.InvestigationState{
			DomainFindings: map[string]state.DomainFinding{
				"network": {Status: state.FindingOK, Confidence: 0.1, Evidence: []string{"a"}},
			},
		}
		gate := evidence.EvaluateGate(s, weights, 1, 0.2, now)
		Expect(gate.Blocked).To(BeTrue())
		Expect(gate.Concern).NotTo(BeNil())
		Expect(gate.Concern.Type).To(Equal(state.ConcernEvidenceInsufficient))
	})

	It("passes when the weighted mean confidence clears the floor", func() {
		s := state.InvestigationState{
			DomainFindings: map[string]state.DomainFinding{
				"network": {Status: state.FindingOK, Confidence: 0.8, Evidence: []string{"a", "b"}},
				"device":  {Status: state.FindingOK, Confidence: 0.6, Evidence: []string{"a"}},
			},
		}
		gate := evidence.EvaluateGate(s, weights, 1, 0.2, now)
		Expect(gate.Blocked).To(BeFalse())
		Expect(gate.Strength).To(BeNumerically("~", 0.7, 1e-9))
	})

	It("excludes findings below min_items_per_domain", func() {
		s := state.InvestigationState{
			DomainFindings: map[string]state.DomainFinding{
				"network": {Status: state.FindingOK, Confidence: 0.9, Evidence: []string{"a"}},
			},
		}
		gate := evidence.EvaluateGate(s, weights, 2, 0.2, now)
		Expect(gate.Strength).To(Equal(0.0))
		Expect(gate.Blocked).To(BeTrue())
	})

	It("excludes non-OK findings", func() {
		s := state.InvestigationState{
			DomainFindings: map[string]state.DomainFinding{
				"network": {Status: state.FindingError, Confidence: 0.9, Evidence: []string{"a"}},
			},
		}
		gate := evidence.EvaluateGate(s, weights, 1, 0.2, now)
		Expect(gate.Strength).To(Equal(0.0))
	})
})

var _ = Describe("Reconstruct", func() {
	It("leaves existing domain findings untouched", func() {
		existing := map[string]state.DomainFinding{"network": {Confidence: 0.5}}
		s := state.InvestigationState{DomainFindings: existing}
		Expect(evidence.Reconstruct(s)).To(Equal(existing))
	})

	It("projects tool results into domain findings when none exist", func() {
		s := state.InvestigationState{
			DomainFindings: map[string]state.DomainFinding{},
			ToolResults: map[string]interface{}{
				"device": map[string]interface{}{
					"risk_score": 0.6,
					"evidence":   []interface{}{"device_fingerprint_mismatch"},
				},
			},
		}
		out := evidence.Reconstruct(s)
		Expect(out).To(HaveKey("device"))
		Expect(*out["device"].RiskScore).To(Equal(0.6))
		Expect(out["device"].Confidence).To(Equal(0.35))
		Expect(out["device"].Evidence).To(ConsistOf("device_fingerprint_mismatch"))
	})

	It("prefers evidence, then indicators, then analysis, in that order", func() {
		s := state.InvestigationState{
			DomainFindings: map[string]state.DomainFinding{},
			ToolResults: map[string]interface{}{
				"network": map[string]interface{}{
					"indicators": []interface{}{"tor_exit_node"},
					"analysis":   []interface{}{"should not be used"},
				},
			},
		}
		out := evidence.Reconstruct(s)
		Expect(out["network"].Evidence).To(ConsistOf("tor_exit_node"))
	})
})

var _ = Describe("Finalize", func() {
	// BR-HIO-502: risk finalization (§4.6 step 2-3).
	weights := map[string]float64{"network": 1.0, "device": 1.0}

	It("computes a confidence-weighted mean risk score clamped to [0,1]", func() {
		findings := map[string]state.DomainFinding{
			"network": {Status: state.FindingOK, Confidence: 0.8, RiskScore: riskPtr(0.9)},
			"device":  {Status: state.FindingOK, Confidence: 0.2, RiskScore: riskPtr(0.1)},
		}
		out := evidence.Finalize(findings, weights)
		Expect(out.RiskScore).To(BeNumerically("~", (0.9*0.8+0.1*0.2)/(0.8+0.2), 1e-9))
	})

	It("averages confidence across OK domains only", func() {
		findings := map[string]state.DomainFinding{
			"network": {Status: state.FindingOK, Confidence: 0.8, RiskScore: riskPtr(0.5)},
			"device":  {Status: state.FindingError, Confidence: 0.9, RiskScore: riskPtr(0.9)},
		}
		out := evidence.Finalize(findings, weights)
		Expect(out.ConfidenceScore).To(Equal(0.8))
	})

	DescribeTable("fraud-likelihood categorization",
		func(risk float64, expected string) {
			findings := map[string]state.DomainFinding{
				"network": {Status: state.FindingOK, Confidence: 1.0, RiskScore: riskPtr(risk)},
			}
			Expect(evidence.Finalize(findings, weights).FraudLikelihood).To(Equal(expected))
		},
		Entry("very high", 0.95, "VERY_HIGH"),
		Entry("high", 0.75, "HIGH"),
		Entry("moderate", 0.55, "MODERATE"),
		Entry("low", 0.35, "LOW"),
		Entry("very low", 0.1, "VERY_LOW"),
	)
})
