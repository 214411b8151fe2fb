// Package outcome implements the Canonical Outcome Builder (C7, spec §4.7):
// assembling the terminal CanonicalFinalOutcome from a completed
// InvestigationState plus the risk-finalization result from C6.
package outcome

import (
	"fmt"
	"time"

	"github.com/olorin-ai/hybrid-investigator/investigation/evidence"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

// Status is the outcome's terminal disposition (§4.7).
type Status string

const (
	StatusCompleted             Status = "COMPLETED"
	StatusCompletedWithWarnings Status = "COMPLETED_WITH_WARNINGS"
	StatusFailed                Status = "FAILED"
	StatusTerminatedBySafety    Status = "TERMINATED_BY_SAFETY"
	StatusTimeout               Status = "TIMEOUT"
)

// ResourceUtilization grades how efficiently a run spent its budget.
type ResourceUtilization string

const (
	UtilizationEfficient            ResourceUtilization = "Efficient"
	UtilizationGood                 ResourceUtilization = "Good"
	UtilizationRequiredIntervention ResourceUtilization = "Required Intervention"
)

// RiskAssessment is the outcome's risk_assessment section.
type RiskAssessment struct {
	FinalRiskScore             *float64
	FraudLikelihood            string
	RiskFactors                []string
	RiskIndicators             []string
	ConfidenceScore            float64
	MitigationRecommendations  []string
}

// EvidenceAssessment is the outcome's evidence_assessment section.
type EvidenceAssessment struct {
	OverallQuality   float64
	QualityLevel     string
	PerSourceQuality map[string]float64
	Sources          []string
	QualityFactors   []string
	ValidationPassed bool
	ValidationReason string
}

// PerformanceMetrics is the outcome's performance_metrics section.
type PerformanceMetrics struct {
	TotalDurationMs     int64
	OrchestratorLoops   int
	DomainsCompleted    int
	ToolsExecuted       int
	Efficiency          float64
	ResourceUtilization ResourceUtilization
	OptimizationApplied []string
}

// AIIntelligence is the outcome's ai_intelligence section.
type AIIntelligence struct {
	FinalConfidence     float64
	ConfidenceLevel     state.ConfidenceLevel
	AIDecisionsCount    int
	StrategyUsed        state.Strategy
	SafetyOverrides     int
	ConfidenceEvolution []state.ConfidenceSample
}

// QualityAssurance is the outcome's quality_assurance section.
type QualityAssurance struct {
	ValidationChecksPassed int
	ValidationChecksFailed int
	SafetyConcernsRaised   int
	DataQualityScore       float64
	ComplianceStatus       string
	AuditTrail             []state.AuditEntry
}

// CanonicalFinalOutcome is C7's single terminal artifact (§4.7).
type CanonicalFinalOutcome struct {
	InvestigationID    string
	EntityID           string
	EntityType         state.EntityType
	CompletionTimestamp time.Time

	Status           Status
	Success          bool
	CompletionReason string

	RiskAssessment     RiskAssessment
	EvidenceAssessment EvidenceAssessment
	PerformanceMetrics PerformanceMetrics
	AIIntelligence     AIIntelligence
	QualityAssurance   QualityAssurance

	SummaryText     string
	KeyFindings     []string
	Recommendations []string
}

// BuildInput bundles everything the builder needs beyond the state itself:
// the gate and finalization results from C6, and whether a circuit breaker
// or safety concern forced early termination.
type BuildInput struct {
	Gate                evidence.Gate
	Finalization        *evidence.Finalization // nil when the gate blocked
	TerminatedBySafety  bool
	TimedOut            bool
	Now                 time.Time
}

// Build implements §4.7's assembly and §4.7's status-derivation rule.
func Build(s state.InvestigationState, in BuildInput) CanonicalFinalOutcome {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	status := deriveStatus(s, in)
	success := status == StatusCompleted || status == StatusCompletedWithWarnings

	var riskScore *float64
	fraudLikelihood := "UNKNOWN"
	confidenceScore := s.ConfidenceScore
	if in.Finalization != nil {
		score := in.Finalization.RiskScore
		riskScore = &score
		fraudLikelihood = in.Finalization.FraudLikelihood
		confidenceScore = in.Finalization.ConfidenceScore
	}

	durationMs := s.TotalDurationMs
	if durationMs == 0 && s.EndTime != nil {
		durationMs = s.EndTime.Sub(s.StartTime).Milliseconds()
	}

	return CanonicalFinalOutcome{
		InvestigationID:     s.InvestigationID,
		EntityID:            s.EntityID,
		EntityType:          s.EntityType,
		CompletionTimestamp: now,

		Status:           status,
		Success:          success,
		CompletionReason: completionReason(status, in),

		RiskAssessment: RiskAssessment{
			FinalRiskScore:            riskScore,
			FraudLikelihood:           fraudLikelihood,
			RiskFactors:               s.RiskFactors,
			RiskIndicators:            s.RiskIndicators,
			ConfidenceScore:           confidenceScore,
			MitigationRecommendations: mitigations(fraudLikelihood),
		},
		EvidenceAssessment: EvidenceAssessment{
			OverallQuality:   in.Gate.Strength,
			QualityLevel:     qualityLevel(in.Gate.Strength),
			PerSourceQuality: perSourceQuality(s),
			Sources:          sources(s),
			QualityFactors:   qualityFactors(s, in.Gate),
			ValidationPassed: !in.Gate.Blocked,
			ValidationReason: validationReason(in.Gate),
		},
		PerformanceMetrics: PerformanceMetrics{
			TotalDurationMs:     durationMs,
			OrchestratorLoops:   s.OrchestratorLoops,
			DomainsCompleted:    len(s.DomainsCompleted),
			ToolsExecuted:       s.ToolExecutionAttempts,
			Efficiency:          s.ToolsQuality,
			ResourceUtilization: resourceUtilization(s),
			OptimizationApplied: optimizationsApplied(s),
		},
		AIIntelligence: AIIntelligence{
			FinalConfidence:     s.AIConfidence,
			ConfidenceLevel:     s.AIConfidenceLevel,
			AIDecisionsCount:    len(s.AIDecisions),
			StrategyUsed:        s.InvestigationStrategy,
			SafetyOverrides:     len(s.SafetyOverrides),
			ConfidenceEvolution: s.ConfidenceEvolution,
		},
		QualityAssurance: QualityAssurance{
			ValidationChecksPassed: validationChecksPassed(s, in.Gate),
			ValidationChecksFailed: validationChecksFailed(s, in.Gate),
			SafetyConcernsRaised:   len(s.SafetyConcerns),
			DataQualityScore:       in.Gate.Strength,
			ComplianceStatus:       complianceStatus(s),
			AuditTrail:             s.DecisionAuditTrail,
		},

		SummaryText:     summaryText(s, status, fraudLikelihood),
		KeyFindings:     keyFindings(s),
		Recommendations: mitigations(fraudLikelihood),
	}
}

// deriveStatus implements §4.7's precedence: timeout/safety-termination
// dominate, then errors, then any deviation (safety override or an
// investigation that never left summary), else a clean completion.
func deriveStatus(s state.InvestigationState, in BuildInput) Status {
	switch {
	case in.TimedOut:
		return StatusTimeout
	case in.TerminatedBySafety:
		return StatusTerminatedBySafety
	case len(s.Errors) > 0:
		return StatusFailed
	case len(s.SafetyOverrides) > 0 || s.CurrentPhase == state.PhaseSummary:
		return StatusCompletedWithWarnings
	default:
		return StatusCompleted
	}
}

func completionReason(status Status, in BuildInput) string {
	switch status {
	case StatusTimeout:
		return "investigation exceeded its time limit"
	case StatusTerminatedBySafety:
		return "terminated by safety manager"
	case StatusFailed:
		return "one or more nodes reported an unrecovered error"
	case StatusCompletedWithWarnings:
		if in.Gate.Blocked {
			return "completed with safety overrides and evidence gating"
		}
		return "completed with one or more safety overrides"
	default:
		return "completed normally"
	}
}

func qualityLevel(strength float64) string {
	switch {
	case strength >= 0.8:
		return "high"
	case strength >= 0.5:
		return "medium"
	case strength > 0:
		return "low"
	default:
		return "insufficient"
	}
}

func perSourceQuality(s state.InvestigationState) map[string]float64 {
	out := make(map[string]float64, len(s.DomainFindings)+1)
	for domain, finding := range s.DomainFindings {
		out[domain] = finding.Confidence
	}
	if s.SnowflakeCompleted {
		out["snowflake"] = s.SnowflakeQuality
	}
	return out
}

func sources(s state.InvestigationState) []string {
	sources := make([]string, 0, len(s.DomainFindings)+1)
	if s.SnowflakeCompleted {
		sources = append(sources, "snowflake")
	}
	for domain := range s.DomainFindings {
		sources = append(sources, domain)
	}
	return sources
}

func qualityFactors(s state.InvestigationState, gate evidence.Gate) []string {
	var factors []string
	if gate.Blocked {
		factors = append(factors, "evidence_gate_blocked")
	}
	if s.SnowflakeQuality < 0.5 {
		factors = append(factors, "weak_snowflake_signal")
	}
	if len(s.DomainFindings) < 3 {
		factors = append(factors, "limited_domain_coverage")
	}
	return factors
}

func validationReason(gate evidence.Gate) string {
	if gate.Blocked {
		return fmt.Sprintf("evidence_strength %.2f below minimum floor", gate.Strength)
	}
	return "evidence_strength cleared the minimum floor"
}

func validationChecksPassed(s state.InvestigationState, gate evidence.Gate) int {
	count := 0
	if !gate.Blocked {
		count++
	}
	if len(s.Errors) == 0 {
		count++
	}
	if s.SnowflakeCompleted {
		count++
	}
	return count
}

func validationChecksFailed(s state.InvestigationState, gate evidence.Gate) int {
	count := 0
	if gate.Blocked {
		count++
	}
	if len(s.Errors) > 0 {
		count++
	}
	return count
}

func complianceStatus(s state.InvestigationState) string {
	if len(s.SafetyConcerns) == 0 {
		return "compliant"
	}
	return "reviewed"
}

func resourceUtilization(s state.InvestigationState) ResourceUtilization {
	switch {
	case len(s.SafetyOverrides) > 2:
		return UtilizationRequiredIntervention
	case len(s.SafetyOverrides) > 0:
		return UtilizationGood
	default:
		return UtilizationEfficient
	}
}

func optimizationsApplied(s state.InvestigationState) []string {
	var applied []string
	if s.InvestigationStrategy == state.StrategyFocused || s.InvestigationStrategy == state.StrategyCriticalPath || s.InvestigationStrategy == state.StrategyMinimal {
		applied = append(applied, "reduced_agent_sequence")
	}
	return applied
}

func summaryText(s state.InvestigationState, status Status, fraudLikelihood string) string {
	return fmt.Sprintf("investigation %s for entity %s completed with status %s, fraud likelihood %s",
		s.InvestigationID, s.EntityID, status, fraudLikelihood)
}

func keyFindings(s state.InvestigationState) []string {
	findings := make([]string, 0, len(s.DomainFindings))
	for domain, finding := range s.DomainFindings {
		if finding.Status == state.FindingOK && finding.Summary != "" {
			findings = append(findings, fmt.Sprintf("%s: %s", domain, finding.Summary))
		}
	}
	return findings
}

func mitigations(fraudLikelihood string) []string {
	switch fraudLikelihood {
	case "VERY_HIGH", "HIGH":
		return []string{"block_transaction", "escalate_to_analyst"}
	case "MODERATE":
		return []string{"request_step_up_authentication"}
	default:
		return nil
	}
}
