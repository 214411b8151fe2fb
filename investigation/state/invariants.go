package state

// ValidMessageSequence reports whether msgs satisfies the invariant of §3:
// every tool_use message is immediately followed by its matching
// tool_result entries before any assistant message of a different kind.
func ValidMessageSequence(msgs []Message) bool {
	pendingToolUse := ""
	for _, m := range msgs {
		switch m.Kind {
		case KindToolUse:
			pendingToolUse = m.ToolUseID
		case KindToolResult:
			if pendingToolUse != "" && m.ToolUseID == pendingToolUse {
				pendingToolUse = ""
			}
		case KindAssistant:
			if pendingToolUse != "" {
				return false
			}
		}
	}
	return pendingToolUse == ""
}

// CanInsertGuidance reports whether a system-guidance message may be
// prepended to msgs without violating ValidMessageSequence — i.e. there is
// no tool_use awaiting its tool_result (§4.5 fraud_investigation contract).
func CanInsertGuidance(msgs []Message) bool {
	pendingToolUse := ""
	for _, m := range msgs {
		if m.Kind == KindToolUse {
			pendingToolUse = m.ToolUseID
		}
		if m.Kind == KindToolResult && m.ToolUseID == pendingToolUse {
			pendingToolUse = ""
		}
	}
	return pendingToolUse == ""
}

// MonotonicityViolations compares a prior and current state and reports any
// field that decreased where §3/§8 require it be non-decreasing. Used by
// tests; the executor does not call it.
func MonotonicityViolations(prev, next InvestigationState) []string {
	var violations []string

	if next.OrchestratorLoops < prev.OrchestratorLoops {
		violations = append(violations, "orchestrator_loops")
	}
	if next.ToolExecutionAttempts < prev.ToolExecutionAttempts {
		violations = append(violations, "tool_execution_attempts")
	}
	if len(next.AIDecisions) < len(prev.AIDecisions) {
		violations = append(violations, "ai_decisions")
	}
	if len(next.ConfidenceEvolution) < len(prev.ConfidenceEvolution) {
		violations = append(violations, "confidence_evolution")
	}
	if len(next.SafetyOverrides) < len(prev.SafetyOverrides) {
		violations = append(violations, "safety_overrides")
	}
	if len(next.RoutingDecisions) < len(prev.RoutingDecisions) {
		violations = append(violations, "routing_decisions")
	}
	if len(next.DecisionAuditTrail) < len(prev.DecisionAuditTrail) {
		violations = append(violations, "decision_audit_trail")
	}
	if len(next.Errors) < len(prev.Errors) {
		violations = append(violations, "errors")
	}
	if len(next.DomainsCompleted) < len(prev.DomainsCompleted) {
		violations = append(violations, "domains_completed")
	}

	return violations
}

// DomainsCompletedConsistentWithFindings checks domains_completed ⊇
// keys(domain_findings where status=OK), per §3's invariant.
func DomainsCompletedConsistentWithFindings(s InvestigationState) bool {
	for domain, finding := range s.DomainFindings {
		if finding.Status == FindingOK && !s.DomainsCompleted[domain] {
			return false
		}
	}
	return true
}

// RiskScoreRespectsEvidenceFloor checks §3's invariant: risk_score != null
// implies evidence_strength >= floor.
func RiskScoreRespectsEvidenceFloor(s InvestigationState, floor float64) bool {
	if s.RiskScore == nil {
		return true
	}
	return s.EvidenceStrength >= floor
}

// CompletePhaseHasTimestamps checks §3's invariant: current_phase=complete
// implies end_time and total_duration_ms are both set.
func CompletePhaseHasTimestamps(s InvestigationState) bool {
	if s.CurrentPhase != PhaseComplete {
		return true
	}
	return s.EndTime != nil && s.TotalDurationMs > 0
}
