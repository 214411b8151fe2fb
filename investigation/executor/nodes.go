package executor

import (
	"context"
	"fmt"

	"github.com/olorin-ai/hybrid-investigator/investigation/confidence"
	"github.com/olorin-ai/hybrid-investigator/investigation/evidence"
	"github.com/olorin-ai/hybrid-investigator/investigation/graph"
	"github.com/olorin-ai/hybrid-investigator/investigation/nodes"
	"github.com/olorin-ai/hybrid-investigator/investigation/outcome"
	"github.com/olorin-ai/hybrid-investigator/investigation/router"
	"github.com/olorin-ai/hybrid-investigator/investigation/safety"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

// startInvestigation merges an external initialization result into state,
// per §4.5's node contract: MergeExternalResult itself rejects writes to
// the protected field set and logs a warning for each.
func (e *Executor) startInvestigation(s state.InvestigationState, externalInit map[string]interface{}) (state.InvestigationState, graph.Node, error) {
	s = state.MergeExternalResult(s, externalInit, e.logger())
	if _, hasRawData := externalInit["raw_data"]; hasRawData {
		return s, graph.NodeRawData, nil
	}
	return s, graph.NodeFraudInvestigation, nil
}

// rawData updates confidence_factors.data_completeness from the volume of
// content merged in by start_investigation, and mines snowflake_data/
// tool_results for risk indicators via jq expressions (§4.5).
func (e *Executor) rawData(s state.InvestigationState) (state.InvestigationState, graph.Node, error) {
	volume := len(s.SnowflakeData) + len(s.ToolResults)
	completeness := float64(volume) / 10.0

	next := s.Clone()
	extraction, err := nodes.ExtractRawData(next.SnowflakeData, next.ToolResults)
	if err != nil {
		e.logger().WithError(err).WithField("investigation_id", next.InvestigationID).Warn("raw data jq extraction failed")
	} else {
		completeness += float64(extraction.LeafCount) / 50.0
		next.RiskIndicators = mergeUnique(next.RiskIndicators, extraction.RiskIndicators)
	}

	if completeness > 1.0 {
		completeness = 1.0
	}
	next.ConfidenceFactors["data_completeness"] = completeness
	return next, graph.NodeFraudInvestigation, nil
}

// mergeUnique appends additions not already present in existing, preserving
// existing's order.
func mergeUnique(existing, additions []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, v := range existing {
		seen[v] = true
	}
	out := existing
	for _, v := range additions {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// fraudInvestigation prepends AI guidance to the first system message when
// doing so does not violate the tool_use/tool_result sequence invariant,
// then routes to tools if the latest decision recommended any, else to
// confidence assessment (§4.5).
func (e *Executor) fraudInvestigation(s state.InvestigationState, lastDecision state.AIDecision) (state.InvestigationState, graph.Node, error) {
	next := s.Clone()
	if state.CanInsertGuidance(next.Messages) && len(lastDecision.Reasoning) > 0 {
		guidance := fmt.Sprintf("guidance: %s", lastDecision.Reasoning[len(lastDecision.Reasoning)-1])
		for i, m := range next.Messages {
			if m.Role == state.RoleSystem {
				next.Messages[i].Content = next.Messages[i].Content + "\n" + guidance
				break
			}
		}
	}

	if len(lastDecision.ToolsRecommended) > 0 && len(next.ToolsUsed) < len(lastDecision.ToolsRecommended) {
		return next, graph.NodeTools, nil
	}
	return next, graph.NodeAIConfidenceAssessment, nil
}

// tools invokes the tool invoker port, records results, and computes
// tool_execution_efficiency (§4.5).
func (e *Executor) tools(ctx context.Context, s state.InvestigationState, lastDecision state.AIDecision) (state.InvestigationState, graph.Node, error) {
	if e.Tools == nil {
		return s, graph.NodeFraudInvestigation, nil
	}

	deadline := e.now().Add(e.ToolDeadline)
	result, err := e.Tools.InvokeTools(ctx, lastDecision.ToolsRecommended, s, deadline)
	if err != nil {
		if e.Metrics != nil {
			for _, tool := range lastDecision.ToolsRecommended {
				e.Metrics.ToolExecutions.WithLabelValues(tool, "false").Inc()
			}
		}
		return s, graph.NodeFraudInvestigation, fmt.Errorf("tool invocation failed: %w", err)
	}

	next := s.Clone()
	for k, v := range result.ToolResults {
		next.ToolResults[k] = v
	}
	for _, tool := range result.ToolsUsed {
		next.ToolsUsed[tool] = true
	}
	if e.Metrics != nil {
		for _, tool := range result.ToolsUsed {
			e.Metrics.ToolExecutions.WithLabelValues(tool, "true").Inc()
		}
	}
	next.ToolExecutionAttempts++
	if len(next.ToolsUsed) > 0 {
		next.ToolsQuality = float64(len(next.ToolResults)) / float64(len(next.ToolsUsed))
	}
	next.DecisionAuditTrail = append(next.DecisionAuditTrail, state.AuditEntry{
		Timestamp: e.now(),
		Node:      string(graph.NodeTools),
		Action:    "tools_invoked",
		Detail:    fmt.Sprintf("results=%d used=%d", len(result.ToolResults), len(result.ToolsUsed)),
	})
	return next, graph.NodeFraudInvestigation, nil
}

// aiConfidenceAssessment calls the confidence assessor port and records its
// decision (or a fallback on failure) onto state (§4.5, §6.5). A provider
// error is unrecoverable (§7) and must propagate untouched, bypassing
// RecordAssessment's fallback synthesis, which is reserved for ordinary
// assessment failures.
func (e *Executor) aiConfidenceAssessment(ctx context.Context, s state.InvestigationState, lastDecision *state.AIDecision) (state.InvestigationState, graph.Node, error) {
	decision, err := e.Assessor.Assess(ctx, s)
	if err != nil && isUnrecoverable(err) {
		return s, graph.NodeSafetyValidation, err
	}

	next := confidence.RecordAssessment(s, decision, err, "ai_confidence_assessment", e.now())
	*lastDecision = next.AIDecisions[len(next.AIDecisions)-1]
	return next, graph.NodeSafetyValidation, nil
}

// safetyValidation runs the Safety Manager and stashes its status for
// hybrid_orchestrator's routing decision (§4.5, §4.3).
func (e *Executor) safetyValidation(s state.InvestigationState, lastSafety *safety.Status) (state.InvestigationState, graph.Node, error) {
	status := e.Safety.Validate(s)
	*lastSafety = status
	return s, graph.NodeHybridOrchestrator, nil
}

// hybridOrchestrator increments orchestrator_loops, enforces the hard
// recursion limit, and delegates routing to C4 (§4.5, §4.4).
func (e *Executor) hybridOrchestrator(s state.InvestigationState, lastDecision state.AIDecision, lastSafety safety.Status) (state.InvestigationState, graph.Node, error) {
	next := s.Clone()
	next.OrchestratorLoops++

	if e.HardRecursionLimit > 0 && next.OrchestratorLoops > e.HardRecursionLimit {
		next.SafetyConcerns = append(next.SafetyConcerns, state.SafetyConcern{
			Type:      state.ConcernLoopRisk,
			Severity:  state.SeverityCritical,
			Message:   "hard recursion limit exceeded",
			Timestamp: e.now(),
		})
		e.lastTerminatedBySafety = true
		return next, graph.NodeSummary, nil
	}

	if lastSafety.RequiresImmediateTermination {
		e.lastTerminatedBySafety = true
	}

	decision := router.Decide(next, lastDecision, lastSafety)
	if decision.SafetyOverride {
		concernType := overrideConcernType(lastSafety)
		next = state.AddSafetyOverride(next, lastDecision.RecommendedAction, string(decision.NextNode),
			concernType, decision.OverrideReason,
			map[string]float64{"orchestrator_loops": float64(next.OrchestratorLoops)}, e.now())
		if e.Metrics != nil {
			e.Metrics.SafetyOverrides.WithLabelValues(string(concernType)).Inc()
		}
	}
	next = state.AppendRoutingDecision(next, state.RoutingRecord{
		Timestamp:      e.now(),
		FromNode:       string(graph.NodeHybridOrchestrator),
		NextNode:       string(decision.NextNode),
		Reasoning:      decision.Reasoning,
		SafetyOverride: decision.SafetyOverride,
	})
	return next, decision.NextNode, nil
}

func overrideConcernType(status safety.Status) state.ConcernType {
	if len(status.SafetyConcerns) > 0 {
		return status.SafetyConcerns[0].Type
	}
	return state.ConcernLoopRisk
}

// domainAgent invokes the agent port for domain, records the finding, and
// updates coverage bookkeeping (§4.5).
func (e *Executor) domainAgent(ctx context.Context, s state.InvestigationState, domain string) (state.InvestigationState, graph.Node, error) {
	if domain == "" || e.Agents == nil {
		return s, graph.NodeHybridOrchestrator, fmt.Errorf("no agent runner configured for domain agent node")
	}

	deadline := e.now().Add(e.AgentDeadline)
	finding, err := e.Agents.RunAgent(ctx, domain, s, deadline)
	if err != nil && isUnrecoverable(err) {
		return s, graph.NodeSafetyValidation, err
	}

	next := s.Clone()
	if err != nil {
		finding = state.DomainFinding{Status: state.FindingError, Summary: err.Error()}
	}
	next.DomainFindings[domain] = finding
	next.DomainsCompleted[domain] = true
	next.ConfidenceFactors[domain+"_analysis"] = finding.Confidence
	if e.Metrics != nil {
		e.Metrics.DomainAgentRuns.WithLabelValues(domain, string(finding.Status)).Inc()
	}
	next.DecisionAuditTrail = append(next.DecisionAuditTrail, state.AuditEntry{
		Timestamp: e.now(),
		Node:      domain + "_agent",
		Action:    "domain_analysis_complete",
		Detail:    string(finding.Status),
	})
	return next, graph.NodeHybridOrchestrator, nil
}

// summary runs evidence gating then risk finalization (§4.6), stashing
// both for Run's post-loop outcome build.
func (e *Executor) summary(s state.InvestigationState) (state.InvestigationState, graph.Node, error) {
	next := s.Clone()

	gate := evidence.EvaluateGate(next, e.Evidence.DomainWeights, e.Evidence.MinItemsPerDomain, e.Evidence.MinimumFloor, e.now())
	e.lastGate = gate
	next.EvidenceStrength = gate.Strength

	if gate.Blocked {
		next.RiskScore = nil
		if gate.Concern != nil {
			next.SafetyConcerns = append(next.SafetyConcerns, *gate.Concern)
		}
		e.lastFinalization = nil
	} else {
		findings := evidence.Reconstruct(next)
		finalization := evidence.Finalize(findings, e.Evidence.DomainWeights)
		score := finalization.RiskScore
		next.RiskScore = &score
		next.ConfidenceScore = finalization.ConfidenceScore
		e.lastFinalization = &finalization
	}

	next.CurrentPhase = state.PhaseSummary
	now := e.now()
	next.EndTime = &now
	next.DecisionAuditTrail = append(next.DecisionAuditTrail, state.AuditEntry{
		Timestamp: now,
		Node:      string(graph.NodeSummary),
		Action:    "summary_complete",
		Detail:    fmt.Sprintf("gate_blocked=%v", gate.Blocked),
	})
	return next, graph.NodeComplete, nil
}

// complete finalizes performance metrics, persists the outcome via the
// result sink, and sets the terminal phase (§4.5).
func (e *Executor) complete(ctx context.Context, s state.InvestigationState) (state.InvestigationState, graph.Node, error) {
	next := s.Clone()
	next.CurrentPhase = state.PhaseComplete
	if next.EndTime != nil {
		next.TotalDurationMs = next.EndTime.Sub(next.StartTime).Milliseconds()
	}

	if e.Sink != nil {
		built := outcome.Build(next, outcome.BuildInput{
			Gate:               e.lastGate,
			Finalization:       e.lastFinalization,
			TerminatedBySafety: e.lastTerminatedBySafety,
			Now:                e.now(),
		})
		if perr := e.Sink.Persist(ctx, next.InvestigationID, built, &next); perr != nil {
			e.logger().WithError(perr).WithField("investigation_id", next.InvestigationID).Warn("result sink persist failed")
		}

		scores := filterValidScores(next.TransactionScores)
		if serr := e.Sink.StoreTransactionScores(ctx, next.InvestigationID, scores); serr != nil {
			e.logger().WithError(serr).WithField("investigation_id", next.InvestigationID).Warn("result sink store_transaction_scores failed")
		}
	}

	return next, graph.NodeComplete, nil
}

// filterValidScores drops scores outside [0,1], per §6.6.
func filterValidScores(scores map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(scores))
	for k, v := range scores {
		if v >= 0 && v <= 1 {
			out[k] = v
		}
	}
	return out
}
