// Package router implements the Intelligent Router (C4): merging a
// confidence assessment and a safety status into the executor's next-node
// decision (spec §4.4).
package router

import (
	"fmt"

	"github.com/olorin-ai/hybrid-investigator/investigation/graph"
	"github.com/olorin-ai/hybrid-investigator/investigation/safety"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

// Decision is decide's output: the next node to enter, why, and whether
// choosing it deviated from the AI's own recommendation.
type Decision struct {
	NextNode       graph.Node
	Reasoning      string
	SafetyOverride bool
	OverrideReason string
}

// Decide implements §4.4's decision pipeline.
func Decide(s state.InvestigationState, decision state.AIDecision, safetyStatus safety.Status) Decision {
	var d Decision

	switch {
	case safetyStatus.RequiresImmediateTermination:
		d = Decision{
			NextNode:       graph.NodeSummary,
			Reasoning:      "immediate_termination_required",
			SafetyOverride: true,
			OverrideReason: "requires_immediate_termination",
		}
	case safetyStatus.AllowsAIControl && aiControlLevel(decision.ConfidenceLevel):
		d = dispatchByStrategy(s, decision)
	default:
		d = sequential(s)
	}

	if decision.ConfidenceLevel == state.ConfidenceMedium {
		d.Reasoning = d.Reasoning + "; medium_confidence_validated"
	}

	if d.NextNode != recommendedNode(decision.RecommendedAction) && !d.SafetyOverride {
		d.SafetyOverride = true
		if d.OverrideReason == "" {
			d.OverrideReason = "deviated_from_ai_recommendation"
		}
	}

	return d
}

func aiControlLevel(level state.ConfidenceLevel) bool {
	return level == state.ConfidenceHigh || level == state.ConfidenceMedium
}

func dispatchByStrategy(s state.InvestigationState, decision state.AIDecision) Decision {
	switch decision.Strategy {
	case state.StrategyCriticalPath, state.StrategyMinimal:
		if !s.DomainsCompleted["risk"] {
			return Decision{NextNode: graph.NodeRiskAgent, Reasoning: "critical_path_risk_agent"}
		}
		return Decision{NextNode: graph.NodeSummary, Reasoning: "critical_path_complete"}
	case state.StrategyFocused:
		for _, domain := range decision.AgentsToActivate {
			if !s.DomainsCompleted[domain] {
				node, ok := graph.DomainAgent[domain]
				if !ok {
					continue
				}
				return Decision{NextNode: node, Reasoning: fmt.Sprintf("focused_agent:%s", domain)}
			}
		}
		return Decision{NextNode: graph.NodeSummary, Reasoning: "focused_agents_exhausted"}
	case state.StrategyAdaptive:
		return adaptive(s, decision)
	default: // COMPREHENSIVE
		return sequential(s)
	}
}

func adaptive(s state.InvestigationState, decision state.AIDecision) Decision {
	switch {
	case !s.SnowflakeCompleted:
		return Decision{NextNode: graph.NodeFraudInvestigation, Reasoning: "adaptive_snowflake_pending"}
	case len(s.ToolsUsed) < 2 && len(decision.ToolsRecommended) > 0:
		return Decision{NextNode: graph.NodeTools, Reasoning: "adaptive_tools_recommended"}
	case len(s.DomainsCompleted) < 3:
		for _, domain := range graph.SequentialDomainOrder {
			if !s.DomainsCompleted[domain] {
				return Decision{NextNode: graph.DomainAgent[domain], Reasoning: fmt.Sprintf("adaptive_next_domain:%s", domain)}
			}
		}
		return Decision{NextNode: graph.NodeSummary, Reasoning: "adaptive_no_domains_remaining"}
	default:
		return Decision{NextNode: graph.NodeSummary, Reasoning: "adaptive_sufficient_coverage"}
	}
}

// sequential implements §4.4's safety-first fallback, used both when AI
// control is disallowed and for the COMPREHENSIVE strategy.
func sequential(s state.InvestigationState) Decision {
	switch {
	case !s.SnowflakeCompleted:
		return Decision{NextNode: graph.NodeFraudInvestigation, Reasoning: "sequential_snowflake_pending"}
	case len(s.ToolResults) == 0:
		return Decision{NextNode: graph.NodeFraudInvestigation, Reasoning: "sequential_trigger_tools"}
	case len(s.DomainFindings) == 0:
		domain := firstUncompleted(s)
		if domain == "" {
			return Decision{NextNode: graph.NodeSummary, Reasoning: "sequential_no_domains_remaining"}
		}
		return Decision{NextNode: graph.DomainAgent[domain], Reasoning: fmt.Sprintf("sequential_first_domain:%s", domain)}
	case len(s.DomainFindings) < 5:
		domain := firstUncompleted(s)
		if domain == "" {
			return Decision{NextNode: graph.NodeSummary, Reasoning: "sequential_no_domains_remaining"}
		}
		return Decision{NextNode: graph.DomainAgent[domain], Reasoning: fmt.Sprintf("sequential_next_domain:%s", domain)}
	default:
		return Decision{NextNode: graph.NodeSummary, Reasoning: "sequential_coverage_complete"}
	}
}

func firstUncompleted(s state.InvestigationState) string {
	for _, domain := range graph.SequentialDomainOrder {
		if !s.DomainsCompleted[domain] {
			return domain
		}
	}
	return ""
}

// recommendedNode maps an AIDecision.RecommendedAction string (as produced
// by confidence.RecommendAction) onto the graph node it corresponds to, so
// Decide can detect when it deviated from the AI's recommendation.
func recommendedNode(action string) graph.Node {
	switch action {
	case "snowflake_analysis":
		return graph.NodeFraudInvestigation
	case "tools":
		return graph.NodeTools
	case "summary":
		return graph.NodeSummary
	default:
		if node, ok := domainAgentFromAction(action); ok {
			return node
		}
		return graph.Node(action)
	}
}

func domainAgentFromAction(action string) (graph.Node, bool) {
	const suffix = "_agent"
	if len(action) <= len(suffix) || action[len(action)-len(suffix):] != suffix {
		return "", false
	}
	domain := action[:len(action)-len(suffix)]
	node, ok := graph.DomainAgent[domain]
	return node, ok
}
