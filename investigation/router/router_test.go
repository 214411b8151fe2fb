package router_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/olorin-ai/hybrid-investigator/investigation/graph"
	"github.com/olorin-ai/hybrid-investigator/investigation/router"
	"github.com/olorin-ai/hybrid-investigator/investigation/safety"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

func baseState() state.InvestigationState {
	return state.CreateInitial(state.InitialConfig{InvestigationID: "inv-1"})
}

func allowsControl() safety.Status {
	return safety.Status{AllowsAIControl: true}
}

var _ = Describe("Decide", func() {
	// BR-HIO-401: decision pipeline precedence (§4.4).
	It("routes to summary with a safety override when termination is required", func() {
		s := baseState()
		decision := state.AIDecision{RecommendedAction: "snowflake_analysis"}
		status := safety.Status{RequiresImmediateTermination: true}

		out := router.Decide(s, decision, status)
		Expect(out.NextNode).To(Equal(graph.NodeSummary))
		Expect(out.SafetyOverride).To(BeTrue())
		Expect(out.OverrideReason).To(Equal("requires_immediate_termination"))
	})

	Context("CRITICAL_PATH and MINIMAL strategies", func() {
		It("goes directly to risk_agent when risk is not yet completed", func() {
			s := baseState()
			decision := state.AIDecision{Strategy: state.StrategyCriticalPath, ConfidenceLevel: state.ConfidenceHigh, RecommendedAction: "risk_agent"}
			out := router.Decide(s, decision, allowsControl())
			Expect(out.NextNode).To(Equal(graph.NodeRiskAgent))
			Expect(out.SafetyOverride).To(BeFalse())
		})

		It("falls through to summary once risk is completed", func() {
			s := baseState()
			s.DomainsCompleted["risk"] = true
			decision := state.AIDecision{Strategy: state.StrategyMinimal, ConfidenceLevel: state.ConfidenceHigh, RecommendedAction: "summary"}
			out := router.Decide(s, decision, allowsControl())
			Expect(out.NextNode).To(Equal(graph.NodeSummary))
		})
	})

	Context("FOCUSED strategy", func() {
		It("chooses the first not-yet-completed agent in agents_to_activate", func() {
			s := baseState()
			s.DomainsCompleted["network"] = true
			decision := state.AIDecision{
				Strategy:          state.StrategyFocused,
				ConfidenceLevel:   state.ConfidenceMedium,
				RecommendedAction: "device_agent",
				AgentsToActivate:  []string{"network", "device", "logs"},
			}
			out := router.Decide(s, decision, allowsControl())
			Expect(out.NextNode).To(Equal(graph.NodeDeviceAgent))
		})

		It("falls back to summary once all planned agents are completed", func() {
			s := baseState()
			s.DomainsCompleted["network"] = true
			s.DomainsCompleted["device"] = true
			decision := state.AIDecision{
				Strategy:          state.StrategyFocused,
				ConfidenceLevel:   state.ConfidenceHigh,
				RecommendedAction: "summary",
				AgentsToActivate:  []string{"network", "device"},
			}
			out := router.Decide(s, decision, allowsControl())
			Expect(out.NextNode).To(Equal(graph.NodeSummary))
		})
	})

	Context("ADAPTIVE strategy", func() {
		It("heads to fraud_investigation while snowflake is incomplete", func() {
			s := baseState()
			decision := state.AIDecision{Strategy: state.StrategyAdaptive, ConfidenceLevel: state.ConfidenceHigh, RecommendedAction: "snowflake_analysis"}
			out := router.Decide(s, decision, allowsControl())
			Expect(out.NextNode).To(Equal(graph.NodeFraudInvestigation))
		})

		It("routes to tools when fewer than 2 tools have run and tools are recommended", func() {
			s := baseState()
			s.SnowflakeCompleted = true
			decision := state.AIDecision{
				Strategy:          state.StrategyAdaptive,
				ConfidenceLevel:   state.ConfidenceHigh,
				RecommendedAction: "tools",
				ToolsRecommended:  []string{"threat_intel_lookup"},
			}
			out := router.Decide(s, decision, allowsControl())
			Expect(out.NextNode).To(Equal(graph.NodeTools))
		})

		It("routes to the next fixed-order domain once tool coverage is sufficient", func() {
			s := baseState()
			s.SnowflakeCompleted = true
			s.ToolsUsed["threat_intel_lookup"] = true
			s.ToolsUsed["device_lookup"] = true
			decision := state.AIDecision{Strategy: state.StrategyAdaptive, ConfidenceLevel: state.ConfidenceHigh, RecommendedAction: "network_agent"}
			out := router.Decide(s, decision, allowsControl())
			Expect(out.NextNode).To(Equal(graph.NodeNetworkAgent))
		})

		It("routes to summary once 3 or more domains are completed", func() {
			s := baseState()
			s.SnowflakeCompleted = true
			s.ToolsUsed["a"] = true
			s.ToolsUsed["b"] = true
			s.DomainsCompleted["network"] = true
			s.DomainsCompleted["device"] = true
			s.DomainsCompleted["location"] = true
			decision := state.AIDecision{Strategy: state.StrategyAdaptive, ConfidenceLevel: state.ConfidenceHigh, RecommendedAction: "summary"}
			out := router.Decide(s, decision, allowsControl())
			Expect(out.NextNode).To(Equal(graph.NodeSummary))
		})
	})

	Context("safety-first sequential fallback", func() {
		It("is used when AI control is disallowed, regardless of strategy", func() {
			s := baseState()
			s.SnowflakeCompleted = true
			decision := state.AIDecision{Strategy: state.StrategyAdaptive, ConfidenceLevel: state.ConfidenceHigh, RecommendedAction: "snowflake_analysis"}
			out := router.Decide(s, decision, safety.Status{AllowsAIControl: false})
			Expect(out.NextNode).To(Equal(graph.NodeFraudInvestigation)) // |tool_results|=0 triggers tools via fraud_investigation
		})

		It("walks domains in the fixed [network, device, location, logs, authentication, risk] order", func() {
			s := baseState()
			s.SnowflakeCompleted = true
			s.ToolResults["x"] = 1
			s.DomainsCompleted["network"] = true
			decision := state.AIDecision{RecommendedAction: "device_agent"}
			out := router.Decide(s, decision, safety.Status{AllowsAIControl: false})
			Expect(out.NextNode).To(Equal(graph.NodeDeviceAgent))
		})

		It("moves to summary once 5 domain findings are present", func() {
			s := baseState()
			s.SnowflakeCompleted = true
			s.ToolResults["x"] = 1
			for _, d := range []string{"network", "device", "location", "logs", "authentication"} {
				s.DomainFindings[d] = state.DomainFinding{Status: state.FindingOK}
			}
			decision := state.AIDecision{RecommendedAction: "summary"}
			out := router.Decide(s, decision, safety.Status{AllowsAIControl: false})
			Expect(out.NextNode).To(Equal(graph.NodeSummary))
		})

		It("is used for the COMPREHENSIVE strategy even when AI control is allowed", func() {
			s := baseState()
			s.SnowflakeCompleted = true
			decision := state.AIDecision{Strategy: state.StrategyComprehensive, ConfidenceLevel: state.ConfidenceHigh, RecommendedAction: "snowflake_analysis"}
			out := router.Decide(s, decision, allowsControl())
			Expect(out.NextNode).To(Equal(graph.NodeFraudInvestigation))
		})
	})

	It("records a safety override whenever next_node deviates from the AI recommendation", func() {
		s := baseState()
		s.SnowflakeCompleted = true
		decision := state.AIDecision{Strategy: state.StrategyAdaptive, ConfidenceLevel: state.ConfidenceHigh, RecommendedAction: "summary"}
		out := router.Decide(s, decision, allowsControl())
		Expect(out.NextNode).NotTo(Equal(graph.NodeSummary)) // adaptive still wants tools/domains first
		Expect(out.SafetyOverride).To(BeTrue())
		Expect(out.OverrideReason).To(Equal("deviated_from_ai_recommendation"))
	})

	It("annotates reasoning for medium confidence without changing next_node", func() {
		s := baseState()
		decision := state.AIDecision{Strategy: state.StrategyCriticalPath, ConfidenceLevel: state.ConfidenceMedium, RecommendedAction: "risk_agent"}
		out := router.Decide(s, decision, allowsControl())
		Expect(out.NextNode).To(Equal(graph.NodeRiskAgent))
		Expect(out.Reasoning).To(ContainSubstring("medium_confidence_validated"))
	})
})
