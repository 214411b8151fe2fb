// Package graph names the executor's fixed node set and static edges (§4.5),
// shared between the router (which decides among them) and the executor
// (which walks them).
package graph

// Node identifies one of the executor's fixed states.
type Node string

const (
	NodeStartInvestigation     Node = "start_investigation"
	NodeRawData                Node = "raw_data"
	NodeFraudInvestigation     Node = "fraud_investigation"
	NodeTools                  Node = "tools"
	NodeAIConfidenceAssessment Node = "ai_confidence_assessment"
	NodeSafetyValidation       Node = "safety_validation"
	NodeHybridOrchestrator     Node = "hybrid_orchestrator"
	NodeNetworkAgent           Node = "network_agent"
	NodeDeviceAgent            Node = "device_agent"
	NodeLocationAgent          Node = "location_agent"
	NodeLogsAgent              Node = "logs_agent"
	NodeAuthenticationAgent    Node = "authentication_agent"
	NodeRiskAgent              Node = "risk_agent"
	NodeSummary                Node = "summary"
	NodeComplete               Node = "complete"
)

// DomainAgent maps a domain name to its executor node.
var DomainAgent = map[string]Node{
	"network":        NodeNetworkAgent,
	"device":         NodeDeviceAgent,
	"location":       NodeLocationAgent,
	"logs":           NodeLogsAgent,
	"authentication": NodeAuthenticationAgent,
	"risk":           NodeRiskAgent,
}

// SequentialDomainOrder is the fixed fallback order of §4.4's safety-first
// sequential routing, distinct from confidence.DomainOrder (which ranks
// domains by default evidence weight to pick the AI's recommended next
// agent).
var SequentialDomainOrder = []string{"network", "device", "location", "logs", "authentication", "risk"}
