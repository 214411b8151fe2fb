// Package ports declares the external-world contracts the executor (C5)
// depends on, per spec §6: checkpointing, agent invocation, tool invocation,
// confidence assessment, and result persistence. Concrete adapters live
// under investigation/checkpoint, investigation/agents, investigation/tools,
// investigation/confidence, and investigation/sink.
package ports

import (
	"context"
	"time"

	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

// Checkpointer persists (investigation_id, node, state) atomically per call
// and retrieves the most recent checkpoint for resume (§6.2).
type Checkpointer interface {
	Save(ctx context.Context, investigationID string, node string, s state.InvestigationState) error
	LoadLatest(ctx context.Context, investigationID string) (node string, s state.InvestigationState, found bool, err error)
}

// AgentRunner invokes a domain agent against a read-only state snapshot
// (§6.3). Implementations must not mutate snapshot.
type AgentRunner interface {
	RunAgent(ctx context.Context, domain string, snapshot state.InvestigationState, deadline time.Time) (state.DomainFinding, error)
}

// ToolResult is the outcome of invoking one or more tools.
type ToolResult struct {
	ToolResults map[string]interface{}
	ToolsUsed   []string
}

// ToolInvoker runs the requested tools against a snapshot, returning only
// once all complete or the deadline fires (§6.4).
type ToolInvoker interface {
	InvokeTools(ctx context.Context, requested []string, snapshot state.InvestigationState, deadline time.Time) (ToolResult, error)
}

// ConfidenceAssessor assesses a state snapshot into an AIDecision (§6.5).
// investigation/confidence.Assessor satisfies this with the identical
// method shape; it is restated here so the executor depends only on
// investigation/ports, not on the assessor's implementation package.
type ConfidenceAssessor interface {
	Assess(ctx context.Context, snapshot state.InvestigationState) (state.AIDecision, error)
}

// ProgressUpdate is the narrow projection update_progress persists (§6.6).
type ProgressUpdate struct {
	RiskScore          *float64
	OverallRiskScore   *float64
	Status             string
	CurrentPhase       state.Phase
	ProgressPercentage float64
}

// ResultSink persists the canonical outcome, progress, and transaction
// scores on investigation completion (§6.6). The outcome type is declared
// in investigation/outcome; it is passed here as interface{} to avoid a
// ports → outcome → state → ports import cycle. The executor passes an
// outcome.CanonicalFinalOutcome value; the PostgreSQL sink accepts a value
// or a pointer.
type ResultSink interface {
	Persist(ctx context.Context, investigationID string, outcome interface{}, rawState *state.InvestigationState) error
	UpdateProgress(ctx context.Context, investigationID string, update ProgressUpdate) error
	StoreTransactionScores(ctx context.Context, investigationID string, scores map[string]float64) error
}
