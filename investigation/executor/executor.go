// Package executor implements the Graph Executor (C5, spec §4.5): a
// finite-state driver over the fixed node set of investigation/graph,
// checkpointing after every node and accounting orchestrator loops against
// the safety-scaled limit.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/olorin-ai/hybrid-investigator/internal/errors"
	"github.com/olorin-ai/hybrid-investigator/investigation/evidence"
	"github.com/olorin-ai/hybrid-investigator/investigation/graph"
	"github.com/olorin-ai/hybrid-investigator/investigation/metrics"
	"github.com/olorin-ai/hybrid-investigator/investigation/outcome"
	"github.com/olorin-ai/hybrid-investigator/investigation/ports"
	"github.com/olorin-ai/hybrid-investigator/investigation/safety"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
	"github.com/olorin-ai/hybrid-investigator/investigation/telemetry"
)

// EvidenceConfig configures the evidence gate C6 consults during summary.
type EvidenceConfig struct {
	DomainWeights     map[string]float64
	MinItemsPerDomain int
	MinimumFloor      float64
}

// Executor drives one investigation through the node graph. It holds no
// per-investigation state; InvestigationState is threaded through Run.
type Executor struct {
	Checkpointer ports.Checkpointer
	Agents       ports.AgentRunner
	Tools        ports.ToolInvoker
	Assessor     ports.ConfidenceAssessor
	Sink         ports.ResultSink
	Safety       *safety.Manager
	Evidence     EvidenceConfig
	Metrics      *metrics.Metrics

	HardRecursionLimit int
	ToolDeadline       time.Duration
	AgentDeadline      time.Duration

	Logger logrus.FieldLogger
	Now    func() time.Time

	// lastGate/lastFinalization stash C6's output from the summary node so
	// Run's post-loop outcome build can see it without threading it through
	// every node's (state, next) return shape. lastTerminatedBySafety mirrors
	// the pattern for hybrid_orchestrator's hard-recursion-limit and
	// immediate-termination branches (§4.5, §4.7).
	lastGate               evidence.Gate
	lastFinalization       *evidence.Finalization
	lastTerminatedBySafety bool
}

func (e *Executor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Executor) logger() logrus.FieldLogger {
	if e.Logger != nil {
		return e.Logger
	}
	return logrus.StandardLogger()
}

// Result is Run's terminal output: the final state and the canonical
// outcome C7 builds once Run's node loop ends.
type Result struct {
	State   state.InvestigationState
	Outcome outcome.CanonicalFinalOutcome
}

// Run drives s from start_investigation to complete, per §4.5's static
// edges. externalInit is the payload start_investigation merges in.
func (e *Executor) Run(ctx context.Context, s state.InvestigationState, externalInit map[string]interface{}) (Result, error) {
	node := graph.NodeStartInvestigation
	var lastDecision state.AIDecision
	var lastSafety safety.Status
	e.lastGate = evidence.Gate{}
	e.lastFinalization = nil
	e.lastTerminatedBySafety = false

	for {
		select {
		case <-ctx.Done():
			built := outcome.Build(s, outcome.BuildInput{
				Gate:         e.lastGate,
				Finalization: e.lastFinalization,
				TimedOut:     true,
				Now:          e.now(),
			})
			if e.Metrics != nil {
				e.Metrics.InvestigationOutcome.WithLabelValues(string(built.Status)).Inc()
				e.Metrics.OrchestratorLoops.WithLabelValues(string(built.Status)).Add(float64(s.OrchestratorLoops))
			}
			return Result{State: s, Outcome: built}, ctx.Err()
		default:
		}

		var (
			next graph.Node
			err  error
		)

		spanCtx, endSpan := telemetry.StartNodeSpan(ctx, string(node), s.InvestigationID)
		s, next, err = e.step(spanCtx, node, s, externalInit, &lastDecision, &lastSafety)
		endSpan(err)
		if err != nil {
			if isUnrecoverable(err) {
				return Result{State: s}, err
			}
			s = state.AppendError(s, string(node), err.Error(), e.now())
			next = graph.NodeSummary
		}

		if e.Checkpointer != nil {
			if cerr := e.Checkpointer.Save(ctx, s.InvestigationID, string(next), s); cerr != nil {
				e.logger().WithError(cerr).WithField("investigation_id", s.InvestigationID).Warn("checkpoint save failed")
			}
		}

		if e.Sink != nil && (node == graph.NodeAIConfidenceAssessment || node == graph.NodeSafetyValidation) {
			if perr := e.Sink.UpdateProgress(ctx, s.InvestigationID, progressUpdate(s)); perr != nil {
				e.logger().WithError(perr).WithField("investigation_id", s.InvestigationID).Warn("result sink update_progress failed")
			}
		}

		if node == graph.NodeComplete {
			break
		}
		node = next
	}

	built := outcome.Build(s, outcome.BuildInput{
		Gate:               e.lastGate,
		Finalization:       e.lastFinalization,
		TerminatedBySafety: e.lastTerminatedBySafety,
		Now:                e.now(),
	})
	if e.Metrics != nil {
		e.Metrics.InvestigationOutcome.WithLabelValues(string(built.Status)).Inc()
		e.Metrics.OrchestratorLoops.WithLabelValues(string(built.Status)).Add(float64(s.OrchestratorLoops))
	}
	return Result{State: s, Outcome: built}, nil
}

// progressUpdate builds a live progress projection for the result sink
// (§6.6), reported after the nodes most likely to move risk and phase.
func progressUpdate(s state.InvestigationState) ports.ProgressUpdate {
	return ports.ProgressUpdate{
		RiskScore:          s.RiskScore,
		OverallRiskScore:   s.RiskScore,
		Status:             "IN_PROGRESS",
		CurrentPhase:       s.CurrentPhase,
		ProgressPercentage: domainCoverage(s),
	}
}

// domainCoverage is the fraction of the six fixed domain agents that have
// completed, capped at 1.0.
func domainCoverage(s state.InvestigationState) float64 {
	const totalDomains = 6
	pct := float64(len(s.DomainsCompleted)) / totalDomains
	if pct > 1.0 {
		pct = 1.0
	}
	return pct
}

func isUnrecoverable(err error) bool {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		return false
	}
	return appErr.Type == apperrors.ErrorTypeProvider
}

// step dispatches one node and returns the updated state and next node.
// Failure handling per §4.5: node errors are caught by Run and
// translated to a safe fallback transition to summary, except provider
// errors (checked via isUnrecoverable) which propagate untouched.
func (e *Executor) step(ctx context.Context, node graph.Node, s state.InvestigationState, externalInit map[string]interface{}, lastDecision *state.AIDecision, lastSafety *safety.Status) (state.InvestigationState, graph.Node, error) {
	switch node {
	case graph.NodeStartInvestigation:
		return e.startInvestigation(s, externalInit)
	case graph.NodeRawData:
		return e.rawData(s)
	case graph.NodeFraudInvestigation:
		return e.fraudInvestigation(s, *lastDecision)
	case graph.NodeTools:
		return e.tools(ctx, s, *lastDecision)
	case graph.NodeAIConfidenceAssessment:
		return e.aiConfidenceAssessment(ctx, s, lastDecision)
	case graph.NodeSafetyValidation:
		return e.safetyValidation(s, lastSafety)
	case graph.NodeHybridOrchestrator:
		return e.hybridOrchestrator(s, *lastDecision, *lastSafety)
	case graph.NodeNetworkAgent, graph.NodeDeviceAgent, graph.NodeLocationAgent,
		graph.NodeLogsAgent, graph.NodeAuthenticationAgent, graph.NodeRiskAgent:
		return e.domainAgent(ctx, s, domainOf(node))
	case graph.NodeSummary:
		return e.summary(s)
	case graph.NodeComplete:
		return e.complete(ctx, s)
	default:
		return s, graph.NodeSummary, fmt.Errorf("unknown node %q", node)
	}
}

func domainOf(node graph.Node) string {
	for domain, n := range graph.DomainAgent {
		if n == node {
			return domain
		}
	}
	return ""
}
