package flags

import (
	"sync"
	"time"
)

// Graph is which node graph the executor should run.
type Graph string

const (
	GraphSequential Graph = "sequential"
	GraphHybrid     Graph = "hybrid"
)

const (
	flagHybridGraphV1       = "hybrid_graph_v1"
	flagABTestHybridVsClean = "ab_test_hybrid_vs_clean"
)

// RollbackTriggers monitors error rate, performance degradation,
// safety-override rate, and failure rate; once any threshold is crossed,
// GraphSelector falls back to the sequential graph until the condition is
// explicitly cleared (§4.8).
type RollbackTriggers struct {
	mu     sync.Mutex
	active bool
	reason string
}

// TriggerKind names the independent trigger conditions a caller
// evaluates against its own rolling metrics and reports via Trip.
type TriggerKind string

const (
	TriggerErrorRate             TriggerKind = "error_rate"
	TriggerPerformanceDegradation TriggerKind = "performance_degradation"
	TriggerSafetyOverrideRate    TriggerKind = "safety_override_rate"
	TriggerFailureRate           TriggerKind = "failure_rate"
)

// Trip activates the rollback condition.
func (r *RollbackTriggers) Trip(kind TriggerKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = true
	r.reason = string(kind)
}

// Clear deactivates the rollback condition. Per §4.8 this must be explicit:
// the condition never self-clears on a timer.
func (r *RollbackTriggers) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
	r.reason = ""
}

// Active reports whether a rollback condition is in force, and why.
func (r *RollbackTriggers) Active() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, r.reason
}

// GraphSelector implements §4.8's choose operation.
type GraphSelector struct {
	Flags     *FeatureFlags
	Rollback  *RollbackTriggers
}

// NewGraphSelector builds a selector over the given flag table and rollback monitor.
func NewGraphSelector(flags *FeatureFlags, rollback *RollbackTriggers) *GraphSelector {
	return &GraphSelector{Flags: flags, Rollback: rollback}
}

// Choose implements §4.8: rollback dominates, then hybrid_graph_v1, then the
// A/B test assignment, else sequential. force overrides to the named graph
// when non-empty, except rollback still dominates.
func (s *GraphSelector) Choose(investigationID string, entityType string, force Graph) (graph Graph, err error) {
	defer func() {
		if r := recover(); r != nil {
			graph, err = GraphSequential, nil
		}
	}()

	if active, _ := s.Rollback.Active(); active {
		return GraphSequential, nil
	}
	if force != "" {
		return force, nil
	}
	if s.Flags.Evaluate(flagHybridGraphV1, investigationID) {
		return GraphHybrid, nil
	}
	if s.Flags.Evaluate(flagABTestHybridVsClean, investigationID) {
		if s.Flags.Variant(flagABTestHybridVsClean, investigationID) == "b" {
			return GraphHybrid, nil
		}
		return GraphSequential, nil
	}
	return GraphSequential, nil
}

// DegradationWindow is the rolling window RollbackTriggers' caller uses to
// compute performance degradation (kept here purely as a documented
// default; callers may use their own).
const DegradationWindow = 5 * time.Minute
