// Package safety implements the Safety Manager (C3): safety-level
// derivation, dynamic-limit computation, resource-pressure scoring,
// concern raising, and AI-control authorization (spec §4.3).
package safety

import (
	"context"
	"time"

	"github.com/olorin-ai/hybrid-investigator/internal/config"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

// Level is the safety posture the manager derives each loop.
type Level string

const (
	LevelPermissive Level = "PERMISSIVE"
	LevelStandard   Level = "STANDARD"
	LevelStrict     Level = "STRICT"
	LevelEmergency  Level = "EMERGENCY"
)

// Status is validate's full output (§4.3's contract).
type Status struct {
	AllowsAIControl              bool
	RequiresImmediateTermination bool
	SafetyLevel                  Level
	CurrentLimits                state.DynamicLimits
	ResourcePressure              float64
	SafetyConcerns                []state.SafetyConcern
	OverrideReasoning              string
	EstimatedRemainingResources    map[string]float64
	RecommendedActions             []string
}

// Manager holds the process-scoped configuration validate(state) reads
// from: the operating mode (resolved once at startup per §6.8) and the
// base-limit/multiplier tables of §6.1.
type Manager struct {
	Mode   config.Mode
	Config *config.InvestigationConfig
	Now    func() time.Time

	// Policy, when set, backs authorizeAIControl with the Rego ladder of
	// policy.go instead of the pure-Go one; nil falls back to the built-in
	// ladder (e.g. in tests that don't need OPA compiled in).
	Policy *PolicyAuthorizer
}

// NewManager builds a Manager for the given mode and investigation config.
func NewManager(mode config.Mode, cfg *config.InvestigationConfig) *Manager {
	return &Manager{Mode: mode, Config: cfg, Now: time.Now}
}

// Validate computes the full SafetyStatus for s, per §4.3.
func (m *Manager) Validate(s state.InvestigationState) Status {
	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}

	level := m.deriveLevel(s)
	limits := m.dynamicLimits(level, s.InvestigationStrategy)
	pressure := resourcePressure(s, limits, now)
	concerns := raiseConcerns(s, limits, pressure, m.Config.Evidence.MinimumFloor, now)

	hasCritical := false
	for _, c := range concerns {
		if c.Severity == state.SeverityCritical {
			hasCritical = true
			break
		}
	}

	elapsedMinutes := now.Sub(s.StartTime).Minutes()
	hardLimitExceeded := s.OrchestratorLoops >= limits.MaxOrchestratorLoops ||
		s.ToolExecutionAttempts >= limits.MaxToolExecutions ||
		len(s.DomainsCompleted) >= limits.MaxDomainAttempts

	terminate := hasCritical || hardLimitExceeded || elapsedMinutes >= float64(limits.MaxInvestigationTimeMinutes)

	return Status{
		AllowsAIControl:              !terminate && m.authorize(s.AIConfidenceLevel, pressure, hasCritical),
		RequiresImmediateTermination: terminate,
		SafetyLevel:                  level,
		CurrentLimits:                limits,
		ResourcePressure:             pressure,
		SafetyConcerns:               concerns,
		OverrideReasoning:            lastOverrideReasoning(s),
		EstimatedRemainingResources:  remainingResources(s, limits, elapsedMinutes),
		RecommendedActions:           recommendedActions(concerns, pressure),
	}
}

// authorize dispatches to the compiled Rego policy when one is configured,
// falling back to the built-in Go ladder otherwise.
func (m *Manager) authorize(level state.ConfidenceLevel, pressure float64, hasCritical bool) bool {
	if m.Policy != nil {
		return m.Policy.Authorize(context.Background(), string(level), pressure, hasCritical)
	}
	return authorizeAIControl(level, pressure, hasCritical)
}

func lastOverrideReasoning(s state.InvestigationState) string {
	if len(s.AIOverrideReasons) == 0 {
		return ""
	}
	return s.AIOverrideReasons[len(s.AIOverrideReasons)-1]
}

func remainingResources(s state.InvestigationState, limits state.DynamicLimits, elapsedMinutes float64) map[string]float64 {
	remaining := func(limit, current int) float64 {
		r := float64(limit - current)
		if r < 0 {
			return 0
		}
		return r
	}
	timeRemaining := float64(limits.MaxInvestigationTimeMinutes) - elapsedMinutes
	if timeRemaining < 0 {
		timeRemaining = 0
	}
	return map[string]float64{
		"orchestrator_loops": remaining(limits.MaxOrchestratorLoops, s.OrchestratorLoops),
		"tool_executions":    remaining(limits.MaxToolExecutions, s.ToolExecutionAttempts),
		"domain_attempts":    remaining(limits.MaxDomainAttempts, len(s.DomainsCompleted)),
		"time_minutes":       timeRemaining,
	}
}

func recommendedActions(concerns []state.SafetyConcern, pressure float64) []string {
	var actions []string
	for _, c := range concerns {
		switch c.Type {
		case state.ConcernLoopRisk:
			actions = append(actions, "force_summary")
		case state.ConcernResourcePressure:
			actions = append(actions, "reduce_scope")
		case state.ConcernEvidenceInsufficient:
			actions = append(actions, "gate_risk_score")
		case state.ConcernTimeoutRisk:
			actions = append(actions, "accelerate_to_summary")
		case state.ConcernConfidenceDrop:
			actions = append(actions, "re_validate_evidence")
		}
	}
	if pressure >= 0.9 {
		actions = append(actions, "terminate_investigation")
	}
	return actions
}
