package safety

import (
	"github.com/olorin-ai/hybrid-investigator/internal/config"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

// dynamicLimits applies the safety-level and strategy multipliers of §6.1
// to the mode's base limits: current_limits = base_limits[mode] ×
// level_multiplier × strategy_multiplier, per axis.
func (m *Manager) dynamicLimits(level Level, strategy state.Strategy) state.DynamicLimits {
	base := m.Config.BaseLimits[m.Mode]
	safetyMult := m.Config.SafetyMultipliers[config.SafetyLevel(level)]
	strategyMult := m.Config.StrategyMultipliers[config.Strategy(strategy)]

	scale := func(v int, a, b float64) int {
		return int(float64(v) * nonZero(a) * nonZero(b))
	}

	return state.DynamicLimits{
		MaxOrchestratorLoops:           scale(base.MaxOrchestratorLoops, safetyMult.Loops, strategyMult.Loops),
		MaxToolExecutions:              scale(base.MaxToolExecutions, safetyMult.Tools, strategyMult.Tools),
		MaxDomainAttempts:              scale(base.MaxDomainAttempts, safetyMult.Domains, strategyMult.Domains),
		MaxInvestigationTimeMinutes:    scale(base.MaxInvestigationTimeMinutes, safetyMult.Time, strategyMult.Time),
		ConfidenceThresholdForOverride: base.ConfidenceThresholdForOverride,
		ResourcePressureThreshold:      base.ResourcePressureThreshold,
	}
}

// nonZero treats an unset (zero-value) multiplier as 1.0 so a caller who
// never populated the table for a given level/strategy combination still
// gets the base limit rather than a silently zeroed one.
func nonZero(v float64) float64 {
	if v == 0 {
		return 1.0
	}
	return v
}
