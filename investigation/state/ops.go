package state

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// InitialConfig seeds create_initial (§4.1).
type InitialConfig struct {
	InvestigationID   string
	EntityID          string
	EntityType        EntityType
	Limits            DynamicLimits
	MaxTools          int
	ToolCount         int
	DateRangeDays     int
	ParallelExecution bool
	CustomUserPrompt  *string
	Now               time.Time
}

// CreateInitial builds the seed InvestigationState per §4.1: strategy
// ADAPTIVE, ai_confidence 0.5, confidence_level UNKNOWN, one seeding
// AIDecision recommending snowflake_analysis, dynamic_limits from the mode
// table, empty evidence, confidence_factors pre-zeroed (§9 open question),
// and one audit entry.
func CreateInitial(cfg InitialConfig) InvestigationState {
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}

	factors := make(map[string]float64, len(KnownConfidenceFactors))
	for _, k := range KnownConfidenceFactors {
		factors[k] = 0.0
	}

	seed := AIDecision{
		Confidence:        0.5,
		ConfidenceLevel:   ConfidenceUnknown,
		RecommendedAction: "snowflake_analysis",
		Reasoning:         []string{"initial_seed: no evidence collected yet"},
		Strategy:          StrategyAdaptive,
		ResourceImpact:    ResourceImpactLow,
		Timestamp:         now,
	}

	return InvestigationState{
		InvestigationID: cfg.InvestigationID,
		EntityID:        cfg.EntityID,
		EntityType:      cfg.EntityType,
		StartTime:       now,

		CurrentPhase:     PhaseInitialization,
		DomainsCompleted: map[string]bool{},
		ToolsUsed:        map[string]bool{},

		DomainFindings: map[string]DomainFinding{},
		ToolResults:    map[string]interface{}{},
		SnowflakeData:  map[string]interface{}{},

		TransactionScores: map[string]float64{},

		AIConfidence:          0.5,
		AIConfidenceLevel:     ConfidenceUnknown,
		AIDecisions:           []AIDecision{seed},
		ConfidenceEvolution:   nil,
		InvestigationStrategy: StrategyAdaptive,
		ConfidenceFactors:     factors,

		DynamicLimits: cfg.Limits,

		DecisionAuditTrail: []AuditEntry{{
			Timestamp: now,
			Node:      "start_investigation",
			Action:    "create_initial",
			Detail:    fmt.Sprintf("seeded investigation %s for entity %s (%s)", cfg.InvestigationID, cfg.EntityID, cfg.EntityType),
		}},

		MaxTools:          cfg.MaxTools,
		ToolCount:         cfg.ToolCount,
		DateRangeDays:     cfg.DateRangeDays,
		ParallelExecution: cfg.ParallelExecution,
		CustomUserPrompt:  cfg.CustomUserPrompt,
	}
}

// Clone returns a deep-enough copy of s so that a node function can hold a
// logical snapshot without observing or causing mutation races with the
// executor's own copy (§4.5 "nodes receive a logical snapshot").
func (s InvestigationState) Clone() InvestigationState {
	out := s

	out.DomainsCompleted = cloneBoolSet(s.DomainsCompleted)
	out.ToolsUsed = cloneBoolSet(s.ToolsUsed)

	out.Messages = append([]Message(nil), s.Messages...)

	out.DomainFindings = make(map[string]DomainFinding, len(s.DomainFindings))
	for k, v := range s.DomainFindings {
		fc := v
		fc.Evidence = append([]string(nil), v.Evidence...)
		out.DomainFindings[k] = fc
	}
	out.ToolResults = cloneAnyMap(s.ToolResults)
	out.SnowflakeData = cloneAnyMap(s.SnowflakeData)

	out.RiskFactors = append([]string(nil), s.RiskFactors...)
	out.RiskIndicators = append([]string(nil), s.RiskIndicators...)
	out.TransactionScores = make(map[string]float64, len(s.TransactionScores))
	for k, v := range s.TransactionScores {
		out.TransactionScores[k] = v
	}

	out.AIDecisions = append([]AIDecision(nil), s.AIDecisions...)
	out.ConfidenceEvolution = append([]ConfidenceSample(nil), s.ConfidenceEvolution...)
	out.PlannedAgentSequence = append([]string(nil), s.PlannedAgentSequence...)
	out.ConfidenceFactors = make(map[string]float64, len(s.ConfidenceFactors))
	for k, v := range s.ConfidenceFactors {
		out.ConfidenceFactors[k] = v
	}

	out.SafetyOverrides = append([]SafetyOverride(nil), s.SafetyOverrides...)
	out.SafetyConcerns = append([]SafetyConcern(nil), s.SafetyConcerns...)
	out.AIOverrideReasons = append([]string(nil), s.AIOverrideReasons...)

	out.DecisionAuditTrail = append([]AuditEntry(nil), s.DecisionAuditTrail...)
	out.RoutingDecisions = append([]RoutingRecord(nil), s.RoutingDecisions...)
	out.RoutingExplanations = append([]string(nil), s.RoutingExplanations...)
	out.Errors = append([]ErrorRecord(nil), s.Errors...)

	if s.RiskScore != nil {
		v := *s.RiskScore
		out.RiskScore = &v
	}
	if s.EndTime != nil {
		v := *s.EndTime
		out.EndTime = &v
	}
	if s.CustomUserPrompt != nil {
		v := *s.CustomUserPrompt
		out.CustomUserPrompt = &v
	}

	return out
}

func cloneBoolSet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneAnyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// UpdateAIConfidence appends decision to ai_decisions, appends a delta entry
// to confidence_evolution, appends an audit entry, and sets the scalar
// confidence fields (§4.1). This is the only sanctioned way to change
// ai_confidence / ai_confidence_level / investigation_strategy.
func UpdateAIConfidence(s InvestigationState, decision AIDecision, trigger string) InvestigationState {
	out := s.Clone()

	delta := decision.Confidence - out.AIConfidence
	out.AIConfidence = decision.Confidence
	out.AIConfidenceLevel = decision.ConfidenceLevel
	out.InvestigationStrategy = decision.Strategy
	if len(decision.AgentsToActivate) > 0 {
		out.PlannedAgentSequence = append([]string(nil), decision.AgentsToActivate...)
	}

	out.AIDecisions = append(out.AIDecisions, decision)
	out.ConfidenceEvolution = append(out.ConfidenceEvolution, ConfidenceSample{
		Timestamp:  decision.Timestamp,
		Trigger:    trigger,
		Confidence: decision.Confidence,
		Delta:      delta,
	})
	out.DecisionAuditTrail = append(out.DecisionAuditTrail, AuditEntry{
		Timestamp: decision.Timestamp,
		Node:      "ai_confidence_assessment",
		Action:    "update_ai_confidence",
		Detail:    fmt.Sprintf("trigger=%s confidence=%.3f level=%s strategy=%s", trigger, decision.Confidence, decision.ConfidenceLevel, decision.Strategy),
	})

	return out
}

// AddSafetyOverride appends a SafetyOverride, an override reason, and an
// audit entry (§4.1). This is the only sanctioned way to grow safety_overrides.
func AddSafetyOverride(s InvestigationState, original, chosen string, concern ConcernType, reasoning string, metrics map[string]float64, now time.Time) InvestigationState {
	out := s.Clone()

	override := SafetyOverride{
		Timestamp:          now,
		OriginalAIDecision:  original,
		SafetyDecision:      chosen,
		ConcernType:         concern,
		Reasoning:           reasoning,
		MetricsAtOverride:   metrics,
	}
	out.SafetyOverrides = append(out.SafetyOverrides, override)
	out.AIOverrideReasons = append(out.AIOverrideReasons, reasoning)
	out.DecisionAuditTrail = append(out.DecisionAuditTrail, AuditEntry{
		Timestamp: now,
		Node:      "safety_validation",
		Action:    "safety_override",
		Detail:    fmt.Sprintf("concern=%s original=%q chosen=%q reason=%s", concern, original, chosen, reasoning),
	})

	return out
}

// MergeExternalResult merges an untyped payload (as produced by an external
// initialization collaborator) into s, dropping and logging any key in
// ProtectedFields (§4.5's start_investigation contract, §7's StateMergeError).
// Only a small set of known, safe keys are actually applied; everything else
// (including anything protected) is ignored, matching the node's narrow contract.
func MergeExternalResult(s InvestigationState, payload map[string]interface{}, logger logrus.FieldLogger) InvestigationState {
	out := s.Clone()

	for key, value := range payload {
		if ProtectedFields[key] {
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"investigation_id": out.InvestigationID,
					"field":            key,
				}).Warn("start_investigation: dropped write to protected field")
			}
			out.Errors = append(out.Errors, ErrorRecord{
				Timestamp: time.Now(),
				Node:      "start_investigation",
				Message:   fmt.Sprintf("state_merge_error: rejected protected field %q from external init result", key),
			})
			continue
		}

		switch key {
		case "snowflake_data":
			if m, ok := value.(map[string]interface{}); ok {
				out.SnowflakeData = m
			}
		case "snowflake_completed":
			if b, ok := value.(bool); ok {
				out.SnowflakeCompleted = b
			}
		case "snowflake_quality":
			if f, ok := toFloat(value); ok {
				out.SnowflakeQuality = f
			}
		case "risk_indicators":
			if ss, ok := toStringSlice(value); ok {
				out.RiskIndicators = append(out.RiskIndicators, ss...)
			}
		case "custom_user_prompt":
			if sv, ok := value.(string); ok {
				out.CustomUserPrompt = &sv
			}
		}
	}

	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func toStringSlice(v interface{}) ([]string, bool) {
	raw, ok := v.([]interface{})
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss, true
		}
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// AppendAuditEntry is a small convenience used by nodes that only need to
// add one audit record without otherwise touching state.
func AppendAuditEntry(s InvestigationState, node, action, detail string, now time.Time) InvestigationState {
	out := s.Clone()
	out.DecisionAuditTrail = append(out.DecisionAuditTrail, AuditEntry{
		Timestamp: now,
		Node:      node,
		Action:    action,
		Detail:    detail,
	})
	return out
}

// AppendError records a non-fatal node error (§7: tool/agent/timeout errors
// are caught at the node boundary and appended rather than raised).
func AppendError(s InvestigationState, node, message string, now time.Time) InvestigationState {
	out := s.Clone()
	out.Errors = append(out.Errors, ErrorRecord{Timestamp: now, Node: node, Message: message})
	return out
}

// AppendRoutingDecision records a router decision to the append-only
// routing_decisions/routing_explanations logs (§3, §4.4).
func AppendRoutingDecision(s InvestigationState, record RoutingRecord) InvestigationState {
	out := s.Clone()
	out.RoutingDecisions = append(out.RoutingDecisions, record)
	out.RoutingExplanations = append(out.RoutingExplanations, record.Reasoning)
	return out
}
