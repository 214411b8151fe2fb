// Package state implements the Investigation State (C1): a typed container
// for all per-investigation data, with the append-only/monotonic invariants
// and the protected-field rule of spec §3 and §4.1 enforced by its mutation
// operations rather than by convention.
package state

import "time"

// EntityType is the kind of subject an investigation is opened against.
type EntityType string

const (
	EntityIPAddress     EntityType = "ip_address"
	EntityUserID        EntityType = "user_id"
	EntityDeviceID      EntityType = "device_id"
	EntityTransactionID EntityType = "transaction_id"
)

// Phase is the investigation's coarse lifecycle position.
type Phase string

const (
	PhaseInitialization Phase = "initialization"
	PhaseRawData        Phase = "raw_data"
	PhaseInvestigation  Phase = "investigation"
	PhaseDomainAnalysis Phase = "domain_analysis"
	PhaseSummary        Phase = "summary"
	PhaseComplete       Phase = "complete"
	PhaseError          Phase = "error"
)

// MessageRole is who (or what) produced a Message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// MessageKind distinguishes ordinary conversational turns from tool-call bookkeeping.
type MessageKind string

const (
	KindSystem     MessageKind = "system"
	KindUser       MessageKind = "user"
	KindAssistant  MessageKind = "assistant"
	KindToolUse    MessageKind = "tool_use"
	KindToolResult MessageKind = "tool_result"
)

// Message is one entry of the investigation's running conversation transcript.
type Message struct {
	Role    MessageRole
	Content string
	Kind    MessageKind
	// ToolUseID correlates a tool_result message back to the tool_use
	// message it answers, so the sequence invariant can be checked per call.
	ToolUseID string
}

// FindingStatus is a domain agent's self-reported outcome quality.
type FindingStatus string

const (
	FindingOK                  FindingStatus = "OK"
	FindingInsufficientEvidence FindingStatus = "INSUFFICIENT_EVIDENCE"
	FindingError               FindingStatus = "ERROR"
)

// DomainFinding is a single domain agent's result, per spec §3.
type DomainFinding struct {
	RiskScore  *float64
	Confidence float64
	Evidence   []string
	Summary    string
	Status     FindingStatus
}

// ConfidenceLevel is the coarse bucket C2 maps a confidence score into.
type ConfidenceLevel string

const (
	ConfidenceHigh    ConfidenceLevel = "HIGH"
	ConfidenceMedium  ConfidenceLevel = "MEDIUM"
	ConfidenceLow     ConfidenceLevel = "LOW"
	ConfidenceUnknown ConfidenceLevel = "UNKNOWN"
)

// Strategy is the investigation's execution shape (§4.2).
type Strategy string

const (
	StrategyComprehensive Strategy = "COMPREHENSIVE"
	StrategyFocused       Strategy = "FOCUSED"
	StrategyAdaptive      Strategy = "ADAPTIVE"
	StrategyCriticalPath  Strategy = "CRITICAL_PATH"
	StrategyMinimal       Strategy = "MINIMAL"
)

// ResourceImpact is an AIDecision's self-estimated cost of following its recommendation.
type ResourceImpact string

const (
	ResourceImpactLow    ResourceImpact = "low"
	ResourceImpactMedium ResourceImpact = "medium"
	ResourceImpactHigh   ResourceImpact = "high"
)

// AIDecision is the assessor's structured output at a confidence checkpoint (§3).
type AIDecision struct {
	Confidence               float64
	ConfidenceLevel          ConfidenceLevel
	RecommendedAction        string
	Reasoning                []string
	EvidenceQuality          float64
	InvestigationCompleteness float64
	Strategy                 Strategy
	AgentsToActivate         []string
	ToolsRecommended         []string
	RequiredSafetyChecks     []string
	ResourceImpact           ResourceImpact
	EstimatedCompletionTime  *time.Duration
	Timestamp                time.Time
}

// ConcernType is the kind of safety concern recorded by a SafetyOverride or SafetyConcern.
type ConcernType string

const (
	ConcernLoopRisk             ConcernType = "LOOP_RISK"
	ConcernResourcePressure     ConcernType = "RESOURCE_PRESSURE"
	ConcernConfidenceDrop       ConcernType = "CONFIDENCE_DROP"
	ConcernEvidenceInsufficient ConcernType = "EVIDENCE_INSUFFICIENT"
	ConcernTimeoutRisk          ConcernType = "TIMEOUT_RISK"
)

// Severity grades a SafetyConcern.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SafetyConcern is a single raised concern, independent of whether it caused an override.
type SafetyConcern struct {
	Type      ConcernType
	Severity  Severity
	Message   string
	Timestamp time.Time
}

// SafetyOverride is a recorded deviation from the AI recommendation (§3).
type SafetyOverride struct {
	Timestamp         time.Time
	OriginalAIDecision string
	SafetyDecision    string
	ConcernType       ConcernType
	Reasoning         string
	MetricsAtOverride map[string]float64
}

// DynamicLimits are the per-run limits derived from base limits, safety
// level, and strategy (§4.3, §6.1).
type DynamicLimits struct {
	MaxOrchestratorLoops           int
	MaxToolExecutions              int
	MaxDomainAttempts              int
	MaxInvestigationTimeMinutes    int
	ConfidenceThresholdForOverride float64
	ResourcePressureThreshold      float64
}

// ConfidenceSample is one entry of the append-only confidence_evolution log.
type ConfidenceSample struct {
	Timestamp time.Time
	Trigger   string
	Confidence float64
	Delta     float64
}

// AuditEntry is one entry of the append-only decision_audit_trail.
type AuditEntry struct {
	Timestamp time.Time
	Node      string
	Action    string
	Detail    string
}

// RoutingRecord is one entry of the append-only routing_decisions log.
type RoutingRecord struct {
	Timestamp      time.Time
	FromNode       string
	NextNode       string
	Reasoning      string
	SafetyOverride bool
}

// ErrorRecord is one entry of the append-only errors log.
type ErrorRecord struct {
	Timestamp time.Time
	Node      string
	Message   string
}

// InvestigationState is the single in-memory record for one investigation,
// per spec §3. The executor (investigation/executor) owns it exclusively
// between node invocations. The operations in ops.go and merge.go (Merge,
// UpdateAIConfidence, AddSafetyOverride, AppendError, and the rest) return
// an updated copy; the executor's nodes also write fields directly on a
// Clone.
type InvestigationState struct {
	// Identity
	InvestigationID string
	EntityID        string
	EntityType      EntityType
	StartTime       time.Time
	EndTime         *time.Time
	TotalDurationMs int64

	// Progress
	CurrentPhase          Phase
	OrchestratorLoops     int
	DomainsCompleted      map[string]bool
	ToolsUsed             map[string]bool
	ToolExecutionAttempts int
	SnowflakeCompleted    bool

	// Messages
	Messages []Message

	// Evidence
	DomainFindings  map[string]DomainFinding
	ToolResults     map[string]interface{}
	SnowflakeData   map[string]interface{}
	SnowflakeQuality float64
	ToolsQuality     float64
	DomainsQuality   float64

	// Risk
	RiskScore         *float64
	ConfidenceScore   float64
	EvidenceStrength  float64
	RiskFactors       []string
	RiskIndicators    []string
	TransactionScores map[string]float64

	// AI tracking
	AIConfidence          float64
	AIConfidenceLevel     ConfidenceLevel
	AIDecisions           []AIDecision
	ConfidenceEvolution   []ConfidenceSample
	InvestigationStrategy Strategy
	PlannedAgentSequence  []string
	ConfidenceFactors     map[string]float64

	// Safety
	DynamicLimits     DynamicLimits
	SafetyOverrides   []SafetyOverride
	SafetyConcerns    []SafetyConcern
	AIOverrideReasons []string

	// Audit
	DecisionAuditTrail  []AuditEntry
	RoutingDecisions    []RoutingRecord
	RoutingExplanations []string
	Errors              []ErrorRecord

	// Config
	MaxTools          int
	ToolCount         int
	DateRangeDays     int
	ParallelExecution bool
	CustomUserPrompt  *string
}

// KnownConfidenceFactors are the keys create_initial pre-zeros, resolving
// the Open Question of spec §9 about reads of an uninitialized confidence_factors map.
var KnownConfidenceFactors = []string{
	"snowflake_quality",
	"tools_quality",
	"domains_quality",
	"pattern_recognition",
	"investigation_velocity",
	"data_completeness",
	"network_analysis",
	"device_analysis",
	"location_analysis",
	"logs_analysis",
	"authentication_analysis",
	"risk_analysis",
}

// ProtectedFields is the set of InvestigationState fields that only
// UpdateAIConfidence / AddSafetyOverride / the executor's own bookkeeping
// may write. MergeExternalResult rejects any of these keys arriving in an
// untyped external payload (§4.5's start_investigation contract).
var ProtectedFields = map[string]bool{
	"decision_audit_trail":   true,
	"ai_confidence":          true,
	"ai_confidence_level":    true,
	"investigation_strategy": true,
	"safety_overrides":       true,
	"dynamic_limits":         true,
	"performance_metrics":    true,
	"hybrid_system_version":  true,
}
