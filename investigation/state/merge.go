package state

import "time"

// NodeUpdate is the partial update a node (other than start_investigation,
// which uses MergeExternalResult) returns to the executor. Its field set is
// closed by construction: there is no way to express a write to a protected
// field through it, which is the "typed record" idiom spec §9's design
// notes call for in place of a free-form mapping-of-anything.
type NodeUpdate struct {
	Phase *Phase

	NewMessages []Message

	DomainFindings   map[string]DomainFinding
	NewDomainsDone   []string
	ToolResults      map[string]interface{}
	NewToolsUsed     []string
	SnowflakeData    map[string]interface{}
	SnowflakeDone    *bool
	SnowflakeQuality *float64
	ToolsQuality     *float64
	DomainsQuality   *float64

	RiskScore            **float64 // nil = no change; non-nil dereferences to the new value (possibly nil for gating)
	RiskFactorsAdd       []string
	RiskIndicatorsAdd    []string
	TransactionScoresSet map[string]float64

	ConfidenceFactorsSet map[string]float64

	IncrementOrchestratorLoops     bool
	IncrementToolExecutionAttempts bool

	NewAuditEntries []AuditEntry
	NewErrors       []ErrorRecord

	EndTime         *time.Time
	TotalDurationMs *int64
}

// Merge applies update to s following §3's ownership rule: append-only for
// audit/confidence/override-adjacent collections, last-writer-wins for
// scalar progress fields, and monotonic (never-decreasing) counters.
func Merge(s InvestigationState, update NodeUpdate) InvestigationState {
	out := s.Clone()

	if update.Phase != nil {
		out.CurrentPhase = *update.Phase
	}

	out.Messages = append(out.Messages, update.NewMessages...)

	for domain, finding := range update.DomainFindings {
		out.DomainFindings[domain] = finding
	}
	for _, domain := range update.NewDomainsDone {
		out.DomainsCompleted[domain] = true
	}
	for tool, result := range update.ToolResults {
		out.ToolResults[tool] = result
	}
	for _, tool := range update.NewToolsUsed {
		out.ToolsUsed[tool] = true
	}
	for k, v := range update.SnowflakeData {
		out.SnowflakeData[k] = v
	}
	if update.SnowflakeDone != nil {
		out.SnowflakeCompleted = *update.SnowflakeDone
	}
	if update.SnowflakeQuality != nil {
		out.SnowflakeQuality = *update.SnowflakeQuality
	}
	if update.ToolsQuality != nil {
		out.ToolsQuality = *update.ToolsQuality
	}
	if update.DomainsQuality != nil {
		out.DomainsQuality = *update.DomainsQuality
	}

	if update.RiskScore != nil {
		out.RiskScore = *update.RiskScore
	}
	out.RiskFactors = append(out.RiskFactors, update.RiskFactorsAdd...)
	out.RiskIndicators = append(out.RiskIndicators, update.RiskIndicatorsAdd...)
	for k, v := range update.TransactionScoresSet {
		out.TransactionScores[k] = v
	}

	for k, v := range update.ConfidenceFactorsSet {
		out.ConfidenceFactors[k] = v
	}

	if update.IncrementOrchestratorLoops {
		out.OrchestratorLoops++
	}
	if update.IncrementToolExecutionAttempts {
		out.ToolExecutionAttempts++
	}

	out.DecisionAuditTrail = append(out.DecisionAuditTrail, update.NewAuditEntries...)
	out.Errors = append(out.Errors, update.NewErrors...)

	if update.EndTime != nil {
		out.EndTime = update.EndTime
	}
	if update.TotalDurationMs != nil {
		out.TotalDurationMs = *update.TotalDurationMs
	}

	return out
}
