// Package agents implements ports.AgentRunner (§6.3): one domain agent per
// fraud-investigation domain (network, device, location, logs,
// authentication, risk), each an langchaingo llms.Model call against a
// domain-specific prompt whose reply is parsed into a state.DomainFinding.
// Grounded on investigation/confidence's AnthropicAssessor/LangChainAssessor
// shape (same model-call-then-parse-JSON structure, reused here for a
// DomainFinding instead of an AIDecision) since the teacher carries no
// per-domain agent precedent of its own.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"

	apperrors "github.com/olorin-ai/hybrid-investigator/internal/errors"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

// domainPrompts carries one analysis prompt per supported domain. Each asks
// the model to ground its risk_score/confidence in the snapshot's
// risk_indicators and tool_results, and to return JSON only.
var domainPrompts = map[string]string{
	"network":       "Assess network-level fraud risk (IP reputation, VPN/proxy use, ASN anomalies).",
	"device":        "Assess device-level fraud risk (device fingerprint reuse, emulator signals, jailbreak/root).",
	"location":      "Assess location-level fraud risk (impossible travel, geo-velocity, high-risk region).",
	"logs":          "Assess behavioral-log fraud risk (session anomalies, automation signatures).",
	"authentication": "Assess authentication fraud risk (credential stuffing signals, MFA bypass attempts).",
	"risk":          "Assess overall transaction risk (amount anomalies, merchant category risk, velocity).",
}

const findingResponseFormat = `Respond with JSON only:
{"risk_score": <0.0-1.0 or null>, "confidence": <0.0-1.0>, "evidence": ["<short phrase>", ...], "summary": "<one sentence>"}`

// findingReply is the structured shape every domain prompt asks for.
type findingReply struct {
	RiskScore  *float64 `json:"risk_score"`
	Confidence float64  `json:"confidence"`
	Evidence   []string `json:"evidence"`
	Summary    string   `json:"summary"`
}

// LLMAgentRunner is the ports.AgentRunner implementation backing all domain
// agent nodes (network_agent, device_agent, location_agent, logs_agent,
// authentication_agent, risk_agent).
type LLMAgentRunner struct {
	model  llms.Model
	logger logrus.FieldLogger
	now    func() time.Time
}

// New builds an LLMAgentRunner over any langchaingo llms.Model.
func New(model llms.Model, logger logrus.FieldLogger) *LLMAgentRunner {
	return &LLMAgentRunner{model: model, logger: logger, now: time.Now}
}

// RunAgent satisfies ports.AgentRunner. snapshot is read-only: the prompt is
// built from it but it is never mutated (§6.3's contract).
func (r *LLMAgentRunner) RunAgent(ctx context.Context, domain string, snapshot state.InvestigationState, deadline time.Time) (state.DomainFinding, error) {
	base, ok := domainPrompts[domain]
	if !ok {
		return state.DomainFinding{}, apperrors.New(apperrors.ErrorTypeAgent, fmt.Sprintf("no agent configured for domain %q", domain))
	}

	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	prompt := fmt.Sprintf("%s\n%s\n\nrisk_indicators=%v\ntool_results=%v\n", base, findingResponseFormat, snapshot.RiskIndicators, snapshot.ToolResults)

	reply, err := llms.GenerateFromSinglePrompt(ctx, r.model, prompt)
	if err != nil {
		if subkind, recoverable := classifyAgentError(err); !recoverable {
			return state.DomainFinding{}, apperrors.Wrap(err, apperrors.ErrorTypeProvider, fmt.Sprintf("%s agent failed", domain)).WithProviderSubkind(subkind)
		}
		return state.DomainFinding{}, apperrors.NewAgentError(domain, err)
	}

	var parsed findingReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(reply)), &parsed); err != nil {
		if r.logger != nil {
			r.logger.WithError(err).WithField("domain", domain).Warn("agent runner: non-JSON reply")
		}
		return state.DomainFinding{
			Status:  state.FindingInsufficientEvidence,
			Summary: "agent reply was not parseable",
		}, nil
	}

	status := state.FindingOK
	if parsed.RiskScore == nil {
		status = state.FindingInsufficientEvidence
	}
	return state.DomainFinding{
		RiskScore:  parsed.RiskScore,
		Confidence: clamp01(parsed.Confidence),
		Evidence:   parsed.Evidence,
		Summary:    parsed.Summary,
		Status:     status,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// classifyAgentError mirrors investigation/confidence's provider-error
// classification: unrecoverable provider failures (§7) propagate untouched
// instead of being absorbed into an ERROR-status finding.
func classifyAgentError(err error) (apperrors.ProviderSubkind, bool) {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "context length") || strings.Contains(msg, "maximum context"):
		return apperrors.ProviderSubkindContextLengthExceeded, false
	case strings.Contains(msg, "model") && strings.Contains(msg, "not found"):
		return apperrors.ProviderSubkindModelNotFound, false
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return apperrors.ProviderSubkindRateLimited, false
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return "", true
	default:
		return apperrors.ProviderSubkindAPIError, false
	}
}
