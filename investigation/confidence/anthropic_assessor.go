package confidence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	apperrors "github.com/olorin-ai/hybrid-investigator/internal/errors"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

const patternRecognitionPrompt = `You are scoring fraud-investigation evidence for pattern recognition only.
Given the risk indicators and domain findings below, respond with JSON only:
{"pattern_recognition": <0.0-1.0>, "reasoning": ["<short phrase>", ...]}`

// anthropicAssessment is the structured reply the prompt asks Claude for.
type anthropicAssessment struct {
	PatternRecognition float64  `json:"pattern_recognition"`
	Reasoning          []string `json:"reasoning"`
}

// AnthropicAssessor is a ConfidenceAssessor backed by Claude: it refines
// the pattern_recognition factor from risk indicators and domain findings,
// then folds it into the same weighted score the heuristic assessor uses.
type AnthropicAssessor struct {
	client        anthropic.Client
	model         anthropic.Model
	domainWeights map[string]float64
	logger        logrus.FieldLogger
	now           func() time.Time
}

// NewAnthropicAssessor builds an AnthropicAssessor for the given model
// using the ANTHROPIC_API_KEY environment convention the SDK resolves on
// its own; callers that need an explicit key should pass
// option.WithAPIKey via opts.
func NewAnthropicAssessor(model string, domainWeights map[string]float64, logger logrus.FieldLogger, opts ...option.RequestOption) *AnthropicAssessor {
	return &AnthropicAssessor{
		client:        anthropic.NewClient(opts...),
		model:         anthropic.Model(model),
		domainWeights: domainWeights,
		logger:        logger,
		now:           time.Now,
	}
}

func (a *AnthropicAssessor) Assess(ctx context.Context, s state.InvestigationState) (state.AIDecision, error) {
	now := a.now()
	factors := ComputeFactors(s, a.domainWeights)

	prompt := fmt.Sprintf("%s\n\nrisk_indicators=%v\ndomains_completed=%v\n", patternRecognitionPrompt, s.RiskIndicators, domainNames(s.DomainsCompleted))

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		if subkind, recoverable := classifyProviderError(err); !recoverable {
			return state.AIDecision{}, apperrors.Wrap(err, apperrors.ErrorTypeProvider, "anthropic assessment failed").WithProviderSubkind(subkind)
		}
		return fallbackDecision(err, now), nil
	}

	text := messageText(message)
	var parsed anthropicAssessment
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &parsed); err != nil {
		if a.logger != nil {
			a.logger.WithError(err).Warn("anthropic assessor: non-JSON response, falling back to heuristic pattern score")
		}
		return Score(s, factors, now), nil
	}

	factors.PatternRecognition = clamp01(parsed.PatternRecognition)
	decision := Score(s, factors, now)
	decision.Reasoning = append(decision.Reasoning, parsed.Reasoning...)
	return decision, nil
}

func messageText(msg *anthropic.Message) string {
	if msg == nil {
		return ""
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		sb.WriteString(block.Text)
	}
	return sb.String()
}

func domainNames(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
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

func fallbackDecision(err error, now time.Time) state.AIDecision {
	return state.AIDecision{
		Confidence:      0.5,
		ConfidenceLevel: state.ConfidenceUnknown,
		Strategy:        state.StrategyComprehensive,
		Reasoning:       []string{fmt.Sprintf("assessment_failed: %v", err)},
		Timestamp:       now,
	}
}

// classifyProviderError decides whether err represents a non-recoverable
// ProviderError (§7 — propagates, no fallback synthesis) or a transient
// failure the assessor can absorb into a fallback decision. Classification
// is string-based rather than type-based since the SDK's concrete error
// types are an implementation detail we don't want this package coupled to.
func classifyProviderError(err error) (apperrors.ProviderSubkind, bool) {
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
