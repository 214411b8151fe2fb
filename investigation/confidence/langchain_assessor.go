package confidence

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

// LangChainAssessor is a ConfidenceAssessor over langchaingo's provider-
// agnostic llms.Model, so any chat model langchaingo supports (OpenAI,
// Ollama, a test double) can refine the pattern_recognition factor the same
// way AnthropicAssessor and BedrockAssessor do against their native SDKs.
// The three assessors share ComputeFactors/Score/fallbackDecision so a
// deployment can swap backends without changing how the decision is shaped.
type LangChainAssessor struct {
	model         llms.Model
	domainWeights map[string]float64
	logger        logrus.FieldLogger
	now           func() time.Time
}

// NewLangChainAssessor wraps model (for example langchaingo's
// anthropic.New or openai.New) as a ConfidenceAssessor.
func NewLangChainAssessor(model llms.Model, domainWeights map[string]float64, logger logrus.FieldLogger) *LangChainAssessor {
	return &LangChainAssessor{model: model, domainWeights: domainWeights, logger: logger, now: time.Now}
}

func (a *LangChainAssessor) Assess(ctx context.Context, s state.InvestigationState) (state.AIDecision, error) {
	now := a.now()
	factors := ComputeFactors(s, a.domainWeights)

	prompt := fmt.Sprintf("%s\n\nrisk_indicators=%v\ndomains_completed=%v\n", patternRecognitionPrompt, s.RiskIndicators, domainNames(s.DomainsCompleted))

	reply, err := llms.GenerateFromSinglePrompt(ctx, a.model, prompt)
	if err != nil {
		if subkind, recoverable := classifyProviderError(err); !recoverable {
			return state.AIDecision{}, apperrors.Wrap(err, apperrors.ErrorTypeProvider, "langchain assessment failed").WithProviderSubkind(subkind)
		}
		return fallbackDecision(err, now), nil
	}

	var parsed anthropicAssessment
	if err := json.Unmarshal([]byte(strings.TrimSpace(reply)), &parsed); err != nil {
		if a.logger != nil {
			a.logger.WithError(err).Warn("langchain assessor: non-JSON response, falling back to heuristic pattern score")
		}
		return Score(s, factors, now), nil
	}

	factors.PatternRecognition = clamp01(parsed.PatternRecognition)
	decision := Score(s, factors, now)
	decision.Reasoning = append(decision.Reasoning, parsed.Reasoning...)
	return decision, nil
}
