package confidence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/sirupsen/logrus"

	apperrors "github.com/olorin-ai/hybrid-investigator/internal/errors"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

// bedrockRequest is the Anthropic-on-Bedrock "messages" invocation body.
type bedrockRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Messages         []bedrockMessage   `json:"messages"`
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// BedrockAssessor is an alternate ConfidenceAssessor backend for teams
// routing the same model through Amazon Bedrock instead of calling
// Anthropic directly (SPEC_FULL §6 domain stack).
type BedrockAssessor struct {
	client        *bedrockruntime.Client
	modelID       string
	domainWeights map[string]float64
	logger        logrus.FieldLogger
	now           func() time.Time
}

// NewBedrockAssessor loads the default AWS config (region, credentials
// chain) the way every other AWS SDK v2 consumer in this module does.
func NewBedrockAssessor(ctx context.Context, modelID string, domainWeights map[string]float64, logger logrus.FieldLogger) (*BedrockAssessor, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeProvider, "failed to load AWS config for bedrock assessor")
	}
	return &BedrockAssessor{
		client:        bedrockruntime.NewFromConfig(cfg),
		modelID:       modelID,
		domainWeights: domainWeights,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (a *BedrockAssessor) Assess(ctx context.Context, s state.InvestigationState) (state.AIDecision, error) {
	now := a.now()
	factors := ComputeFactors(s, a.domainWeights)

	prompt := fmt.Sprintf("%s\n\nrisk_indicators=%v\ndomains_completed=%v\n", patternRecognitionPrompt, s.RiskIndicators, domainNames(s.DomainsCompleted))
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        512,
		Messages:         []bedrockMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return fallbackDecision(err, now), nil
	}

	out, err := a.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &a.modelID,
		ContentType: strPtr("application/json"),
		Body:        body,
	})
	if err != nil {
		if subkind, recoverable := classifyProviderError(err); !recoverable {
			return state.AIDecision{}, apperrors.Wrap(err, apperrors.ErrorTypeProvider, "bedrock assessment failed").WithProviderSubkind(subkind)
		}
		return fallbackDecision(err, now), nil
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil || len(resp.Content) == 0 {
		if a.logger != nil {
			a.logger.WithError(err).Warn("bedrock assessor: malformed response, falling back to heuristic pattern score")
		}
		return Score(s, factors, now), nil
	}

	var parsed anthropicAssessment
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Content[0].Text)), &parsed); err != nil {
		return Score(s, factors, now), nil
	}

	factors.PatternRecognition = clamp01(parsed.PatternRecognition)
	decision := Score(s, factors, now)
	decision.Reasoning = append(decision.Reasoning, parsed.Reasoning...)
	return decision, nil
}

func strPtr(s string) *string { return &s }
