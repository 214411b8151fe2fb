package executor_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	logrustest "github.com/sirupsen/logrus/hooks/test"

	"github.com/olorin-ai/hybrid-investigator/internal/config"
	apperrors "github.com/olorin-ai/hybrid-investigator/internal/errors"
	"github.com/olorin-ai/hybrid-investigator/investigation/executor"
	"github.com/olorin-ai/hybrid-investigator/investigation/outcome"
	"github.com/olorin-ai/hybrid-investigator/investigation/ports"
	"github.com/olorin-ai/hybrid-investigator/investigation/safety"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

func testConfig() *config.InvestigationConfig {
	return &config.InvestigationConfig{
		Mode: config.ModeLive,
		BaseLimits: map[config.Mode]config.DynamicLimits{
			config.ModeLive: {
				MaxOrchestratorLoops:           25,
				MaxToolExecutions:              15,
				MaxDomainAttempts:              10,
				MaxInvestigationTimeMinutes:    30,
				ConfidenceThresholdForOverride: 0.4,
				ResourcePressureThreshold:      0.7,
			},
		},
		SafetyMultipliers: map[config.SafetyLevel]config.Multipliers{
			config.SafetyLevelPermissive: {Loops: 1.5, Tools: 1.3, Domains: 1.2, Time: 1.4},
			config.SafetyLevelStandard:   {Loops: 1.0, Tools: 1.0, Domains: 1.0, Time: 1.0},
			config.SafetyLevelStrict:     {Loops: 0.7, Tools: 0.8, Domains: 0.8, Time: 0.8},
			config.SafetyLevelEmergency:  {Loops: 0.5, Tools: 0.5, Domains: 0.5, Time: 0.5},
		},
		StrategyMultipliers: map[config.Strategy]config.Multipliers{
			config.StrategyMinimal:  {Loops: 1.0, Tools: 1.0, Domains: 1.0, Time: 1.0},
			config.StrategyAdaptive: {Loops: 1.0, Tools: 1.0, Domains: 1.0, Time: 1.0},
		},
		Evidence: config.EvidenceConfig{MinimumFloor: 0.2, MinItemsPerDomain: 1},
	}
}

type fakeCheckpointer struct{ saves int }

func (f *fakeCheckpointer) Save(ctx context.Context, investigationID, node string, s state.InvestigationState) error {
	f.saves++
	return nil
}

func (f *fakeCheckpointer) LoadLatest(ctx context.Context, investigationID string) (string, state.InvestigationState, bool, error) {
	return "", state.InvestigationState{}, false, nil
}

type fakeAssessor struct {
	decision state.AIDecision
	err      error
}

func (f *fakeAssessor) Assess(ctx context.Context, snapshot state.InvestigationState) (state.AIDecision, error) {
	return f.decision, f.err
}

type fakeAgents struct{ finding state.DomainFinding }

func (f *fakeAgents) RunAgent(ctx context.Context, domain string, snapshot state.InvestigationState, deadline time.Time) (state.DomainFinding, error) {
	return f.finding, nil
}

type fakeSink struct {
	persisted bool
	outcome   interface{}
	scores    map[string]float64
}

func (f *fakeSink) Persist(ctx context.Context, investigationID string, outcome interface{}, rawState *state.InvestigationState) error {
	f.persisted = true
	f.outcome = outcome
	return nil
}

func (f *fakeSink) UpdateProgress(ctx context.Context, investigationID string, update ports.ProgressUpdate) error {
	return nil
}

func (f *fakeSink) StoreTransactionScores(ctx context.Context, investigationID string, scores map[string]float64) error {
	f.scores = scores
	return nil
}

func newExecutor(assessor ports.ConfidenceAssessor, agents ports.AgentRunner, sink ports.ResultSink, checkpointer ports.Checkpointer, fixedNow time.Time) *executor.Executor {
	logger, _ := logrustest.NewNullLogger()
	mgr := safety.NewManager(config.ModeLive, testConfig())
	mgr.Now = func() time.Time { return fixedNow }

	return &executor.Executor{
		Checkpointer: checkpointer,
		Agents:       agents,
		Assessor:     assessor,
		Sink:         sink,
		Safety:       mgr,
		Evidence: executor.EvidenceConfig{
			DomainWeights:     map[string]float64{"risk": 1.0},
			MinItemsPerDomain: 1,
			MinimumFloor:      0.2,
		},
		HardRecursionLimit: 25,
		ToolDeadline:        time.Minute,
		AgentDeadline:       time.Minute,
		Logger:              logger.WithField("test", true),
		Now:                 func() time.Time { return fixedNow },
	}
}

var _ = Describe("Executor.Run", func() {
	// BR-HIO-501: the executor drives start_investigation through complete
	// over the fixed node set, checkpointing after every node (§4.5).
	var fixedNow time.Time

	BeforeEach(func() {
		fixedNow = time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	})

	It("walks a MINIMAL-strategy investigation to a completed, persisted outcome", func() {
		assessor := &fakeAssessor{decision: state.AIDecision{
			Confidence:        0.9,
			ConfidenceLevel:   state.ConfidenceHigh,
			Strategy:          state.StrategyMinimal,
			RecommendedAction: "risk_agent",
			Timestamp:         fixedNow,
		}}
		agents := &fakeAgents{finding: state.DomainFinding{
			Status:     state.FindingOK,
			Confidence: 0.8,
			Evidence:   []string{"high transaction velocity"},
			RiskScore:  floatPtr(0.75),
		}}
		sink := &fakeSink{}
		checkpointer := &fakeCheckpointer{}

		e := newExecutor(assessor, agents, sink, checkpointer, fixedNow)
		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-1", EntityID: "user-1", Now: fixedNow})

		result, err := e.Run(context.Background(), s, map[string]interface{}{})
		Expect(err).NotTo(HaveOccurred())

		Expect(result.State.CurrentPhase).To(Equal(state.PhaseComplete))
		Expect(result.State.DomainsCompleted["risk"]).To(BeTrue())
		Expect(result.State.RiskScore).NotTo(BeNil())
		Expect(*result.State.RiskScore).To(BeNumerically("~", 0.75, 0.001))
		Expect(result.State.EndTime).NotTo(BeNil())
		Expect(result.State.TotalDurationMs).To(BeNumerically(">=", 0))

		Expect(sink.persisted).To(BeTrue())
		Expect(checkpointer.saves).To(BeNumerically(">", 0))
	})

	It("withholds the risk score and raises EVIDENCE_INSUFFICIENT when evidence_strength is below the floor", func() {
		assessor := &fakeAssessor{decision: state.AIDecision{
			Confidence:        0.9,
			ConfidenceLevel:   state.ConfidenceHigh,
			Strategy:          state.StrategyMinimal,
			RecommendedAction: "risk_agent",
			Timestamp:         fixedNow,
		}}
		agents := &fakeAgents{finding: state.DomainFinding{
			Status:     state.FindingOK,
			Confidence: 0.05, // below the 0.2 floor
			Evidence:   []string{"weak signal"},
			RiskScore:  floatPtr(0.5),
		}}
		sink := &fakeSink{}
		e := newExecutor(assessor, agents, sink, &fakeCheckpointer{}, fixedNow)
		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-2", EntityID: "user-2", Now: fixedNow})

		result, err := e.Run(context.Background(), s, map[string]interface{}{})
		Expect(err).NotTo(HaveOccurred())

		Expect(result.State.RiskScore).To(BeNil())
		found := false
		for _, c := range result.State.SafetyConcerns {
			if c.Type == state.ConcernEvidenceInsufficient {
				found = true
			}
		}
		Expect(found).To(BeTrue())
	})

	It("forces a transition to summary once the hard recursion limit is exceeded", func() {
		assessor := &fakeAssessor{decision: state.AIDecision{
			Confidence:        0.9,
			ConfidenceLevel:   state.ConfidenceHigh,
			Strategy:          state.StrategyAdaptive,
			RecommendedAction: "snowflake_analysis",
			Timestamp:         fixedNow,
		}}
		e := newExecutor(assessor, &fakeAgents{}, &fakeSink{}, &fakeCheckpointer{}, fixedNow)
		e.HardRecursionLimit = 1

		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-3", EntityID: "user-3", Now: fixedNow})

		result, err := e.Run(context.Background(), s, map[string]interface{}{})
		Expect(err).NotTo(HaveOccurred())

		Expect(result.State.OrchestratorLoops).To(Equal(2))
		found := false
		for _, c := range result.State.SafetyConcerns {
			if c.Type == state.ConcernLoopRisk && c.Severity == state.SeverityCritical {
				found = true
			}
		}
		Expect(found).To(BeTrue())
		Expect(result.Outcome.Status).To(Equal(outcome.StatusTerminatedBySafety))
	})

	It("propagates a provider error without synthesizing a fallback result", func() {
		providerErr := apperrors.NewProviderError(apperrors.ProviderSubkindAPIError, "assessor unavailable")
		assessor := &fakeAssessor{err: providerErr}
		e := newExecutor(assessor, &fakeAgents{}, &fakeSink{}, &fakeCheckpointer{}, fixedNow)

		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-4", EntityID: "user-4", Now: fixedNow})

		_, err := e.Run(context.Background(), s, map[string]interface{}{})
		Expect(err).To(HaveOccurred())
		Expect(apperrors.IsType(err, apperrors.ErrorTypeProvider)).To(BeTrue())
	})
})

func floatPtr(v float64) *float64 { return &v }
