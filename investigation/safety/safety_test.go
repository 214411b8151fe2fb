package safety_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/olorin-ai/hybrid-investigator/internal/config"
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
			config.StrategyAdaptive: {Loops: 1.0, Tools: 1.0, Domains: 1.0, Time: 1.0},
		},
		Evidence: config.EvidenceConfig{MinimumFloor: 0.2},
	}
}

var _ = Describe("Manager.Validate", func() {
	// BR-HIO-301: safety-level derivation (§4.3).
	var fixedNow time.Time
	var mgr *safety.Manager

	BeforeEach(func() {
		fixedNow = time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
		mgr = safety.NewManager(config.ModeLive, testConfig())
		mgr.Now = func() time.Time { return fixedNow }
	})

	It("derives EMERGENCY once orchestrator_loops exceeds 20", func() {
		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-1", Now: fixedNow})
		s.OrchestratorLoops = 21
		Expect(mgr.Validate(s).SafetyLevel).To(Equal(safety.LevelEmergency))
	})

	It("derives STRICT when confidence level is LOW", func() {
		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-1", Now: fixedNow})
		s.AIConfidenceLevel = state.ConfidenceLow
		Expect(mgr.Validate(s).SafetyLevel).To(Equal(safety.LevelStrict))
	})

	It("derives PERMISSIVE when confidence is HIGH and there are no overrides", func() {
		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-1", Now: fixedNow})
		s.AIConfidenceLevel = state.ConfidenceHigh
		Expect(mgr.Validate(s).SafetyLevel).To(Equal(safety.LevelPermissive))
	})

	It("derives STANDARD otherwise", func() {
		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-1", Now: fixedNow})
		s.AIConfidenceLevel = state.ConfidenceMedium
		Expect(mgr.Validate(s).SafetyLevel).To(Equal(safety.LevelStandard))
	})

	It("decays an old override's contribution to EMERGENCY/STRICT thresholds", func() {
		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-1", Now: fixedNow})
		s.AIConfidenceLevel = state.ConfidenceMedium
		s.OrchestratorLoops = 20
		// Two overrides recorded 12 loops ago: each decays by floor(12/5)=2, leaving weight 0.
		s.SafetyOverrides = []state.SafetyOverride{
			{MetricsAtOverride: map[string]float64{"orchestrator_loops": 8}},
			{MetricsAtOverride: map[string]float64{"orchestrator_loops": 8}},
		}
		Expect(mgr.Validate(s).SafetyLevel).To(Equal(safety.LevelStandard))
	})

	It("scales base limits by the safety and strategy multipliers", func() {
		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-1", Now: fixedNow})
		s.AIConfidenceLevel = state.ConfidenceHigh
		s.InvestigationStrategy = state.StrategyAdaptive

		limits := mgr.Validate(s).CurrentLimits
		// PERMISSIVE (1.5) x ADAPTIVE (1.0) x base 25 = 37
		Expect(limits.MaxOrchestratorLoops).To(Equal(37))
	})

	It("holds resource pressure at 0 during the warm-up window", func() {
		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-1", Now: fixedNow})
		s.OrchestratorLoops = 2
		s.ToolExecutionAttempts = 14
		Expect(mgr.Validate(s).ResourcePressure).To(Equal(0.0))
	})

	It("raises a critical LOOP_RISK concern once loops reach the effective limit", func() {
		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-1", Now: fixedNow})
		s.AIConfidenceLevel = state.ConfidenceMedium
		s.InvestigationStrategy = state.StrategyAdaptive
		s.OrchestratorLoops = 25

		status := mgr.Validate(s)
		Expect(status.SafetyConcerns).To(ContainElement(HaveField("Type", state.ConcernLoopRisk)))
		var found bool
		for _, c := range status.SafetyConcerns {
			if c.Type == state.ConcernLoopRisk {
				Expect(c.Severity).To(Equal(state.SeverityCritical))
				found = true
			}
		}
		Expect(found).To(BeTrue())
		Expect(status.RequiresImmediateTermination).To(BeTrue())
	})

	It("raises EVIDENCE_INSUFFICIENT once past warm-up with evidence quality below the floor", func() {
		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-1", Now: fixedNow})
		s.OrchestratorLoops = 4
		s.AIDecisions = append(s.AIDecisions, state.AIDecision{EvidenceQuality: 0.05})

		status := mgr.Validate(s)
		Expect(status.SafetyConcerns).To(ContainElement(HaveField("Type", state.ConcernEvidenceInsufficient)))
	})

	It("raises CONFIDENCE_DROP when the last two samples drop by 0.3 or more", func() {
		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-1", Now: fixedNow})
		s.ConfidenceEvolution = []state.ConfidenceSample{
			{Confidence: 0.8},
			{Confidence: 0.4},
		}
		status := mgr.Validate(s)
		Expect(status.SafetyConcerns).To(ContainElement(HaveField("Type", state.ConcernConfidenceDrop)))
	})

	It("denies AI control whenever any concern is critical", func() {
		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-1", Now: fixedNow})
		s.AIConfidenceLevel = state.ConfidenceHigh
		s.InvestigationStrategy = state.StrategyAdaptive
		s.OrchestratorLoops = 37 // high enough to push safety level to EMERGENCY and trip LOOP_RISK

		Expect(mgr.Validate(s).AllowsAIControl).To(BeFalse())
	})

	It("allows AI control at low pressure regardless of confidence level", func() {
		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-1", Now: fixedNow})
		s.AIConfidenceLevel = state.ConfidenceLow
		s.OrchestratorLoops = 1

		Expect(mgr.Validate(s).AllowsAIControl).To(BeTrue())
	})

	It("requires immediate termination once the time limit is exceeded", func() {
		s := state.CreateInitial(state.InitialConfig{
			InvestigationID: "inv-1",
			Now:             fixedNow.Add(-31 * time.Minute),
		})
		Expect(mgr.Validate(s).RequiresImmediateTermination).To(BeTrue())
	})
})
