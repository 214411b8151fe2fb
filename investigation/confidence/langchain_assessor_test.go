package confidence_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tmc/langchaingo/llms"

	"github.com/olorin-ai/hybrid-investigator/investigation/confidence"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

// fakeLangChainModel is a minimal llms.Model double returning a canned
// completion, so LangChainAssessor can be exercised without a live provider.
type fakeLangChainModel struct {
	reply string
	err   error
}

func (m *fakeLangChainModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.reply}},
	}, nil
}

func (m *fakeLangChainModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return m.reply, m.err
}

var _ = Describe("LangChainAssessor", func() {
	// BR-HIO-207: a langchaingo-backed assessor folds its pattern_recognition
	// reply into the same weighted score the heuristic assessor computes.
	It("folds a valid JSON reply into the pattern_recognition factor", func() {
		model := &fakeLangChainModel{reply: `{"pattern_recognition": 0.9, "reasoning": ["velocity spike corroborated"]}`}
		assessor := confidence.NewLangChainAssessor(model, map[string]float64{"network": 1.0}, nil)

		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-1", EntityID: "user-1"})
		decision, err := assessor.Assess(context.Background(), s)
		Expect(err).NotTo(HaveOccurred())
		Expect(decision.Reasoning).To(ContainElement("velocity spike corroborated"))
	})

	It("falls back to the heuristic score on a non-JSON reply", func() {
		model := &fakeLangChainModel{reply: "not json"}
		assessor := confidence.NewLangChainAssessor(model, map[string]float64{"network": 1.0}, nil)

		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-2", EntityID: "user-2"})
		_, err := assessor.Assess(context.Background(), s)
		Expect(err).NotTo(HaveOccurred())
	})
})
