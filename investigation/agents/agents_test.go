package agents_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tmc/langchaingo/llms"

	apperrors "github.com/olorin-ai/hybrid-investigator/internal/errors"
	"github.com/olorin-ai/hybrid-investigator/investigation/agents"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

type fakeModel struct {
	reply string
	err   error
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return m.reply, m.err
}

var _ = Describe("LLMAgentRunner", func() {
	// BR-HIO-303: run_agent(domain, snapshot, deadline) parses a domain
	// finding from the model's reply without mutating snapshot (§6.3).
	It("parses a complete finding from a valid JSON reply", func() {
		model := &fakeModel{reply: `{"risk_score": 0.8, "confidence": 0.7, "evidence": ["vpn detected"], "summary": "elevated network risk"}`}
		runner := agents.New(model, nil)

		snapshot := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-1", EntityID: "user-1"})
		finding, err := runner.RunAgent(context.Background(), "network", snapshot, time.Now().Add(time.Second))
		Expect(err).NotTo(HaveOccurred())
		Expect(finding.Status).To(Equal(state.FindingOK))
		Expect(*finding.RiskScore).To(Equal(0.8))
	})

	It("marks insufficient evidence when risk_score is null", func() {
		model := &fakeModel{reply: `{"risk_score": null, "confidence": 0.2, "evidence": [], "summary": "not enough signal"}`}
		runner := agents.New(model, nil)

		snapshot := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-2", EntityID: "user-2"})
		finding, err := runner.RunAgent(context.Background(), "device", snapshot, time.Now().Add(time.Second))
		Expect(err).NotTo(HaveOccurred())
		Expect(finding.Status).To(Equal(state.FindingInsufficientEvidence))
	})

	It("errors for an unconfigured domain", func() {
		runner := agents.New(&fakeModel{}, nil)
		snapshot := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-3", EntityID: "user-3"})
		_, err := runner.RunAgent(context.Background(), "unknown", snapshot, time.Now().Add(time.Second))
		Expect(err).To(HaveOccurred())
	})

	It("propagates an unrecoverable provider error instead of synthesizing a finding", func() {
		model := &fakeModel{err: errors.New("model not found: claude-x")}
		runner := agents.New(model, nil)

		snapshot := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-4", EntityID: "user-4"})
		_, err := runner.RunAgent(context.Background(), "risk", snapshot, time.Now().Add(time.Second))
		Expect(err).To(HaveOccurred())
		Expect(apperrors.IsType(err, apperrors.ErrorTypeProvider)).To(BeTrue())
	})
})
