package errors

import (
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// BR-HIO-070: investigation error kinds extend the teacher's AppError enum
// without disturbing the original mapping (covered by errors_test.go).
var _ = Describe("Investigation Error Kinds", func() {
	It("maps provider errors to a bad-gateway status and keeps the subkind", func() {
		err := NewProviderError(ProviderSubkindContextLengthExceeded, "context window exceeded")

		Expect(err.Type).To(Equal(ErrorTypeProvider))
		Expect(err.StatusCode).To(Equal(http.StatusBadGateway))
		Expect(err.ProviderSubkind).To(Equal(ProviderSubkindContextLengthExceeded))
		Expect(LogFields(err)).To(HaveKeyWithValue("provider_subkind", "context_length_exceeded"))
	})

	It("wraps a tool failure with the tool name in the message", func() {
		cause := errors.New("dial tcp: timeout")
		err := NewToolError("osint_aggregator", cause)

		Expect(err.Type).To(Equal(ErrorTypeTool))
		Expect(err.Message).To(ContainSubstring("osint_aggregator"))
		Expect(err.Unwrap()).To(Equal(cause))
	})

	It("wraps an agent failure with the domain name", func() {
		err := NewAgentError("network", errors.New("boom"))
		Expect(err.Type).To(Equal(ErrorTypeAgent))
		Expect(err.Message).To(ContainSubstring("network"))
	})

	It("builds a safety violation carrying the concern and reasoning", func() {
		err := NewSafetyViolation("LOOP_RISK", "orchestrator_loops exceeded effective limit")
		Expect(err.Type).To(Equal(ErrorTypeSafetyViolation))
		Expect(err.Message).To(ContainSubstring("LOOP_RISK"))
	})

	It("names the protected field in a state-merge error", func() {
		err := NewStateMergeError("dynamic_limits")
		Expect(err.Message).To(ContainSubstring("dynamic_limits"))
		Expect(err.Type).To(Equal(ErrorTypeStateMerge))
	})

	It("wraps a checkpoint failure with the investigation id", func() {
		err := NewCheckpointError("inv-123", errors.New("redis: connection refused"))
		Expect(err.Type).To(Equal(ErrorTypeCheckpoint))
		Expect(err.Message).To(ContainSubstring("inv-123"))
		Expect(err.Cause).ToNot(BeNil())
	})
})
