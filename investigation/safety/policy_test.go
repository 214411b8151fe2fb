package safety_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/olorin-ai/hybrid-investigator/investigation/safety"
)

var _ = Describe("PolicyAuthorizer", func() {
	var authorizer *safety.PolicyAuthorizer

	BeforeEach(func() {
		var err error
		authorizer, err = safety.NewPolicyAuthorizer(context.Background())
		Expect(err).NotTo(HaveOccurred())
	})

	// BR-HIO-430: the Rego ladder mirrors §4.3's first-match-wins authorization.
	It("denies when a critical concern is present regardless of pressure", func() {
		Expect(authorizer.Authorize(context.Background(), "HIGH", 0.1, true)).To(BeFalse())
	})

	It("allows low pressure investigations at any confidence level", func() {
		Expect(authorizer.Authorize(context.Background(), "UNKNOWN", 0.2, false)).To(BeTrue())
	})

	It("allows HIGH confidence up to the 0.6 pressure threshold", func() {
		Expect(authorizer.Authorize(context.Background(), "HIGH", 0.55, false)).To(BeTrue())
		Expect(authorizer.Authorize(context.Background(), "HIGH", 0.65, false)).To(BeFalse())
	})

	It("denies MEDIUM confidence above its 0.8 pressure threshold", func() {
		Expect(authorizer.Authorize(context.Background(), "MEDIUM", 0.85, false)).To(BeFalse())
	})
})
