package metrics_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/olorin-ai/hybrid-investigator/investigation/metrics"
)

var _ = Describe("Metrics", func() {
	// BR-HIO-901: every series registers cleanly and reports label-scoped values.
	var (
		registry *prometheus.Registry
		m        *metrics.Metrics
	)

	BeforeEach(func() {
		registry = prometheus.NewRegistry()
		m = metrics.New(registry)
	})

	It("increments orchestrator_loops by status label", func() {
		m.OrchestratorLoops.WithLabelValues("completed").Inc()
		Expect(testutil.ToFloat64(m.OrchestratorLoops.WithLabelValues("completed"))).To(Equal(1.0))
	})

	It("maps breaker state strings onto the numeric gauge encoding", func() {
		m.ObserveBreakerState("error_breaker", "open")
		Expect(testutil.ToFloat64(m.BreakerState.WithLabelValues("error_breaker"))).To(Equal(2.0))

		m.ObserveBreakerState("error_breaker", "closed")
		Expect(testutil.ToFloat64(m.BreakerState.WithLabelValues("error_breaker"))).To(Equal(0.0))
	})

	It("sets resource pressure as a plain gauge", func() {
		m.ResourcePressure.Set(0.62)
		Expect(testutil.ToFloat64(m.ResourcePressure)).To(Equal(0.62))
	})
})
