package checkpoint_test

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	goredis "github.com/redis/go-redis/v9"

	"github.com/olorin-ai/hybrid-investigator/investigation/checkpoint"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

var _ = Describe("Checkpointer", func() {
	// BR-HIO-601: save(investigation_id, node, state) and the most recent
	// checkpoint survives a resume read (§6.2).
	var (
		server *miniredis.Miniredis
		client *goredis.Client
		cp     *checkpoint.Checkpointer
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		server, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())

		client = goredis.NewClient(&goredis.Options{Addr: server.Addr()})
		cp = checkpoint.NewWithClient(client, time.Hour)
		ctx = context.Background()
	})

	AfterEach(func() {
		client.Close()
		server.Close()
	})

	It("returns found=false when no checkpoint has ever been saved", func() {
		_, _, found, err := cp.LoadLatest(ctx, "inv-missing")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})

	It("round-trips the node and state of the most recent save", func() {
		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-1", EntityID: "user-1"})
		s.OrchestratorLoops = 3

		Expect(cp.Save(ctx, "inv-1", "hybrid_orchestrator", s)).To(Succeed())

		node, loaded, found, err := cp.LoadLatest(ctx, "inv-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(node).To(Equal("hybrid_orchestrator"))
		Expect(loaded.InvestigationID).To(Equal("inv-1"))
		Expect(loaded.OrchestratorLoops).To(Equal(3))
	})

	It("overwrites the prior checkpoint on each successive save", func() {
		s := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-2", EntityID: "user-2"})

		Expect(cp.Save(ctx, "inv-2", "start_investigation", s)).To(Succeed())
		s.OrchestratorLoops = 5
		Expect(cp.Save(ctx, "inv-2", "summary", s)).To(Succeed())

		node, loaded, found, err := cp.LoadLatest(ctx, "inv-2")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(node).To(Equal("summary"))
		Expect(loaded.OrchestratorLoops).To(Equal(5))
	})

	It("keeps two investigations' checkpoints independent", func() {
		s1 := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-a", EntityID: "user-a"})
		s2 := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-b", EntityID: "user-b"})

		Expect(cp.Save(ctx, "inv-a", "raw_data", s1)).To(Succeed())
		Expect(cp.Save(ctx, "inv-b", "tools", s2)).To(Succeed())

		nodeA, _, _, err := cp.LoadLatest(ctx, "inv-a")
		Expect(err).NotTo(HaveOccurred())
		Expect(nodeA).To(Equal("raw_data"))

		nodeB, _, _, err := cp.LoadLatest(ctx, "inv-b")
		Expect(err).NotTo(HaveOccurred())
		Expect(nodeB).To(Equal("tools"))
	})
})
