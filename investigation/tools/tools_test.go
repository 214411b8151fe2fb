package tools_test

import (
	"context"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	logrustest "github.com/sirupsen/logrus/hooks/test"

	"github.com/olorin-ai/hybrid-investigator/investigation/state"
	"github.com/olorin-ai/hybrid-investigator/investigation/tools"
)

type geoLookupArgs struct {
	EntityID string `json:"entity_id"`
}

func newTestServer() *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "test-osint", Version: "0.0.0"}, nil)

	mcpsdk.AddTool(server, &mcpsdk.Tool{Name: "geo_lookup", Description: "geo risk lookup"},
		func(ctx context.Context, req *mcpsdk.CallToolRequest, args geoLookupArgs) (*mcpsdk.CallToolResult, any, error) {
			return &mcpsdk.CallToolResult{
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "clean"}},
			}, nil, nil
		})

	mcpsdk.AddTool(server, &mcpsdk.Tool{Name: "always_fails", Description: "always errors"},
		func(ctx context.Context, req *mcpsdk.CallToolRequest, args geoLookupArgs) (*mcpsdk.CallToolResult, any, error) {
			return nil, nil, context.DeadlineExceeded
		})

	return server
}

var _ = Describe("MCPToolInvoker", func() {
	// BR-HIO-404: invoke_tools fans requested tools out concurrently and
	// returns partial results when some fail (§6.4).
	var (
		invoker *tools.MCPToolInvoker
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger, _ := logrustest.NewNullLogger()
		invoker = tools.New(tools.Options{ClientName: "test"}, logger.WithField("test", true))

		clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
		server := newTestServer()
		go func() {
			_, _ = server.Connect(ctx, serverTransport, nil)
		}()

		Expect(invoker.Connect(ctx, clientTransport)).To(Succeed())
	})

	AfterEach(func() {
		_ = invoker.Close()
	})

	It("returns an empty result for no requested tools", func() {
		result, err := invoker.InvokeTools(ctx, nil, state.InvestigationState{}, time.Now().Add(time.Second))
		Expect(err).NotTo(HaveOccurred())
		Expect(result.ToolResults).To(BeEmpty())
	})

	It("invokes a registered tool and records its result", func() {
		snapshot := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-1", EntityID: "user-1"})
		result, err := invoker.InvokeTools(ctx, []string{"geo_lookup"}, snapshot, time.Now().Add(5*time.Second))
		Expect(err).NotTo(HaveOccurred())
		Expect(result.ToolsUsed).To(ContainElement("geo_lookup"))
		Expect(result.ToolResults).To(HaveKey("geo_lookup"))
	})

	It("keeps a failing tool from blocking the others", func() {
		snapshot := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-2", EntityID: "user-2"})
		result, err := invoker.InvokeTools(ctx, []string{"geo_lookup", "always_fails"}, snapshot, time.Now().Add(5*time.Second))
		Expect(err).NotTo(HaveOccurred())
		Expect(result.ToolsUsed).To(ConsistOf("geo_lookup"))
	})

	It("errors when every requested tool fails", func() {
		snapshot := state.CreateInitial(state.InitialConfig{InvestigationID: "inv-3", EntityID: "user-3"})
		_, err := invoker.InvokeTools(ctx, []string{"always_fails"}, snapshot, time.Now().Add(5*time.Second))
		Expect(err).To(HaveOccurred())
	})
})
