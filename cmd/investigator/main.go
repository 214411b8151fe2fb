// Command investigator is the thin process entry point for the Hybrid
// Investigation Orchestrator: it loads configuration, wires C1-C9 and their
// ports together, and exposes the operational HTTP surface (status,
// Prometheus, and a websocket monitor stream) per SPEC_FULL §6. The teacher
// repo carries no production cmd/* source of its own (every cmd/* directory
// in the retrieval holds only *_test.go files), so the process-level wiring
// below is grounded on sibling pack repos instead: zap/zapr bootstrap and
// chi/cors routing follow jordigilh-kubernaut's test/integration/gateway
// helpers (StartTestGatewayWithOptions), and the MCP server/transport shape
// follows tareqmamari-cloud-logs-mcp's internal/server construction.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-logr/zapr"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	lcanthropic "github.com/tmc/langchaingo/llms/anthropic"
	"go.uber.org/zap"

	"github.com/olorin-ai/hybrid-investigator/internal/config"
	"github.com/olorin-ai/hybrid-investigator/investigation/agents"
	"github.com/olorin-ai/hybrid-investigator/investigation/checkpoint"
	"github.com/olorin-ai/hybrid-investigator/investigation/confidence"
	"github.com/olorin-ai/hybrid-investigator/investigation/executor"
	"github.com/olorin-ai/hybrid-investigator/investigation/flags"
	"github.com/olorin-ai/hybrid-investigator/investigation/guard"
	"github.com/olorin-ai/hybrid-investigator/investigation/metrics"
	"github.com/olorin-ai/hybrid-investigator/investigation/ports"
	"github.com/olorin-ai/hybrid-investigator/investigation/safety"
	"github.com/olorin-ai/hybrid-investigator/investigation/sink"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
	"github.com/olorin-ai/hybrid-investigator/investigation/tools"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the orchestrator config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	zapLogger, logger := buildLoggers(cfg.Logging)
	defer zapLogger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metricsInstance := metrics.New(registry)

	checkpointer, err := buildCheckpointer(cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("connect redis checkpointer")
	}
	defer checkpointer.Close() //nolint:errcheck

	db, resultSink, err := buildSink(cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("connect database sink")
	}
	defer db.Close() //nolint:errcheck

	assessor, err := buildAssessor(ctx, cfg.Assessor, logger)
	if err != nil {
		logger.WithError(err).Fatal("build confidence assessor")
	}

	agentRunner, err := buildAgentRunner(cfg.Assessor, logger)
	if err != nil {
		logger.WithError(err).Fatal("build agent runner")
	}

	toolInvoker, err := buildToolInvoker(ctx, cfg.MCP, logger)
	if err != nil {
		logger.WithError(err).Fatal("connect MCP tool server")
	}
	defer toolInvoker.Close() //nolint:errcheck

	safetyManager := safety.NewManager(cfg.Investigation.Mode, &cfg.Investigation)
	if policy, perr := safety.NewPolicyAuthorizer(ctx); perr != nil {
		logger.WithError(perr).Warn("compile authorization policy, falling back to built-in ladder")
	} else {
		safetyManager.Policy = policy
	}

	g := guard.New(cfg.Investigation.Mode, guardLimits(cfg.Investigation), func(state guard.EmergencyState) error {
		logger.WithField("reason", state.Reason).Error("emergency stop triggered")
		return nil
	})
	g.RegisterEmergencyCallback(func(state guard.EmergencyState) {
		for breaker, bs := range state.BreakerStates {
			metricsInstance.ObserveBreakerState(breaker, breakerStateName(bs))
		}
	})

	flagTable := flags.New(nil, logger)
	selector := flags.NewGraphSelector(flagTable, &flags.RollbackTriggers{})

	orch := &executor.Executor{
		Checkpointer: checkpointer,
		Agents:       agentRunner,
		Tools:        toolInvoker,
		Assessor:     assessor,
		Sink:         resultSink,
		Safety:       safetyManager,
		Evidence: executor.EvidenceConfig{
			DomainWeights:     cfg.Investigation.Evidence.DomainWeights,
			MinItemsPerDomain: cfg.Investigation.Evidence.MinItemsPerDomain,
			MinimumFloor:      cfg.Investigation.Evidence.MinimumFloor,
		},
		Metrics: metricsInstance,
		Logger:  logger,
	}

	listener, err := sink.NewListener(cfg.Database.DSN, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.WithError(err).Warn("pg_notify listener event")
		}
	})
	if err != nil {
		logger.WithError(err).Fatal("start pg_notify listener")
	}
	defer listener.Close() //nolint:errcheck
	if err := listener.Listen("investigation_progress"); err != nil {
		logger.WithError(err).Fatal("listen on investigation_progress channel")
	}

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.Get("/ws/monitor", monitorHandler(listener, logger))
	router.Post("/investigations", startInvestigationHandler(orch, g, selector, cfg, logger))

	srv := &http.Server{
		Addr:    cfg.Server.WebhookPort,
		Handler: router,
	}

	go func() {
		logger.WithField("addr", cfg.Server.WebhookPort).Info("status server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("status server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("status server shutdown")
	}
}

func buildLoggers(cfg config.LoggingConfig) (*zap.Logger, logrus.FieldLogger) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.OutputPaths = []string{"stdout"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}
	zapLogger, _ := zapConfig.Build()
	_ = zapr.NewLogger(zapLogger) // bridged for the otel/tracing-shaped parts of the stack

	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(lvl)
	}
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return zapLogger, logger
}

func buildCheckpointer(cfg config.RedisConfig) (*checkpoint.Checkpointer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return checkpoint.NewWithClient(client, 24*time.Hour), nil
}

func buildSink(cfg config.DatabaseConfig, logger logrus.FieldLogger) (*sqlx.DB, *sink.Sink, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, sink.New(db, logger), nil
}

func buildAssessor(ctx context.Context, cfg config.AssessorConfig, logger logrus.FieldLogger) (ports.ConfidenceAssessor, error) {
	switch cfg.Provider {
	case "anthropic":
		return confidence.NewAnthropicAssessor(cfg.Model, nil, logger), nil
	case "bedrock":
		return confidence.NewBedrockAssessor(ctx, cfg.Model, nil, logger)
	case "heuristic":
		return confidence.NewHeuristicAssessor(nil), nil
	default:
		return nil, fmt.Errorf("unknown assessor provider %q", cfg.Provider)
	}
}

// buildAgentRunner constructs the shared LangChain-backed domain agent
// runner. Domain agents always go through langchaingo (§6's DOMAIN STACK),
// independent of which provider the confidence assessor is configured with.
func buildAgentRunner(cfg config.AssessorConfig, logger logrus.FieldLogger) (*agents.LLMAgentRunner, error) {
	model, err := lcanthropic.New(lcanthropic.WithModel(cfg.Model))
	if err != nil {
		return nil, fmt.Errorf("build langchain model: %w", err)
	}
	return agents.New(model, logger), nil
}

func buildToolInvoker(ctx context.Context, cfg config.MCPConfig, logger logrus.FieldLogger) (*tools.MCPToolInvoker, error) {
	invoker := tools.New(tools.Options{ClientName: "hybrid-investigator"}, logger)
	if cfg.Command == "" {
		return invoker, nil
	}
	cmd := exec.Command(cfg.Command, cfg.Args...)
	transport := &mcpsdk.CommandTransport{Command: cmd}
	if err := invoker.Connect(ctx, transport); err != nil {
		return nil, fmt.Errorf("connect MCP server: %w", err)
	}
	return invoker, nil
}

func guardLimits(cfg config.InvestigationConfig) guard.Limits {
	return guard.Limits{
		PerInvestigationCostUSD: 5.0,
		PerSessionCostUSD:       50.0,
		PerInvestigationTime:    time.Duration(cfg.BaseLimits[cfg.Mode].MaxInvestigationTimeMinutes) * time.Minute,
		PerSessionTime:          2 * time.Hour,
		ConsecutiveFailureLimit: 5,
		ErrorRateThreshold:      0.5,
		ErrorRateWindow:         10 * time.Minute,
	}
}

func breakerStateName(s interface{ String() string }) string {
	return s.String()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// monitorHandler streams pg_notify investigation-progress events to a
// websocket client for the operational monitor UI (SPEC_FULL §6).
func monitorHandler(listener *pq.Listener, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WithError(err).Warn("websocket upgrade failed")
			return
		}
		defer conn.Close() //nolint:errcheck

		for notification := range listener.Notify {
			if notification == nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(notification.Extra)); err != nil {
				logger.WithError(err).Warn("websocket write failed")
				return
			}
		}
	}
}

// startInvestigationRequest is the POST /investigations request body: the
// minimal identity an investigation is seeded from (§4.1 create_initial).
type startInvestigationRequest struct {
	EntityID         string `json:"entity_id"`
	EntityType       string `json:"entity_type"`
	CustomUserPrompt string `json:"custom_user_prompt,omitempty"`
}

// startInvestigationHandler admits a new investigation past the guard's
// breakers, selects a graph (currently informational; the executor always
// runs the hybrid node set), seeds state via CreateInitial, and drives it
// to completion in the background so the HTTP response isn't held open for
// the investigation's full duration.
func startInvestigationHandler(orch *executor.Executor, g *guard.Guard, selector *flags.GraphSelector, cfg *config.Config, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startInvestigationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.EntityID == "" || req.EntityType == "" {
			http.Error(w, "entity_id and entity_type are required", http.StatusBadRequest)
			return
		}

		if ok, reason := g.CanStartInvestigation(); !ok {
			http.Error(w, fmt.Sprintf("investigations are currently blocked: %s", reason), http.StatusServiceUnavailable)
			return
		}

		investigationID := uuid.NewString()
		graphChoice, err := selector.Choose(investigationID, req.EntityType, "")
		if err != nil {
			logger.WithError(err).Warn("graph selection failed, defaulting to sequential")
		}

		limits := cfg.Investigation.BaseLimits[cfg.Investigation.Mode]
		initial := state.CreateInitial(state.InitialConfig{
			InvestigationID: investigationID,
			EntityID:        req.EntityID,
			EntityType:      state.EntityType(req.EntityType),
			Limits: state.DynamicLimits{
				MaxOrchestratorLoops:           limits.MaxOrchestratorLoops,
				MaxToolExecutions:              limits.MaxToolExecutions,
				MaxDomainAttempts:              limits.MaxDomainAttempts,
				MaxInvestigationTimeMinutes:    limits.MaxInvestigationTimeMinutes,
				ConfidenceThresholdForOverride: limits.ConfidenceThresholdForOverride,
				ResourcePressureThreshold:      limits.ResourcePressureThreshold,
			},
			CustomUserPrompt: optionalString(req.CustomUserPrompt),
		})

		go func() {
			ctx := context.Background()
			result, err := orch.Run(ctx, initial, nil)
			if err != nil {
				g.RecordError(err.Error(), safetyLevelFromConfig(cfg))
				logger.WithError(err).WithField("investigation_id", investigationID).Error("investigation run failed")
				return
			}
			g.RecordSuccess()
			logger.WithField("investigation_id", investigationID).WithField("status", result.Outcome.Status).Info("investigation run complete")
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"investigation_id": investigationID,
			"graph":            string(graphChoice),
		})
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func safetyLevelFromConfig(cfg *config.Config) config.SafetyLevel {
	for level := range cfg.Investigation.SafetyMultipliers {
		return level
	}
	return config.SafetyLevelStandard
}
