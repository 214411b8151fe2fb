// Package config loads the orchestrator's configuration surface: operating
// mode, confidence-assessor provider settings, the base-limits/multiplier
// tables of spec §6.1, and the evidence-gating configuration of §4.6's open
// question. Loading follows the teacher's pattern: read YAML, apply
// defaults, overlay environment variables, then validate.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	validator "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	apperrors "github.com/olorin-ai/hybrid-investigator/internal/errors"
)

// Mode selects the deployment mode of §6.1: mock, demo, or live.
type Mode string

const (
	ModeMock Mode = "mock"
	ModeDemo Mode = "demo"
	ModeLive Mode = "live"
)

// SafetyLevel mirrors investigation/safety.Level without importing it
// (config must not depend on the business-logic packages it configures).
type SafetyLevel string

const (
	SafetyLevelPermissive SafetyLevel = "PERMISSIVE"
	SafetyLevelStandard   SafetyLevel = "STANDARD"
	SafetyLevelStrict     SafetyLevel = "STRICT"
	SafetyLevelEmergency  SafetyLevel = "EMERGENCY"
)

// Strategy mirrors investigation/state.Strategy for the same reason.
type Strategy string

const (
	StrategyComprehensive Strategy = "COMPREHENSIVE"
	StrategyFocused       Strategy = "FOCUSED"
	StrategyAdaptive      Strategy = "ADAPTIVE"
	StrategyCriticalPath  Strategy = "CRITICAL_PATH"
	StrategyMinimal       Strategy = "MINIMAL"
)

// DynamicLimits is the base form of spec §3's dynamic_limits, before
// safety-level and strategy multipliers are applied.
type DynamicLimits struct {
	MaxOrchestratorLoops           int           `yaml:"max_orchestrator_loops"`
	MaxToolExecutions              int           `yaml:"max_tool_executions"`
	MaxDomainAttempts              int           `yaml:"max_domain_attempts"`
	MaxInvestigationTimeMinutes    int           `yaml:"max_investigation_time_minutes"`
	ConfidenceThresholdForOverride float64       `yaml:"confidence_threshold_for_override"`
	ResourcePressureThreshold      float64       `yaml:"resource_pressure_threshold"`
}

// Multipliers is the (loops, tools, domains, time) tuple §6.1 applies atop DynamicLimits.
type Multipliers struct {
	Loops   float64 `yaml:"loops"`
	Tools   float64 `yaml:"tools"`
	Domains float64 `yaml:"domains"`
	Time    float64 `yaml:"time"`
}

// EvidenceConfig carries the Open Question of spec §9 as configuration: the
// minimum evidence floor and per-domain evidence weights, defaulted from §4.6.
type EvidenceConfig struct {
	MinimumFloor      float64            `yaml:"minimum_floor"`
	MinItemsPerDomain int                `yaml:"min_items_per_domain"`
	DomainWeights     map[string]float64 `yaml:"domain_weights"`
}

// InvestigationConfig holds every tunable named in spec §4 and §6.1.
type InvestigationConfig struct {
	Mode                Mode                          `yaml:"mode"`
	BaseLimits          map[Mode]DynamicLimits         `yaml:"base_limits"`
	SafetyMultipliers   map[SafetyLevel]Multipliers    `yaml:"safety_multipliers"`
	StrategyMultipliers map[Strategy]Multipliers       `yaml:"strategy_multipliers"`
	HardRecursionLimits map[Mode]int                   `yaml:"hard_recursion_limits"`
	Evidence            EvidenceConfig                 `yaml:"evidence"`
}

// AssessorConfig configures the ConfidenceAssessor port's production
// backend (§6.5), mirroring the teacher's SLMConfig shape.
type AssessorConfig struct {
	Provider    string        `yaml:"provider" validate:"required"`
	Endpoint    string        `yaml:"endpoint"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	RetryCount  int           `yaml:"retry_count"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
}

// ServerConfig configures the thin operational HTTP/WS surface of cmd/investigator.
type ServerConfig struct {
	WebhookPort string `yaml:"webhook_port"`
	MetricsPort string `yaml:"metrics_port"`
}

// LoggingConfig configures the logrus/zap loggers.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SnowflakeConfig toggles the raw-data ingestion source (§6.8 USE_SNOWFLAKE).
type SnowflakeConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MCPConfig configures the tool-invoker's connection to an MCP tool server.
type MCPConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// DatabaseConfig configures the result sink's PostgreSQL connection.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig configures the checkpointer's Redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Config is the root configuration object loaded from the orchestrator's YAML file.
type Config struct {
	Server          ServerConfig        `yaml:"server"`
	Assessor        AssessorConfig      `yaml:"assessor"`
	Investigation   InvestigationConfig `yaml:"investigation"`
	Logging         LoggingConfig       `yaml:"logging"`
	Snowflake       SnowflakeConfig     `yaml:"snowflake"`
	MCP             MCPConfig           `yaml:"mcp"`
	Database        DatabaseConfig      `yaml:"database"`
	Redis           RedisConfig         `yaml:"redis"`
	CustomUserPrompt string             `yaml:"custom_user_prompt"`
}

var structValidator = validator.New()

// Load reads, defaults, env-overlays, and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeInternal, "failed to read config file: %s", path)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeInternal, "failed to parse config file: %s", err.Error())
	}

	applyDefaults(cfg)

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills in every field spec §6.1 pins a default for, plus the
// operational defaults the teacher's config applies for missing values.
func applyDefaults(cfg *Config) {
	if cfg.Server.WebhookPort == "" {
		cfg.Server.WebhookPort = "8080"
	}
	if cfg.Server.MetricsPort == "" {
		cfg.Server.MetricsPort = "9090"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Assessor.Provider == "" {
		cfg.Assessor.Provider = "heuristic"
	}
	if cfg.Assessor.MaxTokens == 0 {
		cfg.Assessor.MaxTokens = 500
	}
	if cfg.Assessor.Timeout == 0 {
		cfg.Assessor.Timeout = 30 * time.Second
	}

	if cfg.Investigation.Mode == "" {
		cfg.Investigation.Mode = ModeMock
	}

	if cfg.Investigation.BaseLimits == nil {
		cfg.Investigation.BaseLimits = defaultBaseLimits()
	} else {
		for mode, defaults := range defaultBaseLimits() {
			if _, ok := cfg.Investigation.BaseLimits[mode]; !ok {
				cfg.Investigation.BaseLimits[mode] = defaults
			}
		}
	}

	if cfg.Investigation.SafetyMultipliers == nil {
		cfg.Investigation.SafetyMultipliers = defaultSafetyMultipliers()
	}
	if cfg.Investigation.StrategyMultipliers == nil {
		cfg.Investigation.StrategyMultipliers = defaultStrategyMultipliers()
	}
	if cfg.Investigation.HardRecursionLimits == nil {
		cfg.Investigation.HardRecursionLimits = map[Mode]int{
			ModeMock: 50,
			ModeDemo: 50,
			ModeLive: 100,
		}
	}

	if cfg.Investigation.Evidence.MinimumFloor == 0 {
		cfg.Investigation.Evidence.MinimumFloor = 0.2
	}
	if cfg.Investigation.Evidence.MinItemsPerDomain == 0 {
		cfg.Investigation.Evidence.MinItemsPerDomain = 1
	}
	if cfg.Investigation.Evidence.DomainWeights == nil {
		cfg.Investigation.Evidence.DomainWeights = defaultDomainWeights()
	}
}

// defaultBaseLimits is the table of spec §6.1.
func defaultBaseLimits() map[Mode]DynamicLimits {
	test := DynamicLimits{
		MaxOrchestratorLoops:           12,
		MaxToolExecutions:              8,
		MaxDomainAttempts:              6,
		MaxInvestigationTimeMinutes:    10,
		ConfidenceThresholdForOverride: 0.3,
		ResourcePressureThreshold:      0.8,
	}
	live := DynamicLimits{
		MaxOrchestratorLoops:           25,
		MaxToolExecutions:              15,
		MaxDomainAttempts:              10,
		MaxInvestigationTimeMinutes:    30,
		ConfidenceThresholdForOverride: 0.4,
		ResourcePressureThreshold:      0.7,
	}
	return map[Mode]DynamicLimits{
		ModeMock: test,
		ModeDemo: test,
		ModeLive: live,
	}
}

func defaultSafetyMultipliers() map[SafetyLevel]Multipliers {
	return map[SafetyLevel]Multipliers{
		SafetyLevelPermissive: {Loops: 1.5, Tools: 1.3, Domains: 1.2, Time: 1.4},
		SafetyLevelStandard:   {Loops: 1.0, Tools: 1.0, Domains: 1.0, Time: 1.0},
		SafetyLevelStrict:     {Loops: 0.7, Tools: 0.8, Domains: 0.8, Time: 0.8},
		SafetyLevelEmergency:  {Loops: 0.5, Tools: 0.5, Domains: 0.5, Time: 0.5},
	}
}

func defaultStrategyMultipliers() map[Strategy]Multipliers {
	return map[Strategy]Multipliers{
		StrategyCriticalPath:  {Loops: 0.8, Tools: 0.6, Domains: 0.5, Time: 0.7},
		StrategyMinimal:       {Loops: 0.6, Tools: 0.5, Domains: 0.3, Time: 0.5},
		StrategyFocused:       {Loops: 0.9, Tools: 0.8, Domains: 0.7, Time: 0.8},
		StrategyAdaptive:      {Loops: 1.0, Tools: 1.0, Domains: 1.0, Time: 1.0},
		StrategyComprehensive: {Loops: 1.2, Tools: 1.3, Domains: 1.5, Time: 1.4},
	}
}

func defaultDomainWeights() map[string]float64 {
	return map[string]float64{
		"network":        1.0,
		"device":         1.0,
		"location":       0.8,
		"logs":           0.9,
		"authentication": 1.1,
		"risk":           1.2,
	}
}

// loadFromEnv applies the §6.8 environment-variable overrides.
func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("TEST_MODE"); v != "" {
		cfg.Investigation.Mode = Mode(v)
	}
	if v := os.Getenv("USE_SNOWFLAKE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return apperrors.Wrapf(err, apperrors.ErrorTypeValidation, "invalid USE_SNOWFLAKE value: %s", v)
		}
		cfg.Snowflake.Enabled = b
	}
	if v := os.Getenv("CUSTOM_USER_PROMPT"); v != "" {
		cfg.CustomUserPrompt = v
	}
	if v := os.Getenv("ASSESSOR_ENDPOINT"); v != "" {
		cfg.Assessor.Endpoint = v
	}
	if v := os.Getenv("ASSESSOR_MODEL"); v != "" {
		cfg.Assessor.Model = v
	}
	if v := os.Getenv("ASSESSOR_PROVIDER"); v != "" {
		cfg.Assessor.Provider = v
	}
	if v := os.Getenv("WEBHOOK_PORT"); v != "" {
		cfg.Server.WebhookPort = v
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		cfg.Server.MetricsPort = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// FlagEnvOverride reports the override for a HYBRID_FLAG_<NAME> variable, if present.
// Used by investigation/flags to apply §4.8/§6.8's environment overrides.
func FlagEnvOverride(name string) (enabled bool, present bool) {
	v, ok := os.LookupEnv("HYBRID_FLAG_" + name)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

var validProviders = map[string]bool{
	"heuristic": true,
	"anthropic": true,
	"bedrock":   true,
}

// validate runs struct-tag validation via go-playground/validator and the
// teacher-style semantic checks that crossed multiple fields.
func validate(cfg *Config) error {
	if err := structValidator.Struct(&cfg.Assessor); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeValidation, err.Error())
	}

	if !validProviders[cfg.Assessor.Provider] {
		return apperrors.New(apperrors.ErrorTypeValidation,
			fmt.Sprintf("unsupported assessor provider: %s", cfg.Assessor.Provider))
	}

	if cfg.Assessor.Endpoint == "" {
		cfg.Assessor.Endpoint = "http://localhost:8080"
	}

	if cfg.Assessor.Provider != "heuristic" && cfg.Assessor.Model == "" {
		return apperrors.New(apperrors.ErrorTypeValidation,
			fmt.Sprintf("assessor model is required for %s provider", cfg.Assessor.Provider))
	}

	if cfg.Assessor.Temperature < 0.0 || cfg.Assessor.Temperature > 1.0 {
		return apperrors.New(apperrors.ErrorTypeValidation, "assessor temperature must be between 0.0 and 1.0")
	}

	if cfg.Assessor.MaxTokens <= 0 {
		return apperrors.New(apperrors.ErrorTypeValidation, "assessor max tokens must be greater than 0")
	}

	if cfg.Investigation.Evidence.MinimumFloor < 0.0 || cfg.Investigation.Evidence.MinimumFloor > 1.0 {
		return apperrors.New(apperrors.ErrorTypeValidation, "evidence minimum floor must be between 0.0 and 1.0")
	}

	return nil
}
