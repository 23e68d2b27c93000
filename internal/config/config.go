package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/aivis/internal/domain"
)

// Provider names accepted in models[].provider.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderPerplexity = "perplexity"
)

// Database drivers accepted in database.driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNone     = "none"
)

// Config holds the aivis configuration.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Models        []ModelConfig       `yaml:"models"`
	Scoring       ScoringConfig       `yaml:"scoring"`
	Orchestration OrchestrationConfig `yaml:"orchestration"`
	Admission     AdmissionConfig     `yaml:"admission"`
	Budget        BudgetConfig        `yaml:"budget"`
	Auth          AuthConfig          `yaml:"auth"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings. The write timeout does not apply to run streams.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	KeepaliveSec    int `yaml:"sse_keepalive_sec"`
}

// DatabaseConfig selects the persistence adapter.
type DatabaseConfig struct {
	Driver         string `yaml:"driver"` // postgres, sqlite, none (default: sqlite)
	DSN            string `yaml:"dsn"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// RedisConfig holds the KV store used for budget counters. Empty URL and Addrs disable it.
type RedisConfig struct {
	URL              string   `yaml:"url"`
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a Redis endpoint is configured.
func (r RedisConfig) Enabled() bool { return r.URL != "" || len(r.Addrs) > 0 }

// ModelConfig describes one model every phrase is sent to.
type ModelConfig struct {
	Name              string         `yaml:"name"`
	Provider          string         `yaml:"provider"`
	APIKey            string         `yaml:"api_key"`
	BaseURL           string         `yaml:"base_url"`
	Model             string         `yaml:"model"`
	RPS               float64        `yaml:"rps"`
	Burst             int            `yaml:"burst"`
	MaxTokens         int            `yaml:"max_tokens"`
	Pricing           domain.Pricing `yaml:"pricing"`
	DailyTokenLimit   int64          `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64          `yaml:"monthly_token_limit"` // 0 = unlimited
}

// ScoringConfig holds the judge model. An empty api_key scores everything heuristically.
type ScoringConfig struct {
	APIKey     string         `yaml:"api_key"`
	BaseURL    string         `yaml:"base_url"`
	Model      string         `yaml:"model"`
	TimeoutSec int            `yaml:"timeout_sec"`
	Pricing    domain.Pricing `yaml:"pricing"`
}

// OrchestrationConfig tunes the batch scheduler.
type OrchestrationConfig struct {
	MaxTasks          int `yaml:"max_tasks"`
	BatchDelayMS      int `yaml:"batch_delay_ms"`
	QueryTimeoutSec   int `yaml:"query_timeout_sec"`
	PersistTimeoutSec int `yaml:"persist_timeout_sec"`
}

// AdmissionConfig bounds concurrent runs per domain.
type AdmissionConfig struct {
	Limit            int `yaml:"limit"`
	SweepIntervalSec int `yaml:"sweep_interval_sec"`
}

// BudgetConfig holds token budget behavior shared by all models.
type BudgetConfig struct {
	Action         string `yaml:"action"` // "reject" | "warn" (default)
	DailyTTLHours  int    `yaml:"daily_ttl_hours"`
	MonthlyTTLDays int    `yaml:"monthly_ttl_days"`
}

// Load reads .env (if present) and then the YAML file for the environment (local, dev, prod).
func Load(env string) (Config, error) {
	if fileExists(".env") {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, fmt.Errorf("failed to load .env: %w", err)
		}
	}
	return LoadFile(findConfigPath(env))
}

// LoadFile reads, expands, defaults and validates one YAML config file.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// defaultProviders maps the default model names onto their providers.
var defaultProviders = map[domain.ModelName]string{
	domain.ModelChatGPT:    ProviderOpenAI,
	domain.ModelClaude:     ProviderAnthropic,
	domain.ModelGemini:     ProviderGemini,
	domain.ModelPerplexity: ProviderPerplexity,
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 30
	}
	if c.HTTP.KeepaliveSec <= 0 {
		c.HTTP.KeepaliveSec = 15
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == DriverSQLite && c.Database.DSN == "" {
		c.Database.DSN = "data/aivis.db"
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}

	if len(c.Models) == 0 {
		for _, name := range domain.DefaultModels() {
			c.Models = append(c.Models, ModelConfig{Name: string(name)})
		}
	}
	for i := range c.Models {
		m := &c.Models[i]
		if m.Provider == "" {
			m.Provider = defaultProviders[domain.ModelName(m.Name)]
		}
		if m.RPS <= 0 {
			m.RPS = 2
		}
		if m.Burst <= 0 {
			m.Burst = 4
		}
		if m.MaxTokens <= 0 {
			m.MaxTokens = 1024
		}
	}

	if c.Scoring.TimeoutSec <= 0 {
		c.Scoring.TimeoutSec = 60
	}
	if c.Scoring.Model == "" {
		c.Scoring.Model = "gpt-4o-mini"
	}

	if c.Orchestration.MaxTasks <= 0 {
		c.Orchestration.MaxTasks = 1000
	}
	if c.Orchestration.BatchDelayMS < 0 {
		c.Orchestration.BatchDelayMS = 0
	} else if c.Orchestration.BatchDelayMS == 0 {
		c.Orchestration.BatchDelayMS = 500
	}
	if c.Orchestration.QueryTimeoutSec <= 0 {
		c.Orchestration.QueryTimeoutSec = 25
	}
	if c.Orchestration.PersistTimeoutSec <= 0 {
		c.Orchestration.PersistTimeoutSec = 10
	}

	if c.Admission.Limit <= 0 {
		c.Admission.Limit = 2
	}
	if c.Admission.SweepIntervalSec <= 0 {
		c.Admission.SweepIntervalSec = 300
	}

	if c.Budget.Action == "" {
		c.Budget.Action = "warn"
	}
	if c.Budget.DailyTTLHours <= 0 {
		c.Budget.DailyTTLHours = 48
	}
	if c.Budget.MonthlyTTLDays <= 0 {
		c.Budget.MonthlyTTLDays = 62
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	case DriverNone:
	default:
		return fmt.Errorf("database.driver must be postgres, sqlite or none, got %q", c.Database.Driver)
	}

	if len(c.Models) == 0 {
		return errors.New("at least one model is required")
	}
	seen := make(map[string]struct{}, len(c.Models))
	for i, m := range c.Models {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("models[%d].name is required", i)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("models[%d].name %q is duplicated", i, m.Name)
		}
		seen[m.Name] = struct{}{}

		switch m.Provider {
		case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderPerplexity:
		default:
			return fmt.Errorf("models.%s.provider must be openai, anthropic, gemini or perplexity, got %q",
				m.Name, m.Provider)
		}
	}

	switch c.Budget.Action {
	case "warn", "reject":
	default:
		return fmt.Errorf("budget.action must be \"warn\" or \"reject\", got %q", c.Budget.Action)
	}
	return nil
}

// ModelNames returns the configured model names in order.
func (c *Config) ModelNames() []domain.ModelName {
	out := make([]domain.ModelName, len(c.Models))
	for i, m := range c.Models {
		out[i] = domain.ModelName(m.Name)
	}
	return out
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
