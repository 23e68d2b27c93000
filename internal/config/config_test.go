package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kailas-cloud/aivis/internal/domain"
)

func validConfig() Config {
	cfg := Config{HTTP: HTTPConfig{Port: 8080}}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"postgres dsn", func(c *Config) { c.Database.Driver, c.Database.DSN = DriverPostgres, "" }, "database.dsn"},
		{"no models", func(c *Config) { c.Models = nil }, "at least one model"},
		{"blank name", func(c *Config) { c.Models[0].Name = " " }, "models[0].name"},
		{"duplicate", func(c *Config) { c.Models[1].Name = c.Models[0].Name }, "duplicated"},
		{"provider", func(c *Config) { c.Models[0].Provider = "mistral" }, "models.chatgpt.provider"},
		{"budget action", func(c *Config) { c.Budget.Action = "invalid_action" }, `budget.action must be "warn" or "reject"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestValidate_DriverNoneNeedsNoDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Database = DatabaseConfig{Driver: DriverNone}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.KeepaliveSec != 15 {
		t.Errorf("expected KeepaliveSec=15, got %d", cfg.HTTP.KeepaliveSec)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.DSN == "" {
		t.Errorf("expected sqlite with a default dsn, got %q %q", cfg.Database.Driver, cfg.Database.DSN)
	}
	if cfg.Orchestration.MaxTasks != 1000 {
		t.Errorf("expected MaxTasks=1000, got %d", cfg.Orchestration.MaxTasks)
	}
	if cfg.Orchestration.BatchDelayMS != 500 {
		t.Errorf("expected BatchDelayMS=500, got %d", cfg.Orchestration.BatchDelayMS)
	}
	if cfg.Orchestration.QueryTimeoutSec != 25 {
		t.Errorf("expected QueryTimeoutSec=25, got %d", cfg.Orchestration.QueryTimeoutSec)
	}
	if cfg.Scoring.TimeoutSec != 60 {
		t.Errorf("expected Scoring.TimeoutSec=60, got %d", cfg.Scoring.TimeoutSec)
	}
	if cfg.Admission.Limit != 2 || cfg.Admission.SweepIntervalSec != 300 {
		t.Errorf("expected admission 2/300, got %d/%d", cfg.Admission.Limit, cfg.Admission.SweepIntervalSec)
	}
	if cfg.Budget.Action != "warn" {
		t.Errorf("expected budget action warn, got %q", cfg.Budget.Action)
	}

	names := cfg.ModelNames()
	want := domain.DefaultModels()
	if len(names) != len(want) {
		t.Fatalf("expected %d default models, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("model %d: got %s, want %s", i, names[i], want[i])
		}
	}
	if cfg.Models[1].Provider != ProviderAnthropic {
		t.Errorf("claude should default to anthropic, got %q", cfg.Models[1].Provider)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:          HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database:      DatabaseConfig{Driver: DriverPostgres, DSN: "postgres://x"},
		Models:        []ModelConfig{{Name: "custom", Provider: ProviderOpenAI, RPS: 9}},
		Orchestration: OrchestrationConfig{BatchDelayMS: -1, MaxTasks: 50},
		Budget:        BudgetConfig{Action: "reject"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.DSN != "postgres://x" {
		t.Errorf("dsn overridden: %q", cfg.Database.DSN)
	}
	if len(cfg.Models) != 1 || cfg.Models[0].RPS != 9 {
		t.Errorf("models overridden: %+v", cfg.Models)
	}
	if cfg.Orchestration.BatchDelayMS != 0 {
		t.Errorf("negative delay should disable the pause, got %d", cfg.Orchestration.BatchDelayMS)
	}
	if cfg.Orchestration.MaxTasks != 50 {
		t.Errorf("expected MaxTasks=50, got %d", cfg.Orchestration.MaxTasks)
	}
	if cfg.Budget.Action != "reject" {
		t.Errorf("expected reject, got %q", cfg.Budget.Action)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("AIVIS_TEST_SET", "value")

	tests := []struct {
		in, want string
	}{
		{"key: ${AIVIS_TEST_SET}", "key: value"},
		{"key: ${AIVIS_TEST_SET:-fallback}", "key: value"},
		{"key: ${AIVIS_TEST_UNSET:-fallback}", "key: fallback"},
		{"key: ${AIVIS_TEST_UNSET}", "key: "},
		{"key: plain", "key: plain"},
	}
	for _, tt := range tests {
		if got := string(expandEnvVars([]byte(tt.in))); got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("AIVIS_TEST_KEY", "sk-test")
	path := filepath.Join(t.TempDir(), "test.yaml")
	data := `
http:
  port: 9090
database:
  driver: none
models:
  - name: chatgpt
    api_key: ${AIVIS_TEST_KEY}
    pricing: {input_per_million: 2.5, output_per_million: 10}
  - name: perplexity
orchestration:
  batch_delay_ms: 250
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d", cfg.HTTP.Port)
	}
	if len(cfg.Models) != 2 {
		t.Fatalf("models = %d", len(cfg.Models))
	}
	chat := cfg.Models[0]
	if chat.APIKey != "sk-test" || chat.Provider != ProviderOpenAI || chat.Pricing.OutputPerMillion != 10 {
		t.Errorf("unexpected chatgpt config %+v", chat)
	}
	if cfg.Models[1].Provider != ProviderPerplexity {
		t.Errorf("perplexity provider = %q", cfg.Models[1].Provider)
	}
	if cfg.Orchestration.BatchDelayMS != 250 {
		t.Errorf("batch delay = %d", cfg.Orchestration.BatchDelayMS)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("http:\n  port: 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("expected invalid config error, got %v", err)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestLoad_LocalConfig(t *testing.T) {
	cfg, err := Load("local")
	if err != nil {
		t.Fatalf("Load(local): %v", err)
	}
	if len(cfg.Models) == 0 {
		t.Error("local config should list models")
	}
}
