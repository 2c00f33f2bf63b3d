package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string          `yaml:"listen_addr"`
	PolicyPath string          `yaml:"policy_path"`
	Audit      AuditConfig     `yaml:"audit"`
	Generator  GeneratorConfig `yaml:"generator"`
	Guardrail  GuardrailConfig `yaml:"guardrail"`
	Optimizer  OptimizerConfig `yaml:"optimizer"`
}

type AuditConfig struct {
	LogPath   string `yaml:"log_path"`
	SQLiteDSN string `yaml:"sqlite_dsn"`
}

type GeneratorConfig struct {
	Enabled   bool   `yaml:"enabled"`
	URL       string `yaml:"url"`
	Model     string `yaml:"model"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

func (g GeneratorConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutMS) * time.Millisecond
}

type GuardrailConfig struct {
	ForbiddenTerms    map[string][]string `yaml:"forbidden_terms"`
	NumericTolerance  float64             `yaml:"numeric_tolerance"`
	SmallIntegerBound int                 `yaml:"small_integer_bound"`
}

type OptimizerConfig struct {
	MinTransactions int `yaml:"min_transactions"`
}

func Load(path string) (Config, error) {
	// #nosec G304 -- path is operator-provided config path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	expanded := os.ExpandEnv(string(raw))
	expanded = strings.ReplaceAll(expanded, "\r\n", "\n")

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.PolicyPath == "" {
		return fmt.Errorf("policy_path is required")
	}
	if c.Audit.LogPath == "" {
		return fmt.Errorf("audit.log_path is required")
	}
	if c.Generator.Enabled {
		if c.Generator.URL == "" {
			return fmt.Errorf("generator.url is required when generator.enabled=true")
		}
		if c.Generator.Model == "" {
			return fmt.Errorf("generator.model is required when generator.enabled=true")
		}
	}
	if c.Generator.TimeoutMS < 0 {
		return fmt.Errorf("generator.timeout_ms must not be negative")
	}
	if c.Guardrail.NumericTolerance < 0 {
		return fmt.Errorf("guardrail.numeric_tolerance must not be negative")
	}
	return nil
}
