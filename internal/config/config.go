package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string           `yaml:"listen_addr"`
	DB         DBConfig         `yaml:"db"`
	PackPaths  []string         `yaml:"pack_paths"`
	SigningKey SigningKeyConfig `yaml:"signing_key"`
	GenAI      GenAIConfig      `yaml:"genai"`
	Notify     NotifyConfig     `yaml:"notify"`
	Engine     EngineConfig     `yaml:"engine"`
	Operators  []OperatorConfig `yaml:"operators"`
}

type DBConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres | empty for in-memory
	DSN    string `yaml:"dsn"`
}

type SigningKeyConfig struct {
	KeyID          string `yaml:"key_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

type GenAIConfig struct {
	Enabled        bool    `yaml:"enabled"`
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	CallTimeoutSec int     `yaml:"call_timeout_seconds"`
	MaxRetries     int     `yaml:"max_retries"`
	RPS            float64 `yaml:"rps"`
	Burst          int     `yaml:"burst"`
}

func (c GenAIConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSec) * time.Second
}

type NotifyConfig struct {
	Enabled         bool   `yaml:"enabled"`
	WebhookURL      string `yaml:"webhook_url"`
	PollIntervalSec int    `yaml:"poll_interval_seconds"`
}

func (c NotifyConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

type EngineConfig struct {
	StepTimeoutSec   int `yaml:"step_timeout_seconds"`
	RepairThreshold  int `yaml:"repair_threshold"`
	RepairMaxRetries int `yaml:"repair_max_retries"`
}

func (c EngineConfig) StepTimeout() time.Duration {
	return time.Duration(c.StepTimeoutSec) * time.Second
}

type OperatorConfig struct {
	Token string `yaml:"token"`
	Actor string `yaml:"actor"`
	Role  string `yaml:"role"`
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
	if len(c.PackPaths) == 0 {
		return fmt.Errorf("pack_paths is required")
	}

	if c.DB.Driver != "" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required when db.driver is set")
	}
	switch c.DB.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("db.driver must be sqlite or postgres, got %q", c.DB.Driver)
	}

	if c.GenAI.Enabled && c.GenAI.BaseURL == "" {
		return fmt.Errorf("genai.base_url is required when genai.enabled=true")
	}
	if c.Notify.Enabled && c.Notify.WebhookURL == "" {
		return fmt.Errorf("notify.webhook_url is required when notify.enabled=true")
	}

	for i, op := range c.Operators {
		if op.Token == "" || op.Actor == "" {
			return fmt.Errorf("operators[%d]: token and actor are required", i)
		}
	}
	return nil
}
