package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAndValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gavel.yaml")

	os.Setenv("GAVEL_WEBHOOK_URL", "https://hooks.example.com/gates")
	defer os.Unsetenv("GAVEL_WEBHOOK_URL")

	data := `
listen_addr: ":8080"
pack_paths:
  - "./packs/base.yaml"
notify:
  enabled: true
  webhook_url: "${GAVEL_WEBHOOK_URL}"
operators:
  - token: "tok-1"
    actor: "alice@example.com"
    role: "security-lead"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Notify.WebhookURL != "https://hooks.example.com/gates" {
		t.Fatalf("expected expanded webhook url, got %q", cfg.Notify.WebhookURL)
	}
	if len(cfg.Operators) != 1 || cfg.Operators[0].Actor != "alice@example.com" {
		t.Fatalf("operators = %+v", cfg.Operators)
	}
}

func TestValidateMissingFields(t *testing.T) {
	if err := (Config{}).Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateNotifyRequiresURL(t *testing.T) {
	cfg := Config{ListenAddr: ":8080", PackPaths: []string{"packs/base.yaml"}, Notify: NotifyConfig{Enabled: true}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateDBRequiresDSN(t *testing.T) {
	cfg := Config{ListenAddr: ":8080", PackPaths: []string{"packs/base.yaml"}, DB: DBConfig{Driver: "sqlite"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateUnknownDriver(t *testing.T) {
	cfg := Config{ListenAddr: ":8080", PackPaths: []string{"packs/base.yaml"}, DB: DBConfig{Driver: "mysql", DSN: "x"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateOperatorRequiresActor(t *testing.T) {
	cfg := Config{
		ListenAddr: ":8080",
		PackPaths:  []string{"packs/base.yaml"},
		Operators:  []OperatorConfig{{Token: "tok-1"}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Fatalf("expected error")
	}
}
