package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalYAML = `
storage:
  dsn: "postgres://localhost/idmirror"
provider:
  base_url: "https://api.provider.test"
  webhook_secret: "whsec_abc"
`

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.OTP.TTL != 10*time.Minute {
		t.Errorf("otp ttl = %v", cfg.OTP.TTL)
	}
	if cfg.Cache.Kind != "memory" {
		t.Errorf("cache kind = %q", cfg.Cache.Kind)
	}
	if cfg.Rate.Forgot.Limit != 5 || cfg.Rate.Forgot.Window != "10m" {
		t.Errorf("forgot rate = %d/%s", cfg.Rate.Forgot.Limit, cfg.Rate.Forgot.Window)
	}
	if cfg.SMTP.TLS != "auto" {
		t.Errorf("smtp tls = %q", cfg.SMTP.TLS)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://other/db")
	t.Setenv("OTP_TTL", "5m")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.DSN != "postgres://other/db" {
		t.Errorf("dsn = %q", cfg.Storage.DSN)
	}
	if cfg.OTP.TTL != 5*time.Minute {
		t.Errorf("otp ttl = %v", cfg.OTP.TTL)
	}
	if cfg.Cache.Kind != "redis" {
		t.Errorf("REDIS_ADDR should switch cache kind, got %q", cfg.Cache.Kind)
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	if _, err := Load(writeConfig(t, `storage: {dsn: ""}`)); err == nil {
		t.Fatal("missing dsn must fail")
	}
	if _, err := Load(writeConfig(t, `
storage:
  dsn: "postgres://x"
provider:
  base_url: ""
`)); err == nil {
		t.Fatal("missing provider.base_url must fail")
	}
}

func TestLoad_ProdForbidsInsecureSMTP(t *testing.T) {
	body := minimalYAML + `
app:
  env: prod
smtp:
  insecure_skip_verify: true
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("prod with insecure_skip_verify must fail")
	}
}

func TestLoad_BadDurationRejected(t *testing.T) {
	body := minimalYAML + `
rate:
  forgot:
    window: "nope"
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("invalid duration must fail")
	}
}
