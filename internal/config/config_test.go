package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := loadWith("")
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 8090 {
		t.Errorf("port = %d, want 8090", cfg.Server.Port)
	}
	if cfg.Inference.BaseURL != "http://localhost:11434" {
		t.Errorf("inference base url = %q", cfg.Inference.BaseURL)
	}
	if cfg.Pipeline.PreviewLimit != 10 || cfg.Pipeline.PreviewWindow != "24 hours" {
		t.Errorf("pipeline defaults = %+v", cfg.Pipeline)
	}
	if cfg.Analytics.PingTimeoutDuration() != 5*time.Second {
		t.Errorf("ping timeout = %v", cfg.Analytics.PingTimeoutDuration())
	}
}

func TestYAMLFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9999
grafana:
  base_url: http://grafana.internal:3000
  datasource_uid: prod-postgres
pipeline:
  preview_limit: 25
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := loadWith(path)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Grafana.BaseURL != "http://grafana.internal:3000" {
		t.Errorf("grafana base url = %q", cfg.Grafana.BaseURL)
	}
	if cfg.Grafana.DatasourceUID != "prod-postgres" {
		t.Errorf("datasource uid = %q", cfg.Grafana.DatasourceUID)
	}
	if cfg.Pipeline.PreviewLimit != 25 {
		t.Errorf("preview limit = %d, want 25", cfg.Pipeline.PreviewLimit)
	}
	// Untouched sections keep their defaults.
	if cfg.Inference.Model != "mistral-nemo" {
		t.Errorf("model = %q", cfg.Inference.Model)
	}
}

func TestMissingFileIsNotAnError(t *testing.T) {
	if _, err := loadWith(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Errorf("loadWith on missing file: %v", err)
	}
}

func TestMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := loadWith(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	t.Setenv("GRIDVIZ_SERVER_PORT", "9001")
	t.Setenv("GRIDVIZ_GRAFANA_PASSWORD", "hunter2")
	t.Setenv("GRIDVIZ_API_TOKEN", "tok")

	cfg, err := loadWith(path)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("port = %d, want env override 9001", cfg.Server.Port)
	}
	if cfg.Grafana.Password != "hunter2" {
		t.Errorf("grafana password not taken from env")
	}
	if cfg.API.Token != "tok" {
		t.Errorf("api token not taken from env")
	}
}

func TestUnparsableEnvIntKeepsDefault(t *testing.T) {
	t.Setenv("GRIDVIZ_SERVER_PORT", "not-a-number")

	cfg, err := loadWith("")
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 8090 {
		t.Errorf("port = %d, want default 8090", cfg.Server.Port)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = -1 }, true},
		{"empty analytics url", func(c *Config) { c.Analytics.URL = "" }, true},
		{"empty grafana url", func(c *Config) { c.Grafana.BaseURL = "" }, true},
		{"zero preview limit", func(c *Config) { c.Pipeline.PreviewLimit = 0 }, true},
		{"bad duration", func(c *Config) { c.Analytics.PingTimeout = "soon" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(&cfg)
			err := cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
