package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_WritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerURL != "http://localhost:8000" {
		t.Errorf("unexpected default server url: %s", cfg.ServerURL)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("unexpected default log level: %s", cfg.LogLevel)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("defaults should be written to disk: %v", err)
	}
}

func TestLoad_FileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"server_url":"http://agent.internal:9000","log_level":"debug","record":true}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerURL != "http://agent.internal:9000" {
		t.Errorf("file value not applied: %s", cfg.ServerURL)
	}
	if cfg.LogLevel != "debug" || !cfg.Record {
		t.Errorf("file values not applied: %+v", cfg)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("AGENTSCOPE_SERVER_URL", "https://remote.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerURL != "https://remote.example" {
		t.Errorf("env override not applied: %s", cfg.ServerURL)
	}
}

func TestStreamURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"http://localhost:8000", "ws://localhost:8000/ws/chat"},
		{"https://remote.example", "wss://remote.example/ws/chat"},
	}
	for _, tc := range cases {
		cfg := &Config{ServerURL: tc.in}
		if got := cfg.StreamURL(); got != tc.want {
			t.Errorf("StreamURL(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
