package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	ServerURL string `json:"server_url"`
	DataDir   string `json:"data_dir"`
	LogLevel  string `json:"log_level"`
	Model     string `json:"model"`
	Record    bool   `json:"record"`
}

// StreamURL derives the websocket endpoint from the server base URL.
func (c *Config) StreamURL() string {
	u := c.ServerURL
	switch {
	case len(u) >= 8 && u[:8] == "https://":
		u = "wss://" + u[8:]
	case len(u) >= 7 && u[:7] == "http://":
		u = "ws://" + u[7:]
	}
	return u + "/ws/chat"
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		ServerURL: "http://localhost:8000",
		DataDir:   filepath.Join(os.Getenv("HOME"), ".agentscope"),
		LogLevel:  "info",
		Model:     "gpt-4",
	}

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if url := os.Getenv("AGENTSCOPE_SERVER_URL"); url != "" {
		cfg.ServerURL = url
	}
	if dir := os.Getenv("AGENTSCOPE_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}
