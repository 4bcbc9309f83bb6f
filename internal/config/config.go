// Package config loads the user's cseries settings from a JSON file,
// falling back to defaults for anything unset.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all cseries configuration.
type Config struct {
	// PatchworkURL is the root of the patchwork server, without the API
	// suffix.
	PatchworkURL string `json:"patchwork_url"`
	// SendCommand is run to mail a series; the branch name is appended.
	SendCommand []string `json:"send_command"`
	// SelfTester suppresses the user's own Tested-by tags when parsing.
	SelfTester string `json:"self_tester"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		PatchworkURL: "https://patchwork.ozlabs.org",
		SendCommand:  []string{"git", "send-email"},
	}
}

// Load reads configuration from a JSON file, falling back to defaults
// for any unset fields.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file is fine, use defaults.
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.PatchworkURL == "" {
		cfg.PatchworkURL = Default().PatchworkURL
	}
	if len(cfg.SendCommand) == 0 {
		cfg.SendCommand = Default().SendCommand
	}
	return cfg, nil
}

// Save writes the configuration back to path, creating its directory if
// needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// ConfigPath returns the default path to the config file.
func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "cseries", "config.json")
}
