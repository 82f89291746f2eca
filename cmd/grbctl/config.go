package main

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileConfig holds the last-known bridge address and token, persisted so a
// user doesn't have to retype --addr/--token from the GDRB_READY banner on
// every invocation. Modeled on the corpus's LoadWingConfig: read a yaml file
// under a dotdir, return a zero value if it doesn't exist yet, never error
// on a missing file.
type fileConfig struct {
	Addr  string `yaml:"addr,omitempty"`
	Token string `yaml:"token,omitempty"`
}

func configPath() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".grbctl.yaml"), nil
}

// loadFileConfig returns a zero-value config (no error) when the file is
// absent.
func loadFileConfig() (*fileConfig, error) {
	path, err := configPath()
	if err != nil {
		return &fileConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileConfig{}, nil
		}
		return nil, err
	}
	cfg := &fileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// saveFileConfig remembers addr/token for next time, called after a
// successful ping against an explicitly-flagged addr/token.
func saveFileConfig(cfg *fileConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
