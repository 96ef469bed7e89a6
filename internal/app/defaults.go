package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables that override the default locations.
const (
	EnvConfigPath = "LCB_CONFIG_PATH"
	EnvHome       = "LCB_HOME"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - LCB_CONFIG_PATH: config file location (default: ~/.config/lcb.toml)
//   - LCB_HOME: base directory for lcb data (default: ~/.local/share/lcb)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path":  configPath,
		"base_dir":     baseDir,
		"log_dir":      filepath.Join(baseDir, "log"),
		"mapping_path": filepath.Join(baseDir, "mapping.csv"),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "lcb.toml"), nil
}

// getBaseDir returns the base directory for lcb data, checking LCB_HOME first,
// then falling back to the XDG default ~/.local/share/lcb.
func getBaseDir() (string, error) {
	if path := os.Getenv(EnvHome); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "lcb"), nil
}
