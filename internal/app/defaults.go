package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults are the paths used when no config overrides them.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - TRAIL_CONFIG_PATH: config file location (default: ~/.config/trail.toml)
//   - TRAIL_HOME: base directory for trail data (default: ~/.local/share/trail)
func GetDefaults() (Defaults, error) {
	configPath, err := fromEnvOrHome("TRAIL_CONFIG_PATH", ".config", "trail.toml")
	if err != nil {
		return Defaults{}, err
	}
	baseDir, err := fromEnvOrHome("TRAIL_HOME", ".local", "share", "trail")
	if err != nil {
		return Defaults{}, err
	}
	return Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

func fromEnvOrHome(env string, rel ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, rel...)...), nil
}
