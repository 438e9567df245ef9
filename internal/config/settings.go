package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

const (
	DefaultBaseURL  = "http://localhost:8000"
	DefaultTimeoutS = 15
)

// Settings is the persisted client configuration. Environment variables
// override the file on load.
type Settings struct {
	BaseURL  string `json:"base_url,omitempty" env:"NEWSLETTERR_URL"`
	APIKey   string `json:"api_key,omitempty" env:"NEWSLETTERR_API_KEY"`
	TimeoutS int    `json:"timeout_s,omitempty" env:"NEWSLETTERR_TIMEOUT_S"`
}

func (s Settings) Timeout() time.Duration {
	return time.Duration(s.TimeoutS) * time.Second
}

func defaultSettings() Settings {
	return Settings{
		BaseURL:  DefaultBaseURL,
		TimeoutS: DefaultTimeoutS,
	}
}

func normalizeSettings(raw Settings) Settings {
	norm := raw
	norm.BaseURL = strings.TrimRight(strings.TrimSpace(norm.BaseURL), "/")
	if norm.BaseURL == "" {
		norm.BaseURL = DefaultBaseURL
	}
	norm.APIKey = strings.TrimSpace(norm.APIKey)
	if norm.TimeoutS <= 0 {
		norm.TimeoutS = DefaultTimeoutS
	}
	return norm
}

// DefaultPath is the settings file location, under the user config dir when
// resolvable.
func DefaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil || strings.TrimSpace(base) == "" {
		return filepath.Join(".", "newsletterctl.json")
	}
	return filepath.Join(base, "newsletterctl", "config.json")
}

// Load reads the settings file (defaults when absent), normalizes it, and
// applies environment overrides.
func Load(path string) (Settings, error) {
	settings := defaultSettings()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &settings); err != nil {
			return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// first run, defaults apply
	default:
		return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}

	if err := env.Parse(&settings); err != nil {
		return Settings{}, fmt.Errorf("parse settings environment: %w", err)
	}
	return normalizeSettings(settings), nil
}

// Save writes the settings file atomically: write a temp file in the target
// directory, then rename over the destination.
func Save(path string, settings Settings) error {
	norm := normalizeSettings(settings)
	data, err := json.MarshalIndent(norm, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings for %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, ".newsletterctl-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}
