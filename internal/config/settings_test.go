package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	settings, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.BaseURL != DefaultBaseURL {
		t.Fatalf("base url = %q", settings.BaseURL)
	}
	if settings.TimeoutS != DefaultTimeoutS {
		t.Fatalf("timeout = %d", settings.TimeoutS)
	}
	if settings.Timeout() != time.Duration(DefaultTimeoutS)*time.Second {
		t.Fatalf("timeout duration = %v", settings.Timeout())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	in := Settings{
		BaseURL:  "http://dashboard:8000/", // trailing slash is normalized away
		APIKey:   "sekrit",
		TimeoutS: 30,
	}
	if err := Save(path, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.BaseURL != "http://dashboard:8000" {
		t.Fatalf("base url = %q", out.BaseURL)
	}
	if out.APIKey != "sekrit" || out.TimeoutS != 30 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(path, Settings{BaseURL: "http://from-file:8000"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	t.Setenv("NEWSLETTERR_URL", "http://from-env:9000")
	t.Setenv("NEWSLETTERR_API_KEY", "env-key")

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.BaseURL != "http://from-env:9000" {
		t.Fatalf("base url = %q, want env override", settings.BaseURL)
	}
	if settings.APIKey != "env-key" {
		t.Fatalf("api key = %q", settings.APIKey)
	}
}

func TestLoadRejectsInvalidTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(path, Settings{TimeoutS: -5}); err != nil {
		t.Fatalf("save: %v", err)
	}
	settings, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.TimeoutS != DefaultTimeoutS {
		t.Fatalf("timeout = %d, want default for invalid values", settings.TimeoutS)
	}
}
