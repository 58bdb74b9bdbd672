package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/spigell/jobradar/internal/model"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	configureViper()
	t.Cleanup(viper.Reset)
}

func TestGetConfigDefaults(t *testing.T) {
	resetViper(t)

	cfg, err := getConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Scoring.GateThreshold != 70 || cfg.Scoring.AlgorithmicBlend != 0.6 || cfg.Scoring.ModelBlend != 0.4 {
		t.Fatalf("unexpected scoring defaults: %+v", cfg.Scoring)
	}
	if cfg.Scoring.Weights != model.DefaultWeights() {
		t.Fatalf("unexpected weights: %+v", cfg.Scoring.Weights)
	}
	if cfg.Notify.Gate.ImmediateFloor != 80 || cfg.Notify.Gate.DigestFloor != 60 || cfg.Notify.Gate.DailyCap != 1 {
		t.Fatalf("unexpected gate defaults: %+v", cfg.Notify.Gate)
	}
	if cfg.Cache.ListingTTL != 72*time.Hour || cfg.AI.CacheTTL != time.Hour {
		t.Fatalf("unexpected ttls: %s %s", cfg.Cache.ListingTTL, cfg.AI.CacheTTL)
	}
	if cfg.Scheduler.Workers != 10 || cfg.Scheduler.Spec != "0 6 * * *" || cfg.Scheduler.WeeklyDay != "monday" {
		t.Fatalf("unexpected scheduler defaults: %+v", cfg.Scheduler)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.RateLimit.Default.Size != time.Hour {
		t.Fatalf("unexpected retry or rate limit defaults: %+v %+v", cfg.Retry, cfg.RateLimit)
	}
	if cfg.API.Addr != ":8080" || cfg.DatabaseURL != "" {
		t.Fatalf("unexpected api or database defaults: %q %q", cfg.API.Addr, cfg.DatabaseURL)
	}
}

func TestGetConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("JOBRADAR_SCHEDULER_WORKERS", "3")
	t.Setenv("JOBRADAR_SCORING_GATE_THRESHOLD", "75")
	t.Setenv("JOBRADAR_DATABASE_URL", "postgres://localhost/jobradar")
	resetViper(t)

	cfg, err := getConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Scheduler.Workers != 3 || cfg.Scoring.GateThreshold != 75 {
		t.Fatalf("environment not applied: %+v %+v", cfg.Scheduler, cfg.Scoring)
	}
	if cfg.DatabaseURL != "postgres://localhost/jobradar" {
		t.Fatalf("unexpected database url %q", cfg.DatabaseURL)
	}
}

func TestGetConfigValidates(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{"scoring.model-blend", 2},
		{"notify.gate.immediate-floor", 120},
		{"retry.max-attempts", 0},
		{"scheduler.weekly-day", "someday"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			resetViper(t)
			viper.Set(tt.key, tt.value)

			_, err := getConfig()
			if err == nil || !strings.Contains(err.Error(), "validate config") {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGetConfigSecretFileWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gemini")
	if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	t.Setenv("GEMINI_API_KEY_FILE", path)
	resetViper(t)
	viper.Set("ai.gemini.api-key", "inline")
	viper.Set("sources.headhunter.token", "hh-inline")

	cfg, err := getConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AI.Gemini.APIKey != "from-file" {
		t.Fatalf("expected the file secret, got %q", cfg.AI.Gemini.APIKey)
	}
	if cfg.Sources.Headhunter.Token != "hh-inline" {
		t.Fatalf("inline secret without a file must be kept, got %q", cfg.Sources.Headhunter.Token)
	}
}

func TestGetConfigMissingSecretFile(t *testing.T) {
	resetViper(t)
	viper.Set("secrets.adzuna-app-key-file", filepath.Join(t.TempDir(), "absent"))

	if _, err := getConfig(); err == nil {
		t.Fatalf("expected an error for an unreadable secret file")
	}
}

func TestLoadSeed(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "users.json")
	content := `[{"preferences": {"user_id": "u1", "titles": ["Backend Engineer"], "cadence": "daily", "auto_search_enabled": true},
	             "profile": {"skills": ["Go", "SQL"], "experience_level": "mid"}}]`
	if err := os.WriteFile(good, []byte(content), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	users, err := loadSeed(good)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 1 || users[0].Profile.UserID != "u1" || users[0].Preferences.Cadence != model.CadenceDaily {
		t.Fatalf("unexpected seed: %+v", users)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`[{"preferences": {"titles": ["x"]}}]`), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := loadSeed(bad); err == nil {
		t.Fatalf("expected an error for an entry without user id")
	}

	if users, err := loadSeed(""); err != nil || users != nil {
		t.Fatalf("empty path must load nothing, got %v %v", users, err)
	}
}
