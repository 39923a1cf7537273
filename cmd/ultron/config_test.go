package main

import (
	"testing"
	"time"

	"github.com/ultronlabs/ultron/internal/config"
)

func TestGetConfigValue(t *testing.T) {
	cfg := config.Default()
	cfg.Anthropic.APIKey = "sk-secret"

	got, err := getConfigValue(cfg, "anthropic.api_key")
	if err != nil {
		t.Fatalf("getConfigValue: %v", err)
	}
	if got != "****" {
		t.Errorf("api key displayed as %q, want masked", got)
	}

	got, err = getConfigValue(cfg, "quality.threshold")
	if err != nil {
		t.Fatalf("getConfigValue: %v", err)
	}
	if got != "7" {
		t.Errorf("quality.threshold = %q, want 7", got)
	}

	if _, err := getConfigValue(cfg, "no.such.key"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestApplyConfigValue(t *testing.T) {
	cfg := config.Default()

	if err := applyConfigValue(cfg, "quality.threshold", "9"); err != nil {
		t.Fatalf("applyConfigValue: %v", err)
	}
	if cfg.Quality.Threshold != 9 {
		t.Errorf("threshold = %d, want 9", cfg.Quality.Threshold)
	}

	if err := applyConfigValue(cfg, "quality.threshold", "11"); err == nil {
		t.Error("expected error for out-of-range threshold")
	}

	if err := applyConfigValue(cfg, "shell.timeout", "90s"); err != nil {
		t.Fatalf("applyConfigValue: %v", err)
	}
	if cfg.Shell.Timeout != 90*time.Second {
		t.Errorf("timeout = %s, want 90s", cfg.Shell.Timeout)
	}

	if err := applyConfigValue(cfg, "anthropic.use_bedrock", "true"); err != nil {
		t.Fatalf("applyConfigValue: %v", err)
	}
	if !cfg.Anthropic.UseBedrock {
		t.Error("use_bedrock not set")
	}

	if err := applyConfigValue(cfg, "limits.max_steps", "not-a-number"); err == nil {
		t.Error("expected error for non-numeric value")
	}
}
