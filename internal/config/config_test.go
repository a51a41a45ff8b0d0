package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/pkgraph")
	os.Setenv("OPENAI_API_KEY", "sk-test")
	os.Setenv("JWT_SECRET", "test-secret")
	defer os.Unsetenv("DATABASE_URL")
	defer os.Unsetenv("OPENAI_API_KEY")
	defer os.Unsetenv("JWT_SECRET")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("HTTP.Port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.Dedup.AutoMergeThreshold != 0.85 {
		t.Errorf("Dedup.AutoMergeThreshold = %v, want 0.85", cfg.Dedup.AutoMergeThreshold)
	}
	if cfg.Approval.AutoPromoteCount != 3 {
		t.Errorf("Approval.AutoPromoteCount = %d, want 3", cfg.Approval.AutoPromoteCount)
	}
	if cfg.Auth.RefreshTokenTTL != 720*time.Hour {
		t.Errorf("Auth.RefreshTokenTTL = %v, want 720h", cfg.Auth.RefreshTokenTTL)
	}
}

func TestLoadMissingRequiredErrors(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("OPENAI_API_KEY")
	os.Unsetenv("JWT_SECRET")

	if _, err := Load(); err == nil {
		t.Fatal("Load() with no required env vars set should return an error")
	}
}
