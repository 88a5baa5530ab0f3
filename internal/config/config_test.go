package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"MATCH_THRESHOLD", "MATCH_MIN_DET_SCORE", "MATCH_MIN_FACE_SIZE", "EMBEDDING_MODEL",
		"EMBEDDING_DIM", "ATTENDANCE_TIMEZONE", "WEB_PORT", "EMBEDDING_TIMEOUT",
	} {
		os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.Matching.Threshold != 0.6 {
		t.Errorf("expected default threshold 0.6, got %v", cfg.Matching.Threshold)
	}
	if cfg.Matching.Model != "dlib_resnet_v1" {
		t.Errorf("expected default model dlib_resnet_v1, got %q", cfg.Matching.Model)
	}
	if cfg.Matching.MinFaceSize != 20 {
		t.Errorf("expected min face size 20, got %d", cfg.Matching.MinFaceSize)
	}
	if cfg.Embedding.Dim != 128 {
		t.Errorf("expected default embedding dim 128, got %d", cfg.Embedding.Dim)
	}
	if cfg.Embedding.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %v", cfg.Embedding.Timeout)
	}
	if cfg.Attendance.Timezone != "UTC" {
		t.Errorf("expected UTC time zone, got %q", cfg.Attendance.Timezone)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Web.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad_ModelDefaults(t *testing.T) {
	t.Setenv("EMBEDDING_MODEL", "arcface_r100")
	os.Unsetenv("MATCH_THRESHOLD")
	os.Unsetenv("EMBEDDING_DIM")

	cfg := Load()

	if cfg.Embedding.Dim != 512 {
		t.Errorf("expected arcface dim 512, got %d", cfg.Embedding.Dim)
	}
	if cfg.Matching.Threshold != 1.24 {
		t.Errorf("expected arcface threshold 1.24, got %v", cfg.Matching.Threshold)
	}
}

func TestLoad_UnknownModelFallsBack(t *testing.T) {
	t.Setenv("EMBEDDING_MODEL", "homegrown")
	os.Unsetenv("MATCH_THRESHOLD")
	os.Unsetenv("EMBEDDING_DIM")

	cfg := Load()

	if cfg.Matching.Model != "homegrown" {
		t.Errorf("model name should be kept, got %q", cfg.Matching.Model)
	}
	if cfg.Embedding.Dim != 128 || cfg.Matching.Threshold != 0.6 {
		t.Errorf("expected dlib fallback defaults, got dim=%d threshold=%v", cfg.Embedding.Dim, cfg.Matching.Threshold)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MATCH_THRESHOLD", "0.45")
	t.Setenv("ATTENDANCE_TIMEZONE", "Europe/Prague")
	t.Setenv("EMBEDDING_DIM", "256")
	t.Setenv("WEB_PORT", "9000")
	t.Setenv("EMBEDDING_TIMEOUT", "5s")

	cfg := Load()

	if cfg.Matching.Threshold != 0.45 {
		t.Errorf("expected threshold 0.45, got %v", cfg.Matching.Threshold)
	}
	if cfg.Attendance.Timezone != "Europe/Prague" {
		t.Errorf("expected Europe/Prague, got %q", cfg.Attendance.Timezone)
	}
	if cfg.Embedding.Dim != 256 {
		t.Errorf("expected dim 256, got %d", cfg.Embedding.Dim)
	}
	if cfg.Web.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Web.Port)
	}
	if cfg.Embedding.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", cfg.Embedding.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "invalid")
	t.Setenv("MATCH_THRESHOLD", "abc")
	os.Unsetenv("EMBEDDING_MODEL")

	cfg := Load()

	if cfg.Embedding.Dim != 128 {
		t.Errorf("expected default embedding dim 128 for invalid input, got %d", cfg.Embedding.Dim)
	}
	if cfg.Matching.Threshold != 0.6 {
		t.Errorf("expected default threshold for invalid input, got %v", cfg.Matching.Threshold)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Matching:   MatchingConfig{Threshold: 0.6, MinDetScore: 0.5},
			Attendance: AttendanceConfig{Timezone: "UTC"},
			Embedding:  EmbeddingConfig{Dim: 128},
			Web:        WebConfig{Port: 8080},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero threshold", func(c *Config) { c.Matching.Threshold = 0 }, true},
		{"negative threshold", func(c *Config) { c.Matching.Threshold = -0.1 }, true},
		{"detection score above one", func(c *Config) { c.Matching.MinDetScore = 1.5 }, true},
		{"unknown time zone", func(c *Config) { c.Attendance.Timezone = "Nowhere/Land" }, true},
		{"prague", func(c *Config) { c.Attendance.Timezone = "Europe/Prague" }, false},
		{"zero dim", func(c *Config) { c.Embedding.Dim = 0 }, true},
		{"bad port", func(c *Config) { c.Web.Port = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
