package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-attendance/internal/calendar"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Matching   MatchingConfig
	Attendance AttendanceConfig
	Embedding  EmbeddingConfig
	Database   DatabaseConfig
	Web        WebConfig
	Models     ModelsConfig
}

type MatchingConfig struct {
	Threshold   float64 // maximum accepted Euclidean distance, strictly-less-than
	MinDetScore float64 // detections below this confidence are ignored
	MinFaceSize int     // smallest accepted face edge in pixels
	Model       string  // embedding model name recorded with enrolled templates
}

type AttendanceConfig struct {
	Timezone string // IANA zone that defines the calendar day (default UTC)
}

type EmbeddingConfig struct {
	URL     string        // defaults to http://localhost:8000
	Dim     int           // defaults to the model's dimension
	Timeout time.Duration // per-request timeout
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL; empty selects the in-memory store
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the template HNSW index (optional, if empty index is rebuilt on startup)
}

type WebConfig struct {
	Host     string
	Port     int
	APIToken string // bearer token for enrollment and manual commits; empty disables the check
}

type ModelsConfig struct {
	DefaultModel string                  `yaml:"default_model"`
	Models       map[string]ModelDefault `yaml:"models"`
}

type ModelDefault struct {
	Dim         int     `yaml:"dim"`
	Threshold   float64 `yaml:"threshold"`
	MinDetScore float64 `yaml:"min_det_score"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
// Range checks are left to Validate so that a bad threshold fails loudly.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func Load() *Config {
	var models ModelsConfig
	if err := yaml.Unmarshal(defaultsYAML, &models); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	model := envString("EMBEDDING_MODEL", models.DefaultModel)
	defaults := models.For(model)

	return &Config{
		Matching: MatchingConfig{
			Threshold:   envFloat("MATCH_THRESHOLD", defaults.Threshold),
			MinDetScore: envFloat("MATCH_MIN_DET_SCORE", defaults.MinDetScore),
			MinFaceSize: envInt("MATCH_MIN_FACE_SIZE", 20),
			Model:       model,
		},
		Attendance: AttendanceConfig{
			Timezone: envString("ATTENDANCE_TIMEZONE", "UTC"),
		},
		Embedding: EmbeddingConfig{
			URL:     os.Getenv("EMBEDDING_URL"),
			Dim:     envInt("EMBEDDING_DIM", defaults.Dim),
			Timeout: envDuration("EMBEDDING_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Web: WebConfig{
			Host:     envString("WEB_HOST", "0.0.0.0"),
			Port:     envInt("WEB_PORT", 8080),
			APIToken: os.Getenv("WEB_API_TOKEN"),
		},
		Models: models,
	}
}

// For returns the defaults of a model, falling back to the 128-d dlib values.
func (m ModelsConfig) For(model string) ModelDefault {
	if d, ok := m.Models[model]; ok {
		return d
	}
	return ModelDefault{Dim: 128, Threshold: 0.6, MinDetScore: 0.5}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Matching.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("match threshold must be positive, got %v", c.Matching.Threshold))
	}
	if c.Matching.MinDetScore < 0 || c.Matching.MinDetScore > 1 {
		errs = append(errs, fmt.Errorf("min detection score must be within [0, 1], got %v", c.Matching.MinDetScore))
	}
	if c.Embedding.Dim <= 0 {
		errs = append(errs, errors.New("embedding dimension must be positive"))
	}
	if _, err := calendar.NewPolicy(c.Attendance.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid attendance time zone: %w", err))
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid web port %d", c.Web.Port))
	}
	return errors.Join(errs...)
}
