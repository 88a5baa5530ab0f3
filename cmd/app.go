package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/kozaktomas/face-attendance/internal/calendar"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/metrics"
)

// app holds the wired services shared by the commands.
type app struct {
	cfg       *config.Config
	backend   *database.Backend
	extractor *biometric.Client
	policy    calendar.Policy
	engine    *attendance.Engine
	guard     *attendance.Guard
	stats     *attendance.Aggregator
	enroller  *attendance.Enroller
}

// openApp loads the configuration and wires storage, the extractor and the services.
// Without DATABASE_URL it falls back to in-memory stores only when allowMemory is set.
func openApp(ctx context.Context, allowMemory bool, m *metrics.Metrics) (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	policy, err := calendar.NewPolicy(cfg.Attendance.Timezone)
	if err != nil {
		return nil, err
	}

	var backend *database.Backend
	if cfg.Database.URL != "" {
		fmt.Printf("Connecting to PostgreSQL database...\n")
		backend, _, err = postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
	} else {
		if !allowMemory {
			return nil, errors.New("DATABASE_URL environment variable is required")
		}
		fmt.Printf("Warning: DATABASE_URL not set, using in-memory storage (data is lost on exit)\n")
		backend, _, _, _ = mock.NewBackend()
	}
	if err := backend.Validate(); err != nil {
		backend.Close()
		return nil, err
	}

	extractor := biometric.NewClient(cfg.Embedding.URL,
		biometric.WithModel(cfg.Matching.Model),
		biometric.WithMinDetScore(cfg.Matching.MinDetScore),
		biometric.WithMinFaceSize(cfg.Matching.MinFaceSize),
		biometric.WithDim(cfg.Embedding.Dim),
		biometric.WithHTTPClient(&http.Client{Timeout: cfg.Embedding.Timeout}),
	)

	opts := []attendance.Option{
		attendance.WithLogger(slog.Default()),
		attendance.WithMetrics(m),
		attendance.WithIndex(backend.Index),
	}

	return &app{
		cfg:       cfg,
		backend:   backend,
		extractor: extractor,
		policy:    policy,
		engine:    attendance.NewEngine(extractor, backend.Templates, cfg.Matching.Threshold, opts...),
		guard:     attendance.NewGuard(backend.Commits, backend.Profiles, policy, opts...),
		stats:     attendance.NewAggregator(backend.Commits, backend.Profiles, opts...),
		enroller: attendance.NewEnroller(extractor, backend.Templates, backend.Profiles,
			extractor.Model(), cfg.Embedding.Dim, opts...),
	}, nil
}

// warmIndex loads or rebuilds the identification index.
func (a *app) warmIndex(ctx context.Context) {
	path := a.cfg.Database.HNSWIndexPath
	if path != "" {
		fmt.Printf("Loading template HNSW index from %s...\n", path)
	} else {
		fmt.Printf("Building in-memory HNSW index for identification...\n")
	}
	n, err := a.backend.WarmIndex(ctx, path)
	if err != nil {
		fmt.Printf("Warning: Failed to build template HNSW index: %v\n", err)
		fmt.Printf("Identification without a claimed identity is unavailable\n")
		return
	}
	fmt.Printf("Template HNSW index ready with %d identities\n", n)
}

func (a *app) Close() {
	if err := a.backend.Close(); err != nil {
		fmt.Printf("Warning: failed to close storage: %v\n", err)
	}
}
