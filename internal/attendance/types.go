// Package attendance verifies claimed identities against enrolled templates and
// commits at most one presence event per identity per calendar day.
package attendance

import (
	"log/slog"
	"time"

	"github.com/kozaktomas/face-attendance/internal/calendar"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/metrics"
)

// VerificationResult is the outcome of one verification attempt. It is the input
// to Guard.TryCommit and is never persisted.
type VerificationResult struct {
	IdentityID string    `json:"identity_id"`
	Matched    bool      `json:"matched"`
	Distance   float64   `json:"distance"`
	Threshold  float64   `json:"threshold"`
	Timestamp  time.Time `json:"timestamp"`
}

// CommitStatus is the decision outcome of a commit attempt.
type CommitStatus string

const (
	StatusCommitted CommitStatus = "committed"
	StatusDuplicate CommitStatus = "duplicate"
	StatusNoMatch   CommitStatus = "no_match"
)

// CommitOutcome carries the stored commit for StatusCommitted and the pre-existing
// commit for StatusDuplicate. Commit is nil for StatusNoMatch.
type CommitOutcome struct {
	Status CommitStatus     `json:"status"`
	Commit *database.Commit `json:"commit,omitempty"`
}

// ManualRequest records presence without a face match.
type ManualRequest struct {
	IdentityID string
	At         time.Time // zero means now
	Location   string
	Subject    string
	Reason     string
}

// Snapshot is a derived per-identity summary over an inclusive period.
type Snapshot struct {
	IdentityID     string        `json:"identity_id"`
	PeriodStart    calendar.Date `json:"period_start"`
	PeriodEnd      calendar.Date `json:"period_end"`
	TotalExpected  int           `json:"total_expected"`
	TotalCommitted int           `json:"total_committed"`
	FaceMatch      int           `json:"face_match"`
	Manual         int           `json:"manual"`
	// Ratio is TotalCommitted/TotalExpected; nil when nothing was expected.
	Ratio *float64 `json:"ratio"`
}

// DailySummary lists who was present on one date.
type DailySummary struct {
	Date         calendar.Date     `json:"date"`
	TotalPresent int               `json:"total_present"`
	ByRole       map[string]int    `json:"by_role,omitempty"`
	Commits      []database.Commit `json:"records"`
}

// Expectation returns the externally owned number of expected occurrences for an identity.
type Expectation func(identityID string) int

// FixedExpectation expects the same count from everyone.
func FixedExpectation(n int) Expectation {
	return func(string) int { return n }
}

type settings struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	index   *database.TemplateIndex
}

// Option configures the services of this package.
type Option func(*settings)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIndex enables 1:N identification and index maintenance on enrollment.
func WithIndex(idx *database.TemplateIndex) Option {
	return func(s *settings) { s.index = idx }
}

func newSettings(opts []Option) settings {
	s := settings{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
