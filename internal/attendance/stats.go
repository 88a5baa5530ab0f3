package attendance

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/calendar"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Aggregator derives statistics from the ledger on every call. Nothing is cached.
type Aggregator struct {
	ledger   database.CommitReader
	profiles database.ProfileReader
	settings
}

// NewAggregator creates a statistics aggregator. profiles is optional and only used
// to break daily summaries down by role.
func NewAggregator(ledger database.CommitReader, profiles database.ProfileReader, opts ...Option) *Aggregator {
	return &Aggregator{
		ledger:   ledger,
		profiles: profiles,
		settings: newSettings(opts),
	}
}

// Summarize counts the distinct dates on which identityID committed within period.
func (a *Aggregator) Summarize(ctx context.Context, identityID string, period calendar.Period, expected int) (Snapshot, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return Snapshot{}, fmt.Errorf("%w: identity id is required", ErrInvalidRequest)
	}
	if err := validatePeriod(period); err != nil {
		return Snapshot{}, err
	}
	if expected < 0 {
		return Snapshot{}, ErrInvalidExpected
	}

	commits, err := a.ledger.ListCommits(ctx, database.CommitFilter{
		IdentityID: identityID,
		Start:      period.Start,
		End:        period.End,
	})
	if err != nil {
		return Snapshot{}, storeError("ledger", err)
	}

	return buildSnapshot(identityID, period, expected, commits), nil
}

// SummarizeAll summarizes every identity with commits in the period plus every
// identity in roster. Results are sorted by identity.
func (a *Aggregator) SummarizeAll(ctx context.Context, period calendar.Period, expectation Expectation, roster []string) ([]Snapshot, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}
	if expectation == nil {
		expectation = FixedExpectation(0)
	}

	commits, err := a.ledger.ListCommits(ctx, database.CommitFilter{Start: period.Start, End: period.End})
	if err != nil {
		return nil, storeError("ledger", err)
	}

	grouped := make(map[string][]database.Commit)
	for _, id := range roster {
		if id = strings.TrimSpace(id); id != "" {
			grouped[id] = nil
		}
	}
	for _, c := range commits {
		grouped[c.IdentityID] = append(grouped[c.IdentityID], c)
	}

	ids := make([]string, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		expected := expectation(id)
		if expected < 0 {
			return nil, fmt.Errorf("%w: %d for %s", ErrInvalidExpected, expected, id)
		}
		out = append(out, buildSnapshot(id, period, expected, grouped[id]))
	}
	return out, nil
}

// Daily returns everyone present on date.
func (a *Aggregator) Daily(ctx context.Context, date calendar.Date) (DailySummary, error) {
	if date.IsZero() {
		return DailySummary{}, fmt.Errorf("%w: date is required", ErrInvalidRequest)
	}

	commits, err := a.ledger.ListCommits(ctx, database.CommitFilter{Start: date, End: date})
	if err != nil {
		return DailySummary{}, storeError("ledger", err)
	}

	summary := DailySummary{
		Date:         date,
		TotalPresent: countDistinctIdentities(commits),
		Commits:      commits,
	}
	if summary.Commits == nil {
		summary.Commits = []database.Commit{}
	}

	if a.profiles != nil && len(commits) > 0 {
		summary.ByRole = make(map[string]int)
		for _, c := range commits {
			role := "unknown"
			if p, err := a.profiles.GetProfile(ctx, c.IdentityID); err == nil && p != nil {
				role = string(p.Role)
			}
			summary.ByRole[role]++
		}
	}
	return summary, nil
}

func validatePeriod(p calendar.Period) error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidPeriod)
	}
	if !p.Valid() {
		return fmt.Errorf("%w: %s > %s", ErrInvalidPeriod, p.Start, p.End)
	}
	return nil
}

func buildSnapshot(identityID string, period calendar.Period, expected int, commits []database.Commit) Snapshot {
	s := Snapshot{
		IdentityID:    identityID,
		PeriodStart:   period.Start,
		PeriodEnd:     period.End,
		TotalExpected: expected,
	}

	seen := make(map[calendar.Date]bool, len(commits))
	for _, c := range commits {
		if c.IdentityID != identityID || !period.Contains(c.CalendarDate) || seen[c.CalendarDate] {
			continue
		}
		seen[c.CalendarDate] = true
		s.TotalCommitted++
		if c.Source == database.SourceManualOverride {
			s.Manual++
		} else {
			s.FaceMatch++
		}
	}

	if expected > 0 {
		r := float64(s.TotalCommitted) / float64(expected)
		s.Ratio = &r
	}
	return s
}

func countDistinctIdentities(commits []database.Commit) int {
	seen := make(map[string]struct{}, len(commits))
	for _, c := range commits {
		seen[c.IdentityID] = struct{}{}
	}
	return len(seen)
}
