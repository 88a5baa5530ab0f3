package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/calendar"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Guard turns matched verification results into ledger commits. Per (identity, date)
// the only transition is Unseen -> Committed; the ledger's atomic insert decides the
// winner, so several processes may share one ledger.
type Guard struct {
	ledger   database.CommitWriter
	profiles database.ProfileReader
	policy   calendar.Policy
	settings
}

// NewGuard creates a commit guard. profiles may be nil, in which case commits are
// not enriched with names and manual commits cannot be validated.
func NewGuard(ledger database.CommitWriter, profiles database.ProfileReader, policy calendar.Policy, opts ...Option) *Guard {
	return &Guard{
		ledger:   ledger,
		profiles: profiles,
		policy:   policy,
		settings: newSettings(opts),
	}
}

// Policy returns the calendar policy used to derive commit dates.
func (g *Guard) Policy() calendar.Policy {
	return g.policy
}

// TryCommit records presence for a matched result. Unmatched results return
// StatusNoMatch without touching the ledger; an existing commit for the same
// identity and date returns StatusDuplicate carrying that original commit.
func (g *Guard) TryCommit(ctx context.Context, result VerificationResult, location, subject string) (CommitOutcome, error) {
	if !result.Matched {
		g.metrics.IncrementCommit(string(StatusNoMatch), string(database.SourceFaceMatch))
		return CommitOutcome{Status: StatusNoMatch}, nil
	}
	if result.IdentityID == "" {
		return CommitOutcome{}, fmt.Errorf("%w: matched result without identity", ErrInvalidRequest)
	}
	if result.Timestamp.IsZero() {
		return CommitOutcome{}, fmt.Errorf("%w: verification timestamp is missing", ErrInvalidRequest)
	}

	c := database.Commit{
		IdentityID:   result.IdentityID,
		CalendarDate: g.policy.DateOf(result.Timestamp),
		Timestamp:    result.Timestamp.UTC(),
		Distance:     result.Distance,
		Location:     strings.TrimSpace(location),
		Subject:      strings.TrimSpace(subject),
		Source:       database.SourceFaceMatch,
	}
	return g.insert(ctx, c)
}

// CommitManual records presence decided by a person instead of a face match.
// It goes through the same atomic insert and never overwrites an existing commit.
func (g *Guard) CommitManual(ctx context.Context, req ManualRequest) (CommitOutcome, error) {
	req.IdentityID = strings.TrimSpace(req.IdentityID)
	if req.IdentityID == "" {
		return CommitOutcome{}, fmt.Errorf("%w: identity id is required", ErrInvalidRequest)
	}
	if g.profiles == nil {
		return CommitOutcome{}, errors.New("manual commits require a profile store")
	}

	exists, err := g.profiles.IdentityExists(ctx, req.IdentityID)
	if err != nil {
		return CommitOutcome{}, storeError("profile store", err)
	}
	if !exists {
		return CommitOutcome{}, fmt.Errorf("%w: %s", ErrIdentityNotFound, req.IdentityID)
	}

	at := req.At
	if at.IsZero() {
		at = g.now()
	}

	c := database.Commit{
		IdentityID:   req.IdentityID,
		CalendarDate: g.policy.DateOf(at),
		Timestamp:    at.UTC(),
		Location:     strings.TrimSpace(req.Location),
		Subject:      strings.TrimSpace(req.Subject),
		Source:       database.SourceManualOverride,
		Reason:       strings.TrimSpace(req.Reason),
	}
	return g.insert(ctx, c)
}

func (g *Guard) insert(ctx context.Context, c database.Commit) (CommitOutcome, error) {
	c.ID = uuid.NewString()
	c.IdentityName = g.identityName(ctx, c.IdentityID)

	// Nothing has been written yet; a cancelled request must leave no state.
	if err := ctx.Err(); err != nil {
		return CommitOutcome{}, err
	}

	stored, inserted, err := g.ledger.InsertCommitIfAbsent(ctx, c)
	if err != nil {
		g.logger.ErrorContext(ctx, "commit failed",
			"identity_id", c.IdentityID, "date", c.CalendarDate, "source", c.Source, "error", err)
		return CommitOutcome{}, storeError("ledger", err)
	}

	status := StatusCommitted
	if !inserted {
		status = StatusDuplicate
	}
	g.metrics.IncrementCommit(string(status), string(c.Source))
	g.logger.InfoContext(ctx, "commit attempt",
		"identity_id", c.IdentityID,
		"date", c.CalendarDate,
		"source", c.Source,
		"status", status,
		"commit_id", stored.ID,
	)
	return CommitOutcome{Status: status, Commit: stored}, nil
}

// identityName looks up the display name. Enrichment never blocks a commit.
func (g *Guard) identityName(ctx context.Context, identityID string) string {
	if g.profiles == nil {
		return ""
	}
	p, err := g.profiles.GetProfile(ctx, identityID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			g.logger.WarnContext(ctx, "profile lookup failed, committing without name",
				"identity_id", identityID, "error", err)
		}
		return ""
	}
	if p == nil {
		return ""
	}
	return p.Name
}

// storeError maps a collaborator failure onto ErrUnavailable unless it is a
// cancellation, which is passed through unchanged.
func storeError(store string, err error) error {
	if isContextErr(err) {
		return err
	}
	if errors.Is(err, database.ErrUnavailable) {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, store, err)
	}
	return fmt.Errorf("%s: %w", store, err)
}
