package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/calendar"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// CommitRepository is the PostgreSQL commit ledger. Uniqueness of
// (identity_id, calendar_date) is enforced by the commits_identity_date_key constraint.
type CommitRepository struct {
	pool *Pool
}

// NewCommitRepository creates a new PostgreSQL commit ledger
func NewCommitRepository(pool *Pool) *CommitRepository {
	return &CommitRepository{pool: pool}
}

const commitColumns = `id, identity_id, identity_name, to_char(calendar_date, 'YYYY-MM-DD'), ts,
	distance, location, subject, source, reason, created_at`

// InsertCommitIfAbsent inserts c unless a commit for the same identity and date exists.
// On conflict the existing row is returned with inserted=false.
func (r *CommitRepository) InsertCommitIfAbsent(ctx context.Context, c database.Commit) (*database.Commit, bool, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	query := `
		INSERT INTO commits (id, identity_id, identity_name, calendar_date, ts, distance, location, subject, source, reason)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (identity_id, calendar_date) DO NOTHING
		RETURNING ` + commitColumns

	stored, err := scanCommit(r.pool.QueryRow(ctx, query,
		c.ID, c.IdentityID, c.IdentityName, c.CalendarDate.String(), c.Timestamp.UTC(),
		c.Distance, c.Location, c.Subject, string(c.Source), c.Reason,
	))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("insert commit: %w", classify(err))
	}

	// Conflict: the winning row is committed, so it must be visible now.
	existing, err := r.FindCommit(ctx, c.IdentityID, c.CalendarDate)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("%w: conflicting commit for %s on %s not readable",
			database.ErrUnavailable, c.IdentityID, c.CalendarDate)
	}
	return existing, false, nil
}

// FindCommit returns the commit for (identity, date), nil if none exists
func (r *CommitRepository) FindCommit(ctx context.Context, identityID string, date calendar.Date) (*database.Commit, error) {
	query := `SELECT ` + commitColumns + `
		FROM commits
		WHERE identity_id = $1 AND calendar_date = $2::date
	`

	c, err := scanCommit(r.pool.QueryRow(ctx, query, identityID, date.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find commit: %w", classify(err))
	}
	return c, nil
}

// ListCommits returns commits matching the filter ordered by date, then identity
func (r *CommitRepository) ListCommits(ctx context.Context, filter database.CommitFilter) ([]database.Commit, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.IdentityID != "" {
		add("identity_id = $%d", filter.IdentityID)
	}
	if !filter.Start.IsZero() {
		add("calendar_date >= $%d::date", filter.Start.String())
	}
	if !filter.End.IsZero() {
		add("calendar_date <= $%d::date", filter.End.String())
	}
	if filter.Source != "" {
		add("source = $%d", string(filter.Source))
	}

	query := `SELECT ` + commitColumns + ` FROM commits`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY calendar_date, identity_id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	defer rows.Close()

	var out []database.Commit
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commits: %w", classify(err))
	}
	return out, nil
}

func scanCommit(row rowScanner) (*database.Commit, error) {
	var (
		c      database.Commit
		date   string
		source string
	)
	err := row.Scan(
		&c.ID,
		&c.IdentityID,
		&c.IdentityName,
		&date,
		&c.Timestamp,
		&c.Distance,
		&c.Location,
		&c.Subject,
		&source,
		&c.Reason,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.CalendarDate, err = calendar.ParseDate(date)
	if err != nil {
		return nil, err
	}
	c.Source = database.Source(source)
	c.Timestamp = c.Timestamp.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}
