package database

import (
	"context"

	"github.com/kozaktomas/face-attendance/internal/calendar"
)

// TemplateReader provides read-only access to enrolled reference templates
type TemplateReader interface {
	// GetTemplate returns the reference template of an identity, ErrNotFound if none is enrolled
	GetTemplate(ctx context.Context, identityID string) (*ReferenceTemplate, error)
	// ListTemplates returns every enrolled template, used to build the identification index
	ListTemplates(ctx context.Context) ([]ReferenceTemplate, error)
	// TemplateStats returns the template count and the newest created_at
	TemplateStats(ctx context.Context) (TemplateStats, error)
}

// TemplateWriter provides write access to reference templates
type TemplateWriter interface {
	TemplateReader

	// SaveTemplate stores the template, replacing any previous one for the identity
	SaveTemplate(ctx context.Context, tmpl ReferenceTemplate) error
}

// ProfileReader provides read-only access to identity profiles
type ProfileReader interface {
	// IdentityExists reports whether a profile exists for the identity
	IdentityExists(ctx context.Context, identityID string) (bool, error)
	// GetProfile returns the profile, ErrNotFound if none exists
	GetProfile(ctx context.Context, identityID string) (*Profile, error)
	// ListProfiles returns all profiles, optionally limited to one role (empty role = all)
	ListProfiles(ctx context.Context, role Role) ([]Profile, error)
}

// ProfileWriter provides write access to identity profiles
type ProfileWriter interface {
	ProfileReader

	// SaveProfile creates or updates a profile
	SaveProfile(ctx context.Context, p Profile) error
}

// CommitReader provides read-only access to the commit ledger
type CommitReader interface {
	// FindCommit returns the commit for (identity, date), nil if none exists
	FindCommit(ctx context.Context, identityID string, date calendar.Date) (*Commit, error)
	// ListCommits returns commits matching the filter ordered by date, then identity
	ListCommits(ctx context.Context, filter CommitFilter) ([]Commit, error)
}

// CommitWriter provides the ledger's single write primitive
type CommitWriter interface {
	CommitReader

	// InsertCommitIfAbsent atomically inserts c unless a commit already exists for
	// (c.IdentityID, c.CalendarDate). It returns the stored commit and whether c was
	// the one inserted; on conflict the stored commit is the pre-existing one.
	InsertCommitIfAbsent(ctx context.Context, c Commit) (*Commit, bool, error)
}
