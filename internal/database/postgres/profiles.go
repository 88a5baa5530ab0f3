package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// ProfileRepository provides PostgreSQL-backed profile storage
type ProfileRepository struct {
	pool *Pool
}

// NewProfileRepository creates a new PostgreSQL profile repository
func NewProfileRepository(pool *Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// IdentityExists checks whether a profile exists
func (r *ProfileRepository) IdentityExists(ctx context.Context, identityID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM profiles WHERE identity_id = $1)", identityID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check identity: %w", classify(err))
	}
	return exists, nil
}

// GetProfile retrieves a profile by identity
func (r *ProfileRepository) GetProfile(ctx context.Context, identityID string) (*database.Profile, error) {
	query := `
		SELECT identity_id, role, name, department, created_at
		FROM profiles
		WHERE identity_id = $1
	`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, identityID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %q: %w", identityID, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", classify(err))
	}
	return p, nil
}

// ListProfiles returns profiles ordered by identity, optionally limited to a role
func (r *ProfileRepository) ListProfiles(ctx context.Context, role database.Role) ([]database.Profile, error) {
	query := `
		SELECT identity_id, role, name, department, created_at
		FROM profiles
		WHERE ($1::text = '' OR role = $1::text)
		ORDER BY identity_id
	`

	rows, err := r.pool.Query(ctx, query, string(role))
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []database.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", classify(err))
	}
	return out, nil
}

// SaveProfile creates or updates a profile
func (r *ProfileRepository) SaveProfile(ctx context.Context, p database.Profile) error {
	query := `
		INSERT INTO profiles (identity_id, role, name, name_normalized, department)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identity_id) DO UPDATE SET
			role = EXCLUDED.role,
			name = EXCLUDED.name,
			name_normalized = EXCLUDED.name_normalized,
			department = EXCLUDED.department,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, p.IdentityID, string(p.Role), p.Name, database.NormalizeName(p.Name), p.Department)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func scanProfile(row rowScanner) (*database.Profile, error) {
	var (
		p    database.Profile
		role string
	)
	if err := row.Scan(&p.IdentityID, &role, &p.Name, &p.Department, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Role = database.Role(role)
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}
