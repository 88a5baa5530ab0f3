package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// TemplateRepository provides PostgreSQL-backed reference template storage
type TemplateRepository struct {
	pool *Pool
}

// NewTemplateRepository creates a new PostgreSQL template repository
func NewTemplateRepository(pool *Pool) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

// GetTemplate retrieves the reference template of an identity
func (r *TemplateRepository) GetTemplate(ctx context.Context, identityID string) (*database.ReferenceTemplate, error) {
	query := `
		SELECT identity_id, role, template, model, dim, created_at
		FROM reference_templates
		WHERE identity_id = $1
	`

	t, err := scanTemplate(r.pool.QueryRow(ctx, query, identityID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template for %q: %w", identityID, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", classify(err))
	}
	return t, nil
}

// ListTemplates returns all reference templates
func (r *TemplateRepository) ListTemplates(ctx context.Context) ([]database.ReferenceTemplate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT identity_id, role, template, model, dim, created_at
		FROM reference_templates
		ORDER BY identity_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []database.ReferenceTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", classify(err))
	}
	return out, nil
}

// TemplateStats returns the number of templates and the newest created_at
func (r *TemplateRepository) TemplateStats(ctx context.Context) (database.TemplateStats, error) {
	var (
		stats  database.TemplateStats
		latest sql.NullTime
	)
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), MAX(created_at) FROM reference_templates`).Scan(&stats.Count, &latest)
	if err != nil {
		return database.TemplateStats{}, fmt.Errorf("template stats: %w", classify(err))
	}
	if latest.Valid {
		stats.LatestCreatedAt = latest.Time.UTC()
	}
	return stats, nil
}

// SaveTemplate stores a template, replacing the previous one for the identity
func (r *TemplateRepository) SaveTemplate(ctx context.Context, t database.ReferenceTemplate) error {
	if len(t.Template) == 0 {
		return fmt.Errorf("save template: %w", biometric.ErrDimensionMismatch)
	}

	query := `
		INSERT INTO reference_templates (identity_id, role, template, model, dim, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (identity_id) DO UPDATE SET
			role = EXCLUDED.role,
			template = EXCLUDED.template,
			model = EXCLUDED.model,
			dim = EXCLUDED.dim,
			created_at = EXCLUDED.created_at
	`

	// created_at is kept as given so the identification index can record it too
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	vec := pgvector.NewVector(t.Template)
	if _, err := r.pool.Exec(ctx, query, t.IdentityID, string(t.Role), vec, t.Model, len(t.Template),
		createdAt.UTC().Truncate(time.Microsecond)); err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*database.ReferenceTemplate, error) {
	var (
		t    database.ReferenceTemplate
		role string
		vec  pgvector.Vector
	)
	if err := row.Scan(&t.IdentityID, &role, &vec, &t.Model, &t.Dim, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Role = database.Role(role)
	t.Template = biometric.Template(vec.Slice())
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}
