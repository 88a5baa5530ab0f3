package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// EnrollRequest registers or re-registers an identity.
type EnrollRequest struct {
	IdentityID string
	Role       database.Role
	Name       string
	Department string
	Sample     []byte
}

// Enroller stores profiles and reference templates.
type Enroller struct {
	extractor biometric.Extractor
	templates database.TemplateWriter
	profiles  database.ProfileWriter
	model     string
	dim       int
	settings
}

// NewEnroller creates an enroller. dim > 0 rejects templates of any other length.
func NewEnroller(extractor biometric.Extractor, templates database.TemplateWriter, profiles database.ProfileWriter, model string, dim int, opts ...Option) *Enroller {
	return &Enroller{
		extractor: extractor,
		templates: templates,
		profiles:  profiles,
		model:     model,
		dim:       dim,
		settings:  newSettings(opts),
	}
}

// Enroll extracts a template from the sample and stores it with the profile.
// Re-enrolling replaces the reference template.
func (e *Enroller) Enroll(ctx context.Context, req EnrollRequest) (*database.Profile, error) {
	req.IdentityID = strings.TrimSpace(req.IdentityID)
	req.Name = strings.TrimSpace(req.Name)
	if req.IdentityID == "" {
		return nil, fmt.Errorf("%w: identity id is required", ErrInvalidRequest)
	}
	if req.Role == "" {
		req.Role = database.RoleStudent
	}
	if !req.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidRequest, req.Role)
	}
	if len(req.Sample) == 0 {
		return nil, fmt.Errorf("%w: empty sample", ErrInvalidSample)
	}

	tmpl, err := e.extractor.Extract(ctx, req.Sample)
	if err != nil {
		return nil, err
	}
	if len(tmpl) == 0 || (e.dim > 0 && len(tmpl) != e.dim) {
		return nil, fmt.Errorf("%w: got %d, expected %d", biometric.ErrDimensionMismatch, len(tmpl), e.dim)
	}

	now := e.now().UTC().Truncate(time.Microsecond)
	profile := database.Profile{
		IdentityID: req.IdentityID,
		Role:       req.Role,
		Name:       req.Name,
		Department: strings.TrimSpace(req.Department),
		CreatedAt:  now,
	}
	if err := e.profiles.SaveProfile(ctx, profile); err != nil {
		return nil, storeError("profile store", err)
	}

	ref := database.ReferenceTemplate{
		IdentityID: req.IdentityID,
		Role:       req.Role,
		Template:   tmpl,
		Model:      e.model,
		Dim:        len(tmpl),
		CreatedAt:  now,
	}
	if err := e.templates.SaveTemplate(ctx, ref); err != nil {
		return nil, storeError("template directory", err)
	}

	if e.index != nil {
		if err := e.index.Add(ref); err != nil {
			// the directory is authoritative; the index catches up on the next rebuild
			e.logger.WarnContext(ctx, "failed to index template", "identity_id", req.IdentityID, "error", err)
		}
	}

	e.logger.InfoContext(ctx, "identity enrolled", "identity_id", req.IdentityID, "role", req.Role, "dim", len(tmpl))
	return &profile, nil
}
