package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/kozaktomas/face-attendance/internal/calendar"
	"github.com/kozaktomas/face-attendance/internal/database"
)

func TestEnroll(t *testing.T) {
	f := newFixture()
	idx := database.NewTemplateIndex()
	ext := &fakeExtractor{tmpl: offsetTemplate(4, 0.3)}
	enroller := NewEnroller(ext, f.templates, f.profiles, "test_model", 4, WithLogger(testLogger), WithIndex(idx))

	profile, err := enroller.Enroll(context.Background(), EnrollRequest{
		IdentityID: " S1 ",
		Role:       database.RoleStudent,
		Name:       "Alice Nováková",
		Department: "1.A",
		Sample:     sample,
	})
	require.NoError(t, err)
	assert.Equal(t, "S1", profile.IdentityID)
	assert.Equal(t, "Alice Nováková", profile.Name)

	ref, err := f.templates.GetTemplate(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, "test_model", ref.Model)
	assert.Equal(t, 4, ref.Dim)
	assert.Equal(t, biometric.Template{0.3, 0, 0, 0}, ref.Template)

	exists, err := f.profiles.IdentityExists(context.Background(), "S1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, idx.Count())
}

func TestEnroll_KeepsWarmedIndexInStepWithDirectory(t *testing.T) {
	f := newFixture()
	f.enroll("S1", "Alice", database.RoleStudent, 4)
	_, err := f.backend.WarmIndex(context.Background(), "")
	require.NoError(t, err)

	// nanoseconds are dropped so the stored created_at matches what the index records
	now := time.Date(2024, time.February, 7, 8, 0, 0, 123456789, time.UTC)
	ext := &fakeExtractor{tmpl: offsetTemplate(4, 0.3)}
	enroller := NewEnroller(ext, f.templates, f.profiles, "test_model", 4,
		WithLogger(testLogger), WithClock(fixedClock(now)), WithIndex(f.backend.Index))

	for _, id := range []string{"S2", "S1"} {
		_, err := enroller.Enroll(context.Background(), EnrollRequest{IdentityID: id, Sample: sample})
		require.NoError(t, err)
	}

	stats, err := f.templates.TemplateStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.True(t, stats.LatestCreatedAt.Equal(now.Truncate(time.Microsecond)))
	assert.True(t, f.backend.Index.Fresh(stats), "metadata %+v", f.backend.Index.Metadata())
	assert.Equal(t, 2, f.backend.Index.Count())
}

func TestEnroll_ThenVerifyAndCommit(t *testing.T) {
	f := newFixture()
	ext := &fakeExtractor{tmpl: offsetTemplate(4, 0.3)}
	enroller := NewEnroller(ext, f.templates, f.profiles, "test_model", 4, WithLogger(testLogger))

	_, err := enroller.Enroll(context.Background(), EnrollRequest{IdentityID: "S1", Name: "Alice", Sample: sample})
	require.NoError(t, err)

	ext.tmpl = offsetTemplate(4, 0.5)
	engine := NewEngine(ext, f.templates, 0.6, WithLogger(testLogger))
	result, err := engine.Verify(context.Background(), "S1", sample)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.InDelta(t, 0.2, result.Distance, 1e-6)

	guard := NewGuard(f.ledger, f.profiles, calendar.MustPolicy("UTC"), WithLogger(testLogger))
	out, err := guard.TryCommit(context.Background(), result, "", "")
	require.NoError(t, err)
	assert.Equal(t, StatusCommitted, out.Status)
	assert.Equal(t, "Alice", out.Commit.IdentityName)
}

func TestEnroll_Rejects(t *testing.T) {
	tests := []struct {
		name string
		req  EnrollRequest
		tmpl biometric.Template
		err  error
	}{
		{name: "missing identity", req: EnrollRequest{Sample: sample}, tmpl: offsetTemplate(4, 0), err: ErrInvalidRequest},
		{name: "unknown role", req: EnrollRequest{IdentityID: "S1", Role: "janitor", Sample: sample}, tmpl: offsetTemplate(4, 0), err: ErrInvalidRequest},
		{name: "empty sample", req: EnrollRequest{IdentityID: "S1"}, tmpl: offsetTemplate(4, 0), err: ErrInvalidSample},
		{name: "wrong dimension", req: EnrollRequest{IdentityID: "S1", Sample: sample}, tmpl: offsetTemplate(8, 0), err: biometric.ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			enroller := NewEnroller(&fakeExtractor{tmpl: tt.tmpl}, f.templates, f.profiles, "test_model", 4,
				WithLogger(testLogger))

			_, err := enroller.Enroll(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.err)

			templates, err := f.templates.ListTemplates(context.Background())
			require.NoError(t, err)
			assert.Empty(t, templates)
		})
	}
}

func TestEnroll_ExtractorErrorPassesThrough(t *testing.T) {
	f := newFixture()
	enroller := NewEnroller(&fakeExtractor{err: biometric.ErrMultipleFacesDetected}, f.templates, f.profiles, "m", 4)

	_, err := enroller.Enroll(context.Background(), EnrollRequest{IdentityID: "S1", Sample: sample})
	require.ErrorIs(t, err, biometric.ErrMultipleFacesDetected)
	assert.Equal(t, KindMultipleFaces, KindOf(err))
}
