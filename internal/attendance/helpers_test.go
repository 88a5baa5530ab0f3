package attendance

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fixedClock returns a clock frozen at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// offsetTemplate returns a template at Euclidean distance d from the zero vector.
func offsetTemplate(dim int, d float32) biometric.Template {
	t := make(biometric.Template, dim)
	t[0] = d
	return t
}

// fakeExtractor returns the same template for every sample and counts calls.
type fakeExtractor struct {
	tmpl  biometric.Template
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeExtractor) Extract(ctx context.Context, sample []byte) (biometric.Template, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.tmpl.Clone(), nil
}

type fixture struct {
	backend   *database.Backend
	templates *mock.MockTemplateStore
	profiles  *mock.MockProfileStore
	ledger    *mock.MockLedger
}

func newFixture() *fixture {
	backend, templates, profiles, ledger := mock.NewBackend()
	return &fixture{backend: backend, templates: templates, profiles: profiles, ledger: ledger}
}

// enroll registers identityID with the zero template of the given dimension.
func (f *fixture) enroll(identityID, name string, role database.Role, dim int) {
	f.profiles.AddProfile(database.Profile{IdentityID: identityID, Name: name, Role: role})
	f.templates.AddTemplate(database.ReferenceTemplate{
		IdentityID: identityID,
		Role:       role,
		Template:   make(biometric.Template, dim),
		Model:      "test",
	})
}
