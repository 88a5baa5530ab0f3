// Package mock provides in-memory implementations of database interfaces for tests
// and for running the service without PostgreSQL.
package mock

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/calendar"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// MockTemplateStore is a mock implementation of database.TemplateWriter
type MockTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]database.ReferenceTemplate

	// Error injection
	GetTemplateError   error
	ListTemplatesError error
	TemplateStatsError error
	SaveTemplateError  error

	// Call counters
	GetTemplateCalls int
}

// NewMockTemplateStore creates a new mock template store
func NewMockTemplateStore() *MockTemplateStore {
	return &MockTemplateStore{
		templates: make(map[string]database.ReferenceTemplate),
	}
}

// AddTemplate adds a template to the mock store
func (m *MockTemplateStore) AddTemplate(t database.ReferenceTemplate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.Template = t.Template.Clone()
	if t.Dim == 0 {
		t.Dim = len(t.Template)
	}
	m.templates[t.IdentityID] = t
}

// GetTemplate retrieves a template by identity
func (m *MockTemplateStore) GetTemplate(ctx context.Context, identityID string) (*database.ReferenceTemplate, error) {
	m.mu.Lock()
	m.GetTemplateCalls++
	m.mu.Unlock()

	if m.GetTemplateError != nil {
		return nil, m.GetTemplateError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[identityID]
	if !ok {
		return nil, database.ErrNotFound
	}
	t.Template = t.Template.Clone()
	return &t, nil
}

// ListTemplates returns all templates sorted by identity
func (m *MockTemplateStore) ListTemplates(ctx context.Context) ([]database.ReferenceTemplate, error) {
	if m.ListTemplatesError != nil {
		return nil, m.ListTemplatesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]database.ReferenceTemplate, 0, len(m.templates))
	for _, t := range m.templates {
		t.Template = t.Template.Clone()
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b database.ReferenceTemplate) int {
		return strings.Compare(a.IdentityID, b.IdentityID)
	})
	return out, nil
}

// TemplateStats returns the template count and the newest created_at
func (m *MockTemplateStore) TemplateStats(ctx context.Context) (database.TemplateStats, error) {
	if m.TemplateStatsError != nil {
		return database.TemplateStats{}, m.TemplateStatsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := database.TemplateStats{Count: len(m.templates)}
	for _, t := range m.templates {
		if t.CreatedAt.After(stats.LatestCreatedAt) {
			stats.LatestCreatedAt = t.CreatedAt
		}
	}
	return stats, nil
}

// SaveTemplate stores a template, replacing an existing one
func (m *MockTemplateStore) SaveTemplate(ctx context.Context, t database.ReferenceTemplate) error {
	if m.SaveTemplateError != nil {
		return m.SaveTemplateError
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	m.AddTemplate(t)
	return nil
}

// MockProfileStore is a mock implementation of database.ProfileWriter
type MockProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]database.Profile

	// Error injection
	IdentityExistsError error
	GetProfileError     error
	ListProfilesError   error
	SaveProfileError    error
}

// NewMockProfileStore creates a new mock profile store
func NewMockProfileStore() *MockProfileStore {
	return &MockProfileStore{
		profiles: make(map[string]database.Profile),
	}
}

// AddProfile adds a profile to the mock store
func (m *MockProfileStore) AddProfile(p database.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.IdentityID] = p
}

// IdentityExists checks if a profile exists
func (m *MockProfileStore) IdentityExists(ctx context.Context, identityID string) (bool, error) {
	if m.IdentityExistsError != nil {
		return false, m.IdentityExistsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.profiles[identityID]
	return ok, nil
}

// GetProfile retrieves a profile by identity
func (m *MockProfileStore) GetProfile(ctx context.Context, identityID string) (*database.Profile, error) {
	if m.GetProfileError != nil {
		return nil, m.GetProfileError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[identityID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &p, nil
}

// ListProfiles returns profiles sorted by identity, optionally filtered by role
func (m *MockProfileStore) ListProfiles(ctx context.Context, role database.Role) ([]database.Profile, error) {
	if m.ListProfilesError != nil {
		return nil, m.ListProfilesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []database.Profile
	for _, p := range m.profiles {
		if role != "" && p.Role != role {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b database.Profile) int {
		return strings.Compare(a.IdentityID, b.IdentityID)
	})
	return out, nil
}

// SaveProfile creates or updates a profile
func (m *MockProfileStore) SaveProfile(ctx context.Context, p database.Profile) error {
	if m.SaveProfileError != nil {
		return m.SaveProfileError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.profiles[p.IdentityID]; ok && p.CreatedAt.IsZero() {
		p.CreatedAt = existing.CreatedAt
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.profiles[p.IdentityID] = p
	return nil
}

// MockLedger is a mock implementation of database.CommitWriter.
// InsertCommitIfAbsent checks and inserts under one lock.
type MockLedger struct {
	mu      sync.RWMutex
	commits map[database.CommitKey]database.Commit

	// Error injection
	FindCommitError   error
	ListCommitsError  error
	InsertCommitError error

	// Call counters
	InsertCalls int
}

// NewMockLedger creates a new mock ledger
func NewMockLedger() *MockLedger {
	return &MockLedger{
		commits: make(map[database.CommitKey]database.Commit),
	}
}

// FindCommit returns the commit for (identity, date) or nil
func (m *MockLedger) FindCommit(ctx context.Context, identityID string, date calendar.Date) (*database.Commit, error) {
	if m.FindCommitError != nil {
		return nil, m.FindCommitError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.commits[database.CommitKey{IdentityID: identityID, Date: date}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// ListCommits returns commits matching the filter ordered by date, then identity
func (m *MockLedger) ListCommits(ctx context.Context, filter database.CommitFilter) ([]database.Commit, error) {
	if m.ListCommitsError != nil {
		return nil, m.ListCommitsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []database.Commit
	for _, c := range m.commits {
		if filter.Matches(c) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b database.Commit) int {
		if d := a.CalendarDate.Compare(b.CalendarDate); d != 0 {
			return d
		}
		return strings.Compare(a.IdentityID, b.IdentityID)
	})
	return out, nil
}

// InsertCommitIfAbsent atomically inserts c unless its key is taken
func (m *MockLedger) InsertCommitIfAbsent(ctx context.Context, c database.Commit) (*database.Commit, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++

	if m.InsertCommitError != nil {
		return nil, false, m.InsertCommitError
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	key := c.Key()
	if existing, ok := m.commits[key]; ok {
		return &existing, false, nil
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.commits[key] = c
	return &c, true, nil
}

// Count returns the number of stored commits
func (m *MockLedger) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.commits)
}

// NewBackend returns a database.Backend over fresh in-memory stores.
func NewBackend() (*database.Backend, *MockTemplateStore, *MockProfileStore, *MockLedger) {
	templates := NewMockTemplateStore()
	profiles := NewMockProfileStore()
	ledger := NewMockLedger()
	return database.NewBackend(templates, profiles, ledger, nil), templates, profiles, ledger
}
