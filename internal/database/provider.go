package database

import (
	"context"
	"errors"
	"fmt"
)

// Backend bundles the stores of one storage implementation (postgres or the in-memory mock)
// together with the identification index built over its templates.
type Backend struct {
	Templates TemplateWriter
	Profiles  ProfileWriter
	Commits   CommitWriter
	Index     *TemplateIndex

	closer func() error
}

// NewBackend assembles a backend. closer may be nil.
func NewBackend(templates TemplateWriter, profiles ProfileWriter, commits CommitWriter, closer func() error) *Backend {
	return &Backend{
		Templates: templates,
		Profiles:  profiles,
		Commits:   commits,
		Index:     NewTemplateIndex(),
		closer:    closer,
	}
}

// Validate checks that every store is present.
func (b *Backend) Validate() error {
	var errs []error
	if b.Templates == nil {
		errs = append(errs, errors.New("template store not configured"))
	}
	if b.Profiles == nil {
		errs = append(errs, errors.New("profile store not configured"))
	}
	if b.Commits == nil {
		errs = append(errs, errors.New("commit ledger not configured"))
	}
	if b.Index == nil {
		errs = append(errs, errors.New("template index not configured"))
	}
	return errors.Join(errs...)
}

// WarmIndex loads the index from path when its metadata matches the template
// store, and otherwise rebuilds it from the store. An empty path always rebuilds.
// An unreadable index file is rebuilt too; the next Close overwrites it.
func (b *Backend) WarmIndex(ctx context.Context, path string) (int, error) {
	if path != "" {
		stats, err := b.Templates.TemplateStats(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to read template stats: %w", err)
		}
		if err := b.Index.Load(path); err == nil && b.Index.Fresh(stats) {
			return b.Index.Count(), nil
		}
	}

	n, err := b.Index.Rebuild(ctx, b.Templates)
	if err != nil {
		return 0, fmt.Errorf("failed to rebuild template index: %w", err)
	}
	return n, nil
}

// Close persists the index (if a path is set and it was warmed) and releases the underlying storage.
func (b *Backend) Close() error {
	var errs []error
	if b.Index != nil {
		if err := b.Index.Save(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.closer != nil {
		if err := b.closer(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
