package database_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
)

var enrolledAt = time.Date(2024, time.February, 7, 8, 0, 0, 0, time.UTC)

func oneHot(hot int) biometric.Template {
	t := make(biometric.Template, 8)
	t[hot] = 1
	return t
}

func reference(id string, hot int, createdAt time.Time) database.ReferenceTemplate {
	return database.ReferenceTemplate{IdentityID: id, Template: oneHot(hot), CreatedAt: createdAt}
}

func seededDirectory() *mock.MockTemplateStore {
	store := mock.NewMockTemplateStore()
	for i, id := range []string{"S1", "S2", "S3"} {
		store.AddTemplate(reference(id, i, enrolledAt.Add(time.Duration(i)*time.Minute)))
	}
	return store
}

func backendOver(store *mock.MockTemplateStore) *database.Backend {
	return database.NewBackend(store, mock.NewMockProfileStore(), mock.NewMockLedger(), nil)
}

// persistIndex warms a backend over store and closes it, leaving a synced file at path.
func persistIndex(t *testing.T, store *mock.MockTemplateStore, path string) {
	t.Helper()
	b := backendOver(store)
	if _, err := b.WarmIndex(context.Background(), path); err != nil {
		t.Fatalf("WarmIndex: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestBackend_WarmIndex(t *testing.T) {
	tests := []struct {
		name string
		// prepare runs against a directory holding S1-S3 and an empty temp dir
		prepare func(t *testing.T, store *mock.MockTemplateStore, path string)
		// loaded cases forbid listing templates, so a rebuild would fail
		loaded bool
		want   int
		find   map[int]string
	}{
		{
			name:    "missing file rebuilds",
			prepare: func(t *testing.T, store *mock.MockTemplateStore, path string) {},
			want:    3,
			find:    map[int]string{0: "S1", 2: "S3"},
		},
		{
			name: "file matching the directory is loaded",
			prepare: func(t *testing.T, store *mock.MockTemplateStore, path string) {
				persistIndex(t, store, path)
			},
			loaded: true,
			want:   3,
			find:   map[int]string{1: "S2"},
		},
		{
			name: "directory with more templates rebuilds",
			prepare: func(t *testing.T, store *mock.MockTemplateStore, path string) {
				persistIndex(t, store, path)
				store.AddTemplate(reference("S4", 3, enrolledAt.Add(time.Hour)))
			},
			want: 4,
			find: map[int]string{0: "S1", 3: "S4"},
		},
		{
			name: "re-enrolled template rebuilds",
			prepare: func(t *testing.T, store *mock.MockTemplateStore, path string) {
				persistIndex(t, store, path)
				store.AddTemplate(reference("S2", 6, enrolledAt.Add(time.Hour)))
			},
			want: 3,
			find: map[int]string{6: "S2"},
		},
		{
			name: "file without metadata rebuilds",
			prepare: func(t *testing.T, store *mock.MockTemplateStore, path string) {
				persistIndex(t, store, path)
				if err := os.Remove(path + ".meta"); err != nil {
					t.Fatalf("remove metadata: %v", err)
				}
			},
			want: 3,
			find: map[int]string{0: "S1"},
		},
		{
			name: "unreadable file rebuilds",
			prepare: func(t *testing.T, store *mock.MockTemplateStore, path string) {
				if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
					t.Fatalf("write: %v", err)
				}
			},
			want: 3,
			find: map[int]string{2: "S3"},
		},
		{
			name: "save from an index that was never warmed keeps the full file stale-proof",
			prepare: func(t *testing.T, store *mock.MockTemplateStore, path string) {
				persistIndex(t, store, path)

				// a command that enrolls without warming first
				b := backendOver(store)
				b.Index.SetPath(path)
				s4 := reference("S4", 3, enrolledAt.Add(time.Hour))
				store.AddTemplate(s4)
				if err := b.Index.Add(s4); err != nil {
					t.Fatalf("Add: %v", err)
				}
				if err := b.Close(); err != nil {
					t.Fatalf("Close: %v", err)
				}
			},
			want: 4,
			find: map[int]string{0: "S1", 1: "S2", 2: "S3", 3: "S4"},
		},
		{
			name: "enrollment into a warmed index is loaded next time",
			prepare: func(t *testing.T, store *mock.MockTemplateStore, path string) {
				b := backendOver(store)
				if _, err := b.WarmIndex(context.Background(), path); err != nil {
					t.Fatalf("WarmIndex: %v", err)
				}
				s4 := reference("S4", 3, enrolledAt.Add(time.Hour))
				store.AddTemplate(s4)
				if err := b.Index.Add(s4); err != nil {
					t.Fatalf("Add: %v", err)
				}
				if err := b.Close(); err != nil {
					t.Fatalf("Close: %v", err)
				}
			},
			loaded: true,
			want:   4,
			find:   map[int]string{0: "S1", 3: "S4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seededDirectory()
			path := filepath.Join(t.TempDir(), "templates.hnsw")
			tt.prepare(t, store, path)

			if tt.loaded {
				store.ListTemplatesError = errors.New("index should have been loaded")
			}

			b := backendOver(store)
			n, err := b.WarmIndex(context.Background(), path)
			if err != nil {
				t.Fatalf("WarmIndex: %v", err)
			}
			if n != tt.want || b.Index.Count() != tt.want {
				t.Fatalf("WarmIndex = %d (Count %d), want %d", n, b.Index.Count(), tt.want)
			}

			stats, err := store.TemplateStats(context.Background())
			if err != nil {
				t.Fatalf("TemplateStats: %v", err)
			}
			if !b.Index.Fresh(stats) {
				t.Errorf("index not fresh after warm: meta %+v, directory %+v", b.Index.Metadata(), stats)
			}

			for hot, wantID := range tt.find {
				hits, err := b.Index.Search(oneHot(hot), 1)
				if err != nil || len(hits) != 1 || hits[0].IdentityID != wantID || hits[0].Distance != 0 {
					t.Errorf("Search(%d) = %+v, %v; want %s at distance 0", hot, hits, err, wantID)
				}
			}
		})
	}
}

func TestBackend_WarmIndex_Errors(t *testing.T) {
	t.Run("stats failure", func(t *testing.T) {
		store := seededDirectory()
		store.TemplateStatsError = database.ErrUnavailable

		_, err := backendOver(store).WarmIndex(context.Background(), filepath.Join(t.TempDir(), "x.hnsw"))
		if !errors.Is(err, database.ErrUnavailable) {
			t.Errorf("WarmIndex error = %v, want ErrUnavailable", err)
		}
	})

	t.Run("list failure without a path", func(t *testing.T) {
		store := seededDirectory()
		store.ListTemplatesError = database.ErrUnavailable

		_, err := backendOver(store).WarmIndex(context.Background(), "")
		if !errors.Is(err, database.ErrUnavailable) {
			t.Errorf("WarmIndex error = %v, want ErrUnavailable", err)
		}
	})
}

func TestBackend_Close_SkipsUnwarmedIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.hnsw")
	b := backendOver(seededDirectory())
	b.Index.SetPath(path)
	if err := b.Index.Add(reference("S9", 0, enrolledAt)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Stat(%s) error = %v, want not exist", path, err)
	}
}
