package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-attendance/internal/biometric"
)

// IndexHit is one nearest-neighbour candidate.
type IndexHit struct {
	IdentityID string
	Distance   float64
}

// IndexMetadata describes the directory state an index was built from. It is stored
// next to the graph file and compared against TemplateStats to detect a stale index.
type IndexMetadata struct {
	TemplateCount   int       `json:"template_count"`
	LatestCreatedAt time.Time `json:"latest_created_at"`
	BuildTime       time.Time `json:"build_time"`
	Version         int       `json:"version"`
}

const indexMetadataVersion = 1

// TemplateIndex is an in-memory HNSW graph over reference templates keyed by identity,
// using Euclidean distance. It only proposes candidates; callers must confirm a hit
// against the directory before trusting it.
type TemplateIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	dim   int
	path  string // Path to save/load index

	meta IndexMetadata
	// synced is set once the graph mirrors the directory (built from it, or loaded
	// with valid metadata). Save never writes an unsynced graph.
	synced bool
}

// NewTemplateIndex creates a new empty index.
func NewTemplateIndex() *TemplateIndex {
	return &TemplateIndex{}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build replaces the index content with the given templates. Templates whose
// dimension differs from the first one are skipped and counted in the returned value.
func (x *TemplateIndex) Build(templates []ReferenceTemplate) (skipped int) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.graph = nil
	x.dim = 0
	x.synced = true
	x.meta = IndexMetadata{
		TemplateCount: len(templates),
		BuildTime:     time.Now().UTC(),
		Version:       indexMetadataVersion,
	}
	for _, t := range templates {
		if t.CreatedAt.After(x.meta.LatestCreatedAt) {
			x.meta.LatestCreatedAt = t.CreatedAt
		}
	}
	if len(templates) == 0 {
		return 0
	}

	g := newGraph()
	dim := 0
	for _, t := range templates {
		if len(t.Template) == 0 {
			skipped++
			continue
		}
		if dim == 0 {
			dim = len(t.Template)
		}
		if len(t.Template) != dim {
			skipped++
			continue
		}
		g.Add(hnsw.MakeNode(t.IdentityID, []float32(t.Template.Clone())))
	}

	if g.Len() > 0 {
		x.graph = g
		x.dim = dim
	}
	return skipped
}

// Rebuild loads all templates from the reader and rebuilds the graph.
func (x *TemplateIndex) Rebuild(ctx context.Context, reader TemplateReader) (int, error) {
	templates, err := reader.ListTemplates(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list templates: %w", err)
	}
	skipped := x.Build(templates)
	return len(templates) - skipped, nil
}

// Add inserts or replaces the template of one identity and records it in the
// index metadata, so a synced index stays in step with the directory.
func (x *TemplateIndex) Add(t ReferenceTemplate) error {
	if len(t.Template) == 0 {
		return fmt.Errorf("%w: empty template", biometric.ErrDimensionMismatch)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.graph == nil || x.graph.Len() == 0 {
		x.graph = newGraph()
		x.dim = len(t.Template)
	}
	if len(t.Template) != x.dim {
		return fmt.Errorf("%w: index holds %d-dim templates, got %d", biometric.ErrDimensionMismatch, x.dim, len(t.Template))
	}

	if !x.graph.Delete(t.IdentityID) {
		x.meta.TemplateCount++
	}
	x.graph.Add(hnsw.MakeNode(t.IdentityID, []float32(t.Template.Clone())))
	if t.CreatedAt.After(x.meta.LatestCreatedAt) {
		x.meta.LatestCreatedAt = t.CreatedAt
	}
	return nil
}

// Remove deletes an identity from the index.
func (x *TemplateIndex) Remove(identityID string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.graph == nil || !x.graph.Delete(identityID) {
		return false
	}
	x.meta.TemplateCount--
	return true
}

// Search returns up to k nearest identities ordered by increasing distance.
// An empty index yields no hits.
func (x *TemplateIndex) Search(query biometric.Template, k int) ([]IndexHit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil || x.graph.Len() == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: index holds %d-dim templates, got %d", biometric.ErrDimensionMismatch, x.dim, len(query))
	}

	neighbors := x.graph.Search([]float32(query), k)
	hits := make([]IndexHit, 0, len(neighbors))
	for _, n := range neighbors {
		d, err := biometric.Distance(query, biometric.Template(n.Value))
		if err != nil {
			continue
		}
		hits = append(hits, IndexHit{IdentityID: n.Key, Distance: d})
	}
	return hits, nil
}

// Count returns the number of indexed identities.
func (x *TemplateIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.graph == nil {
		return 0
	}
	return x.graph.Len()
}

// Dim returns the template dimension of the index, 0 when empty.
func (x *TemplateIndex) Dim() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

// SetPath sets the path for saving/loading the index.
func (x *TemplateIndex) SetPath(path string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.path = path
}

// Metadata returns the directory state the index reflects.
func (x *TemplateIndex) Metadata() IndexMetadata {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.meta
}

// Fresh reports whether the index mirrors a directory with the given stats.
func (x *TemplateIndex) Fresh(stats TemplateStats) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()

	return x.synced &&
		x.meta.Version == indexMetadataVersion &&
		x.meta.TemplateCount == stats.Count &&
		sameInstant(x.meta.LatestCreatedAt, stats.LatestCreatedAt)
}

// sameInstant compares at microsecond precision, the resolution Postgres stores.
func sameInstant(a, b time.Time) bool {
	return a.Truncate(time.Microsecond).Equal(b.Truncate(time.Microsecond))
}

func metadataPath(path string) string {
	return path + ".meta"
}

// Save persists the graph and its metadata to disk. An index that was never
// synced with the directory is not written, so it cannot replace a complete file.
func (x *TemplateIndex) Save() error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.path == "" || !x.synced {
		return nil
	}

	if x.graph == nil || x.graph.Len() == 0 {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(x.path)
		_ = os.Remove(metadataPath(x.path))
		return nil
	}

	f, err := os.Create(x.path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer f.Close()

	if err := x.graph.Export(f); err != nil {
		return fmt.Errorf("exporting HNSW graph: %w", err)
	}

	data, err := json.Marshal(x.meta)
	if err != nil {
		return fmt.Errorf("failed to marshal HNSW metadata: %w", err)
	}
	if err := os.WriteFile(metadataPath(x.path), data, 0o600); err != nil {
		return fmt.Errorf("failed to write HNSW metadata: %w", err)
	}
	return nil
}

// Load loads the index from disk. A missing file leaves the index empty. The
// index counts as synced only when its metadata file is present and current.
func (x *TemplateIndex) Load(path string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.path = path
	x.synced = false

	f, err := os.Open(path) //nolint:gosec // path is from trusted config
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open HNSW index: %w", err)
	}
	defer f.Close()

	g := newGraph()
	if err := g.Import(f); err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	x.graph = g
	x.dim = g.Dims()

	var meta IndexMetadata
	data, err := os.ReadFile(metadataPath(path)) //nolint:gosec // path is from trusted config
	if err != nil || json.Unmarshal(data, &meta) != nil || meta.Version != indexMetadataVersion {
		return nil
	}
	x.meta = meta
	x.synced = true
	return nil
}
