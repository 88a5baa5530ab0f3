package database

// HNSW index parameters for 128-dim face templates
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 64

	// HNSWCandidates is how many nearest identities Identify re-checks against the directory.
	HNSWCandidates = 3
)
