// Package searchindex implements the derived, rebuildable SearchIndex of
// spec.md §4.E: a lexical+KNN index over Chunks and ImageAssets that the
// Retriever fuses with Reciprocal Rank Fusion. Two backends satisfy the
// same interface, selected by config.Search.Backend:
//
//   - "metastore": Postgres full-text search + pgvector KNN, the default,
//     requiring no extra infrastructure (grounded on
//     original_source/search.py's Postgres fallback path).
//   - "searchindex": an external document/vector store reachable over the
//     network, backed by Weaviate's BM25 and nearVector queries (grounded on
//     original_source/opensearch_adapter.py's field-boost/filter shape,
//     generalized from OpenSearch's query DSL to Weaviate's GraphQL one).
//
// Every hit leaves this package already score-normalized to [0,1] so
// neither the Retriever nor the DeepResearchAgent ever see a raw backend
// score (spec.md's score-normalization Open Question).
package searchindex

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ChunkHit struct {
	ChunkID    uuid.UUID
	DocumentID uuid.UUID
	Text       string
	Score      float64 // normalized to [0,1]
	CreatedAt  time.Time
	Metadata   map[string]any
}

type ImageHit struct {
	ImageID    uuid.UUID
	DocumentID uuid.UUID
	Caption    string
	Tags       []string
	Score      float64 // normalized to [0,1]
}

type SearchIndex interface {
	LexicalSearch(ctx context.Context, userID, spaceID uuid.UUID, query string, topK int) ([]ChunkHit, error)
	KNNSearch(ctx context.Context, userID, spaceID uuid.UUID, queryVec []float32, topK int) ([]ChunkHit, error)
	// ImageSearch narrows by tags when given (jsonb/property containment,
	// OR'd across the requested tags) in addition to the caption/OCR text
	// and vector legs (spec.md §6 /image-search tags? param).
	ImageSearch(ctx context.Context, userID, spaceID uuid.UUID, textQuery string, queryVec []float32, tags []string, topK int) ([]ImageHit, error)
	// Reindex drops and rebuilds this backend's entries for one tenant
	// (spec.md §6 POST /admin/reindex); MetaStore remains the source of
	// truth it rebuilds from.
	Reindex(ctx context.Context, userID, spaceID uuid.UUID) error
}

// normalizeMinMax rescales raw scores to [0,1]; a flat set (max == min)
// normalizes to 1.0 for every entry rather than dividing by zero, since a
// single-candidate or all-equal result set carries no relative signal to
// lose.
func normalizeMinMax(raw []float64) []float64 {
	if len(raw) == 0 {
		return raw
	}
	min, max := raw[0], raw[0]
	for _, v := range raw[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(raw))
	if max == min {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, v := range raw {
		out[i] = (v - min) / (max - min)
	}
	return out
}

// normalizeDistance turns a "lower is better" distance (cosine/pgvector)
// into a "higher is better" similarity in [0,1] before min-max normalizing,
// so KNN and lexical hits share the same orientation.
func normalizeDistance(raw []float64) []float64 {
	sims := make([]float64, len(raw))
	for i, d := range raw {
		sims[i] = 1.0 - d
	}
	return normalizeMinMax(sims)
}
