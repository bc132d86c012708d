// pinecone_images.go adds a third SearchIndex option for image KNN:
// ImageAsset caption/OCR embeddings upserted into a Pinecone index,
// isolated per tenant by namespace and narrowed by a tags metadata
// filter when tags are given. Grounded on
// internal/clients/pinecone/vector_store.go's namespace-qualifying
// Upsert/QueryIDs pair; text/chunk search is delegated to a wrapped base
// SearchIndex (postgres or weaviate) since Pinecone's query API returns IDs
// only, not snippet text, and this module's image rows already carry their
// own caption/OCR text in MetaStore.
package searchindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/ragcore/internal/clients/pinecone"
	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/repos"
)

type pineconeImageIndex struct {
	base   SearchIndex
	store  pinecone.VectorStore
	images repos.ImageAssetRepo
	log    *logger.Logger
}

// NewPineconeImages wraps base (its LexicalSearch/KNNSearch/chunk side of
// Reindex are untouched) and routes ImageSearch/image-Reindex through a
// Pinecone index instead of base's own ImageSearch implementation.
func NewPineconeImages(base SearchIndex, store pinecone.VectorStore, images repos.ImageAssetRepo, log *logger.Logger) SearchIndex {
	return &pineconeImageIndex{base: base, store: store, images: images, log: log.With("component", "PineconeImageIndex")}
}

func (p *pineconeImageIndex) LexicalSearch(ctx context.Context, userID, spaceID uuid.UUID, query string, topK int) ([]ChunkHit, error) {
	return p.base.LexicalSearch(ctx, userID, spaceID, query, topK)
}

func (p *pineconeImageIndex) KNNSearch(ctx context.Context, userID, spaceID uuid.UUID, queryVec []float32, topK int) ([]ChunkHit, error) {
	return p.base.KNNSearch(ctx, userID, spaceID, queryVec, topK)
}

func namespaceFor(userID, spaceID uuid.UUID) string {
	if spaceID == uuid.Nil {
		return userID.String()
	}
	return userID.String() + ":" + spaceID.String()
}

func (p *pineconeImageIndex) ImageSearch(ctx context.Context, userID, spaceID uuid.UUID, textQuery string, queryVec []float32, tags []string, topK int) ([]ImageHit, error) {
	if len(queryVec) == 0 {
		// No vector to search by (e.g. embedder unavailable): fall back to
		// the base backend's caption/OCR text matching, which also knows how
		// to apply the tags filter.
		return p.base.ImageSearch(ctx, userID, spaceID, textQuery, queryVec, tags, topK)
	}
	var filter map[string]any
	if len(tags) > 0 {
		filter = map[string]any{"tags": map[string]any{"$in": tags}}
	}
	ids, err := p.store.QueryIDs(ctx, namespaceFor(userID, spaceID), queryVec, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("pinecone image query: %w", err)
	}
	uuids := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if parsed, err := uuid.Parse(id); err == nil {
			uuids = append(uuids, parsed)
		}
	}
	images, err := p.images.GetByIDs(ctx, nil, uuids)
	if err != nil {
		return nil, fmt.Errorf("load images for pinecone hits: %w", err)
	}
	byID := make(map[uuid.UUID]int, len(images))
	for i, img := range images {
		byID[img.ID] = i
	}
	hits := make([]ImageHit, 0, len(ids))
	for rank, id := range ids {
		idx, ok := byID[mustParse(id)]
		if !ok {
			continue
		}
		img := images[idx]
		score := 1.0 - float64(rank)/float64(maxInt(len(ids), 1))
		hits = append(hits, ImageHit{ImageID: img.ID, DocumentID: img.DocumentID, Caption: img.Caption, Tags: img.TagsList(), Score: score})
	}
	return hits, nil
}

func (p *pineconeImageIndex) Reindex(ctx context.Context, userID, spaceID uuid.UUID) error {
	if err := p.base.Reindex(ctx, userID, spaceID); err != nil {
		return err
	}
	// ImageAssetRepo has no plain tenant listing, so enumerate via Search with
	// an empty text query and no vector: the ILIKE '%%' branch matches every
	// row for the tenant, giving a full scan ordered arbitrarily by score.
	hits, err := p.images.Search(ctx, nil, userID, spaceID, "", nil, nil, maxImageReindexBatch)
	if err != nil {
		return fmt.Errorf("enumerate images for pinecone reindex: %w", err)
	}

	vectors := make([]pinecone.Vector, 0, len(hits))
	for _, hit := range hits {
		img := hit.Image
		if len(img.Embedding) == 0 {
			continue
		}
		var vec []float32
		if err := json.Unmarshal(img.Embedding, &vec); err != nil {
			continue
		}
		vectors = append(vectors, pinecone.Vector{
			ID:     img.ID.String(),
			Values: vec,
			Metadata: map[string]any{
				"user_id":  img.UserID.String(),
				"space_id": img.SpaceID.String(),
				"tags":     img.TagsList(),
			},
		})
	}
	if len(vectors) == 0 {
		return nil
	}
	return p.store.Upsert(ctx, namespaceFor(userID, spaceID), vectors)
}

// maxImageReindexBatch caps the per-tenant image scan used to rebuild the
// Pinecone index; tenants above this need a paginated reindex, not covered
// here since ingest-time upserts (see Ingestor) keep the index warm already.
const maxImageReindexBatch = 5000

func mustParse(id string) uuid.UUID {
	u, _ := uuid.Parse(id)
	return u
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
