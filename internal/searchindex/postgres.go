package searchindex

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/ragcore/internal/clients/generator"
	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/repos"
)

type postgresIndex struct {
	db         *gorm.DB
	chunkRepo  repos.ChunkRepo
	imageRepo  repos.ImageAssetRepo
	embedder   generator.Embedder
	log        *logger.Logger
}

func NewPostgres(db *gorm.DB, chunkRepo repos.ChunkRepo, imageRepo repos.ImageAssetRepo, embedder generator.Embedder, log *logger.Logger) SearchIndex {
	return &postgresIndex{db: db, chunkRepo: chunkRepo, imageRepo: imageRepo, embedder: embedder, log: log.With("component", "SearchIndex", "backend", "metastore")}
}

func (p *postgresIndex) LexicalSearch(ctx context.Context, userID, spaceID uuid.UUID, query string, topK int) ([]ChunkHit, error) {
	hits, err := p.chunkRepo.LexicalSearch(ctx, nil, userID, spaceID, query, topK)
	if err != nil {
		return nil, err
	}
	raw := make([]float64, len(hits))
	for i, h := range hits {
		raw[i] = h.RawScore
	}
	norm := normalizeMinMax(raw)
	out := make([]ChunkHit, len(hits))
	for i, h := range hits {
		out[i] = ChunkHit{
			ChunkID:    h.Chunk.ID,
			DocumentID: h.Chunk.DocumentID,
			Text:       h.Chunk.Text,
			Score:      norm[i],
			CreatedAt:  h.Chunk.CreatedAt,
		}
	}
	return out, nil
}

func (p *postgresIndex) KNNSearch(ctx context.Context, userID, spaceID uuid.UUID, queryVec []float32, topK int) ([]ChunkHit, error) {
	hits, err := p.chunkRepo.VectorSearch(ctx, nil, userID, spaceID, queryVec, topK)
	if err != nil {
		return nil, err
	}
	raw := make([]float64, len(hits))
	for i, h := range hits {
		raw[i] = h.Distance
	}
	norm := normalizeDistance(raw)
	out := make([]ChunkHit, len(hits))
	for i, h := range hits {
		out[i] = ChunkHit{
			ChunkID:    h.Chunk.ID,
			DocumentID: h.Chunk.DocumentID,
			Text:       h.Chunk.Text,
			Score:      norm[i],
			CreatedAt:  h.Chunk.CreatedAt,
		}
	}
	return out, nil
}

func (p *postgresIndex) ImageSearch(ctx context.Context, userID, spaceID uuid.UUID, textQuery string, queryVec []float32, tags []string, topK int) ([]ImageHit, error) {
	hits, err := p.imageRepo.Search(ctx, nil, userID, spaceID, textQuery, queryVec, tags, topK)
	if err != nil {
		return nil, err
	}
	raw := make([]float64, len(hits))
	for i, h := range hits {
		raw[i] = h.RawScore
	}
	norm := normalizeMinMax(raw)
	out := make([]ImageHit, len(hits))
	for i, h := range hits {
		out[i] = ImageHit{
			ImageID:    h.Image.ID,
			DocumentID: h.Image.DocumentID,
			Caption:    h.Image.Caption,
			Tags:       h.Image.TagsList(),
			Score:      norm[i],
		}
	}
	return out, nil
}

// Reindex is a no-op for the metastore backend: Postgres FTS/pgvector read
// the same chunk/image_asset rows the MetaStore already maintains, so there
// is nothing derived to rebuild. Kept to satisfy SearchIndex so callers
// (the /admin/reindex handler) don't need a backend-specific branch.
func (p *postgresIndex) Reindex(ctx context.Context, userID, spaceID uuid.UUID) error {
	return nil
}
