package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/types"
)

type ChunkRepo interface {
	Create(ctx context.Context, tx *gorm.DB, chunks []*types.Chunk) ([]*types.Chunk, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Chunk, error)
	GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*types.Chunk, error)
	ListBySpace(ctx context.Context, tx *gorm.DB, userID, spaceID uuid.UUID) ([]*types.Chunk, error)
	CountByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) (int64, error)
	FullDeleteByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error
	LexicalSearch(ctx context.Context, tx *gorm.DB, userID, spaceID uuid.UUID, query string, topK int) ([]ChunkLexicalHit, error)
	VectorSearch(ctx context.Context, tx *gorm.DB, userID, spaceID uuid.UUID, queryVec []float32, topK int) ([]ChunkVectorHit, error)
	SetEmbeddingVec(ctx context.Context, tx *gorm.DB, chunkID uuid.UUID, vec []float32) error
}

// ChunkLexicalHit and ChunkVectorHit carry a raw backend score alongside the
// chunk row; SearchIndex.{lexical_search,knn_search} normalizes these into
// [0,1] before a Retriever ever sees them (spec.md's score-normalization
// Open Question, resolved in SPEC_FULL.md §4.K).
type ChunkLexicalHit struct {
	Chunk    *types.Chunk
	RawScore float64
}

type ChunkVectorHit struct {
	Chunk    *types.Chunk
	Distance float64
}

type chunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChunkRepo(db *gorm.DB, baseLog *logger.Logger) ChunkRepo {
	return &chunkRepo{db: db, log: baseLog.With("repo", "ChunkRepo")}
}

func (r *chunkRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *chunkRepo) Create(ctx context.Context, tx *gorm.DB, chunks []*types.Chunk) ([]*types.Chunk, error) {
	if len(chunks) == 0 {
		return chunks, nil
	}
	if err := r.tx(tx).WithContext(ctx).Create(&chunks).Error; err != nil {
		return nil, err
	}
	return chunks, nil
}

func (r *chunkRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Chunk, error) {
	var results []*types.Chunk
	if len(ids) == 0 {
		return results, nil
	}
	if err := r.tx(tx).WithContext(ctx).Where("id IN ?", ids).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *chunkRepo) GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*types.Chunk, error) {
	var results []*types.Chunk
	if err := r.tx(tx).WithContext(ctx).Where("document_id = ?", documentID).
		Order("chunk_index ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListBySpace fetches every chunk owned by one tenant, preloading its owning
// Document so the Weaviate backend's Reindex path can carry title/file name
// into the external index's boosted properties.
func (r *chunkRepo) ListBySpace(ctx context.Context, tx *gorm.DB, userID, spaceID uuid.UUID) ([]*types.Chunk, error) {
	var results []*types.Chunk
	q := r.tx(tx).WithContext(ctx).Preload("Document").Where("user_id = ?", userID)
	if spaceID != uuid.Nil {
		q = q.Where("space_id = ?", spaceID)
	}
	if err := q.Order("document_id ASC, chunk_index ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *chunkRepo) CountByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) (int64, error) {
	var count int64
	if err := r.tx(tx).WithContext(ctx).Model(&types.Chunk{}).
		Where("document_id = ?", documentID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *chunkRepo) FullDeleteByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error {
	return r.tx(tx).WithContext(ctx).Unscoped().Where("document_id = ?", documentID).Delete(&types.Chunk{}).Error
}

// Field-boost weights for lexical search (spec.md §4.E): chunk text carries
// the baseline weight, the owning document's title and file name rank
// higher since a query matching either is usually a much stronger intent
// signal than an incidental body-text match.
const (
	lexicalWeightText     = 1.0
	lexicalWeightTitle    = 2.5
	lexicalWeightFileName = 2.0
)

// LexicalSearch ranks chunks with Postgres full text search, weighting a
// match against the chunk's own text plus its owning document's title and
// file name (content_tsv/title_tsv/file_name_tsv, each a generated tsvector
// column maintained by db.AutoMigrateAll), tenant-scoped like
// original_source/search.py's fulltext_search.
func (r *chunkRepo) LexicalSearch(ctx context.Context, tx *gorm.DB, userID, spaceID uuid.UUID, query string, topK int) ([]ChunkLexicalHit, error) {
	type row struct {
		types.Chunk
		Rank float64
	}
	var rows []row
	q := r.tx(tx).WithContext(ctx).
		Table("chunk").
		Joins("JOIN document ON document.id = chunk.document_id").
		Select(
			`chunk.*, (
				? * ts_rank_cd(chunk.content_tsv, plainto_tsquery('english', ?)) +
				? * COALESCE(ts_rank_cd(document.title_tsv, plainto_tsquery('english', ?)), 0) +
				? * COALESCE(ts_rank_cd(document.file_name_tsv, plainto_tsquery('english', ?)), 0)
			) AS rank`,
			lexicalWeightText, query,
			lexicalWeightTitle, query,
			lexicalWeightFileName, query,
		).
		Where("chunk.user_id = ?", userID).
		Where(
			"chunk.content_tsv @@ plainto_tsquery('english', ?) OR document.title_tsv @@ plainto_tsquery('english', ?) OR document.file_name_tsv @@ plainto_tsquery('english', ?)",
			query, query, query,
		)
	if spaceID != uuid.Nil {
		q = q.Where("chunk.space_id = ?", spaceID)
	}
	if err := q.Order("rank DESC").Limit(topK).Scan(&rows).Error; err != nil {
		return nil, err
	}
	hits := make([]ChunkLexicalHit, 0, len(rows))
	for i := range rows {
		c := rows[i].Chunk
		hits = append(hits, ChunkLexicalHit{Chunk: &c, RawScore: rows[i].Rank})
	}
	return hits, nil
}

// VectorSearch ranks chunks by pgvector cosine distance
// (embedding <=> query), used only when
// config.Search.PersistEmbeddingsInMetaStore is true and backend=metastore.
func (r *chunkRepo) VectorSearch(ctx context.Context, tx *gorm.DB, userID, spaceID uuid.UUID, queryVec []float32, topK int) ([]ChunkVectorHit, error) {
	type row struct {
		types.Chunk
		Distance float64
	}
	var rows []row
	q := r.tx(tx).WithContext(ctx).
		Table("chunk").
		Select("chunk.*, (embedding_vec <=> ?::vector) AS distance", vectorLiteral(queryVec)).
		Where("user_id = ?", userID).
		Where("embedding_vec IS NOT NULL")
	if spaceID != uuid.Nil {
		q = q.Where("space_id = ?", spaceID)
	}
	if err := q.Order("distance ASC").Limit(topK).Scan(&rows).Error; err != nil {
		return nil, err
	}
	hits := make([]ChunkVectorHit, 0, len(rows))
	for i := range rows {
		c := rows[i].Chunk
		hits = append(hits, ChunkVectorHit{Chunk: &c, Distance: rows[i].Distance})
	}
	return hits, nil
}

// SetEmbeddingVec writes a chunk's pgvector column directly via raw SQL; the
// vector type has no first-class GORM mapping in this module so it bypasses
// the ORM's normal field scanning (only exercised when
// config.Search.PersistEmbeddingsInMetaStore is true).
func (r *chunkRepo) SetEmbeddingVec(ctx context.Context, tx *gorm.DB, chunkID uuid.UUID, vec []float32) error {
	return r.tx(tx).WithContext(ctx).Exec(
		`UPDATE chunk SET embedding_vec = ?::vector WHERE id = ?`,
		vectorLiteral(vec), chunkID,
	).Error
}
