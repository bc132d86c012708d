package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/types"
)

type ImageSearchHit struct {
	Image    *types.ImageAsset
	RawScore float64
}

type ImageAssetRepo interface {
	Create(ctx context.Context, tx *gorm.DB, images []*types.ImageAsset) ([]*types.ImageAsset, error)
	GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*types.ImageAsset, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ImageAsset, error)
	FullDeleteByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error
	// Search combines a tenant-scoped ILIKE filter over caption/ocr_text with
	// pgvector distance when embeddings are persisted, matching
	// original_source/search.py's _image_search_postgres weighting. tags, if
	// non-empty, narrows results to images whose jsonb tags column contains
	// at least one of the requested tags.
	Search(ctx context.Context, tx *gorm.DB, userID, spaceID uuid.UUID, textQuery string, queryVec []float32, tags []string, topK int) ([]ImageSearchHit, error)
}

type imageAssetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewImageAssetRepo(db *gorm.DB, baseLog *logger.Logger) ImageAssetRepo {
	return &imageAssetRepo{db: db, log: baseLog.With("repo", "ImageAssetRepo")}
}

func (r *imageAssetRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *imageAssetRepo) Create(ctx context.Context, tx *gorm.DB, images []*types.ImageAsset) ([]*types.ImageAsset, error) {
	if len(images) == 0 {
		return images, nil
	}
	if err := r.tx(tx).WithContext(ctx).Create(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

func (r *imageAssetRepo) GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*types.ImageAsset, error) {
	var results []*types.ImageAsset
	if err := r.tx(tx).WithContext(ctx).Where("document_id = ?", documentID).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *imageAssetRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ImageAsset, error) {
	var results []*types.ImageAsset
	if len(ids) == 0 {
		return results, nil
	}
	if err := r.tx(tx).WithContext(ctx).Where("id IN ?", ids).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *imageAssetRepo) FullDeleteByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error {
	return r.tx(tx).WithContext(ctx).Unscoped().Where("document_id = ?", documentID).Delete(&types.ImageAsset{}).Error
}

func (r *imageAssetRepo) Search(ctx context.Context, tx *gorm.DB, userID, spaceID uuid.UUID, textQuery string, queryVec []float32, tags []string, topK int) ([]ImageSearchHit, error) {
	type row struct {
		types.ImageAsset
		Score float64
	}
	var rows []row
	pattern := "%" + textQuery + "%"

	selectExpr := "image_asset.*, 0.0 AS score"
	args := []any{}
	if len(queryVec) > 0 {
		selectExpr = "image_asset.*, (1.0 - (embedding_vec <=> ?::vector)) * 0.7 + (CASE WHEN caption ILIKE ? OR ocr_text ILIKE ? THEN 0.3 ELSE 0 END) AS score"
		args = append(args, vectorLiteral(queryVec), pattern, pattern)
	} else {
		selectExpr = "image_asset.*, (CASE WHEN caption ILIKE ? OR ocr_text ILIKE ? THEN 1.0 ELSE 0 END) AS score"
		args = append(args, pattern, pattern)
	}

	q := r.tx(tx).WithContext(ctx).Table("image_asset").
		Select(selectExpr, args...).
		Where("user_id = ?", userID)
	if spaceID != uuid.Nil {
		q = q.Where("space_id = ?", spaceID)
	}
	if textQuery != "" && len(queryVec) == 0 {
		q = q.Where("caption ILIKE ? OR ocr_text ILIKE ?", pattern, pattern)
	}
	if len(tags) > 0 {
		group := r.tx(tx).Session(&gorm.Session{NewDB: true})
		for i, tag := range tags {
			lit := `["` + tag + `"]`
			if i == 0 {
				group = group.Where("tags @> ?::jsonb", lit)
			} else {
				group = group.Or("tags @> ?::jsonb", lit)
			}
		}
		q = q.Where(group)
	}
	if err := q.Order("score DESC").Limit(topK).Scan(&rows).Error; err != nil {
		return nil, err
	}
	hits := make([]ImageSearchHit, 0, len(rows))
	for i := range rows {
		img := rows[i].ImageAsset
		hits = append(hits, ImageSearchHit{Image: &img, RawScore: rows[i].Score})
	}
	return hits, nil
}
