package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/types"
)

type DocumentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, doc *types.Document) (*types.Document, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Document, error)
	GetByIDForTenant(ctx context.Context, tx *gorm.DB, id, userID, spaceID uuid.UUID) (*types.Document, error)
	ListByTenant(ctx context.Context, tx *gorm.DB, userID, spaceID uuid.UUID, limit, offset int) ([]*types.Document, error)
	CountByTenant(ctx context.Context, tx *gorm.DB, userID, spaceID uuid.UUID) (int64, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status, warning string) error
	SoftDeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	FullDeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

func (r *documentRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *documentRepo) Create(ctx context.Context, tx *gorm.DB, doc *types.Document) (*types.Document, error) {
	if err := r.tx(tx).WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *documentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Document, error) {
	var d types.Document
	if err := r.tx(tx).WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *documentRepo) GetByIDForTenant(ctx context.Context, tx *gorm.DB, id, userID, spaceID uuid.UUID) (*types.Document, error) {
	var d types.Document
	q := r.tx(tx).WithContext(ctx).Where("id = ? AND user_id = ?", id, userID)
	if spaceID != uuid.Nil {
		q = q.Where("space_id = ?", spaceID)
	}
	if err := q.First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *documentRepo) ListByTenant(ctx context.Context, tx *gorm.DB, userID, spaceID uuid.UUID, limit, offset int) ([]*types.Document, error) {
	var results []*types.Document
	q := r.tx(tx).WithContext(ctx).Where("user_id = ?", userID)
	if spaceID != uuid.Nil {
		q = q.Where("space_id = ?", spaceID)
	}
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *documentRepo) CountByTenant(ctx context.Context, tx *gorm.DB, userID, spaceID uuid.UUID) (int64, error) {
	var total int64
	q := r.tx(tx).WithContext(ctx).Model(&types.Document{}).Where("user_id = ?", userID)
	if spaceID != uuid.Nil {
		q = q.Where("space_id = ?", spaceID)
	}
	if err := q.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *documentRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status, warning string) error {
	updates := map[string]any{"status": status}
	if warning != "" {
		updates["warning"] = warning
	}
	return r.tx(tx).WithContext(ctx).Model(&types.Document{}).Where("id = ?", id).Updates(updates).Error
}

func (r *documentRepo) SoftDeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return r.tx(tx).WithContext(ctx).Where("id = ?", id).Delete(&types.Document{}).Error
}

func (r *documentRepo) FullDeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return r.tx(tx).WithContext(ctx).Unscoped().Where("id = ?", id).Delete(&types.Document{}).Error
}
