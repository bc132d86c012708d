package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/types"
)

type ActivityRepo interface {
	Create(ctx context.Context, tx *gorm.DB, a *types.Activity) (*types.Activity, error)
	ListByTenant(ctx context.Context, tx *gorm.DB, userID, spaceID uuid.UUID, limit int) ([]*types.Activity, error)
}

type activityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityRepo(db *gorm.DB, baseLog *logger.Logger) ActivityRepo {
	return &activityRepo{db: db, log: baseLog.With("repo", "ActivityRepo")}
}

func (r *activityRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *activityRepo) Create(ctx context.Context, tx *gorm.DB, a *types.Activity) (*types.Activity, error) {
	if err := r.tx(tx).WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

func (r *activityRepo) ListByTenant(ctx context.Context, tx *gorm.DB, userID, spaceID uuid.UUID, limit int) ([]*types.Activity, error) {
	var results []*types.Activity
	q := r.tx(tx).WithContext(ctx).Where("user_id = ?", userID)
	if spaceID != uuid.Nil {
		q = q.Where("space_id = ?", spaceID)
	}
	if limit <= 0 {
		limit = 50
	}
	if err := q.Order("created_at DESC").Limit(limit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
