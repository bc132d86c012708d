package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/types"
)

type SpaceRepo interface {
	Create(ctx context.Context, tx *gorm.DB, space *types.Space) (*types.Space, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Space, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Space, error)
	BelongsToUser(ctx context.Context, tx *gorm.DB, spaceID, userID uuid.UUID) (bool, error)
	// EnsureExists upserts a bare Space row for (id, userID), mirroring
	// UserRepo.EnsureExists so a tenant asserted only by request headers
	// satisfies Document's foreign key.
	EnsureExists(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) error
}

type spaceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSpaceRepo(db *gorm.DB, baseLog *logger.Logger) SpaceRepo {
	return &spaceRepo{db: db, log: baseLog.With("repo", "SpaceRepo")}
}

func (r *spaceRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *spaceRepo) Create(ctx context.Context, tx *gorm.DB, space *types.Space) (*types.Space, error) {
	if err := r.tx(tx).WithContext(ctx).Create(space).Error; err != nil {
		return nil, err
	}
	return space, nil
}

func (r *spaceRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Space, error) {
	var s types.Space
	if err := r.tx(tx).WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *spaceRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Space, error) {
	var results []*types.Space
	if err := r.tx(tx).WithContext(ctx).Where("user_id = ?", userID).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *spaceRepo) BelongsToUser(ctx context.Context, tx *gorm.DB, spaceID, userID uuid.UUID) (bool, error) {
	var count int64
	if err := r.tx(tx).WithContext(ctx).Model(&types.Space{}).
		Where("id = ? AND user_id = ?", spaceID, userID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *spaceRepo) EnsureExists(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) error {
	return r.tx(tx).WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&types.Space{ID: id, UserID: userID, Name: "default"}).Error
}
