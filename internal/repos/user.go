package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/types"
)

type UserRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.User, error)
	// EnsureExists upserts a bare User row for id if one doesn't already
	// exist, so a tenant asserted by the gateway's X-User-Id header always
	// satisfies Space/Document's foreign key without a separate signup flow.
	EnsureExists(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *userRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.User, error) {
	var u types.User
	if err := r.tx(tx).WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) EnsureExists(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return r.tx(tx).WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&types.User{ID: id}).Error
}
