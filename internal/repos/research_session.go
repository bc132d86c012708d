package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/types"
)

type ResearchSessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, s *types.ResearchSession) (*types.ResearchSession, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ResearchSession, error)
	Update(ctx context.Context, tx *gorm.DB, s *types.ResearchSession) error
}

type researchSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResearchSessionRepo(db *gorm.DB, baseLog *logger.Logger) ResearchSessionRepo {
	return &researchSessionRepo{db: db, log: baseLog.With("repo", "ResearchSessionRepo")}
}

func (r *researchSessionRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *researchSessionRepo) Create(ctx context.Context, tx *gorm.DB, s *types.ResearchSession) (*types.ResearchSession, error) {
	if err := r.tx(tx).WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

func (r *researchSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ResearchSession, error) {
	var s types.ResearchSession
	if err := r.tx(tx).WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *researchSessionRepo) Update(ctx context.Context, tx *gorm.DB, s *types.ResearchSession) error {
	return r.tx(tx).WithContext(ctx).Save(s).Error
}
