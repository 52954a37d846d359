package repository

import (
	"context"

	"taxservice/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CalculationRepository is append-only: there is no Update or Delete.
type CalculationRepository interface {
	Record(ctx context.Context, calc *model.Calculation) error
	// ListByUser returns the user's calculations newest first. limit <= 0 returns all rows.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Calculation, int64, error)
}

type calculationRepository struct {
	db *gorm.DB
}

func NewCalculationRepository(db *gorm.DB) CalculationRepository {
	return &calculationRepository{db: db}
}

func (r *calculationRepository) Record(ctx context.Context, calc *model.Calculation) error {
	return GetDB(ctx, r.db).Create(calc).Error
}

func (r *calculationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Calculation, int64, error) {
	var calcs []model.Calculation
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Calculation{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := db.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}
	if err := query.Find(&calcs).Error; err != nil {
		return nil, 0, err
	}

	if calcs == nil {
		calcs = []model.Calculation{}
	}
	return calcs, total, nil
}
