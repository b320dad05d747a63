package laboratories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/iamnithishraja/klinic-sub000/internal/repo"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
)

// Repository persists laboratory profiles.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) FindByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.LaboratoryProfile, error) {
	return repo.First[models.LaboratoryProfile](r.Conn(ctx, tx).Where("user_id = ?", userID))
}

func (r *Repository) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.LaboratoryProfile, error) {
	return repo.First[models.LaboratoryProfile](r.Conn(ctx, tx), "id = ?", id)
}

// Upsert creates or replaces the profile keyed by user_id.
func (r *Repository) Upsert(ctx context.Context, tx *gorm.DB, profile models.LaboratoryProfile) (*models.LaboratoryProfile, error) {
	err := r.Conn(ctx, tx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"laboratory_name", "address", "city", "phone", "updated_at"}),
	}).Create(&profile).Error
	if err != nil {
		return nil, err
	}
	return r.FindByUserID(ctx, tx, profile.UserID)
}
