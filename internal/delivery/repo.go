package delivery

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/iamnithishraja/klinic-sub000/internal/repo"
	"github.com/iamnithishraja/klinic-sub000/pkg/db"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
)

// Repository persists delivery partner profiles.
type Repository struct {
	repo.Base
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(conn)}
}

func (r *Repository) FindByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.DeliveryPartnerProfile, error) {
	return repo.First[models.DeliveryPartnerProfile](r.Conn(ctx, tx).Where("user_id = ?", userID))
}

// FindOrCreate returns the partner's profile, inserting a blank one when none
// exists. created reports whether the stub was inserted by this call.
func (r *Repository) FindOrCreate(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.DeliveryPartnerProfile, bool, error) {
	profile, err := r.FindByUserID(ctx, tx, userID)
	if err == nil {
		return profile, false, nil
	}
	if !db.IsNotFound(err) {
		return nil, false, err
	}

	stub := models.DeliveryPartnerProfile{UserID: userID}
	res := r.Conn(ctx, tx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&stub)
	if res.Error != nil {
		return nil, false, res.Error
	}
	profile, err = r.FindByUserID(ctx, tx, userID)
	if err != nil {
		return nil, false, err
	}
	return profile, res.RowsAffected == 1, nil
}

// Upsert creates or replaces the profile keyed by user_id.
func (r *Repository) Upsert(ctx context.Context, tx *gorm.DB, profile models.DeliveryPartnerProfile) (*models.DeliveryPartnerProfile, error) {
	err := r.Conn(ctx, tx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"address", "city", "pincode", "vehicle_number", "updated_at"}),
	}).Create(&profile).Error
	if err != nil {
		return nil, err
	}
	return r.FindByUserID(ctx, tx, profile.UserID)
}
