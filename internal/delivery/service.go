package delivery

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/pkg/db"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
)

// Service manages delivery partner profiles.
type Service interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error)
	UpsertProfile(ctx context.Context, userID uuid.UUID, input ProfileInput) (*ProfileDTO, error)
}

type profileRepository interface {
	FindByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.DeliveryPartnerProfile, error)
	Upsert(ctx context.Context, tx *gorm.DB, profile models.DeliveryPartnerProfile) (*models.DeliveryPartnerProfile, error)
}

type service struct {
	repo profileRepository
}

func NewService(repo profileRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("delivery profile repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetProfile(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error) {
	profile, err := s.repo.FindByUserID(ctx, nil, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load delivery profile")
	}
	return FromModel(profile), nil
}

func (s *service) UpsertProfile(ctx context.Context, userID uuid.UUID, input ProfileInput) (*ProfileDTO, error) {
	row := input.toModel(userID)
	if row.Address == "" || row.City == "" || row.Pincode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address, city and pincode are required")
	}
	profile, err := s.repo.Upsert(ctx, nil, row)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save delivery profile")
	}
	return FromModel(profile), nil
}
