package laboratories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/pkg/db"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
)

// Service manages laboratory profiles and resolves the identifiers admins use
// to point at a laboratory.
type Service interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error)
	UpsertProfile(ctx context.Context, userID uuid.UUID, input ProfileInput) (*ProfileDTO, error)
	ResolveLaboratoryUserID(ctx context.Context, tx *gorm.DB, labIDOrProfileID uuid.UUID) (uuid.UUID, error)
}

type profileRepository interface {
	FindByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.LaboratoryProfile, error)
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.LaboratoryProfile, error)
	Upsert(ctx context.Context, tx *gorm.DB, profile models.LaboratoryProfile) (*models.LaboratoryProfile, error)
}

type userLookup interface {
	FindByIDAndRole(ctx context.Context, tx *gorm.DB, id uuid.UUID, role enums.UserRole) (*models.User, error)
}

type service struct {
	repo  profileRepository
	users userLookup
}

func NewService(repo profileRepository, users userLookup) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("laboratory repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	return &service{repo: repo, users: users}, nil
}

func (s *service) GetProfile(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error) {
	profile, err := s.repo.FindByUserID(ctx, nil, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "laboratory profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load laboratory profile")
	}
	return FromModel(profile), nil
}

func (s *service) UpsertProfile(ctx context.Context, userID uuid.UUID, input ProfileInput) (*ProfileDTO, error) {
	row := input.toModel(userID)
	if row.LaboratoryName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "laboratory_name is required")
	}
	profile, err := s.repo.Upsert(ctx, nil, row)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save laboratory profile")
	}
	return FromModel(profile), nil
}

// ResolveLaboratoryUserID accepts either a laboratory user id or a
// laboratory profile id and returns the laboratory user id.
func (s *service) ResolveLaboratoryUserID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (uuid.UUID, error) {
	if id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "laboratory id is required")
	}
	user, err := s.users.FindByIDAndRole(ctx, tx, id, enums.UserRoleLaboratory)
	if err == nil {
		return user.ID, nil
	}
	if !db.IsNotFound(err) {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup laboratory user")
	}

	profile, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "laboratory not found")
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup laboratory profile")
	}
	user, err = s.users.FindByIDAndRole(ctx, tx, profile.UserID, enums.UserRoleLaboratory)
	if err != nil {
		if db.IsNotFound(err) {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "laboratory not found")
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup laboratory user")
	}
	return user.ID, nil
}
