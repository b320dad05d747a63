package auth

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/internal/delivery"
	"github.com/iamnithishraja/klinic-sub000/internal/laboratories"
	"github.com/iamnithishraja/klinic-sub000/internal/users"
	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	"github.com/iamnithishraja/klinic-sub000/pkg/db"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/security"
)

// RegisterService handles the sign up transaction.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             *db.Client
	PasswordConfig config.PasswordConfig
}

type registerService struct {
	accounts accountWriter
}

func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &registerService{accounts: accountWriter{db: params.DB, passwords: params.PasswordConfig}}, nil
}

// Register creates the user and, for laboratories and delivery partners, the
// role profile in the same transaction.
func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	labName := strings.TrimSpace(req.LaboratoryName)
	switch {
	case !req.Role.SelfRegistrable():
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	case req.Role == enums.UserRoleLaboratory && labName == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "laboratory_name is required for laboratory accounts")
	}
	if err := security.ValidatePasswordStrength(req.Password); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	dto := users.CreateUserDTO{Name: req.Name, Email: req.Email, Phone: req.Phone, Role: req.Role}
	return s.accounts.create(ctx, dto, req.Password, func(tx *gorm.DB, user *models.User) error {
		switch req.Role {
		case enums.UserRoleLaboratory:
			profile := models.LaboratoryProfile{UserID: user.ID, LaboratoryName: labName, Phone: req.Phone}
			if _, err := laboratories.NewRepository(tx).Upsert(ctx, tx, profile); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create laboratory profile")
			}
		case enums.UserRoleDeliveryPartner:
			if _, _, err := delivery.NewRepository(tx).FindOrCreate(ctx, tx, user.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create delivery profile")
			}
		}
		return nil
	})
}

// accountWriter holds what both registration flows share: field checks,
// hashing and the duplicate email guard.
type accountWriter struct {
	db        *db.Client
	passwords config.PasswordConfig
}

func (a accountWriter) create(ctx context.Context, dto users.CreateUserDTO, password string, after func(*gorm.DB, *models.User) error) (*users.UserDTO, error) {
	dto.Email = users.NormalizeEmail(dto.Email)
	dto.Name = strings.TrimSpace(dto.Name)
	switch {
	case dto.Email == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	case dto.Name == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	hash, err := security.HashPassword(password, a.passwords)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	dto.PasswordHash = hash

	var created *users.UserDTO
	err = a.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := users.NewRepository(tx)
		taken, err := repo.ExistsByEmail(ctx, dto.Email)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}
		if taken {
			return emailTaken()
		}

		user, err := repo.Create(ctx, dto)
		if db.IsUniqueViolation(err, "users_email_key") {
			return emailTaken()
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		if after != nil {
			if err := after(tx, user); err != nil {
				return err
			}
		}
		created = users.FromModel(user)
		return nil
	})
	return created, err
}

func emailTaken() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
}
