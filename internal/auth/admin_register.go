package auth

import (
	"context"

	"github.com/iamnithishraja/klinic-sub000/internal/users"
	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	"github.com/iamnithishraja/klinic-sub000/pkg/db"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
)

// AdminRegisterService creates admin accounts. The route is only mounted
// outside production.
type AdminRegisterService interface {
	Register(ctx context.Context, req AdminRegisterRequest) (*users.UserDTO, error)
}

type AdminRegisterServiceParams struct {
	DB             *db.Client
	PasswordConfig config.PasswordConfig
}

type adminRegisterService struct {
	accounts accountWriter
}

func NewAdminRegisterService(params AdminRegisterServiceParams) (AdminRegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &adminRegisterService{accounts: accountWriter{db: params.DB, passwords: params.PasswordConfig}}, nil
}

// Register skips the password strength rules that apply to self sign up.
func (s *adminRegisterService) Register(ctx context.Context, req AdminRegisterRequest) (*users.UserDTO, error) {
	dto := users.CreateUserDTO{Name: req.Name, Email: req.Email, Role: enums.UserRoleAdmin}
	return s.accounts.create(ctx, dto, req.Password, nil)
}
