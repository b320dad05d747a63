package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/internal/repo"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
)

// Repository reads and writes the users table. Emails are stored and matched
// in normalised form.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.DB(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return repo.First[models.User](r.DB(ctx).Where("email = ?", NormalizeEmail(email)))
}

// ExistsByEmail counts inactive accounts too.
func (r *Repository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var n int64
	err := r.DB(ctx).Model(&models.User{}).Where("email = ?", NormalizeEmail(email)).Count(&n).Error
	return n > 0, err
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return repo.First[models.User](r.DB(ctx), "id = ?", id)
}

// FindByIDAndRole only matches active users.
func (r *Repository) FindByIDAndRole(ctx context.Context, tx *gorm.DB, id uuid.UUID, role enums.UserRole) (*models.User, error) {
	return repo.First[models.User](r.Conn(ctx, tx).Where("id = ? AND role = ? AND is_active = ?", id, role, true))
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.DB(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumn("last_login_at", at).Error
}
