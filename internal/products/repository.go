package product

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/internal/repo"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/pagination"
)

// Repository wires together all product persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return repo.First[models.Product](r.db.WithContext(ctx), "id = ?", id)
}

// FindByIDs returns the products that exist among ids keyed by id. Missing ids
// are simply absent from the map.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id).Error
}

// DecrementStock subtracts qty in a single statement and returns the
// resulting quantity, which may be negative when the product is oversold.
func (r *Repository) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (int, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("available_quantity", gorm.Expr("available_quantity - ?", qty))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	var remaining int
	if err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("available_quantity").
		Where("id = ?", productID).
		Scan(&remaining).Error; err != nil {
		return 0, err
	}
	return remaining, nil
}

type productListQuery struct {
	Pagination pagination.Params
	Query      string
	OwnerID    *uuid.UUID
	InStock    bool
}

// ListProducts pages products newest first.
func (r *Repository) ListProducts(ctx context.Context, query productListQuery) ([]models.Product, error) {
	page, err := pagination.Scope(query.Pagination)
	if err != nil {
		return nil, err
	}

	qb := r.db.WithContext(ctx).Model(&models.Product{})
	if query.OwnerID != nil {
		qb = qb.Where("owner_id = ?", *query.OwnerID)
	}
	if term := strings.ToLower(strings.TrimSpace(query.Query)); term != "" {
		like := "%" + term + "%"
		qb = qb.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}
	if query.InStock {
		qb = qb.Where("available_quantity > 0")
	}

	var rows []models.Product
	if err := qb.Scopes(page).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
