package product

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/pagination"
)

// Service exposes the laboratory catalog.
type Service interface {
	CreateProduct(ctx context.Context, ownerID uuid.UUID, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, ownerID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, ownerID, productID uuid.UUID) error
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	ListOwnerProducts(ctx context.Context, ownerID uuid.UUID, params pagination.Params) (*ProductListResult, error)
	ListCatalog(ctx context.Context, input ListCatalogInput) (*ProductListResult, error)
}

// CreateProductInput captures the payload for listing a new product.
type CreateProductInput struct {
	Name              string          `json:"name" validate:"required,max=200"`
	Description       string          `json:"description" validate:"max=4000"`
	Price             decimal.Decimal `json:"price"`
	AvailableQuantity int             `json:"available_quantity" validate:"gte=0"`
	ImageURL          *string         `json:"image_url,omitempty" validate:"omitempty,url"`
}

// UpdateProductInput is a partial update; nil fields are left untouched.
type UpdateProductInput struct {
	Name              *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Description       *string          `json:"description,omitempty" validate:"omitempty,max=4000"`
	Price             *decimal.Decimal `json:"price,omitempty"`
	AvailableQuantity *int             `json:"available_quantity,omitempty" validate:"omitempty,gte=0"`
	ImageURL          *string          `json:"image_url,omitempty" validate:"omitempty,url"`
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateProduct(ctx context.Context, ownerID uuid.UUID, input CreateProductInput) (*ProductDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	if err := validateQuantity(input.AvailableQuantity); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateProduct(ctx, &models.Product{
		OwnerID:           ownerID,
		Name:              name,
		Description:       strings.TrimSpace(input.Description),
		Price:             input.Price.Round(2),
		AvailableQuantity: input.AvailableQuantity,
		ImageURL:          trimmedPtr(input.ImageURL),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
	}
	return NewProductDTO(created), nil
}

func (s *service) UpdateProduct(ctx context.Context, ownerID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.loadOwned(ctx, ownerID, productID)
	if err != nil {
		return nil, err
	}
	if input.Price != nil {
		if err := validatePrice(*input.Price); err != nil {
			return nil, err
		}
	}
	if input.AvailableQuantity != nil {
		if err := validateQuantity(*input.AvailableQuantity); err != nil {
			return nil, err
		}
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
	}

	applyUpdateToProduct(product, input)

	updated, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
	}
	return NewProductDTO(updated), nil
}

func (s *service) DeleteProduct(ctx context.Context, ownerID, productID uuid.UUID) error {
	if _, err := s.loadOwned(ctx, ownerID, productID); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete product")
	}
	return nil
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return NewProductDTO(product), nil
}

func (s *service) ListOwnerProducts(ctx context.Context, ownerID uuid.UUID, params pagination.Params) (*ProductListResult, error) {
	return s.list(ctx, productListQuery{Pagination: params, OwnerID: &ownerID})
}

func (s *service) ListCatalog(ctx context.Context, input ListCatalogInput) (*ProductListResult, error) {
	return s.list(ctx, productListQuery{
		Pagination: input.Pagination,
		Query:      input.Query,
		OwnerID:    input.OwnerID,
		InStock:    input.InStock,
	})
}

func (s *service) list(ctx context.Context, query productListQuery) (*ProductListResult, error) {
	rows, err := s.repo.ListProducts(ctx, query)
	if err != nil {
		if strings.Contains(err.Error(), "cursor") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	dtos := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *NewProductDTO(&rows[i]))
	}
	page := pagination.BuildPage(dtos, query.Pagination.Limit, func(p ProductDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return &page, nil
}

func (s *service) loadOwned(ctx context.Context, ownerID, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product.OwnerID != ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another laboratory")
	}
	return product, nil
}

func applyUpdateToProduct(product *models.Product, input UpdateProductInput) {
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = strings.TrimSpace(*input.Description)
	}
	if input.Price != nil {
		product.Price = input.Price.Round(2)
	}
	if input.AvailableQuantity != nil {
		product.AvailableQuantity = *input.AvailableQuantity
	}
	if input.ImageURL != nil {
		product.ImageURL = trimmedPtr(input.ImageURL)
	}
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be >= 0")
	}
	return nil
}

func validateQuantity(qty int) error {
	if qty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "available_quantity must be >= 0")
	}
	return nil
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
