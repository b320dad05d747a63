package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
)

// ProductDTO is the API shape of a laboratory product.
type ProductDTO struct {
	ID                uuid.UUID       `json:"id"`
	OwnerID           uuid.UUID       `json:"owner_id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	AvailableQuantity int             `json:"available_quantity"`
	ImageURL          *string         `json:"image_url,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewProductDTO maps the persisted row to its response shape.
func NewProductDTO(product *models.Product) *ProductDTO {
	if product == nil {
		return nil
	}
	return &ProductDTO{
		ID:                product.ID,
		OwnerID:           product.OwnerID,
		Name:              product.Name,
		Description:       product.Description,
		Price:             product.Price,
		AvailableQuantity: product.AvailableQuantity,
		ImageURL:          product.ImageURL,
		CreatedAt:         product.CreatedAt,
		UpdatedAt:         product.UpdatedAt,
	}
}
