package product

import (
	"github.com/google/uuid"

	"github.com/iamnithishraja/klinic-sub000/pkg/pagination"
)

// ListCatalogInput drives the public browse endpoint.
type ListCatalogInput struct {
	Query      string
	OwnerID    *uuid.UUID
	InStock    bool
	Pagination pagination.Params
}

// ProductListResult is one page of products.
type ProductListResult = pagination.Page[ProductDTO]
