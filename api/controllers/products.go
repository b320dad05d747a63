package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/iamnithishraja/klinic-sub000/api/validators"
	productsvc "github.com/iamnithishraja/klinic-sub000/internal/products"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

func productID(r *http.Request) (uuid.UUID, error) {
	return validators.ParseUUIDParam(r, "productId")
}

func catalogInput(r *http.Request) (productsvc.ListCatalogInput, error) {
	params, err := validators.ParsePagination(r)
	if err != nil {
		return productsvc.ListCatalogInput{}, err
	}
	input := productsvc.ListCatalogInput{
		Query:      strings.TrimSpace(r.URL.Query().Get("q")),
		Pagination: params,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("lab")); raw != "" {
		ownerID, err := uuid.Parse(raw)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid lab filter")
		}
		input.OwnerID = &ownerID
	}
	inStock, err := validators.ParseQueryBool(r, "in_stock")
	if err != nil {
		return input, err
	}
	input.InStock = inStock != nil && *inStock
	return input, nil
}

// CatalogList is the public product browse endpoint. Supports q, lab and
// in_stock filters.
func CatalogList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return public(logg, unavailable("product", svc == nil), okResult, func(r *http.Request) (any, error) {
		input, err := catalogInput(r)
		if err != nil {
			return nil, err
		}
		return svc.ListCatalog(r.Context(), input)
	})
}

// CatalogGet returns a single product.
func CatalogGet(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return public(logg, unavailable("product", svc == nil), okResult, func(r *http.Request) (any, error) {
		id, err := productID(r)
		if err != nil {
			return nil, err
		}
		return svc.GetProduct(r.Context(), id)
	})
}

// LabListProducts lists the calling laboratory's own products.
func LabListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return asCaller(logg, unavailable("product", svc == nil), okResult, func(r *http.Request, ownerID uuid.UUID) (any, error) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			return nil, err
		}
		return svc.ListOwnerProducts(r.Context(), ownerID, params)
	})
}

func LabCreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return asCaller(logg, unavailable("product", svc == nil), createdResult, func(r *http.Request, ownerID uuid.UUID) (any, error) {
		var payload productsvc.CreateProductInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.CreateProduct(r.Context(), ownerID, payload)
	})
}

// LabUpdateProduct patches a product the caller owns.
func LabUpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return asCaller(logg, unavailable("product", svc == nil), okResult, func(r *http.Request, ownerID uuid.UUID) (any, error) {
		id, err := productID(r)
		if err != nil {
			return nil, err
		}
		var payload productsvc.UpdateProductInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.UpdateProduct(r.Context(), ownerID, id, payload)
	})
}

func LabDeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return asCaller(logg, unavailable("product", svc == nil), result{status: http.StatusNoContent}, func(r *http.Request, ownerID uuid.UUID) (any, error) {
		id, err := productID(r)
		if err != nil {
			return nil, err
		}
		return nil, svc.DeleteProduct(r.Context(), ownerID, id)
	})
}
