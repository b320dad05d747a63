package product

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamnithishraja/klinic-sub000/pkg/db/dbtest"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/pagination"
)

func TestServiceProductLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	lab := dbtest.CreateUser(t, conn, enums.UserRoleLaboratory)
	otherLab := dbtest.CreateUser(t, conn, enums.UserRoleLaboratory)
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, lab.ID, CreateProductInput{
		Name:              " CBC Test ",
		Price:             decimal.RequireFromString("349.50"),
		AvailableQuantity: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "CBC Test", created.Name)
	assert.True(t, created.Price.Equal(decimal.RequireFromString("349.5")))

	newPrice := decimal.RequireFromString("299")
	updated, err := svc.UpdateProduct(ctx, lab.ID, created.ID, UpdateProductInput{Price: &newPrice})
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(newPrice))
	assert.Equal(t, 10, updated.AvailableQuantity)

	_, err = svc.UpdateProduct(ctx, otherLab.ID, created.ID, UpdateProductInput{Price: &newPrice})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	err = svc.DeleteProduct(ctx, otherLab.ID, created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	require.NoError(t, svc.DeleteProduct(ctx, lab.ID, created.ID))
	_, err = svc.GetProduct(ctx, created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	err = svc.DeleteProduct(ctx, lab.ID, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestServiceRejectsNegativeValues(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	lab := dbtest.CreateUser(t, conn, enums.UserRoleLaboratory)
	ctx := context.Background()

	_, err = svc.CreateProduct(ctx, lab.ID, CreateProductInput{Name: "Lipid", Price: decimal.NewFromInt(-1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.CreateProduct(ctx, lab.ID, CreateProductInput{Name: "Lipid", Price: decimal.NewFromInt(1), AvailableQuantity: -2})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	product := dbtest.CreateProduct(t, conn, lab.ID, "10", 1)
	qty := -1
	_, err = svc.UpdateProduct(ctx, lab.ID, product.ID, UpdateProductInput{AvailableQuantity: &qty})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListCatalogPagesNewestFirst(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	lab := dbtest.CreateUser(t, conn, enums.UserRoleLaboratory)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		p := dbtest.CreateProduct(t, conn, lab.ID, "100", i)
		require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", p.ID).Update("created_at", base.Add(time.Duration(i)*time.Hour)).Error)
		ids = append(ids, p.ID)
	}

	first, err := svc.ListCatalog(context.Background(), ListCatalogInput{Pagination: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, ids[2], first.Items[0].ID)
	assert.Equal(t, ids[1], first.Items[1].ID)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.ListCatalog(context.Background(), ListCatalogInput{Pagination: pagination.Params{Limit: 2, Cursor: first.NextCursor}})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, ids[0], second.Items[0].ID)
	assert.Empty(t, second.NextCursor)

	inStock, err := svc.ListCatalog(context.Background(), ListCatalogInput{InStock: true})
	require.NoError(t, err)
	assert.Len(t, inStock.Items, 2)

	_, err = svc.ListCatalog(context.Background(), ListCatalogInput{Pagination: pagination.Params{Cursor: "%%%"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRepositoryDecrementStockAllowsOversell(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	lab := dbtest.CreateUser(t, conn, enums.UserRoleLaboratory)
	product := dbtest.CreateProduct(t, conn, lab.ID, "50", 2)
	ctx := context.Background()

	remaining, err := repo.DecrementStock(ctx, product.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	remaining, err = repo.DecrementStock(ctx, product.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, -2, remaining)

	_, err = repo.DecrementStock(ctx, uuid.New(), 1)
	assert.Error(t, err)
}
