// Package dbtest opens throwaway sqlite databases carrying the Klinic schema
// for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
)

var schema = []string{
	`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL,
  phone TEXT,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT users_email_key UNIQUE (email)
)`,
	`CREATE TABLE laboratory_profiles (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  laboratory_name TEXT NOT NULL,
  address TEXT NOT NULL DEFAULT '',
  city TEXT NOT NULL DEFAULT '',
  phone TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE delivery_partner_profiles (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  address TEXT NOT NULL DEFAULT '',
  city TEXT NOT NULL DEFAULT '',
  pincode TEXT NOT NULL DEFAULT '',
  vehicle_number TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE products (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  price TEXT NOT NULL,
  available_quantity INTEGER NOT NULL DEFAULT 0,
  image_url TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  ordered_by TEXT NOT NULL,
  laboratory_user_id TEXT,
  delivery_partner_id TEXT,
  prescription TEXT,
  notes TEXT,
  total_price TEXT NOT NULL DEFAULT '0',
  is_paid BOOLEAN NOT NULL DEFAULT 0,
  cod BOOLEAN NOT NULL DEFAULT 0,
  need_assignment BOOLEAN NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'pending',
  rejection_reason TEXT,
  payment_reference TEXT,
  assigned_at DATETIME,
  accepted_at DATETIME,
  out_for_delivery_at DATETIME,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE order_lines (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  unit_price TEXT NOT NULL DEFAULT '0',
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE payments (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  gateway_order_id TEXT NOT NULL,
  gateway_payment_id TEXT,
  amount TEXT NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'created',
  order_ids TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT payments_gateway_order_id_key UNIQUE (gateway_order_id)
)`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
)`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL UNIQUE,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
)`,
}

// Open returns a private in-memory database with every table created.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// CreateUser inserts an active user with the given role.
func CreateUser(t *testing.T, conn *gorm.DB, role enums.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		Name:         fmt.Sprintf("%s user", role),
		Email:        fmt.Sprintf("%s_%s@klinic.test", role, uuid.NewString()[:8]),
		PasswordHash: "hash",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, conn.Create(user).Error)
	return user
}

// CreateProduct inserts a product owned by ownerID.
func CreateProduct(t *testing.T, conn *gorm.DB, ownerID uuid.UUID, price string, qty int) *models.Product {
	t.Helper()
	product := &models.Product{
		OwnerID:           ownerID,
		Name:              "Complete blood count",
		Price:             decimal.RequireFromString(price),
		AvailableQuantity: qty,
	}
	require.NoError(t, conn.Create(product).Error)
	return product
}

// CreateOrder inserts an order in the given status for patientID.
func CreateOrder(t *testing.T, conn *gorm.DB, patientID uuid.UUID, status enums.OrderStatus, mutate ...func(*models.Order)) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderedBy:  patientID,
		Status:     status,
		TotalPrice: decimal.RequireFromString("100"),
	}
	for _, fn := range mutate {
		fn(order)
	}
	require.NoError(t, conn.Create(order).Error)
	return order
}

// ReloadOrder fetches the current row for orderID.
func ReloadOrder(t *testing.T, conn *gorm.DB, orderID uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, conn.Preload("Lines").First(&order, "id = ?", orderID).Error)
	return order
}
