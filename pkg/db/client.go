package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

// Pinger is the health check surface shared with Redis.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Client owns the pooled postgres connection used by every repository.
type Client struct {
	conn *gorm.DB
}

// New opens postgres through gorm, sizes the pool from cfg and routes gorm's
// own diagnostics into logg.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}
	conn, err := gorm.Open(
		postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}),
		&gorm.Config{Logger: newGormLogger(logg, cfg.SlowQuery), SkipDefaultTransaction: true},
	)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	client := &Client{conn: conn}
	if err := client.withPool(func(pool *sql.DB) error {
		sizePool(pool, cfg)
		return nil
	}); err != nil {
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"max_open_conns": cfg.MaxOpenConns,
			"slow_query_ms":  cfg.SlowQuery.Milliseconds(),
		}), "database connection established")
	}
	return client, nil
}

// sizePool applies the limits that are set; zero leaves database/sql's default.
func sizePool(pool *sql.DB, cfg config.DBConfig) {
	if n := cfg.MaxOpenConns; n > 0 {
		pool.SetMaxOpenConns(n)
	}
	if n := cfg.MaxIdleConns; n > 0 {
		pool.SetMaxIdleConns(n)
	}
	if d := cfg.ConnMaxLifetime; d > 0 {
		pool.SetConnMaxLifetime(d)
	}
	if d := cfg.ConnMaxIdleTime; d > 0 {
		pool.SetConnMaxIdleTime(d)
	}
}

// FromGorm wraps an already opened connection; sqlite-backed tests use it.
func FromGorm(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) withPool(fn func(*sql.DB) error) error {
	pool, err := c.conn.DB()
	if err != nil {
		return fmt.Errorf("sql pool: %w", err)
	}
	return fn(pool)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.withPool(func(pool *sql.DB) error { return pool.PingContext(ctx) })
}

func (c *Client) Close() error {
	return c.withPool((*sql.DB).Close)
}

// WithTx runs fn in one transaction. gorm rolls back when fn returns an error
// or panics, and the panic is re-raised.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}
