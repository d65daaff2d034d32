package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/aiservices/internal/config"
)

var ErrInvalidConnParams = errors.New("invalid database connection parameters")

// NewPool connects to the service database and verifies it answers.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// ConnParams are the storage coordinates a training request carries.
type ConnParams struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
}

func (p ConnParams) Validate() error {
	switch {
	case p.Host == "":
		return fmt.Errorf("%w: host is required", ErrInvalidConnParams)
	case p.DBName == "":
		return fmt.Errorf("%w: dbname is required", ErrInvalidConnParams)
	case p.Port < 0 || p.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConnParams, p.Port)
	}
	return nil
}

// URL renders the params as a postgres connection URL. Port 0 means 5432.
func (p ConnParams) URL() string {
	port := p.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(port)),
		Path:   "/" + p.DBName,
	}
	if p.User != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}
	return u.String()
}

// NewJobPool builds a small pool for one training job. It does not dial:
// an unreachable server surfaces on the first query.
func NewJobPool(ctx context.Context, p ConnParams) (*pgxpool.Pool, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(p.URL())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConnParams, err)
	}
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 0

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create job pool: %w", err)
	}
	return pool, nil
}
