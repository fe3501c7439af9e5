package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/bidmesh/auctioncore/internal/adapters"
	"github.com/bidmesh/auctioncore/internal/waterfall"
)

// Postgres wraps a postgres DB connection holding the adapter registry and
// waterfall configuration. Both tables are control-plane data: written by
// operators out-of-band and reloaded periodically by the server.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the necessary tables if they don't exist.
const schemaSQL = `CREATE TABLE IF NOT EXISTS adapters (
    id TEXT PRIMARY KEY,
    endpoint TEXT NOT NULL,
    timeout_ms INT NOT NULL DEFAULT 100,
    enabled BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS waterfall_tiers (
    placement_id TEXT NOT NULL,
    adapter_id TEXT NOT NULL REFERENCES adapters(id),
    priority INT NOT NULL,
    PRIMARY KEY (placement_id, adapter_id)
);`

// InitPostgres connects to Postgres with OpenTelemetry instrumentation and
// ensures the control-plane schema exists.
func InitPostgres(dsn string, maxOpen, maxIdle int, connMaxLifetime time.Duration) (*Postgres, error) {
	db, err := otelsql.Open("postgres", dsn,
		otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	zap.L().Info("Connected to Postgres")
	return &Postgres{DB: db}, nil
}

// LoadAdapterConfigs returns all enabled adapter rows.
func (p *Postgres) LoadAdapterConfigs() ([]adapters.Config, error) {
	rows, err := p.DB.QueryContext(context.Background(),
		`SELECT id, endpoint, timeout_ms, enabled FROM adapters WHERE enabled`)
	if err != nil {
		return nil, fmt.Errorf("load adapters: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	var configs []adapters.Config
	for rows.Next() {
		var c adapters.Config
		var timeoutMS int
		if err := rows.Scan(&c.ID, &c.Endpoint, &timeoutMS, &c.Enabled); err != nil {
			return nil, fmt.Errorf("scan adapter: %w", err)
		}
		c.Timeout = time.Duration(timeoutMS) * time.Millisecond
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return configs, nil
}

// LoadWaterfallPriorities returns the priority-ordered adapter list per
// placement. Placements without rows fall back to the static configuration.
func (p *Postgres) LoadWaterfallPriorities() (map[string][]waterfall.Tier, error) {
	rows, err := p.DB.QueryContext(context.Background(),
		`SELECT placement_id, adapter_id, priority FROM waterfall_tiers ORDER BY placement_id, priority`)
	if err != nil {
		return nil, fmt.Errorf("load waterfall tiers: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	tiers := make(map[string][]waterfall.Tier)
	for rows.Next() {
		var placementID string
		var t waterfall.Tier
		if err := rows.Scan(&placementID, &t.AdapterID, &t.Priority); err != nil {
			return nil, fmt.Errorf("scan waterfall tier: %w", err)
		}
		tiers[placementID] = append(tiers[placementID], t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return tiers, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}
