package landscape

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/bidmesh/auctioncore/internal/models"
)

// Sink is the durable store behind the landscape logger.
type Sink interface {
	WriteBatch(ctx context.Context, records []Record) error
	Query(ctx context.Context, f Filter) ([]Record, error)
}

// ErrUnavailable is returned when the landscape DB is not configured.
var ErrUnavailable = fmt.Errorf("landscape store unavailable")

// ClickHouseSink writes landscape rows to a time-partitioned table.
// ReplacingMergeTree keyed on (auction_id, bid_id) collapses replayed rows
// at merge time, backing the logger's idempotency guarantee.
type ClickHouseSink struct {
	DB *sql.DB
}

// InitClickHouse connects to ClickHouse and ensures the landscape table
// exists.
func InitClickHouse(dsn string, maxOpen, maxIdle int) (*ClickHouseSink, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	create := `CREATE TABLE IF NOT EXISTS bid_landscape (
       observed_at    DateTime,
       auction_id     String,
       placement_id   String,
       adapter_id     String,
       bid_id         String,
       bid_price      Float64,
       won            UInt8,
       clearing_price Float64,
       bid_count      UInt32,
       country        String,
       format         String
   ) ENGINE=ReplacingMergeTree()
     PARTITION BY toDate(observed_at)
     ORDER BY (auction_id, bid_id)`
	if _, err := db.ExecContext(context.Background(), create); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("Connected to ClickHouse")
	return &ClickHouseSink{DB: db}, nil
}

// WriteBatch inserts records in a single batch transaction.
func (s *ClickHouseSink) WriteBatch(ctx context.Context, records []Record) error {
	if s == nil || s.DB == nil {
		return ErrUnavailable
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO bid_landscape (observed_at, auction_id, placement_id, adapter_id, bid_id, bid_price, won, clearing_price, bid_count, country, format) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			zap.L().Warn("stmt close", zap.Error(err))
		}
	}()

	for _, r := range records {
		won := uint8(0)
		if r.Won {
			won = 1
		}
		if _, err := stmt.ExecContext(ctx, r.ObservedAt, r.AuctionID, r.PlacementID, r.AdapterID, r.BidID, r.BidPrice, won, r.ClearingPrice, uint32(r.BidCount), r.Country, string(r.Format)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Query returns landscape rows matching the filter, newest first. It serves
// out-of-band analytics only and is never called on the request path.
func (s *ClickHouseSink) Query(ctx context.Context, f Filter) ([]Record, error) {
	if s == nil || s.DB == nil {
		return nil, ErrUnavailable
	}

	var conds []string
	var args []interface{}
	if f.AdapterID != "" {
		conds = append(conds, "adapter_id = ?")
		args = append(args, f.AdapterID)
	}
	if f.Country != "" {
		conds = append(conds, "country = ?")
		args = append(args, f.Country)
	}
	if f.Format != "" {
		conds = append(conds, "format = ?")
		args = append(args, string(f.Format))
	}
	if !f.From.IsZero() {
		conds = append(conds, "observed_at >= ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		conds = append(conds, "observed_at < ?")
		args = append(args, f.To)
	}

	query := `SELECT observed_at, auction_id, placement_id, adapter_id, bid_id, bid_price, won, clearing_price, bid_count, country, format FROM bid_landscape`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY observed_at DESC"
	limit := f.Limit
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query landscape: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	var out []Record
	for rows.Next() {
		var r Record
		var won uint8
		var bidCount uint32
		var format string
		var observedAt time.Time
		if err := rows.Scan(&observedAt, &r.AuctionID, &r.PlacementID, &r.AdapterID, &r.BidID, &r.BidPrice, &won, &r.ClearingPrice, &bidCount, &r.Country, &format); err != nil {
			return nil, fmt.Errorf("scan landscape row: %w", err)
		}
		r.ObservedAt = observedAt
		r.Won = won == 1
		r.BidCount = int(bidCount)
		r.Format = models.AdFormat(format)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// Close terminates the ClickHouse connection.
func (s *ClickHouseSink) Close() {
	if s != nil && s.DB != nil {
		if err := s.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}
