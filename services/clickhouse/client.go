// Package clickhouse stores and serves OHLCV bars. Prices are kept as
// decimals at the storage boundary and converted to float64 at the engine
// edge.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"backtest-engine/services/data"
)

// Config locates the bar table.
type Config struct {
	Addr     string
	Database string
	Table    string
	Username string
	Password string
}

// Client wraps a native ClickHouse connection.
type Client struct {
	conn   driver.Conn
	cfg    Config
	logger *zap.Logger
}

// NewClient opens and pings a connection.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": uint64(0),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &Client{conn: conn, cfg: cfg, logger: logger}, nil
}

// EnsureSchema creates the database and bar table if missing. Decimal price
// columns; ReplacingMergeTree keyed on (symbol, ts) so re-ingestion dedups.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", c.cfg.Database)); err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			symbol String,
			ts DateTime64(3, 'UTC'),
			open Decimal(38, 12),
			high Decimal(38, 12),
			low Decimal(38, 12),
			close Decimal(38, 12),
			adj_close Decimal(38, 12),
			volume Decimal(38, 12),
			ingested_at DateTime64(3),
			version UInt64
		)
		ENGINE = ReplacingMergeTree(version)
		ORDER BY (symbol, ts)
		SETTINGS index_granularity = 8192
	`, c.cfg.Database, c.cfg.Table)
	return c.conn.Exec(ctx, ddl)
}

// InsertBars streams bars into the table in one batch.
func (c *Client) InsertBars(ctx context.Context, bars []data.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	batch, err := c.conn.PrepareBatch(ctx,
		fmt.Sprintf("INSERT INTO %s.%s SETTINGS insert_deduplicate=1", c.cfg.Database, c.cfg.Table))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	now := time.Now().UTC()
	ver := uint64(now.UnixNano())
	for _, b := range bars {
		if err := batch.Append(
			b.Symbol,
			b.Timestamp,
			decimal.NewFromFloat(b.Open),
			decimal.NewFromFloat(b.High),
			decimal.NewFromFloat(b.Low),
			decimal.NewFromFloat(b.Close),
			decimal.NewFromFloat(b.AdjClose),
			decimal.NewFromFloat(b.Volume),
			now,
			ver,
		); err != nil {
			return fmt.Errorf("batch append: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("batch send: %w", err)
	}
	c.logger.Info("bars inserted",
		zap.Int("rows", len(bars)),
		zap.String("table", c.cfg.Table),
	)
	return nil
}

// Bars returns the symbol's bars in [start, end), ascending.
func (c *Client) Bars(ctx context.Context, symbol string, start, end time.Time) ([]data.Bar, error) {
	query := fmt.Sprintf(`
		SELECT symbol, ts, open, high, low, close, adj_close, volume
		FROM %s.%s FINAL
		WHERE symbol = ? AND ts >= ? AND ts < ?
		ORDER BY ts
	`, c.cfg.Database, c.cfg.Table)

	rows, err := c.conn.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var bars []data.Bar
	for rows.Next() {
		var (
			sym                                       string
			ts                                        time.Time
			open, high, low, closep, adjClose, volume decimal.Decimal
		)
		if err := rows.Scan(&sym, &ts, &open, &high, &low, &closep, &adjClose, &volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		bars = append(bars, data.Bar{
			Symbol:    sym,
			Timestamp: ts.UTC(),
			Open:      open.InexactFloat64(),
			High:      high.InexactFloat64(),
			Low:       low.InexactFloat64(),
			Close:     closep.InexactFloat64(),
			AdjClose:  adjClose.InexactFloat64(),
			Volume:    volume.InexactFloat64(),
		})
	}
	return bars, rows.Err()
}

// Source loads every symbol's bars and returns a validated in-memory source
// ready for one or more runs.
func (c *Client) Source(ctx context.Context, symbols []string, start, end time.Time) (*data.MemorySource, error) {
	bySymbol := make(map[string][]data.Bar, len(symbols))
	for _, sym := range symbols {
		bars, err := c.Bars(ctx, sym, start, end)
		if err != nil {
			return nil, err
		}
		bySymbol[sym] = bars
	}
	return data.NewMemorySource(bySymbol)
}

func (c *Client) Close() error { return c.conn.Close() }
