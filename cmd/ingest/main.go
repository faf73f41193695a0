// Command ingest loads <symbol>.csv bar files into the ClickHouse bar table.
package main

import (
	"context"
	"flag"
	"strings"
	"time"

	"go.uber.org/zap"

	"backtest-engine/services/clickhouse"
	"backtest-engine/services/config"
	"backtest-engine/services/data"
)

func main() {
	csvDir := flag.String("csv-dir", "./data", "Directory with <symbol>.csv bar files")
	symbolsArg := flag.String("symbols", "", "Comma-separated symbol list")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var symbols []string
	for _, p := range strings.Split(*symbolsArg, ",") {
		if s := strings.TrimSpace(p); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		logger.Fatal("-symbols is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	client, err := clickhouse.NewClient(cfg.ClickHouse, logger)
	if err != nil {
		logger.Fatal("clickhouse connect", zap.Error(err))
	}
	defer client.Close()

	if err := client.EnsureSchema(ctx); err != nil {
		logger.Fatal("ensure schema", zap.Error(err))
	}

	source, err := data.NewCSVSource(*csvDir, symbols, time.Time{})
	if err != nil {
		logger.Fatal("load csv bars", zap.Error(err))
	}

	started := time.Now()
	var all []data.Bar
	for {
		bars, err := source.Next()
		if err != nil {
			break
		}
		all = append(all, bars...)
	}
	if err := client.InsertBars(ctx, all); err != nil {
		logger.Fatal("insert bars", zap.Error(err))
	}
	logger.Info("ingest complete",
		zap.Int("rows", len(all)),
		zap.Duration("elapsed", time.Since(started)),
	)
}
