// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"backtest-engine/services/clickhouse"
)

// Config carries the knobs the cmds need. Run-level backtest parameters live
// in engine.RunConfig; this is process-level wiring only.
type Config struct {
	Environment string
	HTTPPort    int
	DataDir     string
	ClickHouse  clickhouse.Config
	UseCH       bool
}

// Load reads the environment. A missing .env is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(mustEnv("HTTP_PORT", "8080"))
	if err != nil {
		return nil, err
	}
	return &Config{
		Environment: mustEnv("ENVIRONMENT", "dev"),
		HTTPPort:    port,
		DataDir:     mustEnv("DATA_DIR", "./data"),
		UseCH:       boolEnv("USE_CLICKHOUSE", false),
		ClickHouse: clickhouse.Config{
			Addr:     mustEnv("CLICKHOUSE_ADDR", "localhost:9000"),
			Database: mustEnv("CH_DATABASE", "backtest"),
			Table:    mustEnv("CH_TABLE", "bars"),
			Username: mustEnv("CH_USER", "backtest"),
			Password: mustEnv("CH_PASSWORD", ""),
		},
	}, nil
}

func mustEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func boolEnv(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1"
}
