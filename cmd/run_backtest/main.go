// Command run_backtest executes one backtest from CSV or ClickHouse bars and
// prints the performance summary.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"backtest-engine/services/arrowexport"
	"backtest-engine/services/clickhouse"
	"backtest-engine/services/config"
	"backtest-engine/services/data"
	"backtest-engine/services/engine"
	"backtest-engine/strategies"
)

func main() {
	csvDir := flag.String("csv-dir", "", "Directory with <symbol>.csv bar files; if empty, ClickHouse is used")
	symbolsArg := flag.String("symbols", "AAPL", "Comma-separated symbol list")
	capital := flag.Float64("capital", 100000, "Initial capital")
	start := flag.String("start", "2015-01-01", "Start date (YYYY-MM-DD)")
	end := flag.String("end", "2100-01-01", "End date for ClickHouse loads (YYYY-MM-DD)")
	strategyName := flag.String("strategy", "buy_and_hold", "Strategy: buy_and_hold | ma_cross | donchian")
	sizing := flag.String("sizing", "fixed:100", "Sizing rule: fixed:<qty> | fraction:<f> | target:<pct>")
	fillMode := flag.String("fill", "next_open", "Fill policy: next_open | same_close")
	commission := flag.String("commission", "none", "Commission: none | flat:<fee> | percent:<rate>")
	allowShort := flag.Bool("allow-short", false, "Permit naked shorting")
	closeOnFinish := flag.Bool("close-on-finish", false, "Liquidate open positions at the end of data")
	equityOut := flag.String("equity-out", "", "Write the equity curve CSV to this path")
	arrowOut := flag.String("arrow-out", "", "Write the equity curve as Arrow IPC to this path")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	symbols := splitSymbols(*symbolsArg)
	startTS, err := time.Parse("2006-01-02", *start)
	if err != nil {
		logger.Fatal("bad -start", zap.Error(err))
	}

	source, err := buildSource(*csvDir, symbols, startTS, *end, logger)
	if err != nil {
		logger.Fatal("load bars", zap.Error(err))
	}

	cfg := &engine.RunConfig{
		Symbols:        symbols,
		InitialCapital: *capital,
		Start:          startTS,
		Sizer:          parseSizer(*sizing, logger),
		Commission:     parseCommission(*commission, logger),
		Fill:           parseFill(*fillMode, logger),
		AllowShort:     *allowShort,
		CloseOnFinish:  *closeOnFinish,
	}

	var strat engine.Strategy
	switch *strategyName {
	case "buy_and_hold":
		strat = strategies.NewBuyAndHold()
	case "ma_cross":
		strat = strategies.NewMovingAverageCross(9, 26)
	case "donchian":
		strat = strategies.NewDonchianBreakout(20)
	default:
		logger.Fatal("unknown strategy", zap.String("strategy", *strategyName))
	}

	eng, err := engine.New(cfg, source, strat, engine.WithLogger(logger))
	if err != nil {
		logger.Fatal("configure run", zap.Error(err))
	}
	result, err := eng.Run(context.Background())
	if err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}

	printSummary(result)

	if *equityOut != "" {
		if err := writeEquityCSV(*equityOut, result.EquityCurve); err != nil {
			logger.Fatal("write equity csv", zap.Error(err))
		}
	}
	if *arrowOut != "" {
		f, err := os.Create(*arrowOut)
		if err != nil {
			logger.Fatal("create arrow file", zap.Error(err))
		}
		defer f.Close()
		if err := arrowexport.NewExporter(logger).WriteEquityCurve(f, result.EquityCurve); err != nil {
			logger.Fatal("write arrow", zap.Error(err))
		}
	}
}

func buildSource(csvDir string, symbols []string, start time.Time, end string, logger *zap.Logger) (data.BarSource, error) {
	if csvDir != "" {
		return data.NewCSVSource(csvDir, symbols, start)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	endTS, err := time.Parse("2006-01-02", end)
	if err != nil {
		return nil, err
	}
	client, err := clickhouse.NewClient(cfg.ClickHouse, logger)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return client.Source(context.Background(), symbols, start, endTS)
}

func splitSymbols(arg string) []string {
	parts := strings.Split(arg, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseSizer(arg string, logger *zap.Logger) engine.Sizer {
	kind, val, _ := strings.Cut(arg, ":")
	switch kind {
	case "fixed":
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			logger.Fatal("bad -sizing", zap.String("value", arg))
		}
		return engine.SizerFixed{Qty: n}
	case "fraction":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			logger.Fatal("bad -sizing", zap.String("value", arg))
		}
		return engine.SizerFixedFraction{Fraction: f}
	case "target":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			logger.Fatal("bad -sizing", zap.String("value", arg))
		}
		return engine.SizerTargetPercent{Percent: f}
	}
	logger.Fatal("unknown sizing rule", zap.String("value", arg))
	return nil
}

func parseCommission(arg string, logger *zap.Logger) engine.CommissionModel {
	kind, val, _ := strings.Cut(arg, ":")
	switch kind {
	case "none":
		return engine.CommissionNone{}
	case "flat":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			logger.Fatal("bad -commission", zap.String("value", arg))
		}
		return engine.CommissionFlat{Fee: f}
	case "percent":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			logger.Fatal("bad -commission", zap.String("value", arg))
		}
		return engine.CommissionPercent{Rate: f}
	}
	logger.Fatal("unknown commission model", zap.String("value", arg))
	return nil
}

func parseFill(arg string, logger *zap.Logger) engine.FillPolicy {
	switch arg {
	case "next_open":
		return engine.FillNextOpen
	case "same_close":
		return engine.FillSameClose
	}
	logger.Fatal("unknown fill policy", zap.String("value", arg))
	return engine.FillNextOpen
}

func printSummary(result *engine.RunResult) {
	m := result.Metrics
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	rows := [][]string{
		{"Run ID", result.RunID},
		{"Final Equity", fmt.Sprintf("%.2f", result.FinalEquity)},
		{"Final Cash", fmt.Sprintf("%.2f", result.FinalCash)},
		{"Total Return", fmt.Sprintf("%.2f%%", m.TotalReturn*100)},
		{"CAGR", fmt.Sprintf("%.2f%%", m.CAGR*100)},
		{"Annual Volatility", fmt.Sprintf("%.2f%%", m.AnnualVolatility*100)},
		{"Sharpe", fmt.Sprintf("%.3f", m.Sharpe)},
		{"Sortino", fmt.Sprintf("%.3f", m.Sortino)},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", m.MaxDrawdown*100)},
		{"Calmar", fmt.Sprintf("%.3f", m.Calmar)},
		{"Win Ratio", fmt.Sprintf("%.2f%%", m.WinRatio*100)},
		{"Profit Factor", fmt.Sprintf("%.3f", m.ProfitFactor)},
		{"Expectancy", fmt.Sprintf("%.2f", m.Expectancy)},
		{"Signals / Orders / Fills", fmt.Sprintf("%d / %d / %d", result.Signals, result.Orders, result.Fills)},
		{"Rejected / Dropped", fmt.Sprintf("%d / %d", len(result.RejectedOrders), len(result.DroppedOrders))},
	}
	for _, r := range rows {
		table.Append(r)
	}
	table.Render()
}

func writeEquityCSV(path string, curve []engine.EquityPoint) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"timestamp", "holdings", "cash", "equity"}); err != nil {
		return err
	}
	for _, pt := range curve {
		rec := []string{
			pt.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(pt.Holdings, 'f', -1, 64),
			strconv.FormatFloat(pt.Cash, 'f', -1, 64),
			strconv.FormatFloat(pt.Equity, 'f', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Error()
}
