// Command server exposes backtest runs over a REST API.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"backtest-engine/services/clickhouse"
	"backtest-engine/services/config"
	"backtest-engine/services/data"
	"backtest-engine/services/engine"
	"backtest-engine/strategies"
)

// BacktestService wires the data sources and the engine behind HTTP handlers.
type BacktestService struct {
	cfg    *config.Config
	ch     *clickhouse.Client
	logger *zap.Logger
}

func NewBacktestService(cfg *config.Config, logger *zap.Logger) (*BacktestService, error) {
	svc := &BacktestService{cfg: cfg, logger: logger}
	if cfg.UseCH {
		client, err := clickhouse.NewClient(cfg.ClickHouse, logger)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		svc.ch = client
	}
	return svc, nil
}

// BacktestRequest is the JSON run configuration. Enumerated options only.
type BacktestRequest struct {
	Symbols        []string `json:"symbols" binding:"required"`
	InitialCapital float64  `json:"initial_capital" binding:"required"`
	Start          string   `json:"start" binding:"required"`
	End            string   `json:"end"`
	Strategy       string   `json:"strategy" binding:"required"`
	SizingRule     string   `json:"sizing_rule"`
	SizingValue    float64  `json:"sizing_value"`
	Commission     string   `json:"commission"`
	CommissionRate float64  `json:"commission_rate"`
	FillPolicy     string   `json:"fill_policy"`
	AllowShort     bool     `json:"allow_short"`
	CloseOnFinish  bool     `json:"close_on_finish"`
}

func (s *BacktestService) setupRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/backtest", s.handleBacktest)
		api.GET("/health", s.handleHealth)
	}
}

func (s *BacktestService) handleBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runCfg, strat, err := s.translate(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID := uuid.New().String()
	started := time.Now()
	s.logger.Info("starting backtest",
		zap.String("job_id", jobID),
		zap.Strings("symbols", req.Symbols),
		zap.String("strategy", req.Strategy),
	)

	source, err := s.loadSource(c.Request.Context(), &req)
	if err != nil {
		s.logger.Error("bar load failed", zap.String("job_id", jobID), zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	eng, err := engine.New(runCfg, source, strat, engine.WithLogger(s.logger))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := eng.Run(c.Request.Context())
	if err != nil {
		s.logger.Error("backtest failed", zap.String("job_id", jobID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.logger.Info("backtest completed",
		zap.String("job_id", jobID),
		zap.Duration("elapsed", time.Since(started)),
		zap.Float64("final_equity", result.FinalEquity),
	)
	c.JSON(http.StatusOK, gin.H{"job_id": jobID, "result": result})
}

func (s *BacktestService) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

func (s *BacktestService) translate(req *BacktestRequest) (*engine.RunConfig, engine.Strategy, error) {
	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		return nil, nil, fmt.Errorf("bad start date: %w", err)
	}

	cfg := &engine.RunConfig{
		Symbols:        req.Symbols,
		InitialCapital: req.InitialCapital,
		Start:          start,
		AllowShort:     req.AllowShort,
		CloseOnFinish:  req.CloseOnFinish,
	}

	switch req.SizingRule {
	case "", "fixed":
		qty := int64(req.SizingValue)
		if qty <= 0 {
			qty = 100
		}
		cfg.Sizer = engine.SizerFixed{Qty: qty}
	case "fraction":
		cfg.Sizer = engine.SizerFixedFraction{Fraction: req.SizingValue}
	case "target_percent":
		cfg.Sizer = engine.SizerTargetPercent{Percent: req.SizingValue}
	default:
		return nil, nil, fmt.Errorf("unknown sizing rule %q", req.SizingRule)
	}

	switch req.Commission {
	case "", "none":
		cfg.Commission = engine.CommissionNone{}
	case "flat":
		cfg.Commission = engine.CommissionFlat{Fee: req.CommissionRate}
	case "percent":
		cfg.Commission = engine.CommissionPercent{Rate: req.CommissionRate}
	default:
		return nil, nil, fmt.Errorf("unknown commission model %q", req.Commission)
	}

	switch req.FillPolicy {
	case "", "next_open":
		cfg.Fill = engine.FillNextOpen
	case "same_close":
		cfg.Fill = engine.FillSameClose
	default:
		return nil, nil, fmt.Errorf("unknown fill policy %q", req.FillPolicy)
	}

	var strat engine.Strategy
	switch req.Strategy {
	case "buy_and_hold":
		strat = strategies.NewBuyAndHold()
	case "ma_cross":
		strat = strategies.NewMovingAverageCross(9, 26)
	case "donchian":
		strat = strategies.NewDonchianBreakout(20)
	default:
		return nil, nil, fmt.Errorf("unknown strategy %q", req.Strategy)
	}
	return cfg, strat, nil
}

func (s *BacktestService) loadSource(ctx context.Context, req *BacktestRequest) (data.BarSource, error) {
	start, _ := time.Parse("2006-01-02", req.Start)
	if s.ch != nil {
		end := time.Now().UTC()
		if req.End != "" {
			parsed, err := time.Parse("2006-01-02", req.End)
			if err != nil {
				return nil, fmt.Errorf("bad end date: %w", err)
			}
			end = parsed
		}
		return s.ch.Source(ctx, req.Symbols, start, end)
	}
	return data.NewCSVSource(s.cfg.DataDir, req.Symbols, start)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting backtest service",
		zap.String("environment", cfg.Environment),
		zap.Int("port", cfg.HTTPPort),
	)

	service, err := NewBacktestService(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create service", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	service.setupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("stopped")
}
