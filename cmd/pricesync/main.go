package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/curately/pricesync/alert"
	"github.com/curately/pricesync/config"
	"github.com/curately/pricesync/models"
	"github.com/curately/pricesync/paapi"
	"github.com/curately/pricesync/secrets"
	"github.com/curately/pricesync/store"
	pricesync "github.com/curately/pricesync/sync"
)

func main() {
	defaultCfg := config.DefaultConfig()
	batchDefault := defaultCfg.BatchSize
	if value, ok, err := config.EnvInt("PRICESYNC_BATCH_SIZE"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid PRICESYNC_BATCH_SIZE: %v\n", err)
		os.Exit(1)
	} else if ok {
		batchDefault = value
	}
	rpsDefault := defaultCfg.RequestsPerSecond
	if value, ok, err := config.EnvFloat("PRICESYNC_RPS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid PRICESYNC_RPS: %v\n", err)
		os.Exit(1)
	} else if ok {
		rpsDefault = value
	}
	storeDefault := defaultCfg.StoreBackend
	if value, ok := config.EnvString("PRICESYNC_STORE"); ok {
		storeDefault = value
	}
	dsnDefault := defaultCfg.PostgresDSN
	if value, ok := config.EnvString("PRICESYNC_PG_DSN"); ok {
		dsnDefault = value
	}
	sqliteDefault := defaultCfg.SQLitePath
	if value, ok := config.EnvString("PRICESYNC_SQLITE_PATH"); ok {
		sqliteDefault = value
	}
	webhookDefault := defaultCfg.AlertWebhookURL
	if value, ok := config.EnvString("PRICESYNC_ALERT_WEBHOOK"); ok {
		webhookDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("PRICESYNC_METRICS_ADDR"); ok {
		metricsDefault = value
	}
	regionDefault := defaultCfg.Region
	if value, ok := config.EnvString("PRICESYNC_REGION"); ok {
		regionDefault = value
	}

	batchSize := flag.Int("batch-size", batchDefault, "ASINs per GetItems request (1-10)")
	rps := flag.Float64("rps", rpsDefault, "Maximum PA-API requests per second")
	timeoutMs := flag.Int("timeout", int(defaultCfg.Timeout/time.Millisecond), "PA-API request timeout (milliseconds)")
	endpoint := flag.String("endpoint", "", "PA-API endpoint override (staging/testing)")
	maxAttempts := flag.Int("max-attempts", defaultCfg.MaxAttempts, "Maximum attempts per batch request")
	backoffMs := flag.Int("backoff", int(defaultCfg.InitialBackoff/time.Millisecond), "Initial retry backoff (milliseconds)")
	backoffMaxMs := flag.Int("backoff-max", int(defaultCfg.MaxBackoff/time.Millisecond), "Maximum retry backoff (milliseconds)")
	maxProducts := flag.Int("max-products", defaultCfg.MaxProducts, "Maximum products per execution (0 = no cap)")
	failureThreshold := flag.Float64("failure-threshold", defaultCfg.FailureAlertThresholdPct, "Failure-rate alert threshold (percent)")
	storeBackend := flag.String("store", storeDefault, "Product store backend: memory, postgres, or sqlite")
	pgDSN := flag.String("pg-dsn", dsnDefault, "Postgres connection string")
	pgMaxConns := flag.Int("pg-max-conns", defaultCfg.PGMaxConns, "Postgres connection pool size")
	sqlitePath := flag.String("sqlite-path", sqliteDefault, "SQLite database path")
	seedFile := flag.String("seed-file", "", "JSON product file to seed the store before syncing")
	alertWebhook := flag.String("alert-webhook", webhookDefault, "Webhook URL for critical alerts (empty disables delivery)")
	region := flag.String("region", regionDefault, "Deployment region reported in alerts")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	executionID := flag.String("execution-id", "", "Execution identifier (generated when empty)")
	interval := flag.Duration("interval", 0, "Re-run the sync on this interval (0 = run once)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := config.DefaultConfig()
	cfg.BatchSize = *batchSize
	cfg.RequestsPerSecond = *rps
	cfg.Timeout = time.Duration(*timeoutMs) * time.Millisecond
	cfg.Endpoint = *endpoint
	cfg.MaxAttempts = *maxAttempts
	cfg.InitialBackoff = time.Duration(*backoffMs) * time.Millisecond
	cfg.MaxBackoff = time.Duration(*backoffMaxMs) * time.Millisecond
	cfg.MaxProducts = *maxProducts
	cfg.FailureAlertThresholdPct = *failureThreshold
	cfg.StoreBackend = *storeBackend
	cfg.PostgresDSN = *pgDSN
	cfg.PGMaxConns = *pgMaxConns
	cfg.SQLitePath = *sqlitePath
	cfg.AlertWebhookURL = *alertWebhook
	cfg.Region = *region
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing in-flight work")
	}()

	products, cleanup, err := openStore(ctx, cfg, *seedFile)
	if err != nil {
		slog.Error("opening product store", slog.Any("error", err))
		os.Exit(1)
	}
	defer cleanup()

	provider, err := secrets.NewCached(secrets.EnvProvider{}, 8)
	if err != nil {
		slog.Error("building secrets provider", slog.Any("error", err))
		os.Exit(1)
	}

	clientOpts := []paapi.Option{
		paapi.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, paapi.WithBaseURL(cfg.Endpoint))
	}
	client := paapi.New(provider, paapi.ParamNames{
		AccessKey:   cfg.AccessKeyParam,
		SecretKey:   cfg.SecretKeyParam,
		PartnerTag:  cfg.PartnerTagParam,
		Marketplace: cfg.MarketplaceParam,
	}, clientOpts...)

	var publisher alert.Publisher
	if cfg.AlertWebhookURL != "" {
		publisher = alert.NewWebhookPublisher(cfg.AlertWebhookURL, nil)
	}
	alerts := alert.NewGateway(publisher, cfg.Region)

	metrics := pricesync.NewMetrics()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	orchestrator := pricesync.New(cfg, products, client, alerts, metrics)

	exitCode := 0
	for {
		exec, runErr := orchestrator.Run(ctx, *executionID)
		printSummary(exec)
		if runErr != nil {
			slog.Error("sync execution failed", slog.Any("error", runErr))
			exitCode = 1
		}

		if *interval <= 0 {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(*interval):
			continue
		}
		break
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	if exitCode != 0 {
		cleanup()
		os.Exit(exitCode)
	}
}

// openStore builds the configured ProductStore and seeds it when a seed file
// is supplied. The returned cleanup closes backend connections.
func openStore(ctx context.Context, cfg *config.Config, seedFile string) (store.ProductStore, func(), error) {
	var seed []models.Product
	if seedFile != "" {
		data, err := os.ReadFile(seedFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read seed file: %w", err)
		}
		if err := json.Unmarshal(data, &seed); err != nil {
			return nil, nil, fmt.Errorf("parse seed file: %w", err)
		}
	}

	switch cfg.StoreBackend {
	case "memory":
		mem := store.NewMemory()
		mem.Seed(seed)
		return mem, func() {}, nil
	case "postgres":
		pg, err := store.NewPostgres(ctx, cfg.PostgresDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		if len(seed) > 0 {
			inserted, err := pg.Seed(ctx, seed)
			if err != nil {
				pg.Close()
				return nil, nil, err
			}
			slog.Info("seeded product store", slog.Int("inserted", inserted))
		}
		return pg, pg.Close, nil
	case "sqlite":
		sq, err := store.NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if len(seed) > 0 {
			inserted, err := sq.Seed(ctx, seed)
			if err != nil {
				sq.Close()
				return nil, nil, err
			}
			slog.Info("seeded product store", slog.Int("inserted", inserted))
		}
		return sq, func() { sq.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend: %s", cfg.StoreBackend)
	}
}

func printSummary(exec *models.SyncExecution) {
	if exec == nil {
		return
	}
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Price sync complete")
	fmt.Printf("  Execution ID:  %s\n", exec.ExecutionID)
	fmt.Printf("  Status:        %s\n", exec.Status)
	fmt.Printf("  Total:         %d\n", exec.TotalProducts)
	fmt.Printf("  Succeeded:     %d\n", exec.SuccessCount)
	fmt.Printf("  Failed:        %d\n", exec.FailureCount)
	fmt.Printf("  Skipped:       %d\n", exec.SkippedCount)
	if len(exec.Errors) > 0 {
		fmt.Printf("  Errors:        %d\n", len(exec.Errors))
	}
	fmt.Printf("  Duration:      %v\n", time.Duration(exec.DurationMs)*time.Millisecond)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
