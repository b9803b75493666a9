// Package sync drives end-to-end price synchronization: it loads candidate
// products, batches their ASINs through the pricing client under rate
// limiting and retry, persists per-product outcomes, and raises alerts on
// systemic failure.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/curately/pricesync/alert"
	"github.com/curately/pricesync/apierr"
	"github.com/curately/pricesync/asin"
	"github.com/curately/pricesync/config"
	"github.com/curately/pricesync/models"
	"github.com/curately/pricesync/retry"
	"github.com/curately/pricesync/store"
)

// Fetcher is the batched item-lookup contract the orchestrator calls.
type Fetcher interface {
	GetProductInfo(ctx context.Context, asins []string) ([]models.ProductInfo, error)
}

// Alerter publishes critical alerts. Implementations never return an error;
// a broken alert channel must not change the sync outcome.
type Alerter interface {
	SendCriticalAlert(ctx context.Context, subject string, a alert.Critical) bool
}

// Orchestrator runs one synchronization execution at a time. Batches are
// processed strictly sequentially: the rate limiter and the upstream quota
// are shared resources, so there is no internal fan-out. Two overlapping
// executions from separate orchestrators are not coordinated and can jointly
// exceed the upstream rate limit.
type Orchestrator struct {
	cfg     *config.Config
	store   store.ProductStore
	client  Fetcher
	alerts  Alerter
	limiter *retry.RateLimiter
	metrics *Metrics
	now     func() time.Time
}

// New builds an orchestrator. metrics may be nil to disable instrumentation;
// alerts may be nil when no alert destination is configured.
func New(cfg *config.Config, products store.ProductStore, client Fetcher, alerts Alerter, metrics *Metrics) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		store:   products,
		client:  client,
		alerts:  alerts,
		limiter: retry.NewRateLimiter(cfg.RequestsPerSecond),
		metrics: metrics,
		now:     time.Now,
	}
}

type batch struct {
	products []models.Product
	asins    []string // unique, batch order preserved
}

// Run executes one full synchronization pass. An empty executionID gets a
// generated one. The returned execution is always populated, including on
// the error path; err is non-nil only for failures that aborted the run
// (candidate query failure, authentication rejection, context cancellation).
func (o *Orchestrator) Run(ctx context.Context, executionID string) (*models.SyncExecution, error) {
	if executionID == "" {
		executionID = uuid.NewString()
	}
	start := o.now()
	exec := &models.SyncExecution{
		ExecutionID: executionID,
		StartTime:   start,
	}

	logger := slog.With(slog.String("execution_id", executionID))
	logger.Info("price sync started",
		slog.Int("batch_size", o.cfg.BatchSize),
		slog.Float64("requests_per_second", o.cfg.RequestsPerSecond),
	)

	products, err := o.store.ListProductsForSync(ctx, o.cfg.MaxProducts)
	if err != nil {
		logger.Error("loading sync candidates failed", slog.Any("error", err))
		o.finish(exec, models.ExecutionFailed, logger)
		return exec, fmt.Errorf("list products for sync: %w", err)
	}
	exec.TotalProducts = len(products)
	if len(products) == 0 {
		logger.Info("no products to sync")
		o.finish(exec, models.ExecutionSuccess, logger)
		return exec, nil
	}

	batches := o.partition(products, exec, logger)

	authAlerted := false
	for i, b := range batches {
		select {
		case <-ctx.Done():
			o.finish(exec, models.ExecutionFailed, logger)
			return exec, ctx.Err()
		default:
		}

		o.markBatchPending(ctx, b, logger)

		infos, err := o.fetchBatch(ctx, b, i, logger)
		if err != nil {
			o.recordBatchFailure(ctx, exec, b, err, logger)

			if apiErr, ok := apierr.As(err); ok && apiErr.Kind == apierr.KindAuthentication {
				// Terminal: remaining batches would fail identically.
				logger.Error("authentication rejected, aborting execution",
					slog.Int("batch", i+1),
					slog.Any("error", err),
				)
				authAlerted = true
				o.sendAuthAlert(ctx, exec, apiErr)
				o.finish(exec, models.ExecutionFailed, logger)
				return exec, err
			}

			logger.Warn("batch failed, continuing with next batch",
				slog.Int("batch", i+1),
				slog.Int("products", len(b.products)),
				slog.Any("error", err),
			)
			continue
		}

		o.metrics.IncBatch("success")
		o.applyBatch(ctx, exec, b, infos, logger)
	}

	status := models.DeriveStatus(exec.TotalProducts, exec.SuccessCount, exec.FailureCount, exec.SkippedCount)
	o.finish(exec, status, logger)

	if !authAlerted {
		o.maybeSendFailureRateAlert(ctx, exec)
	}
	return exec, nil
}

// partition filters out products whose stored ASIN is invalid (counted as
// skipped) and splits the rest into upstream-sized batches.
func (o *Orchestrator) partition(products []models.Product, exec *models.SyncExecution, logger *slog.Logger) []batch {
	var batches []batch
	var current batch
	seen := map[string]bool{}

	flush := func() {
		if len(current.products) > 0 {
			batches = append(batches, current)
			current = batch{}
			seen = map[string]bool{}
		}
	}

	for _, p := range products {
		normalized := strings.ToUpper(strings.TrimSpace(p.ASIN))
		if !asin.Valid(normalized) {
			logger.Warn("skipping product with invalid ASIN",
				slog.String("product_id", p.ID),
				slog.String("asin", p.ASIN),
			)
			exec.SkippedCount++
			o.metrics.IncProduct("skipped")
			continue
		}
		p.ASIN = normalized

		current.products = append(current.products, p)
		if !seen[normalized] {
			seen[normalized] = true
			current.asins = append(current.asins, normalized)
		}
		if len(current.asins) == o.cfg.BatchSize {
			flush()
		}
	}
	flush()
	return batches
}

// markBatchPending flags every product in the batch as queued. Store write
// failures here are logged only.
func (o *Orchestrator) markBatchPending(ctx context.Context, b batch, logger *slog.Logger) {
	for _, p := range b.products {
		if err := o.store.MarkPriceSyncPending(ctx, p.ID); err != nil {
			logger.Warn("marking product pending failed",
				slog.String("product_id", p.ID),
				slog.Any("error", err),
			)
		}
	}
}

// fetchBatch performs one rate-limited, retried GetItems lookup.
func (o *Orchestrator) fetchBatch(ctx context.Context, b batch, index int, logger *slog.Logger) ([]models.ProductInfo, error) {
	opts := retry.Options{
		MaxAttempts:  o.cfg.MaxAttempts,
		InitialDelay: o.cfg.InitialBackoff,
		MaxDelay:     o.cfg.MaxBackoff,
		Multiplier:   o.cfg.BackoffMultiplier,
		JitterFactor: o.cfg.JitterFactor,
	}

	var infos []models.ProductInfo
	err := o.limiter.Execute(ctx, func() error {
		calls := 0
		out, callErr := retry.Do(ctx, opts, func(ctx context.Context) ([]models.ProductInfo, error) {
			calls++
			requestStart := time.Now()
			result, err := o.client.GetProductInfo(ctx, b.asins)
			o.metrics.ObserveRequestDuration(time.Since(requestStart))
			return result, err
		}, slog.Int("batch", index+1), slog.Int("asins", len(b.asins)))
		for retryCount := calls - 1; retryCount > 0; retryCount-- {
			o.metrics.IncRetries()
		}
		infos = out
		return callErr
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("batch fetched",
		slog.Int("batch", index+1),
		slog.Int("asins", len(b.asins)),
		slog.Int("items", len(infos)),
	)
	return infos, nil
}

// applyBatch reconciles returned items against the originating products. A
// missing item or a priceless listing marks that product failed without
// affecting the rest of the batch.
func (o *Orchestrator) applyBatch(ctx context.Context, exec *models.SyncExecution, b batch, infos []models.ProductInfo, logger *slog.Logger) {
	byASIN := make(map[string]models.ProductInfo, len(infos))
	for _, info := range infos {
		byASIN[info.ASIN] = info
	}

	for _, p := range b.products {
		info, ok := byASIN[p.ASIN]
		if !ok || info.Price == nil {
			message := fmt.Sprintf("no price data returned for ASIN %s", p.ASIN)
			o.failProduct(ctx, exec, p, message, "NoPriceData", logger)
			continue
		}

		if err := o.store.UpdateProductPrice(ctx, p.ID, *info.Price, info.Currency); err != nil {
			// Fire-and-forget store contract: the lookup itself succeeded,
			// so the write failure is recorded locally without flipping the
			// product outcome.
			logger.Error("persisting price failed",
				slog.String("product_id", p.ID),
				slog.String("asin", p.ASIN),
				slog.Any("error", err),
			)
			exec.Errors = append(exec.Errors, models.SyncError{
				ProductID:    p.ID,
				ASIN:         p.ASIN,
				ErrorMessage: fmt.Sprintf("price update write failed: %v", err),
				ErrorCode:    "StoreWriteError",
			})
		}
		exec.SuccessCount++
		o.metrics.IncProduct("success")
	}
}

// recordBatchFailure marks every product in a failed batch as failed and
// accumulates the per-product error records.
func (o *Orchestrator) recordBatchFailure(ctx context.Context, exec *models.SyncExecution, b batch, cause error, logger *slog.Logger) {
	errorType := "unclassified"
	code := ""
	if apiErr, ok := apierr.As(cause); ok {
		errorType = apiErr.Kind.String()
		code = apiErr.Code
	}
	o.metrics.IncBatch("failed")
	o.metrics.IncAPIError(errorType)

	message := fmt.Sprintf("batch lookup failed: %v", cause)
	for _, p := range b.products {
		o.failProduct(ctx, exec, p, message, code, logger)
	}
}

func (o *Orchestrator) failProduct(ctx context.Context, exec *models.SyncExecution, p models.Product, message, code string, logger *slog.Logger) {
	if err := o.store.MarkPriceSyncFailed(ctx, p.ID, message); err != nil {
		logger.Error("marking product failed errored",
			slog.String("product_id", p.ID),
			slog.Any("error", err),
		)
	}
	exec.FailureCount++
	o.metrics.IncProduct("failed")
	exec.Errors = append(exec.Errors, models.SyncError{
		ProductID:    p.ID,
		ASIN:         p.ASIN,
		ErrorMessage: message,
		ErrorCode:    code,
	})
}

func (o *Orchestrator) sendAuthAlert(ctx context.Context, exec *models.SyncExecution, apiErr *apierr.Error) {
	if o.alerts == nil {
		return
	}
	o.alerts.SendCriticalAlert(ctx, "Price Sync Authentication Failure", alert.Critical{
		ErrorType:        "AuthenticationError",
		Message:          apiErr.Message,
		Code:             apiErr.Code,
		ExecutionID:      exec.ExecutionID,
		AffectedProducts: exec.TotalProducts,
	})
}

// maybeSendFailureRateAlert alerts when the failure rate over attempted
// products exceeds the configured threshold.
func (o *Orchestrator) maybeSendFailureRateAlert(ctx context.Context, exec *models.SyncExecution) {
	if o.alerts == nil {
		return
	}
	attempted := exec.TotalProducts - exec.SkippedCount
	if attempted <= 0 || exec.FailureCount == 0 {
		return
	}
	rate := float64(exec.FailureCount) / float64(attempted) * 100
	if rate <= o.cfg.FailureAlertThresholdPct {
		return
	}

	o.alerts.SendCriticalAlert(ctx, "Price Sync High Failure Rate", alert.Critical{
		ErrorType:        "HighFailureRate",
		Message:          fmt.Sprintf("%.1f%% of attempted products failed to sync", rate),
		ExecutionID:      exec.ExecutionID,
		AffectedProducts: exec.FailureCount,
		Details: map[string]string{
			"failure_rate_pct": fmt.Sprintf("%.1f", rate),
			"threshold_pct":    fmt.Sprintf("%.1f", o.cfg.FailureAlertThresholdPct),
			"attempted":        fmt.Sprintf("%d", attempted),
		},
	})
}

// finish stamps the end of the execution and emits the structured completion
// record the reporting path scrapes.
func (o *Orchestrator) finish(exec *models.SyncExecution, status string, logger *slog.Logger) {
	exec.EndTime = o.now()
	exec.DurationMs = exec.EndTime.Sub(exec.StartTime).Milliseconds()
	exec.Status = status
	o.metrics.IncExecution(status)

	logger.Info("price sync completed",
		slog.String("status", exec.Status),
		slog.Int("total_products", exec.TotalProducts),
		slog.Int("success_count", exec.SuccessCount),
		slog.Int("failure_count", exec.FailureCount),
		slog.Int("skipped_count", exec.SkippedCount),
		slog.Int64("duration_ms", exec.DurationMs),
		slog.Int("errors", len(exec.Errors)),
	)
}
