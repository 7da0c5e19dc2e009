package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/card-grader/internal/grading"
	"github.com/example/card-grader/internal/logging"
	"github.com/example/card-grader/internal/notify"
	"github.com/example/card-grader/internal/repository"
)

// Notifier publishes progress events for a job.
type Notifier interface {
	Publish(jobID string, event notify.Event)
}

// ConditionUseCase orchestrates one grading request: it runs the pipeline,
// generates the fingerprint, persists the grade to the store routed for the
// request origin, caches the finished report, and streams progress events.
type ConditionUseCase struct {
	pipeline       *grading.Pipeline
	router         *repository.Router
	cache          Cache
	notifier       Notifier
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewConditionUseCase constructs a new use case instance.
func NewConditionUseCase(pipeline *grading.Pipeline, router *repository.Router, cache Cache, notifier Notifier, logger *zap.Logger) *ConditionUseCase {
	return &ConditionUseCase{
		pipeline:       pipeline,
		router:         router,
		cache:          cache,
		notifier:       notifier,
		logger:         logger.Named("condition_usecase"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// Check grades one card. On success the returned report carries the
// fingerprint that was persisted, exactly once, to the store resolved from
// originHost. On a gate failure the error is a *grading.StageFailure; no
// grade is persisted and no fingerprint exists.
func (uc *ConditionUseCase) Check(ctx context.Context, jobID, originHost string, uploads map[string]grading.Upload) (*grading.Report, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.condition_check", jobID)

	cacheKey := fmt.Sprintf("grading:%s", jobID)
	if err := uc.withRedisRetry(ctx, jobID, "cache.set.processing", func() error {
		return uc.cache.Set(ctx, cacheKey, "processing", time.Minute)
	}); err != nil {
		opLogger.Error("failed to set processing flag", zap.Error(err))
		return nil, err
	}

	progress := func(step, status string, extra map[string]interface{}) {
		uc.notifier.Publish(jobID, notify.Event{Type: "progress", Step: step, Status: status, Extra: extra})
	}

	report, failure := uc.pipeline.Run(ctx, jobID, uploads, progress)
	if failure != nil {
		opLogger.Warn("pipeline halted",
			zap.String("stage", string(failure.Stage)),
			zap.String("kind", failure.Kind),
			zap.String("detail", failure.Detail))
		uc.notifier.Publish(jobID, notify.Event{
			Type:   "progress",
			Step:   string(failure.Stage),
			Status: "error",
			Extra:  map[string]interface{}{"error": failure.Detail},
		})
		return nil, failure
	}

	report.Hash = uuid.NewString()

	now := time.Now().UTC()
	record := &repository.CardGrade{
		Hash:      report.Hash,
		GradeCode: report.Grade,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// Single atomic insert keyed by the fresh fingerprint; never retried.
	store := uc.router.Resolve(originHost)
	if err := store.SaveGrade(ctx, record); err != nil {
		opLogger.Error("failed to persist grade", zap.Error(err))
		return nil, err
	}

	if serialized, err := json.Marshal(report); err != nil {
		opLogger.Warn("failed to serialize report for cache", zap.Error(err))
	} else if err := uc.withRedisRetry(ctx, jobID, "cache.set.report", func() error {
		return uc.cache.Set(ctx, cacheKey, string(serialized), 5*time.Minute)
	}); err != nil {
		// The grade is already written; a stale cache must not fail the
		// request and tempt the client into a duplicate run.
		opLogger.Warn("failed to cache report", zap.Error(err))
	}

	uc.notifier.Publish(jobID, notify.Event{
		Type:   "result",
		Step:   "result",
		Status: "done",
		Extra: map[string]interface{}{
			"score": report.Score,
			"grade": report.Grade,
			"hash":  report.Hash,
		},
	})

	opLogger.Info("card graded",
		zap.Int("score", report.Score),
		zap.String("grade", report.Grade),
		zap.String("hash", report.Hash))
	return report, nil
}

// GetGrade looks up a persisted grade record by fingerprint on the store
// routed for the request origin.
func (uc *ConditionUseCase) GetGrade(ctx context.Context, originHost, hash string) (*repository.CardGrade, error) {
	return uc.router.Resolve(originHost).FindByHash(ctx, hash)
}

// GetReport returns a recently finished report for a job id from cache, or
// nil when none is cached (still processing, expired, or unknown).
func (uc *ConditionUseCase) GetReport(ctx context.Context, jobID string) (*grading.Report, error) {
	cacheKey := fmt.Sprintf("grading:%s", jobID)
	value, err := uc.cache.Get(ctx, cacheKey)
	if err != nil {
		return nil, err
	}
	var report grading.Report
	if err := json.Unmarshal([]byte(value), &report); err != nil {
		// "processing" marker or corrupt payload; treat as not ready.
		return nil, nil
	}
	return &report, nil
}

func (uc *ConditionUseCase) withRedisRetry(ctx context.Context, jobID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		return logging.NewOperationError(operation, jobID, fn())
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, jobID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, jobID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == uc.retryAttempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, jobID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, jobID, err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
