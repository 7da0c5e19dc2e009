package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/card-grader/internal/logging"
)

// CardGrade is a persisted grading result, keyed by its fingerprint.
type CardGrade struct {
	ID               uint      `gorm:"primaryKey"`
	Hash             string    `gorm:"column:hash;uniqueIndex;size:64"`
	GradeCode        string    `gorm:"column:grade_code;size:8"`
	PhysicalCardHash *string   `gorm:"column:physical_card_hash;size:64"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

// TableName overrides the default table name.
func (CardGrade) TableName() string {
	return "card_ai_grade"
}

// GradeCount is one bucket of the grade distribution.
type GradeCount struct {
	GradeCode string `gorm:"column:grade_code"`
	Count     int64  `gorm:"column:count"`
}

// Store is the persistence capability the orchestration layer depends on.
type Store interface {
	SaveGrade(ctx context.Context, grade *CardGrade) error
	FindByHash(ctx context.Context, hash string) (*CardGrade, error)
	GradeCounts(ctx context.Context) ([]GradeCount, error)
}

// GradeRepository provides persistence APIs for card grades.
type GradeRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewGradeRepository creates a new repository instance.
func NewGradeRepository(db *gorm.DB, logger *zap.Logger) *GradeRepository {
	return &GradeRepository{
		db:             db,
		logger:         logger.Named("grade_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *GradeRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&CardGrade{})
}

// SaveGrade inserts a grade record. The fingerprint is unique per request,
// so the insert is never retried.
func (r *GradeRepository) SaveGrade(ctx context.Context, grade *CardGrade) error {
	if err := r.db.WithContext(ctx).Create(grade).Error; err != nil {
		return logging.NewOperationError("repository.save_grade", grade.Hash, err)
	}
	return nil
}

// FindByHash retrieves the grade record for a fingerprint.
func (r *GradeRepository) FindByHash(ctx context.Context, hash string) (*CardGrade, error) {
	var grade CardGrade
	err := r.executeWithRetry(ctx, "repository.find_by_hash", hash, func() error {
		return r.db.WithContext(ctx).First(&grade, "hash = ?", hash).Error
	})
	if err != nil {
		return nil, err
	}
	return &grade, nil
}

// GradeCounts aggregates the persisted grade distribution.
func (r *GradeRepository) GradeCounts(ctx context.Context) ([]GradeCount, error) {
	var counts []GradeCount
	err := r.executeWithRetry(ctx, "repository.grade_counts", "", func() error {
		return r.db.WithContext(ctx).
			Model(&CardGrade{}).
			Select("grade_code, count(*) as count").
			Group("grade_code").
			Scan(&counts).Error
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *GradeRepository) executeWithRetry(ctx context.Context, operation, jobID string, fn func() error) error {
	if r.retryAttempts <= 1 {
		return logging.NewOperationError(operation, jobID, fn())
	}

	backoff := r.initialBackoff
	opLogger := logging.WithOperation(r.logger, operation, jobID)
	var err error
	for attempt := 0; attempt < r.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, jobID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == r.retryAttempts-1 {
			opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, jobID, err)
		}

		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
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
