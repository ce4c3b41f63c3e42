package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/study-progress-api/internal/dto"
	"github.com/noah-isme/study-progress-api/internal/models"
	appErrors "github.com/noah-isme/study-progress-api/pkg/errors"
	"github.com/noah-isme/study-progress-api/pkg/jobs"
)

type feeRepository interface {
	OpenBalance(ctx context.Context, enrollmentID int64) (float64, error)
	ListByEnrollment(ctx context.Context, enrollmentID int64) ([]models.Fee, error)
	MarkPaid(ctx context.Context, id string, paidAt time.Time) (*models.Fee, error)
	GenerateMonthly(ctx context.Context, dueDate time.Time) (int64, error)
}

// FeeJobType identifies monthly fee generation jobs on the queue.
const FeeJobType = "fees.generate_monthly"

// FeeService exposes fee balances and the monthly fee generator.
type FeeService struct {
	repo        feeRepository
	invalidator *progressInvalidator
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewFeeService constructs FeeService.
func NewFeeService(repo feeRepository, enrollments enrollmentFinder, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *FeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{
		repo:        repo,
		invalidator: newProgressInvalidator(cache, enrollments, logger),
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// OpenBalance sums the unpaid fees of an enrollment.
func (s *FeeService) OpenBalance(ctx context.Context, enrollmentID int64) (float64, error) {
	total, err := s.repo.OpenBalance(ctx, enrollmentID)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to sum open fees")
	}
	return total, nil
}

// List returns the fees of an enrollment with balance figures.
func (s *FeeService) List(ctx context.Context, enrollmentID int64) (*dto.FeeOverview, error) {
	fees, err := s.repo.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list fees")
	}
	overview := &dto.FeeOverview{EnrollmentID: enrollmentID, Fees: make([]models.Fee, 0, len(fees))}
	now := s.now()
	for i := range fees {
		fee := fees[i]
		if fee.PaidAt == nil {
			overview.OpenBalance += fee.Amount
		}
		if fee.Overdue(now) {
			overview.OverdueCount++
		}
		overview.Fees = append(overview.Fees, fee)
	}
	overview.OpenBalanceFormatted = formatEuro(overview.OpenBalance)
	return overview, nil
}

// MarkPaid settles an open fee.
func (s *FeeService) MarkPaid(ctx context.Context, id string) (*models.Fee, error) {
	fee, err := s.repo.MarkPaid(ctx, id, dateOf(s.now()))
	if err != nil {
		return nil, notFoundOr(err, appErrors.ErrFeeNotFound, "failed to mark fee paid")
	}
	s.invalidator.enrollment(ctx, fee.EnrollmentID)
	return fee, nil
}

// GenerateMonthlyFees inserts the monthly fee of every active enrollment for
// month (YYYY-MM), due on its first day. Repeated runs insert nothing new.
func (s *FeeService) GenerateMonthlyFees(ctx context.Context, req dto.GenerateFeesRequest) (*dto.GenerateFeesResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid month")
	}
	month, err := time.Parse("2006-01", req.Month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid month")
	}

	start := time.Now()
	created, err := s.repo.GenerateMonthly(ctx, month)
	s.metrics.ObserveJob(FeeJobType, err, time.Since(start))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to generate monthly fees")
	}
	s.metrics.RecordFeesGenerated(created)
	s.logger.Info("monthly fees generated", zap.String("month", req.Month), zap.Int64("created", created))
	if created > 0 {
		s.invalidator.all(ctx)
	}
	return &dto.GenerateFeesResult{Month: req.Month, Created: created}, nil
}

// MonthlyJob builds the queue job generating fees for the month of at.
func (s *FeeService) MonthlyJob(at time.Time) jobs.Job {
	month := at.UTC().Format("2006-01")
	return jobs.Job{
		ID:   FeeJobType + ":" + month,
		Type: FeeJobType,
		Payload: dto.GenerateFeesRequest{
			Month: month,
		},
	}
}

// HandleJob is the queue handler for FeeJobType. Jobs that can never succeed
// are logged and dropped instead of being retried.
func (s *FeeService) HandleJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.GenerateFeesRequest)
	if !ok {
		s.logger.Warn("dropping fee job with unexpected payload",
			zap.String("job_id", job.ID),
			zap.String("payload_type", fmt.Sprintf("%T", job.Payload)),
		)
		return nil
	}
	_, err := s.GenerateMonthlyFees(ctx, req)
	if appErrors.Is(err, appErrors.ErrValidation) {
		s.logger.Warn("dropping invalid fee job", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}
	return err
}
