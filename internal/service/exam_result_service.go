package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/study-progress-api/internal/dto"
	"github.com/noah-isme/study-progress-api/internal/models"
	appErrors "github.com/noah-isme/study-progress-api/pkg/errors"
)

type resultStore interface {
	LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.BookingDetail, error)
	UpsertResult(ctx context.Context, tx *sqlx.Tx, result *models.ExamResult) error
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status models.BookingStatus) error
}

type activeRegistrationCloser interface {
	CompleteActive(ctx context.Context, tx *sqlx.Tx, bookingID string) error
	CancelActive(ctx context.Context, tx *sqlx.Tx, bookingID string) error
}

// ExamResultService records graded attempts and recognitions on bookings.
type ExamResultService struct {
	tx            txProvider
	bookings      resultStore
	registrations activeRegistrationCloser
	invalidator   *progressInvalidator
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewExamResultService constructs ExamResultService.
func NewExamResultService(
	tx txProvider,
	bookings resultStore,
	registrations activeRegistrationCloser,
	enrollments enrollmentFinder,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
) *ExamResultService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamResultService{
		tx:            tx,
		bookings:      bookings,
		registrations: registrations,
		invalidator:   newProgressInvalidator(cache, enrollments, logger),
		validator:     validate,
		logger:        logger,
	}
}

// RecordResult stores a graded attempt. Grades up to 4.0 pass the module,
// worse grades fail it and consume one attempt.
func (s *ExamResultService) RecordResult(ctx context.Context, bookingID string, req dto.RecordResultRequest) (resp *dto.ExamResultResponse, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam result payload")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	booking, err := s.bookings.LockByID(ctx, tx, bookingID)
	if err != nil {
		return nil, notFoundOr(err, appErrors.ErrBookingNotFound, "failed to load booking")
	}
	if err := checkExamable(&booking.ModuleBooking); err != nil {
		return nil, err
	}

	result := booking.Result
	if result == nil {
		result = &models.ExamResult{
			ModuleBookingID:  booking.ID,
			MaxAttempts:      models.DefaultMaxAttempts,
			RegistrationMode: models.RegistrationModeOnline,
		}
	}
	if result.MaxAttempts <= 0 {
		result.MaxAttempts = models.DefaultMaxAttempts
	}
	result.Attempt++
	grade := req.Grade
	result.Grade = &grade
	result.ExamDate = req.ExamDate
	result.Topic = req.Topic
	if req.RegistrationMode != "" {
		result.RegistrationMode = req.RegistrationMode
	}

	status := models.BookingStatusFailed
	if result.Passed() {
		status = models.BookingStatusPassed
	}

	if err = s.bookings.UpsertResult(ctx, tx, result); err != nil {
		return nil, appErrors.Internal(err, "failed to store exam result")
	}
	if err = s.bookings.UpdateStatus(ctx, tx, booking.ID, status); err != nil {
		return nil, appErrors.Internal(err, "failed to update booking status")
	}
	if err = s.registrations.CompleteActive(ctx, tx, booking.ID); err != nil {
		return nil, appErrors.Internal(err, "failed to close exam registration")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit exam result")
	}

	s.logger.Info("exam result recorded",
		zap.String("booking_id", booking.ID),
		zap.Float64("grade", grade),
		zap.Int("attempt", result.Attempt),
		zap.String("status", string(status)),
	)
	s.invalidator.enrollment(ctx, booking.EnrollmentID)
	return resultResponse(booking.ID, status, result), nil
}

// Recognize credits a booked or failed module from prior learning. A pending
// exam registration is cancelled since no exam will be taken.
func (s *ExamResultService) Recognize(ctx context.Context, bookingID string) (resp *dto.ExamResultResponse, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	booking, err := s.bookings.LockByID(ctx, tx, bookingID)
	if err != nil {
		return nil, notFoundOr(err, appErrors.ErrBookingNotFound, "failed to load booking")
	}
	if booking.Status != models.BookingStatusBooked && booking.Status != models.BookingStatusFailed {
		return nil, appErrors.ErrInvalidTransition.
			WithDetails("from", booking.Status).
			WithDetails("to", models.BookingStatusRecognized)
	}
	if err = s.bookings.UpdateStatus(ctx, tx, booking.ID, models.BookingStatusRecognized); err != nil {
		return nil, appErrors.Internal(err, "failed to update booking status")
	}
	if err = s.registrations.CancelActive(ctx, tx, booking.ID); err != nil {
		return nil, appErrors.Internal(err, "failed to cancel exam registration")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit recognition")
	}

	s.invalidator.enrollment(ctx, booking.EnrollmentID)
	return resultResponse(booking.ID, models.BookingStatusRecognized, booking.Result), nil
}

func resultResponse(bookingID string, status models.BookingStatus, result *models.ExamResult) *dto.ExamResultResponse {
	resp := &dto.ExamResultResponse{BookingID: bookingID, Status: status}
	if result == nil {
		return resp
	}
	resp.Grade = result.Grade
	if result.Grade != nil {
		resp.GradeCategory = models.CategorizeGrade(*result.Grade)
	}
	resp.Attempt = result.Attempt
	resp.MaxAttempts = result.MaxAttempts
	resp.CanRetry = status == models.BookingStatusFailed && result.CanRetry()
	return resp
}
