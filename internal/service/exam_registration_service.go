package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/study-progress-api/internal/dto"
	"github.com/noah-isme/study-progress-api/internal/models"
	appErrors "github.com/noah-isme/study-progress-api/pkg/errors"
)

type moduleReader interface {
	FindModule(ctx context.Context, id int64) (*models.Module, error)
}

type examTermStore interface {
	ListEligible(ctx context.Context, moduleID int64, now time.Time) ([]models.ExamTermAvailability, error)
	LockByID(ctx context.Context, tx *sqlx.Tx, id int64) (*models.ExamTerm, error)
}

type registrationStore interface {
	HasActive(ctx context.Context, tx *sqlx.Tx, bookingID string) (bool, error)
	CountRegistered(ctx context.Context, tx *sqlx.Tx, termID int64) (int, error)
	Create(ctx context.Context, tx *sqlx.Tx, reg *models.ExamRegistration) error
	LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.ExamRegistrationDetail, error)
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status models.RegistrationStatus) error
	ListByEnrollment(ctx context.Context, enrollmentID int64) ([]models.ExamRegistrationDetail, error)
	NextUpcoming(ctx context.Context, enrollmentID int64, today time.Time) (*models.ExamRegistrationDetail, error)
}

type bookingLocker interface {
	LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.BookingDetail, error)
}

// ExamRegistrationService registers bookings for exam terms and moves
// registrations through registered -> {cancelled, completed}.
type ExamRegistrationService struct {
	tx            txProvider
	modules       moduleReader
	terms         examTermStore
	registrations registrationStore
	bookings      bookingLocker
	invalidator   *progressInvalidator
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewExamRegistrationService constructs ExamRegistrationService.
func NewExamRegistrationService(
	tx txProvider,
	modules moduleReader,
	terms examTermStore,
	registrations registrationStore,
	bookings bookingLocker,
	enrollments enrollmentFinder,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *ExamRegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamRegistrationService{
		tx:            tx,
		modules:       modules,
		terms:         terms,
		registrations: registrations,
		bookings:      bookings,
		invalidator:   newProgressInvalidator(cache, enrollments, logger),
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		now:           time.Now,
	}
}

// FindEligibleTerms lists upcoming, open terms of a module that still have seats.
func (s *ExamRegistrationService) FindEligibleTerms(ctx context.Context, moduleID int64) ([]dto.EligibleExamTerm, error) {
	if _, err := s.modules.FindModule(ctx, moduleID); err != nil {
		return nil, notFoundOr(err, appErrors.ErrModuleNotFound, "failed to load module")
	}
	terms, err := s.terms.ListEligible(ctx, moduleID, s.now())
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list exam terms")
	}
	result := make([]dto.EligibleExamTerm, 0, len(terms))
	for _, term := range terms {
		result = append(result, dto.EligibleExamTerm{
			ExamTerm:        term.ExamTerm,
			RegisteredCount: term.RegisteredCount,
			RemainingSeats:  term.RemainingSeats(),
		})
	}
	return result, nil
}

// Register claims a seat on an exam term for one of the enrollment's bookings.
// The term row stays locked until commit so the last seat goes to one caller.
func (s *ExamRegistrationService) Register(ctx context.Context, enrollmentID int64, req dto.RegisterExamRequest) (result *dto.RegistrationResult, err error) {
	defer func() { s.metrics.RecordRegistration(outcomeOf(err)) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam registration payload")
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

	booking, err := s.bookings.LockByID(ctx, tx, req.ModuleBookingID)
	if err != nil {
		return nil, notFoundOr(err, appErrors.ErrBookingNotFound, "failed to load booking")
	}
	if booking.EnrollmentID != enrollmentID {
		return nil, appErrors.ErrBookingNotFound
	}
	if err := checkExamable(&booking.ModuleBooking); err != nil {
		return nil, err
	}

	term, err := s.terms.LockByID(ctx, tx, req.ExamTermID)
	if err != nil {
		return nil, notFoundOr(err, appErrors.ErrExamTermNotFound, "failed to load exam term")
	}
	if term.ModuleID != booking.ModuleID {
		return nil, appErrors.Clone(appErrors.ErrExamTermNotFound, "exam term does not belong to the booked module")
	}

	active, err := s.registrations.HasActive(ctx, tx, booking.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check active registration")
	}
	if active {
		return nil, appErrors.ErrAlreadyRegistered
	}

	now := s.now()
	if term.DeadlinePassed(now) {
		return nil, appErrors.ErrDeadlinePassed
	}

	registered, err := s.registrations.CountRegistered(ctx, tx, term.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count registrations")
	}
	if !term.HasSeat(registered) {
		return nil, appErrors.ErrTermFull.WithDetails("capacity", *term.Capacity)
	}

	reg := &models.ExamRegistration{
		ModuleBookingID: booking.ID,
		ExamTermID:      term.ID,
		Status:          models.RegistrationStatusRegistered,
		RegisteredAt:    now.UTC(),
	}
	if err = s.registrations.Create(ctx, tx, reg); err != nil {
		return nil, translateStoreError(err, "failed to create exam registration")
	}
	if err = tx.Commit(); err != nil {
		return nil, translateStoreError(err, "failed to commit exam registration")
	}

	s.invalidator.enrollment(ctx, enrollmentID)
	return &dto.RegistrationResult{RegistrationID: reg.ID, Status: reg.Status}, nil
}

// checkExamable accepts booked modules and failed ones with attempts left.
func checkExamable(booking *models.ModuleBooking) error {
	switch booking.Status {
	case models.BookingStatusBooked:
		return nil
	case models.BookingStatusFailed:
		if booking.Result != nil && !booking.Result.CanRetry() {
			return appErrors.ErrAttemptsExhausted
		}
		return nil
	default:
		return appErrors.ErrBookingNotExamable.WithDetails("status", booking.Status)
	}
}

// Cancel withdraws one of the enrollment's active registrations.
func (s *ExamRegistrationService) Cancel(ctx context.Context, enrollmentID int64, registrationID string) (*dto.RegistrationResult, error) {
	return s.transition(ctx, registrationID, models.RegistrationStatusCancelled, func(detail *models.ExamRegistrationDetail) bool {
		return detail.EnrollmentID == enrollmentID
	})
}

// MarkCompleted closes a registration once the exam took place.
func (s *ExamRegistrationService) MarkCompleted(ctx context.Context, registrationID string) (*dto.RegistrationResult, error) {
	return s.transition(ctx, registrationID, models.RegistrationStatusCompleted, nil)
}

func (s *ExamRegistrationService) transition(ctx context.Context, registrationID string, next models.RegistrationStatus, visible func(*models.ExamRegistrationDetail) bool) (result *dto.RegistrationResult, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	detail, err := s.registrations.LockByID(ctx, tx, registrationID)
	if err != nil {
		return nil, notFoundOr(err, appErrors.ErrRegistrationNotFound, "failed to load exam registration")
	}
	if visible != nil && !visible(detail) {
		return nil, appErrors.ErrRegistrationNotFound
	}
	if !detail.Status.CanTransitionTo(next) {
		return nil, appErrors.ErrInvalidTransition.
			WithDetails("from", detail.Status).
			WithDetails("to", next)
	}
	if err = s.registrations.UpdateStatus(ctx, tx, detail.ID, next); err != nil {
		return nil, appErrors.Internal(err, "failed to update exam registration")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit exam registration")
	}

	s.invalidator.enrollment(ctx, detail.EnrollmentID)
	return &dto.RegistrationResult{RegistrationID: detail.ID, Status: next}, nil
}

// ListRegistrations returns active and historic registrations of an enrollment.
func (s *ExamRegistrationService) ListRegistrations(ctx context.Context, enrollmentID int64) ([]models.ExamRegistrationDetail, error) {
	details, err := s.registrations.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list exam registrations")
	}
	if details == nil {
		details = []models.ExamRegistrationDetail{}
	}
	return details, nil
}

// NextExam returns the nearest upcoming registered exam, or nil.
func (s *ExamRegistrationService) NextExam(ctx context.Context, enrollmentID int64) (*dto.NextExam, error) {
	today := dateOf(s.now())
	detail, err := s.registrations.NextUpcoming(ctx, enrollmentID, today)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load next exam")
	}
	if detail == nil {
		return nil, nil
	}
	return &dto.NextExam{
		RegistrationID: detail.ID,
		ModuleID:       detail.ModuleID,
		ModuleName:     detail.ModuleName,
		ExamDate:       detail.ExamDate,
		StartsAt:       detail.StartsAt,
		EndsAt:         detail.EndsAt,
		Kind:           detail.Kind,
		Location:       detail.Location,
		DaysUntil:      int(dateOf(detail.ExamDate).Sub(today).Hours() / 24),
	}, nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
