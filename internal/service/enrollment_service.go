package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/study-progress-api/internal/models"
	appErrors "github.com/noah-isme/study-progress-api/pkg/errors"
)

type enrollmentRepository interface {
	FindByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error)
	LockByID(ctx context.Context, tx *sqlx.Tx, id int64) (*models.EnrollmentDetail, error)
	FindActiveByStudent(ctx context.Context, studentID string) (*models.EnrollmentDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	CountOtherActive(ctx context.Context, tx *sqlx.Tx, studentID string, excludeID int64) (int, error)
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id int64, status models.EnrollmentStatus, withdrawnAt *time.Time) error
}

// EnrollmentService reads enrollments and drives their lifecycle.
type EnrollmentService struct {
	tx          txProvider
	repo        enrollmentRepository
	invalidator *progressInvalidator
	logger      *zap.Logger
	now         func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(tx txProvider, repo enrollmentRepository, cache *CacheService, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		tx:          tx,
		repo:        repo,
		invalidator: newProgressInvalidator(cache, repo, logger),
		logger:      logger,
		now:         time.Now,
	}
}

// ListByStudent returns every enrollment of a student, newest first.
func (s *EnrollmentService) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list enrollments")
	}
	if enrollments == nil {
		enrollments = []models.EnrollmentDetail{}
	}
	return enrollments, nil
}

// GetActiveByStudent returns the student's active enrollment.
func (s *EnrollmentService) GetActiveByStudent(ctx context.Context, studentID string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.repo.FindActiveByStudent(ctx, studentID)
	if err != nil {
		return nil, notFoundOr(err, appErrors.ErrEnrollmentNotFound, "failed to load active enrollment")
	}
	return enrollment, nil
}

// Get loads an enrollment by id.
func (s *EnrollmentService) Get(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, appErrors.ErrEnrollmentNotFound, "failed to load enrollment")
	}
	return enrollment, nil
}

// Pause suspends an active enrollment; bookings are rejected while paused.
func (s *EnrollmentService) Pause(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	return s.transition(ctx, id, models.EnrollmentStatusPaused)
}

// Resume reactivates a paused enrollment unless the student already studies elsewhere.
func (s *EnrollmentService) Resume(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	return s.transition(ctx, id, models.EnrollmentStatusActive)
}

// Withdraw ends an enrollment for good.
func (s *EnrollmentService) Withdraw(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	return s.transition(ctx, id, models.EnrollmentStatusWithdrawn)
}

func (s *EnrollmentService) transition(ctx context.Context, id int64, next models.EnrollmentStatus) (detail *models.EnrollmentDetail, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	enrollment, err := s.repo.LockByID(ctx, tx, id)
	if err != nil {
		return nil, notFoundOr(err, appErrors.ErrEnrollmentNotFound, "failed to load enrollment")
	}
	if !enrollment.Status.CanTransitionTo(next) {
		return nil, appErrors.ErrInvalidTransition.
			WithDetails("from", enrollment.Status).
			WithDetails("to", next)
	}

	if next == models.EnrollmentStatusActive {
		others, err := s.repo.CountOtherActive(ctx, tx, enrollment.StudentID, enrollment.ID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to check active enrollments")
		}
		if others > 0 {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an active enrollment")
		}
	}

	var withdrawnAt *time.Time
	if next == models.EnrollmentStatusWithdrawn {
		date := dateOf(s.now())
		withdrawnAt = &date
	}
	if err = s.repo.UpdateStatus(ctx, tx, enrollment.ID, next, withdrawnAt); err != nil {
		return nil, appErrors.Internal(err, "failed to update enrollment status")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit enrollment status")
	}

	s.logger.Info("enrollment status changed",
		zap.Int64("enrollment_id", enrollment.ID),
		zap.String("from", string(enrollment.Status)),
		zap.String("to", string(next)),
	)
	s.invalidator.student(ctx, enrollment.StudentID)

	enrollment.Status = next
	enrollment.WithdrawnAt = withdrawnAt
	return enrollment, nil
}
