package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/study-progress-api/internal/models"
	"github.com/noah-isme/study-progress-api/internal/repository"
)

type enrollmentFinder interface {
	FindByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error)
}

type semesterCompletionReader interface {
	SemesterCompletion(ctx context.Context, tx *sqlx.Tx, enrollmentID, programID int64) ([]repository.SemesterCompletion, error)
}

// ProgressionService derives the semester a student currently occupies from
// booking completion rather than elapsed time.
type ProgressionService struct {
	enrollments enrollmentFinder
	completion  semesterCompletionReader
	logger      *zap.Logger
}

// NewProgressionService constructs ProgressionService.
func NewProgressionService(enrollments enrollmentFinder, completion semesterCompletionReader, logger *zap.Logger) *ProgressionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressionService{enrollments: enrollments, completion: completion, logger: logger}
}

// CurrentSemester returns the semester after the highest fully completed one.
// Lookup failures fall back to 1.
func (s *ProgressionService) CurrentSemester(ctx context.Context, enrollmentID int64) int {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		s.logger.Warn("current semester fallback: enrollment lookup failed", zap.Int64("enrollment_id", enrollmentID), zap.Error(err))
		return 1
	}
	return s.CurrentSemesterFor(ctx, enrollment)
}

// CurrentSemesterFor is CurrentSemester for an already loaded enrollment.
func (s *ProgressionService) CurrentSemesterFor(ctx context.Context, enrollment *models.EnrollmentDetail) int {
	current, err := s.currentSemesterTx(ctx, nil, enrollment)
	if err != nil {
		s.logger.Warn("current semester fallback: completion query failed", zap.Int64("enrollment_id", enrollment.ID), zap.Error(err))
		return 1
	}
	return current
}

// currentSemesterTx evaluates completion on tx so committers see their own
// transaction's view. Errors are returned, not swallowed.
func (s *ProgressionService) currentSemesterTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.EnrollmentDetail) (int, error) {
	rows, err := s.completion.SemesterCompletion(ctx, tx, enrollment.ID, enrollment.ProgramID)
	if err != nil {
		return 0, err
	}
	return deriveCurrentSemester(rows, enrollment.NominalSemesters), nil
}

// deriveCurrentSemester returns min(H+1, nominal) where H is the highest
// semester whose non-empty curriculum is fully passed or recognized.
func deriveCurrentSemester(rows []repository.SemesterCompletion, nominal int) int {
	highest := 0
	for _, row := range rows {
		if row.Total > 0 && row.Completed >= row.Total && row.Semester > highest {
			highest = row.Semester
		}
	}
	current := highest + 1
	if nominal > 0 && current > nominal {
		current = nominal
	}
	if current < 1 {
		current = 1
	}
	return current
}
