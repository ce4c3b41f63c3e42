package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/study-progress-api/internal/models"
)

const enrollmentDetailColumns = `
e.id, e.student_id, e.program_id, e.time_model_id, e.start_date, e.withdrawn_at, e.status,
e.created_at, e.updated_at,
p.name AS program_name, p.degree, p.nominal_semesters,
tm.name AS time_model_name`

const enrollmentDetailFrom = `
FROM enrollments e
JOIN programs p ON p.id = e.program_id
JOIN time_models tm ON tm.id = e.time_model_id`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment with program and time model data.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	var detail models.EnrollmentDetail
	query := `SELECT ` + enrollmentDetailColumns + enrollmentDetailFrom + ` WHERE e.id = $1`
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &detail, nil
}

// LockByID loads an enrollment and holds a row lock until tx ends. Bookings
// of the same enrollment serialize on this lock.
func (r *EnrollmentRepository) LockByID(ctx context.Context, tx *sqlx.Tx, id int64) (*models.EnrollmentDetail, error) {
	var detail models.EnrollmentDetail
	query := `SELECT ` + enrollmentDetailColumns + enrollmentDetailFrom + ` WHERE e.id = $1 FOR UPDATE OF e`
	if err := tx.GetContext(ctx, &detail, query, id); err != nil {
		return nil, fmt.Errorf("lock enrollment: %w", err)
	}
	return &detail, nil
}

// FindActiveByStudent returns the most recent active enrollment of a student.
func (r *EnrollmentRepository) FindActiveByStudent(ctx context.Context, studentID string) (*models.EnrollmentDetail, error) {
	var detail models.EnrollmentDetail
	query := `SELECT ` + enrollmentDetailColumns + enrollmentDetailFrom +
		` WHERE e.student_id = $1 AND e.status = 'active' ORDER BY e.start_date DESC, e.id DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &detail, query, studentID); err != nil {
		return nil, fmt.Errorf("find active enrollment: %w", err)
	}
	return &detail, nil
}

// ListByStudent returns all enrollments of a student, newest first.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	var details []models.EnrollmentDetail
	query := `SELECT ` + enrollmentDetailColumns + enrollmentDetailFrom +
		` WHERE e.student_id = $1 ORDER BY e.start_date DESC, e.id DESC`
	if err := r.db.SelectContext(ctx, &details, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return details, nil
}

// CountOtherActive counts active enrollments of the student other than excludeID.
func (r *EnrollmentRepository) CountOtherActive(ctx context.Context, tx *sqlx.Tx, studentID string, excludeID int64) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM enrollments WHERE student_id = $1 AND status = 'active' AND id <> $2`
	if err := sqlx.GetContext(ctx, executor(r.db, tx), &count, query, studentID, excludeID); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// UpdateStatus changes the lifecycle status and withdrawal date.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id int64, status models.EnrollmentStatus, withdrawnAt *time.Time) error {
	const query = `UPDATE enrollments SET status = $2, withdrawn_at = $3, updated_at = $4 WHERE id = $1`
	if _, err := executor(r.db, tx).ExecContext(ctx, query, id, status, withdrawnAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}
