package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/study-progress-api/internal/models"
)

const registrationDetailSelect = `
SELECT reg.id, reg.module_booking_id, reg.exam_term_id, reg.status, reg.registered_at, reg.updated_at,
       mb.enrollment_id, mb.module_id, m.name AS module_name,
       et.exam_date, et.starts_at, et.ends_at, et.kind, et.location
FROM exam_registrations reg
JOIN module_bookings mb ON mb.id = reg.module_booking_id
JOIN modules m ON m.id = mb.module_id
JOIN exam_terms et ON et.id = reg.exam_term_id`

// ExamRegistrationRepository persists exam registrations.
type ExamRegistrationRepository struct {
	db *sqlx.DB
}

// NewExamRegistrationRepository constructs the repository.
func NewExamRegistrationRepository(db *sqlx.DB) *ExamRegistrationRepository {
	return &ExamRegistrationRepository{db: db}
}

// HasActive reports whether the booking holds a registration in status registered.
func (r *ExamRegistrationRepository) HasActive(ctx context.Context, tx *sqlx.Tx, bookingID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM exam_registrations WHERE module_booking_id = $1 AND status = 'registered')`
	if err := sqlx.GetContext(ctx, executor(r.db, tx), &exists, query, bookingID); err != nil {
		return false, fmt.Errorf("check active registration: %w", err)
	}
	return exists, nil
}

// CountRegistered counts the seats taken on a term.
func (r *ExamRegistrationRepository) CountRegistered(ctx context.Context, tx *sqlx.Tx, termID int64) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM exam_registrations WHERE exam_term_id = $1 AND status = 'registered'`
	if err := sqlx.GetContext(ctx, executor(r.db, tx), &count, query, termID); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return count, nil
}

// Create inserts a registration in status registered.
func (r *ExamRegistrationRepository) Create(ctx context.Context, tx *sqlx.Tx, reg *models.ExamRegistration) error {
	now := time.Now().UTC()
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if reg.Status == "" {
		reg.Status = models.RegistrationStatusRegistered
	}
	if reg.RegisteredAt.IsZero() {
		reg.RegisteredAt = now
	}
	reg.UpdatedAt = now

	const query = `INSERT INTO exam_registrations (id, module_booking_id, exam_term_id, status, registered_at, updated_at)
VALUES (:id, :module_booking_id, :exam_term_id, :status, :registered_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, executor(r.db, tx), query, reg); err != nil {
		return fmt.Errorf("create exam registration: %w", err)
	}
	return nil
}

// LockByID loads a registration with booking and term data and locks it until tx ends.
func (r *ExamRegistrationRepository) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.ExamRegistrationDetail, error) {
	var detail models.ExamRegistrationDetail
	if err := tx.GetContext(ctx, &detail, registrationDetailSelect+` WHERE reg.id = $1 FOR UPDATE OF reg`, id); err != nil {
		return nil, fmt.Errorf("lock exam registration: %w", err)
	}
	return &detail, nil
}

// UpdateStatus sets the registration status.
func (r *ExamRegistrationRepository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status models.RegistrationStatus) error {
	const query = `UPDATE exam_registrations SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := executor(r.db, tx).ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update exam registration: %w", err)
	}
	return nil
}

// ListByEnrollment returns every registration of an enrollment, newest exam first.
func (r *ExamRegistrationRepository) ListByEnrollment(ctx context.Context, enrollmentID int64) ([]models.ExamRegistrationDetail, error) {
	var details []models.ExamRegistrationDetail
	query := registrationDetailSelect + ` WHERE mb.enrollment_id = $1 ORDER BY et.exam_date DESC, reg.registered_at DESC`
	if err := r.db.SelectContext(ctx, &details, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list exam registrations: %w", err)
	}
	return details, nil
}

// NextUpcoming returns the earliest active registration dated today or later, or nil.
func (r *ExamRegistrationRepository) NextUpcoming(ctx context.Context, enrollmentID int64, today time.Time) (*models.ExamRegistrationDetail, error) {
	var detail models.ExamRegistrationDetail
	query := registrationDetailSelect + `
WHERE mb.enrollment_id = $1 AND reg.status = 'registered' AND et.exam_date >= $2::date
ORDER BY et.exam_date, et.starts_at NULLS FIRST
LIMIT 1`
	if err := r.db.GetContext(ctx, &detail, query, enrollmentID, today.Format("2006-01-02")); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find next exam: %w", err)
	}
	return &detail, nil
}

// CompleteActive closes the booking's active registration once a result is recorded.
func (r *ExamRegistrationRepository) CompleteActive(ctx context.Context, tx *sqlx.Tx, bookingID string) error {
	if err := r.closeActive(ctx, tx, bookingID, models.RegistrationStatusCompleted); err != nil {
		return fmt.Errorf("complete active registration: %w", err)
	}
	return nil
}

// CancelActive releases the booking's active registration, freeing its seat.
func (r *ExamRegistrationRepository) CancelActive(ctx context.Context, tx *sqlx.Tx, bookingID string) error {
	if err := r.closeActive(ctx, tx, bookingID, models.RegistrationStatusCancelled); err != nil {
		return fmt.Errorf("cancel active registration: %w", err)
	}
	return nil
}

func (r *ExamRegistrationRepository) closeActive(ctx context.Context, tx *sqlx.Tx, bookingID string, status models.RegistrationStatus) error {
	const query = `UPDATE exam_registrations SET status = $2, updated_at = $3
WHERE module_booking_id = $1 AND status = 'registered'`
	_, err := executor(r.db, tx).ExecContext(ctx, query, bookingID, status, time.Now().UTC())
	return err
}
