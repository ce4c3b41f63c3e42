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

// SemesterModuleRow is a curriculum entry of one semester with the booking state of an enrollment.
type SemesterModuleRow struct {
	ModuleID           int64                  `db:"module_id"`
	ModuleName         string                 `db:"module_name"`
	ECTS               int                    `db:"ects"`
	Semester           int                    `db:"semester"`
	RequirementKind    models.RequirementKind `db:"requirement_kind"`
	ElectiveGroup      models.ElectiveGroup   `db:"elective_group"`
	BookingID          sql.NullString         `db:"booking_id"`
	BookingStatus      sql.NullString         `db:"booking_status"`
	Grade              sql.NullFloat64        `db:"grade"`
	RegisteredExamDate sql.NullTime           `db:"registered_exam_date"`
}

type bookingRow struct {
	models.ModuleBooking
	ModuleName       string          `db:"module_name"`
	ECTS             int             `db:"ects"`
	HasResult        bool            `db:"has_result"`
	Grade            sql.NullFloat64 `db:"grade"`
	ExamDate         sql.NullTime    `db:"exam_date"`
	Attempt          sql.NullInt64   `db:"attempt"`
	MaxAttempts      sql.NullInt64   `db:"max_attempts"`
	RegistrationMode sql.NullString  `db:"registration_mode"`
	Topic            sql.NullString  `db:"topic"`
}

func (row bookingRow) detail() models.BookingDetail {
	booking := row.ModuleBooking
	if row.HasResult {
		result := &models.ExamResult{
			ModuleBookingID:  booking.ID,
			Attempt:          int(row.Attempt.Int64),
			MaxAttempts:      int(row.MaxAttempts.Int64),
			RegistrationMode: models.RegistrationMode(row.RegistrationMode.String),
		}
		if row.Grade.Valid {
			grade := row.Grade.Float64
			result.Grade = &grade
		}
		if row.ExamDate.Valid {
			date := row.ExamDate.Time
			result.ExamDate = &date
		}
		if row.Topic.Valid {
			topic := row.Topic.String
			result.Topic = &topic
		}
		booking.Result = result
	}
	return models.BookingDetail{ModuleBooking: booking, ModuleName: row.ModuleName, ECTS: row.ECTS}
}

const bookingSelect = `
SELECT mb.id, mb.enrollment_id, mb.module_id, mb.booked_at, mb.status, mb.elective_group, mb.semester,
       mb.created_at, mb.updated_at,
       m.name AS module_name, m.ects,
       er.module_booking_id IS NOT NULL AS has_result,
       er.grade, er.exam_date, er.attempt, er.max_attempts, er.registration_mode, er.topic
FROM module_bookings mb
JOIN modules m ON m.id = mb.module_id
LEFT JOIN exam_results er ON er.module_booking_id = mb.id`

// BookingRepository persists module bookings and their exam results.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// FindByID loads a booking with its optional exam result. tx may be nil.
func (r *BookingRepository) FindByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.BookingDetail, error) {
	var row bookingRow
	if err := sqlx.GetContext(ctx, executor(r.db, tx), &row, bookingSelect+` WHERE mb.id = $1`, id); err != nil {
		return nil, fmt.Errorf("find booking: %w", err)
	}
	detail := row.detail()
	return &detail, nil
}

// LockByID loads a booking and locks its row until tx ends.
func (r *BookingRepository) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.BookingDetail, error) {
	var row bookingRow
	if err := tx.GetContext(ctx, &row, bookingSelect+` WHERE mb.id = $1 FOR UPDATE OF mb`, id); err != nil {
		return nil, fmt.Errorf("lock booking: %w", err)
	}
	detail := row.detail()
	return &detail, nil
}

// ListByEnrollment returns all bookings of an enrollment ordered by semester and module name.
func (r *BookingRepository) ListByEnrollment(ctx context.Context, enrollmentID int64) ([]models.BookingDetail, error) {
	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, bookingSelect+` WHERE mb.enrollment_id = $1 ORDER BY mb.semester, m.name`, enrollmentID); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	details := make([]models.BookingDetail, 0, len(rows))
	for _, row := range rows {
		details = append(details, row.detail())
	}
	return details, nil
}

// FindInElectiveSlot returns the booking occupying (enrollment, group, semester), or nil.
func (r *BookingRepository) FindInElectiveSlot(ctx context.Context, tx *sqlx.Tx, enrollmentID int64, group models.ElectiveGroup, semester int) (*models.BookingDetail, error) {
	var row bookingRow
	query := bookingSelect + ` WHERE mb.enrollment_id = $1 AND mb.elective_group = $2 AND mb.semester = $3 LIMIT 1`
	if err := sqlx.GetContext(ctx, executor(r.db, tx), &row, query, enrollmentID, group, semester); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find elective slot booking: %w", err)
	}
	detail := row.detail()
	return &detail, nil
}

// ExistsInGroup reports whether the module is booked under the given elective group.
func (r *BookingRepository) ExistsInGroup(ctx context.Context, tx *sqlx.Tx, enrollmentID, moduleID int64, group models.ElectiveGroup) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM module_bookings WHERE enrollment_id = $1 AND module_id = $2 AND elective_group = $3)`
	if err := sqlx.GetContext(ctx, executor(r.db, tx), &exists, query, enrollmentID, moduleID, group); err != nil {
		return false, fmt.Errorf("check group booking: %w", err)
	}
	return exists, nil
}

// Exists reports whether the module is booked for the enrollment.
func (r *BookingRepository) Exists(ctx context.Context, tx *sqlx.Tx, enrollmentID, moduleID int64) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM module_bookings WHERE enrollment_id = $1 AND module_id = $2)`
	if err := sqlx.GetContext(ctx, executor(r.db, tx), &exists, query, enrollmentID, moduleID); err != nil {
		return false, fmt.Errorf("check booking: %w", err)
	}
	return exists, nil
}

// Create inserts a booking, assigning id and timestamps when missing.
func (r *BookingRepository) Create(ctx context.Context, tx *sqlx.Tx, booking *models.ModuleBooking) error {
	now := time.Now().UTC()
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.BookedAt.IsZero() {
		booking.BookedAt = now
	}
	if booking.Status == "" {
		booking.Status = models.BookingStatusBooked
	}
	if booking.ElectiveGroup == "" {
		booking.ElectiveGroup = models.ElectiveGroupNone
	}
	booking.CreatedAt = now
	booking.UpdatedAt = now

	const query = `INSERT INTO module_bookings (id, enrollment_id, module_id, booked_at, status, elective_group, semester, created_at, updated_at)
VALUES (:id, :enrollment_id, :module_id, :booked_at, :status, :elective_group, :semester, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, executor(r.db, tx), query, booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// UpdateStatus sets the booking status.
func (r *BookingRepository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status models.BookingStatus) error {
	const query = `UPDATE module_bookings SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := executor(r.db, tx).ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	return nil
}

// UpsertResult writes the exam result extension of a booking.
func (r *BookingRepository) UpsertResult(ctx context.Context, tx *sqlx.Tx, result *models.ExamResult) error {
	result.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO exam_results (module_booking_id, grade, exam_date, attempt, max_attempts, registration_mode, topic, updated_at)
VALUES (:module_booking_id, :grade, :exam_date, :attempt, :max_attempts, :registration_mode, :topic, :updated_at)
ON CONFLICT (module_booking_id) DO UPDATE SET
    grade = EXCLUDED.grade,
    exam_date = EXCLUDED.exam_date,
    attempt = EXCLUDED.attempt,
    max_attempts = EXCLUDED.max_attempts,
    registration_mode = EXCLUDED.registration_mode,
    topic = EXCLUDED.topic,
    updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, executor(r.db, tx), query, result); err != nil {
		return fmt.Errorf("upsert exam result: %w", err)
	}
	return nil
}

// ListSemesterModules returns a semester's curriculum with the enrollment's
// booking state, sorted by requirement kind, elective group and module name.
func (r *BookingRepository) ListSemesterModules(ctx context.Context, enrollmentID, programID int64, semester int) ([]SemesterModuleRow, error) {
	var rows []SemesterModuleRow
	const query = `
SELECT pm.module_id, m.name AS module_name, m.ects, pm.semester, pm.requirement_kind, pm.elective_group,
       mb.id AS booking_id, mb.status AS booking_status, er.grade,
       et.exam_date AS registered_exam_date
FROM program_modules pm
JOIN modules m ON m.id = pm.module_id
LEFT JOIN module_bookings mb ON mb.module_id = pm.module_id AND mb.enrollment_id = $1
LEFT JOIN exam_results er ON er.module_booking_id = mb.id
LEFT JOIN exam_registrations reg ON reg.module_booking_id = mb.id AND reg.status = 'registered'
LEFT JOIN exam_terms et ON et.id = reg.exam_term_id
WHERE pm.program_id = $2 AND pm.semester = $3
ORDER BY CASE pm.requirement_kind WHEN 'mandatory' THEN 0 WHEN 'restricted_elective' THEN 1 ELSE 2 END,
         pm.elective_group, m.name`
	if err := r.db.SelectContext(ctx, &rows, query, enrollmentID, programID, semester); err != nil {
		return nil, fmt.Errorf("list semester modules: %w", err)
	}
	return rows, nil
}
