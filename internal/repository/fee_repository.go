package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/study-progress-api/internal/models"
)

// FeeRepository persists enrollment fees.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs the repository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// OpenBalance sums the unpaid fees of an enrollment.
func (r *FeeRepository) OpenBalance(ctx context.Context, enrollmentID int64) (float64, error) {
	var total float64
	const query = `SELECT COALESCE(SUM(amount), 0)::float8 FROM fees WHERE enrollment_id = $1 AND paid_at IS NULL`
	if err := r.db.GetContext(ctx, &total, query, enrollmentID); err != nil {
		return 0, fmt.Errorf("sum open fees: %w", err)
	}
	return total, nil
}

// ListByEnrollment returns all fees of an enrollment by due date, newest first.
func (r *FeeRepository) ListByEnrollment(ctx context.Context, enrollmentID int64) ([]models.Fee, error) {
	var fees []models.Fee
	const query = `SELECT id, enrollment_id, fee_type, amount::float8 AS amount, due_date, paid_at, created_at
FROM fees WHERE enrollment_id = $1 ORDER BY due_date DESC, fee_type`
	if err := r.db.SelectContext(ctx, &fees, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list fees: %w", err)
	}
	return fees, nil
}

// MarkPaid settles an open fee and returns it. Already paid fees yield sql.ErrNoRows.
func (r *FeeRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time) (*models.Fee, error) {
	var fee models.Fee
	const query = `UPDATE fees SET paid_at = $2 WHERE id = $1 AND paid_at IS NULL
RETURNING id, enrollment_id, fee_type, amount::float8 AS amount, due_date, paid_at, created_at`
	if err := r.db.GetContext(ctx, &fee, query, id, paidAt); err != nil {
		return nil, fmt.Errorf("mark fee paid: %w", err)
	}
	return &fee, nil
}

type monthlyFeeCandidate struct {
	EnrollmentID int64   `db:"enrollment_id"`
	Amount       float64 `db:"amount"`
}

// GenerateMonthly inserts one monthly fee per active enrollment for the
// given due date, priced by the enrollment's time model. Enrollments are
// billed from the month they start in. Existing rows are left untouched so
// the call can be repeated safely.
func (r *FeeRepository) GenerateMonthly(ctx context.Context, dueDate time.Time) (created int64, err error) {
	due := dueDate.Format("2006-01-02")
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin monthly fees: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var candidates []monthlyFeeCandidate
	const selectQuery = `SELECT e.id AS enrollment_id, tm.monthly_fee::float8 AS amount
FROM enrollments e
JOIN time_models tm ON tm.id = e.time_model_id
WHERE e.status = 'active' AND date_trunc('month', e.start_date) <= $1::date AND tm.monthly_fee > 0
  AND NOT EXISTS (SELECT 1 FROM fees f WHERE f.enrollment_id = e.id AND f.fee_type = 'monthly' AND f.due_date = $1::date)
ORDER BY e.id`
	if err = tx.SelectContext(ctx, &candidates, selectQuery, due); err != nil {
		return 0, fmt.Errorf("select monthly fee candidates: %w", err)
	}

	const insertQuery = `INSERT INTO fees (id, enrollment_id, fee_type, amount, due_date, created_at)
VALUES ($1, $2, 'monthly', $3, $4::date, NOW())
ON CONFLICT ON CONSTRAINT uq_fees_enrollment_type_due DO NOTHING`
	for _, candidate := range candidates {
		result, execErr := tx.ExecContext(ctx, insertQuery, uuid.NewString(), candidate.EnrollmentID, candidate.Amount, due)
		if execErr != nil {
			return 0, fmt.Errorf("insert monthly fee: %w", execErr)
		}
		affected, rowsErr := result.RowsAffected()
		if rowsErr != nil {
			return 0, fmt.Errorf("monthly fee rows: %w", rowsErr)
		}
		created += affected
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit monthly fees: %w", err)
	}
	return created, nil
}
