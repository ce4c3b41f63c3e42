package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/study-progress-api/internal/models"
)

const examTermColumns = `et.id, et.module_id, et.exam_date, et.starts_at, et.ends_at, et.kind, et.location,
et.registration_deadline, et.capacity, et.description`

// ExamTermRepository reads exam terms and their seat usage.
type ExamTermRepository struct {
	db *sqlx.DB
}

// NewExamTermRepository constructs the repository.
func NewExamTermRepository(db *sqlx.DB) *ExamTermRepository {
	return &ExamTermRepository{db: db}
}

// ListEligible returns the module's terms that are upcoming, still open for
// registration and below capacity, ordered by date and start time.
func (r *ExamTermRepository) ListEligible(ctx context.Context, moduleID int64, now time.Time) ([]models.ExamTermAvailability, error) {
	var terms []models.ExamTermAvailability
	query := `
SELECT ` + examTermColumns + `, COUNT(reg.id) AS registered_count
FROM exam_terms et
LEFT JOIN exam_registrations reg ON reg.exam_term_id = et.id AND reg.status = 'registered'
WHERE et.module_id = $1
  AND et.exam_date >= $2::date
  AND (et.registration_deadline IS NULL OR et.registration_deadline >= $3)
GROUP BY et.id
HAVING et.capacity IS NULL OR COUNT(reg.id) < et.capacity
ORDER BY et.exam_date, et.starts_at NULLS FIRST`
	if err := r.db.SelectContext(ctx, &terms, query, moduleID, now.Format("2006-01-02"), now); err != nil {
		return nil, fmt.Errorf("list eligible exam terms: %w", err)
	}
	return terms, nil
}

// LockByID loads a term and locks its row until tx ends; concurrent
// registrations for the same term serialize here.
func (r *ExamTermRepository) LockByID(ctx context.Context, tx *sqlx.Tx, id int64) (*models.ExamTerm, error) {
	var term models.ExamTerm
	query := `SELECT ` + examTermColumns + ` FROM exam_terms et WHERE et.id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &term, query, id); err != nil {
		return nil, fmt.Errorf("lock exam term: %w", err)
	}
	return &term, nil
}
