package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SemesterCompletion counts the curriculum modules of a semester and how
// many of them an enrollment passed or had recognized.
type SemesterCompletion struct {
	Semester  int `db:"semester"`
	Total     int `db:"total"`
	Completed int `db:"completed"`
}

// ProgressStats aggregates graded bookings restricted to the program's curriculum.
type ProgressStats struct {
	AverageGrade *float64 `db:"average_grade"`
	PassedCount  int      `db:"passed_count"`
	BookedCount  int      `db:"booked_count"`
}

// ProgressionRepository runs the read-only queries behind semester derivation
// and the progress snapshot.
type ProgressionRepository struct {
	db *sqlx.DB
}

// NewProgressionRepository constructs the repository.
func NewProgressionRepository(db *sqlx.DB) *ProgressionRepository {
	return &ProgressionRepository{db: db}
}

// SemesterCompletion returns one row per curriculum semester. tx may be nil.
func (r *ProgressionRepository) SemesterCompletion(ctx context.Context, tx *sqlx.Tx, enrollmentID, programID int64) ([]SemesterCompletion, error) {
	var rows []SemesterCompletion
	const query = `
SELECT pm.semester,
       COUNT(DISTINCT pm.module_id) AS total,
       COUNT(DISTINCT mb.module_id) FILTER (WHERE mb.status IN ('passed', 'recognized')) AS completed
FROM program_modules pm
LEFT JOIN module_bookings mb ON mb.module_id = pm.module_id AND mb.enrollment_id = $1
WHERE pm.program_id = $2
GROUP BY pm.semester
ORDER BY pm.semester`
	if err := sqlx.SelectContext(ctx, executor(r.db, tx), &rows, query, enrollmentID, programID); err != nil {
		return nil, fmt.Errorf("semester completion: %w", err)
	}
	return rows, nil
}

// Stats returns the average grade of passed modules and passed/booked counts.
func (r *ProgressionRepository) Stats(ctx context.Context, enrollmentID, programID int64) (*ProgressStats, error) {
	var stats ProgressStats
	const query = `
SELECT AVG(er.grade) FILTER (WHERE mb.status = 'passed')::float8 AS average_grade,
       COUNT(*) FILTER (WHERE mb.status = 'passed') AS passed_count,
       COUNT(*) FILTER (WHERE mb.status IN ('booked', 'passed')) AS booked_count
FROM module_bookings mb
JOIN program_modules pm ON pm.module_id = mb.module_id AND pm.program_id = $2
LEFT JOIN exam_results er ON er.module_booking_id = mb.id
WHERE mb.enrollment_id = $1`
	if err := r.db.GetContext(ctx, &stats, query, enrollmentID, programID); err != nil {
		return nil, fmt.Errorf("progress stats: %w", err)
	}
	return &stats, nil
}
