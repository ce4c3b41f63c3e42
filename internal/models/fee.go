package models

import "time"

// FeeType enumerates charge kinds.
type FeeType string

const (
	FeeTypeMonthly    FeeType = "monthly"
	FeeTypeSemester   FeeType = "semester"
	FeeTypeExam       FeeType = "exam"
	FeeTypeEnrollment FeeType = "enrollment"
)

// Fee is a charge against an enrollment; PaidAt is nil while open.
type Fee struct {
	ID           string     `db:"id" json:"id"`
	EnrollmentID int64      `db:"enrollment_id" json:"enrollment_id"`
	FeeType      FeeType    `db:"fee_type" json:"fee_type"`
	Amount       float64    `db:"amount" json:"amount"`
	DueDate      time.Time  `db:"due_date" json:"due_date"`
	PaidAt       *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// Overdue reports whether the fee is unpaid past its due date.
func (f *Fee) Overdue(now time.Time) bool {
	return f.PaidAt == nil && dateOnly(f.DueDate).Before(dateOnly(now))
}
