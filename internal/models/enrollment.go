package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusPaused    EnrollmentStatus = "paused"
	EnrollmentStatusWithdrawn EnrollmentStatus = "withdrawn"
)

// CanTransitionTo reports whether the lifecycle permits moving to next.
// Pause and resume alternate; withdrawal is terminal.
func (s EnrollmentStatus) CanTransitionTo(next EnrollmentStatus) bool {
	switch s {
	case EnrollmentStatusActive:
		return next == EnrollmentStatusPaused || next == EnrollmentStatusWithdrawn
	case EnrollmentStatusPaused:
		return next == EnrollmentStatusActive || next == EnrollmentStatusWithdrawn
	default:
		return false
	}
}

// Enrollment captures a student's registration into one program under one time model.
type Enrollment struct {
	ID          int64            `db:"id" json:"id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	ProgramID   int64            `db:"program_id" json:"program_id"`
	TimeModelID int64            `db:"time_model_id" json:"time_model_id"`
	StartDate   time.Time        `db:"start_date" json:"start_date"`
	WithdrawnAt *time.Time       `db:"withdrawn_at" json:"withdrawn_at,omitempty"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with program and time model data.
type EnrollmentDetail struct {
	Enrollment
	ProgramName      string `db:"program_name" json:"program_name"`
	Degree           string `db:"degree" json:"degree"`
	NominalSemesters int    `db:"nominal_semesters" json:"nominal_semesters"`
	TimeModelName    string `db:"time_model_name" json:"time_model_name"`
}
