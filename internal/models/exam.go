package models

import "time"

// ExamKind enumerates exam formats.
type ExamKind string

const (
	ExamKindOnline   ExamKind = "online"
	ExamKindInPerson ExamKind = "in_person"
	ExamKindProject  ExamKind = "project"
	ExamKindWorkbook ExamKind = "workbook"
)

// ExamTerm is a scheduled opportunity to sit a module's exam.
type ExamTerm struct {
	ID                   int64      `db:"id" json:"id"`
	ModuleID             int64      `db:"module_id" json:"module_id"`
	ExamDate             time.Time  `db:"exam_date" json:"exam_date"`
	StartsAt             *string    `db:"starts_at" json:"starts_at,omitempty"`
	EndsAt               *string    `db:"ends_at" json:"ends_at,omitempty"`
	Kind                 ExamKind   `db:"kind" json:"kind"`
	Location             *string    `db:"location" json:"location,omitempty"`
	RegistrationDeadline *time.Time `db:"registration_deadline" json:"registration_deadline,omitempty"`
	Capacity             *int       `db:"capacity" json:"capacity,omitempty"`
	Description          *string    `db:"description" json:"description,omitempty"`
}

// DeadlinePassed reports whether registration closed before now. Terms in
// the past are closed regardless of their deadline.
func (t *ExamTerm) DeadlinePassed(now time.Time) bool {
	if t.RegistrationDeadline != nil && now.After(*t.RegistrationDeadline) {
		return true
	}
	return dateOnly(t.ExamDate).Before(dateOnly(now))
}

// HasSeat reports whether registered is below capacity.
func (t *ExamTerm) HasSeat(registered int) bool {
	return t.Capacity == nil || registered < *t.Capacity
}

// ExamTermAvailability is an exam term with its current seat usage.
type ExamTermAvailability struct {
	ExamTerm
	RegisteredCount int `db:"registered_count" json:"registered_count"`
}

// RemainingSeats returns nil for unlimited terms.
func (a ExamTermAvailability) RemainingSeats() *int {
	if a.Capacity == nil {
		return nil
	}
	left := *a.Capacity - a.RegisteredCount
	if left < 0 {
		left = 0
	}
	return &left
}

// RegistrationStatus tracks an exam registration.
type RegistrationStatus string

const (
	RegistrationStatusRegistered RegistrationStatus = "registered"
	RegistrationStatusCancelled  RegistrationStatus = "cancelled"
	RegistrationStatusCompleted  RegistrationStatus = "completed"
)

// CanTransitionTo enforces registered -> {cancelled, completed}; both targets are terminal.
func (s RegistrationStatus) CanTransitionTo(next RegistrationStatus) bool {
	return s == RegistrationStatusRegistered &&
		(next == RegistrationStatusCancelled || next == RegistrationStatusCompleted)
}

// ExamRegistration links a module booking to an exam term.
type ExamRegistration struct {
	ID              string             `db:"id" json:"id"`
	ModuleBookingID string             `db:"module_booking_id" json:"module_booking_id"`
	ExamTermID      int64              `db:"exam_term_id" json:"exam_term_id"`
	Status          RegistrationStatus `db:"status" json:"status"`
	RegisteredAt    time.Time          `db:"registered_at" json:"registered_at"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updated_at"`
}

// ExamRegistrationDetail joins a registration with term and module data.
type ExamRegistrationDetail struct {
	ExamRegistration
	EnrollmentID int64     `db:"enrollment_id" json:"enrollment_id"`
	ModuleID     int64     `db:"module_id" json:"module_id"`
	ModuleName   string    `db:"module_name" json:"module_name"`
	ExamDate     time.Time `db:"exam_date" json:"exam_date"`
	StartsAt     *string   `db:"starts_at" json:"starts_at,omitempty"`
	EndsAt       *string   `db:"ends_at" json:"ends_at,omitempty"`
	Kind         ExamKind  `db:"kind" json:"kind"`
	Location     *string   `db:"location" json:"location,omitempty"`
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
