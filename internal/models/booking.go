package models

import "time"

// BookingStatus tracks a module booking.
type BookingStatus string

const (
	BookingStatusBooked     BookingStatus = "booked"
	BookingStatusPassed     BookingStatus = "passed"
	BookingStatusFailed     BookingStatus = "failed"
	BookingStatusRecognized BookingStatus = "recognized"
)

// Completed reports whether the booking counts toward semester completion.
func (s BookingStatus) Completed() bool {
	return s == BookingStatusPassed || s == BookingStatusRecognized
}

// PassingGrade is the worst grade that still passes.
const PassingGrade = 4.0

// DefaultMaxAttempts bounds exam attempts per booking.
const DefaultMaxAttempts = 3

// ModuleBooking is a module booked under an enrollment. ElectiveGroup and
// Semester snapshot the curriculum assignment at booking time and back the
// storage-level elective slot constraint.
type ModuleBooking struct {
	ID            string        `db:"id" json:"id"`
	EnrollmentID  int64         `db:"enrollment_id" json:"enrollment_id"`
	ModuleID      int64         `db:"module_id" json:"module_id"`
	BookedAt      time.Time     `db:"booked_at" json:"booked_at"`
	Status        BookingStatus `db:"status" json:"status"`
	ElectiveGroup ElectiveGroup `db:"elective_group" json:"elective_group"`
	Semester      int           `db:"semester" json:"semester"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`

	// Result is present only once the booking took a graded exam path.
	Result *ExamResult `db:"-" json:"result,omitempty"`
}

// HasGrade reports whether the booking carries exam result data.
func (b *ModuleBooking) HasGrade() bool {
	return b != nil && b.Result != nil && b.Result.Grade != nil
}

// RegistrationMode states how an exam registration was made.
type RegistrationMode string

const (
	RegistrationModeOnline   RegistrationMode = "online"
	RegistrationModeInPerson RegistrationMode = "in_person"
)

// ExamResult extends a ModuleBooking (same identity) with grading data.
type ExamResult struct {
	ModuleBookingID  string           `db:"module_booking_id" json:"-"`
	Grade            *float64         `db:"grade" json:"grade,omitempty"`
	ExamDate         *time.Time       `db:"exam_date" json:"exam_date,omitempty"`
	Attempt          int              `db:"attempt" json:"attempt"`
	MaxAttempts      int              `db:"max_attempts" json:"max_attempts"`
	RegistrationMode RegistrationMode `db:"registration_mode" json:"registration_mode"`
	Topic            *string          `db:"topic" json:"topic,omitempty"`
	UpdatedAt        time.Time        `db:"updated_at" json:"-"`
}

// CanRetry reports whether another attempt is allowed.
func (r *ExamResult) CanRetry() bool {
	return r != nil && r.Attempt < r.MaxAttempts
}

// Passed reports whether the recorded grade passes.
func (r *ExamResult) Passed() bool {
	return r != nil && r.Grade != nil && *r.Grade <= PassingGrade
}

// GradeCategory buckets a grade for display.
type GradeCategory string

const (
	GradeCategoryVeryGood GradeCategory = "very_good"
	GradeCategoryGood     GradeCategory = "good"
	GradeCategoryPassed   GradeCategory = "passed"
	GradeCategoryFailed   GradeCategory = "failed"
)

// CategorizeGrade maps a German scale grade to its category.
func CategorizeGrade(grade float64) GradeCategory {
	switch {
	case grade <= 2.0:
		return GradeCategoryVeryGood
	case grade <= 3.0:
		return GradeCategoryGood
	case grade <= PassingGrade:
		return GradeCategoryPassed
	default:
		return GradeCategoryFailed
	}
}

// BookingDetail is a booking joined with module and curriculum data.
type BookingDetail struct {
	ModuleBooking
	ModuleName string `json:"module_name"`
	ECTS       int    `json:"ects"`
}
