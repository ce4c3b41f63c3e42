package dto

import (
	"time"

	"github.com/noah-isme/study-progress-api/internal/models"
)

// RegisterExamRequest registers a booking for an exam term.
type RegisterExamRequest struct {
	ModuleBookingID string `json:"module_booking_id" validate:"required,uuid"`
	ExamTermID      int64  `json:"exam_term_id" validate:"required,gt=0"`
}

// RegistrationResult describes a created or updated registration.
type RegistrationResult struct {
	RegistrationID string                    `json:"registration_id"`
	Status         models.RegistrationStatus `json:"status"`
}

// EligibleExamTerm is an open exam term with seat usage.
type EligibleExamTerm struct {
	models.ExamTerm
	RegisteredCount int  `json:"registered_count"`
	RemainingSeats  *int `json:"remaining_seats"`
}

// NextExam summarises the nearest upcoming registered exam.
type NextExam struct {
	RegistrationID string          `json:"registration_id"`
	ModuleID       int64           `json:"module_id"`
	ModuleName     string          `json:"module_name"`
	ExamDate       time.Time       `json:"exam_date"`
	StartsAt       *string         `json:"starts_at,omitempty"`
	EndsAt         *string         `json:"ends_at,omitempty"`
	Kind           models.ExamKind `json:"kind"`
	Location       *string         `json:"location,omitempty"`
	DaysUntil      int             `json:"days_until"`
}

// RecordResultRequest records a graded exam attempt.
type RecordResultRequest struct {
	Grade            float64                 `json:"grade" validate:"required,gte=1,lte=5"`
	ExamDate         *time.Time              `json:"exam_date"`
	RegistrationMode models.RegistrationMode `json:"registration_mode" validate:"omitempty,oneof=online in_person"`
	Topic            *string                 `json:"topic" validate:"omitempty,max=500"`
}

// ExamResultResponse reports a booking's graded state.
type ExamResultResponse struct {
	BookingID     string               `json:"booking_id"`
	Status        models.BookingStatus `json:"status"`
	Grade         *float64             `json:"grade,omitempty"`
	GradeCategory models.GradeCategory `json:"grade_category,omitempty"`
	Attempt       int                  `json:"attempt"`
	MaxAttempts   int                  `json:"max_attempts"`
	CanRetry      bool                 `json:"can_retry"`
}
