package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"-"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithDetails returns a copy carrying the given detail entry.
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	clone.Details[key] = value
	return &clone
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Internal wraps an infrastructure failure as ErrInternal.
func Internal(err error, message string) *Error {
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}

// Generic errors.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Not-found errors of the study domain. They stay distinct from business
// rejections so clients can tell "missing" from "not allowed".
var (
	ErrEnrollmentNotFound   = New("ENROLLMENT_NOT_FOUND", http.StatusNotFound, "enrollment not found")
	ErrModuleNotFound       = New("MODULE_NOT_FOUND", http.StatusNotFound, "module not found")
	ErrBookingNotFound      = New("BOOKING_NOT_FOUND", http.StatusNotFound, "module booking not found")
	ErrExamTermNotFound     = New("EXAM_TERM_NOT_FOUND", http.StatusNotFound, "exam term not found")
	ErrRegistrationNotFound = New("REGISTRATION_NOT_FOUND", http.StatusNotFound, "exam registration not found")
	ErrFeeNotFound          = New("FEE_NOT_FOUND", http.StatusNotFound, "fee not found")
)

// Booking rejections.
var (
	ErrNotInProgram          = New("NOT_IN_PROGRAM", http.StatusUnprocessableEntity, "module is not part of the enrollment's program")
	ErrElectiveSlotTaken     = New("ELECTIVE_SLOT_TAKEN", http.StatusConflict, "a module of this elective group is already booked for the semester")
	ErrDuplicateAcrossGroups = New("DUPLICATE_ACROSS_GROUPS", http.StatusConflict, "module is already booked in elective group A")
	ErrSemesterLocked        = New("SEMESTER_LOCKED", http.StatusUnprocessableEntity, "module belongs to a semester that is not unlocked yet")
	ErrAlreadyBooked         = New("ALREADY_BOOKED", http.StatusConflict, "module is already booked")
	ErrEnrollmentInactive    = New("ENROLLMENT_INACTIVE", http.StatusUnprocessableEntity, "enrollment is not active")
)

// Exam registration rejections.
var (
	ErrAlreadyRegistered  = New("ALREADY_REGISTERED", http.StatusConflict, "an active exam registration already exists for this booking")
	ErrTermFull           = New("TERM_FULL", http.StatusConflict, "exam term has no seats left")
	ErrDeadlinePassed     = New("DEADLINE_PASSED", http.StatusUnprocessableEntity, "registration deadline has passed")
	ErrInvalidTransition  = New("INVALID_TRANSITION", http.StatusConflict, "status transition not allowed")
	ErrAttemptsExhausted  = New("ATTEMPTS_EXHAUSTED", http.StatusUnprocessableEntity, "no exam attempts left")
	ErrBookingNotExamable = New("BOOKING_NOT_EXAMABLE", http.StatusUnprocessableEntity, "booking cannot be examined in its current status")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Is reports whether err carries the code of target.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}
