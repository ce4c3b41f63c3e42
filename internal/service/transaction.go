package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/study-progress-api/pkg/database"
	appErrors "github.com/noah-isme/study-progress-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// Storage-level backstops of the business rules.
const (
	constraintBookingUnique      = "uq_module_bookings_enrollment_module"
	constraintElectiveSlot       = "uq_module_bookings_elective_slot"
	constraintActiveRegistration = "uq_exam_registrations_active"
)

// translateStoreError maps unique violations raised by the backstops to the
// business error they guard and wraps everything else as internal.
func translateStoreError(err error, message string) error {
	if constraint, ok := database.UniqueViolation(err); ok {
		switch constraint {
		case constraintBookingUnique:
			return appErrors.ErrAlreadyBooked
		case constraintElectiveSlot:
			return appErrors.ErrElectiveSlotTaken
		case constraintActiveRegistration:
			return appErrors.ErrAlreadyRegistered
		}
	}
	return appErrors.Internal(err, message)
}

// notFoundOr returns notFound for sql.ErrNoRows and an internal error otherwise.
func notFoundOr(err error, notFound *appErrors.Error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return appErrors.Internal(err, message)
}

func outcomeOf(err error) string {
	if err == nil {
		return outcomeOK
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return appErrors.ErrInternal.Code
}
