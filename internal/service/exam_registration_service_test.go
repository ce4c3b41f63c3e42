package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/study-progress-api/internal/dto"
	"github.com/noah-isme/study-progress-api/internal/models"
	appErrors "github.com/noah-isme/study-progress-api/pkg/errors"
)

const (
	bookingOne = "0b6c2a4e-1d3f-4c5a-9e7b-111111111111"
	bookingTwo = "0b6c2a4e-1d3f-4c5a-9e7b-222222222222"
)

type fakeExamTerms struct {
	terms        map[int64]models.ExamTerm
	availability []models.ExamTermAvailability
}

func (f *fakeExamTerms) ListEligible(ctx context.Context, moduleID int64, now time.Time) ([]models.ExamTermAvailability, error) {
	var out []models.ExamTermAvailability
	for _, a := range f.availability {
		if a.ModuleID == moduleID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeExamTerms) LockByID(ctx context.Context, tx *sqlx.Tx, id int64) (*models.ExamTerm, error) {
	term, ok := f.terms[id]
	if !ok {
		return nil, fmt.Errorf("lock exam term: %w", sql.ErrNoRows)
	}
	return &term, nil
}

type fakeRegistrationStore struct {
	mu        sync.Mutex
	bookings  *fakeBookingStore
	regs      []models.ExamRegistrationDetail
	next      *models.ExamRegistrationDetail
	closedFor []string
}

func (f *fakeRegistrationStore) HasActive(ctx context.Context, tx *sqlx.Tx, bookingID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.regs {
		if r.ModuleBookingID == bookingID && r.Status == models.RegistrationStatusRegistered {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRegistrationStore) CountRegistered(ctx context.Context, tx *sqlx.Tx, termID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, r := range f.regs {
		if r.ExamTermID == termID && r.Status == models.RegistrationStatusRegistered {
			count++
		}
	}
	return count, nil
}

func (f *fakeRegistrationStore) Create(ctx context.Context, tx *sqlx.Tx, reg *models.ExamRegistration) error {
	booking, err := f.bookings.LockByID(ctx, tx, reg.ModuleBookingID)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	reg.ID = fmt.Sprintf("reg-%d", len(f.regs)+1)
	f.regs = append(f.regs, models.ExamRegistrationDetail{
		ExamRegistration: *reg,
		EnrollmentID:     booking.EnrollmentID,
		ModuleID:         booking.ModuleID,
	})
	return nil
}

func (f *fakeRegistrationStore) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.ExamRegistrationDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.regs {
		if r.ID == id {
			found := r
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeRegistrationStore) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status models.RegistrationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.regs {
		if f.regs[i].ID == id {
			f.regs[i].Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeRegistrationStore) ListByEnrollment(ctx context.Context, enrollmentID int64) ([]models.ExamRegistrationDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ExamRegistrationDetail
	for _, r := range f.regs {
		if r.EnrollmentID == enrollmentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRegistrationStore) NextUpcoming(ctx context.Context, enrollmentID int64, today time.Time) (*models.ExamRegistrationDetail, error) {
	return f.next, nil
}

func (f *fakeRegistrationStore) CompleteActive(ctx context.Context, tx *sqlx.Tx, bookingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedFor = append(f.closedFor, bookingID)
	for i := range f.regs {
		if f.regs[i].ModuleBookingID == bookingID && f.regs[i].Status == models.RegistrationStatusRegistered {
			f.regs[i].Status = models.RegistrationStatusCompleted
		}
	}
	return nil
}

func (f *fakeRegistrationStore) CancelActive(ctx context.Context, tx *sqlx.Tx, bookingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.regs {
		if f.regs[i].ModuleBookingID == bookingID && f.regs[i].Status == models.RegistrationStatusRegistered {
			f.regs[i].Status = models.RegistrationStatusCancelled
		}
	}
	return nil
}

type registrationFixture struct {
	service       *ExamRegistrationService
	mock          sqlmock.Sqlmock
	terms         *fakeExamTerms
	bookings      *fakeBookingStore
	registrations *fakeRegistrationStore
	cache         *memoryCache
	metrics       *MetricsService
}

func newRegistrationFixture(t *testing.T) *registrationFixture {
	t.Helper()
	tx, mock := newTxProviderMock(t)
	bookings := &fakeBookingStore{bookings: []models.BookingDetail{
		bookingDetail(bookingOne, 1, 10, models.ElectiveGroupNone, 1, models.BookingStatusBooked),
		bookingDetail(bookingTwo, 2, 10, models.ElectiveGroupNone, 1, models.BookingStatusBooked),
	}}
	capacity := 1
	deadline := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	f := &registrationFixture{
		mock: mock,
		terms: &fakeExamTerms{terms: map[int64]models.ExamTerm{
			100: {ID: 100, ModuleID: 10, ExamDate: time.Date(2024, time.April, 10, 0, 0, 0, 0, time.UTC), Kind: models.ExamKindInPerson, RegistrationDeadline: &deadline, Capacity: &capacity},
			200: {ID: 200, ModuleID: 20, ExamDate: time.Date(2024, time.April, 10, 0, 0, 0, 0, time.UTC), Kind: models.ExamKindOnline},
		}},
		bookings:      bookings,
		registrations: &fakeRegistrationStore{bookings: bookings},
		cache:         newMemoryCache(),
		metrics:       NewMetricsService(),
	}
	enrollments := newFakeEnrollmentStore(activeEnrollment(1, "student-1"), activeEnrollment(2, "student-2"))
	catalog := &fakeCatalog{entries: []models.CurriculumEntry{curriculumEntry(10, "Mathematik I", 1, models.ElectiveGroupNone)}}
	f.service = NewExamRegistrationService(tx, catalog, f.terms, f.registrations, bookings, enrollments, newTestCache(f.cache), f.metrics, nil, nil)
	f.service.now = fixedClock
	return f
}

func TestRegisterClaimsSeat(t *testing.T) {
	f := newRegistrationFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.service.Register(context.Background(), 1, dto.RegisterExamRequest{ModuleBookingID: bookingOne, ExamTermID: 100})
	require.NoError(t, err)
	assert.Equal(t, "reg-1", result.RegistrationID)
	assert.Equal(t, models.RegistrationStatusRegistered, result.Status)
	assert.Contains(t, f.cache.invalidated, "progress:student-1:")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.registrations.WithLabelValues(outcomeOK)))
}

func TestRegisterFullTermFreesSeatOnCancel(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	first, err := f.service.Register(ctx, 1, dto.RegisterExamRequest{ModuleBookingID: bookingOne, ExamTermID: 100})
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.service.Register(ctx, 2, dto.RegisterExamRequest{ModuleBookingID: bookingTwo, ExamTermID: 100})
	appErr := requireAppError(t, err, appErrors.ErrTermFull)
	assert.Equal(t, 1, appErr.Details["capacity"])

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	cancelled, err := f.service.Cancel(ctx, 1, first.RegistrationID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusCancelled, cancelled.Status)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err = f.service.Register(ctx, 2, dto.RegisterExamRequest{ModuleBookingID: bookingTwo, ExamTermID: 100})
	require.NoError(t, err)
}

func TestRegisterRejectsAfterDeadline(t *testing.T) {
	f := newRegistrationFixture(t)
	f.service.now = func() time.Time { return time.Date(2024, time.April, 2, 9, 0, 0, 0, time.UTC) }
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.service.Register(context.Background(), 1, dto.RegisterExamRequest{ModuleBookingID: bookingOne, ExamTermID: 100})
	requireAppError(t, err, appErrors.ErrDeadlinePassed)
}

func TestRegisterRejectsSecondActiveRegistration(t *testing.T) {
	f := newRegistrationFixture(t)
	f.registrations.regs = []models.ExamRegistrationDetail{{
		ExamRegistration: models.ExamRegistration{ID: "reg-0", ModuleBookingID: bookingOne, ExamTermID: 300, Status: models.RegistrationStatusRegistered},
		EnrollmentID:     1,
	}}
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.service.Register(context.Background(), 1, dto.RegisterExamRequest{ModuleBookingID: bookingOne, ExamTermID: 100})
	requireAppError(t, err, appErrors.ErrAlreadyRegistered)
}

func TestRegisterHidesForeignBookings(t *testing.T) {
	f := newRegistrationFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.service.Register(context.Background(), 1, dto.RegisterExamRequest{ModuleBookingID: bookingTwo, ExamTermID: 100})
	requireAppError(t, err, appErrors.ErrBookingNotFound)
}

func TestRegisterRejectsTermOfAnotherModule(t *testing.T) {
	f := newRegistrationFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.service.Register(context.Background(), 1, dto.RegisterExamRequest{ModuleBookingID: bookingOne, ExamTermID: 200})
	requireAppError(t, err, appErrors.ErrExamTermNotFound)
}

func TestRegisterRejectsExhaustedAttempts(t *testing.T) {
	f := newRegistrationFixture(t)
	grade := 5.0
	f.bookings.bookings[0].Status = models.BookingStatusFailed
	f.bookings.bookings[0].Result = &models.ExamResult{ModuleBookingID: bookingOne, Grade: &grade, Attempt: 3, MaxAttempts: 3}
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.service.Register(context.Background(), 1, dto.RegisterExamRequest{ModuleBookingID: bookingOne, ExamTermID: 100})
	requireAppError(t, err, appErrors.ErrAttemptsExhausted)
}

func TestRegisterValidatesPayload(t *testing.T) {
	f := newRegistrationFixture(t)

	_, err := f.service.Register(context.Background(), 1, dto.RegisterExamRequest{ModuleBookingID: "not-a-uuid", ExamTermID: 100})
	requireAppError(t, err, appErrors.ErrValidation)
}

func TestCancelRejectsClosedRegistration(t *testing.T) {
	f := newRegistrationFixture(t)
	f.registrations.regs = []models.ExamRegistrationDetail{{
		ExamRegistration: models.ExamRegistration{ID: "reg-9", ModuleBookingID: bookingOne, ExamTermID: 100, Status: models.RegistrationStatusCompleted},
		EnrollmentID:     1,
	}}
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.service.Cancel(context.Background(), 1, "reg-9")
	appErr := requireAppError(t, err, appErrors.ErrInvalidTransition)
	assert.Equal(t, models.RegistrationStatusCompleted, appErr.Details["from"])
}

func TestCancelHidesOtherEnrollmentsRegistrations(t *testing.T) {
	f := newRegistrationFixture(t)
	f.registrations.regs = []models.ExamRegistrationDetail{{
		ExamRegistration: models.ExamRegistration{ID: "reg-9", ModuleBookingID: bookingTwo, ExamTermID: 100, Status: models.RegistrationStatusRegistered},
		EnrollmentID:     2,
	}}
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.service.Cancel(context.Background(), 1, "reg-9")
	requireAppError(t, err, appErrors.ErrRegistrationNotFound)
}

func TestMarkCompletedClosesRegistration(t *testing.T) {
	f := newRegistrationFixture(t)
	f.registrations.regs = []models.ExamRegistrationDetail{{
		ExamRegistration: models.ExamRegistration{ID: "reg-9", ModuleBookingID: bookingTwo, ExamTermID: 100, Status: models.RegistrationStatusRegistered},
		EnrollmentID:     2,
	}}
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.service.MarkCompleted(context.Background(), "reg-9")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusCompleted, result.Status)
	assert.Contains(t, f.cache.invalidated, "progress:student-2:")
}

func TestFindEligibleTermsReportsRemainingSeats(t *testing.T) {
	f := newRegistrationFixture(t)
	capacity := 10
	f.terms.availability = []models.ExamTermAvailability{
		{ExamTerm: models.ExamTerm{ID: 100, ModuleID: 10, Capacity: &capacity}, RegisteredCount: 3},
		{ExamTerm: models.ExamTerm{ID: 101, ModuleID: 10}, RegisteredCount: 40},
	}

	terms, err := f.service.FindEligibleTerms(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	require.NotNil(t, terms[0].RemainingSeats)
	assert.Equal(t, 7, *terms[0].RemainingSeats)
	assert.Nil(t, terms[1].RemainingSeats)

	_, err = f.service.FindEligibleTerms(context.Background(), 99)
	requireAppError(t, err, appErrors.ErrModuleNotFound)
}

func TestNextExamCountsDaysUntil(t *testing.T) {
	f := newRegistrationFixture(t)
	f.registrations.next = &models.ExamRegistrationDetail{
		ExamRegistration: models.ExamRegistration{ID: "reg-1"},
		ModuleName:       "Mathematik I",
		ExamDate:         time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC),
	}

	next, err := f.service.NextExam(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, 5, next.DaysUntil)

	f.registrations.next = nil
	next, err = f.service.NextExam(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, next)
}
