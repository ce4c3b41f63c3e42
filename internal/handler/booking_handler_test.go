package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/study-progress-api/internal/dto"
	"github.com/noah-isme/study-progress-api/internal/models"
	appErrors "github.com/noah-isme/study-progress-api/pkg/errors"
)

type fakeBookingService struct {
	modules      []dto.BookableModule
	listedFor    int64
	listedSem    int
	booked       *dto.BookingResult
	bookErr      error
	bookedModule int64
	bookedFor    int64
}

func (f *fakeBookingService) ListBookableModules(_ context.Context, enrollmentID int64, semester int) ([]dto.BookableModule, error) {
	f.listedFor = enrollmentID
	f.listedSem = semester
	return f.modules, nil
}

func (f *fakeBookingService) BookModule(_ context.Context, enrollmentID, moduleID int64) (*dto.BookingResult, error) {
	f.bookedFor = enrollmentID
	f.bookedModule = moduleID
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return f.booked, nil
}

func (f *fakeBookingService) ElectiveOverview(_ context.Context, enrollmentID int64) (*dto.ElectiveOverview, error) {
	return &dto.ElectiveOverview{EnrollmentID: enrollmentID}, nil
}

type fixedSemester int

func (s fixedSemester) CurrentSemesterFor(context.Context, *models.EnrollmentDetail) int {
	return int(s)
}

func TestBookingHandlerMySemester(t *testing.T) {
	handler := NewBookingHandler(activeResolver(), &fakeBookingService{}, fixedSemester(3))
	c, rec := newGinContext(http.MethodGet, "/me/semester", nil, studentClaims())

	handler.MySemester(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var body dto.CurrentSemesterResponse
	decodeData(t, rec, &body)
	assert.Equal(t, int64(7), body.EnrollmentID)
	assert.Equal(t, 3, body.CurrentSemester)
	assert.Equal(t, 6, body.NominalSemesters)
}

func TestBookingHandlerModulesDefaultsToCurrentSemester(t *testing.T) {
	bookings := &fakeBookingService{modules: []dto.BookableModule{{ModuleID: 11, ModuleName: "Mathematik I", Status: "open"}}}
	handler := NewBookingHandler(activeResolver(), bookings, fixedSemester(2))
	c, rec := newGinContext(http.MethodGet, "/me/modules", nil, studentClaims())

	handler.MyModules(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, bookings.listedSem)
	assert.Equal(t, int64(7), bookings.listedFor)
	env := decodeEnvelope(t, rec)
	assert.EqualValues(t, 2, env.Meta["semester"])
}

func TestBookingHandlerModulesExplicitSemester(t *testing.T) {
	bookings := &fakeBookingService{}
	handler := NewBookingHandler(activeResolver(), bookings, fixedSemester(2))
	c, rec := newGinContext(http.MethodGet, "/enrollments/7/modules?semester=5", nil, nil)
	c.AddParam("id", "7")

	handler.Modules(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, bookings.listedSem)
}

func TestBookingHandlerModulesRejectsBadSemester(t *testing.T) {
	handler := NewBookingHandler(activeResolver(), &fakeBookingService{}, fixedSemester(2))
	c, rec := newGinContext(http.MethodGet, "/me/modules?semester=two", nil, studentClaims())

	handler.MyModules(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingHandlerBookMine(t *testing.T) {
	bookings := &fakeBookingService{booked: &dto.BookingResult{BookingID: "b-1", ModuleID: 11, Semester: 1}}
	handler := NewBookingHandler(activeResolver(), bookings, fixedSemester(1))
	c, rec := newGinContext(http.MethodPost, "/me/bookings", dto.BookModuleRequest{ModuleID: 11}, studentClaims())

	handler.BookMine(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(7), bookings.bookedFor)
	assert.Equal(t, int64(11), bookings.bookedModule)
	var body dto.BookingResult
	decodeData(t, rec, &body)
	assert.Equal(t, "b-1", body.BookingID)
}

func TestBookingHandlerBookRejection(t *testing.T) {
	bookings := &fakeBookingService{bookErr: appErrors.ErrElectiveSlotTaken.WithDetails("elective_group", "A")}
	handler := NewBookingHandler(activeResolver(), bookings, fixedSemester(1))
	c, rec := newGinContext(http.MethodPost, "/enrollments/7/bookings", dto.BookModuleRequest{ModuleID: 12}, nil)
	c.AddParam("id", "7")

	handler.Book(c)

	require.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ELECTIVE_SLOT_TAKEN", env.Error.Code)
	assert.Equal(t, "A", env.Error.Details["elective_group"])
}

func TestBookingHandlerBookRejectsMalformedBody(t *testing.T) {
	handler := NewBookingHandler(activeResolver(), &fakeBookingService{}, fixedSemester(1))
	c, rec := newGinContext(http.MethodPost, "/me/bookings", "not-an-object", studentClaims())

	handler.BookMine(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingHandlerSemesterUnknownEnrollment(t *testing.T) {
	handler := NewBookingHandler(activeResolver(), &fakeBookingService{}, fixedSemester(1))
	c, rec := newGinContext(http.MethodGet, "/enrollments/99/semester", nil, nil)
	c.AddParam("id", "99")

	handler.Semester(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
