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

const bookingID = "0d7c2b0e-4b9f-4f3a-9a53-3c1b8f0c2d10"

type fakeRegistrationService struct {
	registerErr  error
	registered   dto.RegisterExamRequest
	registeredBy int64
	cancelledBy  int64
	cancelled    string
	completed    string
	termsFor     int64
}

func (f *fakeRegistrationService) FindEligibleTerms(_ context.Context, moduleID int64) ([]dto.EligibleExamTerm, error) {
	f.termsFor = moduleID
	seats := 3
	return []dto.EligibleExamTerm{{ExamTerm: models.ExamTerm{ID: 100, ModuleID: moduleID}, RegisteredCount: 1, RemainingSeats: &seats}}, nil
}

func (f *fakeRegistrationService) Register(_ context.Context, enrollmentID int64, req dto.RegisterExamRequest) (*dto.RegistrationResult, error) {
	f.registeredBy = enrollmentID
	f.registered = req
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &dto.RegistrationResult{RegistrationID: "reg-1", Status: models.RegistrationStatusRegistered}, nil
}

func (f *fakeRegistrationService) Cancel(_ context.Context, enrollmentID int64, registrationID string) (*dto.RegistrationResult, error) {
	f.cancelledBy = enrollmentID
	f.cancelled = registrationID
	return &dto.RegistrationResult{RegistrationID: registrationID, Status: models.RegistrationStatusCancelled}, nil
}

func (f *fakeRegistrationService) MarkCompleted(_ context.Context, registrationID string) (*dto.RegistrationResult, error) {
	f.completed = registrationID
	return &dto.RegistrationResult{RegistrationID: registrationID, Status: models.RegistrationStatusCompleted}, nil
}

func (f *fakeRegistrationService) ListRegistrations(context.Context, int64) ([]models.ExamRegistrationDetail, error) {
	return nil, nil
}

type fakeResultService struct {
	recorded   dto.RecordResultRequest
	recognized string
}

func (f *fakeResultService) RecordResult(_ context.Context, id string, req dto.RecordResultRequest) (*dto.ExamResultResponse, error) {
	f.recorded = req
	return &dto.ExamResultResponse{BookingID: id, Status: models.BookingStatusPassed, Attempt: 1, MaxAttempts: 3}, nil
}

func (f *fakeResultService) Recognize(_ context.Context, id string) (*dto.ExamResultResponse, error) {
	f.recognized = id
	return &dto.ExamResultResponse{BookingID: id, Status: models.BookingStatusRecognized}, nil
}

func TestExamHandlerEligibleTerms(t *testing.T) {
	registrations := &fakeRegistrationService{}
	handler := NewExamHandler(activeResolver(), registrations, &fakeResultService{})
	c, rec := newGinContext(http.MethodGet, "/modules/11/exam-terms", nil, studentClaims())
	c.AddParam("id", "11")

	handler.EligibleTerms(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(11), registrations.termsFor)
	var terms []dto.EligibleExamTerm
	decodeData(t, rec, &terms)
	require.Len(t, terms, 1)
	require.NotNil(t, terms[0].RemainingSeats)
	assert.Equal(t, 3, *terms[0].RemainingSeats)
}

func TestExamHandlerRegister(t *testing.T) {
	registrations := &fakeRegistrationService{}
	handler := NewExamHandler(activeResolver(), registrations, &fakeResultService{})
	req := dto.RegisterExamRequest{ModuleBookingID: bookingID, ExamTermID: 100}
	c, rec := newGinContext(http.MethodPost, "/me/exam-registrations", req, studentClaims())

	handler.Register(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(7), registrations.registeredBy)
	assert.Equal(t, req, registrations.registered)
}

func TestExamHandlerRegisterTermFull(t *testing.T) {
	registrations := &fakeRegistrationService{registerErr: appErrors.ErrTermFull}
	handler := NewExamHandler(activeResolver(), registrations, &fakeResultService{})
	req := dto.RegisterExamRequest{ModuleBookingID: bookingID, ExamTermID: 100}
	c, rec := newGinContext(http.MethodPost, "/me/exam-registrations", req, studentClaims())

	handler.Register(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "TERM_FULL", decodeEnvelope(t, rec).Error.Code)
}

func TestExamHandlerCancelScopesToOwnEnrollment(t *testing.T) {
	registrations := &fakeRegistrationService{}
	handler := NewExamHandler(activeResolver(), registrations, &fakeResultService{})
	c, rec := newGinContext(http.MethodPost, "/me/exam-registrations/reg-9/cancel", nil, studentClaims())
	c.AddParam("id", "reg-9")

	handler.Cancel(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), registrations.cancelledBy)
	assert.Equal(t, "reg-9", registrations.cancelled)
}

func TestExamHandlerComplete(t *testing.T) {
	registrations := &fakeRegistrationService{}
	handler := NewExamHandler(activeResolver(), registrations, &fakeResultService{})
	c, rec := newGinContext(http.MethodPost, "/exam-registrations/reg-9/complete", nil, nil)
	c.AddParam("id", "reg-9")

	handler.Complete(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reg-9", registrations.completed)
}

func TestExamHandlerRecordResult(t *testing.T) {
	results := &fakeResultService{}
	handler := NewExamHandler(activeResolver(), &fakeRegistrationService{}, results)
	c, rec := newGinContext(http.MethodPost, "/bookings/"+bookingID+"/result", dto.RecordResultRequest{Grade: 1.7}, nil)
	c.AddParam("id", bookingID)

	handler.RecordResult(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.7, results.recorded.Grade)
	var body dto.ExamResultResponse
	decodeData(t, rec, &body)
	assert.Equal(t, models.BookingStatusPassed, body.Status)
}

func TestExamHandlerRecognize(t *testing.T) {
	results := &fakeResultService{}
	handler := NewExamHandler(activeResolver(), &fakeRegistrationService{}, results)
	c, rec := newGinContext(http.MethodPost, "/bookings/"+bookingID+"/recognize", nil, nil)
	c.AddParam("id", bookingID)

	handler.Recognize(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, bookingID, results.recognized)
}
