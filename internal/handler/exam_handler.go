package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/study-progress-api/internal/dto"
	"github.com/noah-isme/study-progress-api/internal/models"
	"github.com/noah-isme/study-progress-api/pkg/response"
)

type examRegistrationService interface {
	FindEligibleTerms(ctx context.Context, moduleID int64) ([]dto.EligibleExamTerm, error)
	Register(ctx context.Context, enrollmentID int64, req dto.RegisterExamRequest) (*dto.RegistrationResult, error)
	Cancel(ctx context.Context, enrollmentID int64, registrationID string) (*dto.RegistrationResult, error)
	MarkCompleted(ctx context.Context, registrationID string) (*dto.RegistrationResult, error)
	ListRegistrations(ctx context.Context, enrollmentID int64) ([]models.ExamRegistrationDetail, error)
}

type examResultService interface {
	RecordResult(ctx context.Context, bookingID string, req dto.RecordResultRequest) (*dto.ExamResultResponse, error)
	Recognize(ctx context.Context, bookingID string) (*dto.ExamResultResponse, error)
}

// ExamHandler exposes exam terms, registrations and results.
type ExamHandler struct {
	enrollments   activeEnrollmentResolver
	registrations examRegistrationService
	results       examResultService
}

// NewExamHandler constructs ExamHandler.
func NewExamHandler(enrollments activeEnrollmentResolver, registrations examRegistrationService, results examResultService) *ExamHandler {
	return &ExamHandler{enrollments: enrollments, registrations: registrations, results: results}
}

// EligibleTerms godoc
// @Summary Upcoming exam terms of a module with free seats
// @Tags Exams
// @Produce json
// @Security BearerAuth
// @Param id path int true "Module ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /modules/{id}/exam-terms [get]
func (h *ExamHandler) EligibleTerms(c *gin.Context) {
	moduleID, ok := idParam(c, "id")
	if !ok {
		return
	}
	terms, err := h.registrations.FindEligibleTerms(c.Request.Context(), moduleID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, terms)
}

// MyRegistrations godoc
// @Summary List own exam registrations
// @Tags Exams
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /me/exam-registrations [get]
func (h *ExamHandler) MyRegistrations(c *gin.Context) {
	enrollment, ok := myEnrollment(c, h.enrollments)
	if !ok {
		return
	}
	registrations, err := h.registrations.ListRegistrations(c.Request.Context(), enrollment.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, registrations)
}

// Register godoc
// @Summary Register a booked module for an exam term
// @Tags Exams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.RegisterExamRequest true "Registration"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /me/exam-registrations [post]
func (h *ExamHandler) Register(c *gin.Context) {
	enrollment, ok := myEnrollment(c, h.enrollments)
	if !ok {
		return
	}
	var req dto.RegisterExamRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.registrations.Register(c.Request.Context(), enrollment.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Cancel godoc
// @Summary Cancel an own exam registration
// @Tags Exams
// @Produce json
// @Security BearerAuth
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /me/exam-registrations/{id}/cancel [post]
func (h *ExamHandler) Cancel(c *gin.Context) {
	enrollment, ok := myEnrollment(c, h.enrollments)
	if !ok {
		return
	}
	result, err := h.registrations.Cancel(c.Request.Context(), enrollment.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Complete godoc
// @Summary Mark an exam registration completed
// @Tags Exams
// @Produce json
// @Security BearerAuth
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /exam-registrations/{id}/complete [post]
func (h *ExamHandler) Complete(c *gin.Context) {
	result, err := h.registrations.MarkCompleted(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// RecordResult godoc
// @Summary Record a graded exam attempt
// @Tags Exams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Param payload body dto.RecordResultRequest true "Result"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/result [post]
func (h *ExamHandler) RecordResult(c *gin.Context) {
	var req dto.RecordResultRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.results.RecordResult(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Recognize godoc
// @Summary Recognize a module from prior learning
// @Tags Exams
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/recognize [post]
func (h *ExamHandler) Recognize(c *gin.Context) {
	result, err := h.results.Recognize(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
