package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/study-progress-api/internal/dto"
	"github.com/noah-isme/study-progress-api/internal/models"
	appErrors "github.com/noah-isme/study-progress-api/pkg/errors"
	"github.com/noah-isme/study-progress-api/pkg/response"
)

type bookingService interface {
	ListBookableModules(ctx context.Context, enrollmentID int64, semester int) ([]dto.BookableModule, error)
	BookModule(ctx context.Context, enrollmentID, moduleID int64) (*dto.BookingResult, error)
	ElectiveOverview(ctx context.Context, enrollmentID int64) (*dto.ElectiveOverview, error)
}

type semesterCalculator interface {
	CurrentSemesterFor(ctx context.Context, enrollment *models.EnrollmentDetail) int
}

type enrollmentLookup interface {
	activeEnrollmentResolver
	Get(ctx context.Context, id int64) (*models.EnrollmentDetail, error)
}

// BookingHandler exposes semester, module listing and booking endpoints.
type BookingHandler struct {
	enrollments enrollmentLookup
	bookings    bookingService
	progression semesterCalculator
}

// NewBookingHandler constructs BookingHandler.
func NewBookingHandler(enrollments enrollmentLookup, bookings bookingService, progression semesterCalculator) *BookingHandler {
	return &BookingHandler{enrollments: enrollments, bookings: bookings, progression: progression}
}

// MySemester godoc
// @Summary Current semester of the own active enrollment
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /me/semester [get]
func (h *BookingHandler) MySemester(c *gin.Context) {
	enrollment, ok := myEnrollment(c, h.enrollments)
	if !ok {
		return
	}
	response.OK(c, h.semester(c, enrollment))
}

// Semester godoc
// @Summary Current semester of an enrollment
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/semester [get]
func (h *BookingHandler) Semester(c *gin.Context) {
	enrollment, ok := h.enrollmentByID(c)
	if !ok {
		return
	}
	response.OK(c, h.semester(c, enrollment))
}

func (h *BookingHandler) semester(c *gin.Context, enrollment *models.EnrollmentDetail) dto.CurrentSemesterResponse {
	return dto.CurrentSemesterResponse{
		EnrollmentID:     enrollment.ID,
		CurrentSemester:  h.progression.CurrentSemesterFor(c.Request.Context(), enrollment),
		NominalSemesters: enrollment.NominalSemesters,
	}
}

// MyModules godoc
// @Summary List the modules of a semester with booking state
// @Description Defaults to the current semester when semester is omitted.
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param semester query int false "Semester"
// @Success 200 {object} response.Envelope
// @Router /me/modules [get]
func (h *BookingHandler) MyModules(c *gin.Context) {
	enrollment, ok := myEnrollment(c, h.enrollments)
	if !ok {
		return
	}
	h.listModules(c, enrollment)
}

// Modules godoc
// @Summary List the modules of a semester for an enrollment
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Enrollment ID"
// @Param semester query int false "Semester"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/modules [get]
func (h *BookingHandler) Modules(c *gin.Context) {
	enrollment, ok := h.enrollmentByID(c)
	if !ok {
		return
	}
	h.listModules(c, enrollment)
}

func (h *BookingHandler) listModules(c *gin.Context, enrollment *models.EnrollmentDetail) {
	var semester int
	if raw := c.Query("semester"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "semester must be an integer"))
			return
		}
		semester = parsed
	} else {
		semester = h.progression.CurrentSemesterFor(c.Request.Context(), enrollment)
	}

	modules, err := h.bookings.ListBookableModules(c.Request.Context(), enrollment.ID, semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, modules, map[string]interface{}{"semester": semester})
}

// MyElectives godoc
// @Summary Elective group overview of the own active enrollment
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /me/electives [get]
func (h *BookingHandler) MyElectives(c *gin.Context) {
	enrollment, ok := myEnrollment(c, h.enrollments)
	if !ok {
		return
	}
	overview, err := h.bookings.ElectiveOverview(c.Request.Context(), enrollment.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, overview)
}

// BookMine godoc
// @Summary Book a module for the own active enrollment
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.BookModuleRequest true "Module to book"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /me/bookings [post]
func (h *BookingHandler) BookMine(c *gin.Context) {
	enrollment, ok := myEnrollment(c, h.enrollments)
	if !ok {
		return
	}
	h.book(c, enrollment.ID)
}

// Book godoc
// @Summary Book a module on behalf of an enrollment
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Enrollment ID"
// @Param payload body dto.BookModuleRequest true "Module to book"
// @Success 201 {object} response.Envelope
// @Router /enrollments/{id}/bookings [post]
func (h *BookingHandler) Book(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	h.book(c, id)
}

func (h *BookingHandler) book(c *gin.Context, enrollmentID int64) {
	var req dto.BookModuleRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.bookings.BookModule(c.Request.Context(), enrollmentID, req.ModuleID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

func (h *BookingHandler) enrollmentByID(c *gin.Context) (*models.EnrollmentDetail, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}
	enrollment, err := h.enrollments.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return enrollment, true
}
