package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/study-progress-api/internal/middleware"
	"github.com/noah-isme/study-progress-api/internal/models"
	appErrors "github.com/noah-isme/study-progress-api/pkg/errors"
	"github.com/noah-isme/study-progress-api/pkg/response"
)

type enrollmentService interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	Get(ctx context.Context, id int64) (*models.EnrollmentDetail, error)
	Pause(ctx context.Context, id int64) (*models.EnrollmentDetail, error)
	Resume(ctx context.Context, id int64) (*models.EnrollmentDetail, error)
	Withdraw(ctx context.Context, id int64) (*models.EnrollmentDetail, error)
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Mine godoc
// @Summary List own enrollments
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /me/enrollments [get]
func (h *EnrollmentHandler) Mine(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	enrollments, err := h.enrollments.ListByStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollments)
}

// Get godoc
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	enrollment, err := h.enrollments.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

// Pause godoc
// @Summary Pause enrollment
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/pause [post]
func (h *EnrollmentHandler) Pause(c *gin.Context) {
	h.transition(c, h.enrollments.Pause)
}

// Resume godoc
// @Summary Resume enrollment
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/resume [post]
func (h *EnrollmentHandler) Resume(c *gin.Context) {
	h.transition(c, h.enrollments.Resume)
}

// Withdraw godoc
// @Summary Withdraw enrollment
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/withdraw [post]
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	h.transition(c, h.enrollments.Withdraw)
}

func (h *EnrollmentHandler) transition(c *gin.Context, apply func(context.Context, int64) (*models.EnrollmentDetail, error)) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	enrollment, err := apply(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}
