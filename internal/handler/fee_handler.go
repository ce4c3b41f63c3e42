package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/study-progress-api/internal/dto"
	"github.com/noah-isme/study-progress-api/internal/models"
	"github.com/noah-isme/study-progress-api/pkg/response"
)

type feeService interface {
	List(ctx context.Context, enrollmentID int64) (*dto.FeeOverview, error)
	MarkPaid(ctx context.Context, id string) (*models.Fee, error)
	GenerateMonthlyFees(ctx context.Context, req dto.GenerateFeesRequest) (*dto.GenerateFeesResult, error)
}

// FeeHandler exposes fee balances and billing operations.
type FeeHandler struct {
	enrollments activeEnrollmentResolver
	fees        feeService
}

// NewFeeHandler constructs FeeHandler.
func NewFeeHandler(enrollments activeEnrollmentResolver, fees feeService) *FeeHandler {
	return &FeeHandler{enrollments: enrollments, fees: fees}
}

// Mine godoc
// @Summary Fees of the own active enrollment
// @Tags Fees
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /me/fees [get]
func (h *FeeHandler) Mine(c *gin.Context) {
	enrollment, ok := myEnrollment(c, h.enrollments)
	if !ok {
		return
	}
	overview, err := h.fees.List(c.Request.Context(), enrollment.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, overview)
}

// Pay godoc
// @Summary Mark a fee as paid
// @Tags Fees
// @Produce json
// @Security BearerAuth
// @Param id path string true "Fee ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fees/{id}/pay [post]
func (h *FeeHandler) Pay(c *gin.Context) {
	fee, err := h.fees.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, fee)
}

// Generate godoc
// @Summary Generate the monthly fees of a month
// @Tags Fees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.GenerateFeesRequest true "Month (YYYY-MM)"
// @Success 200 {object} response.Envelope
// @Router /fees/generate [post]
func (h *FeeHandler) Generate(c *gin.Context) {
	var req dto.GenerateFeesRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.fees.GenerateMonthlyFees(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
