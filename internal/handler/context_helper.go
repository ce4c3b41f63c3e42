package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/study-progress-api/internal/middleware"
	"github.com/noah-isme/study-progress-api/internal/models"
	appErrors "github.com/noah-isme/study-progress-api/pkg/errors"
	"github.com/noah-isme/study-progress-api/pkg/response"
)

type activeEnrollmentResolver interface {
	GetActiveByStudent(ctx context.Context, studentID string) (*models.EnrollmentDetail, error)
}

// myEnrollment resolves the active enrollment of the token subject. It writes
// the error response itself and reports false when the handler must stop.
func myEnrollment(c *gin.Context, enrollments activeEnrollmentResolver) (*models.EnrollmentDetail, bool) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	enrollment, err := enrollments.GetActiveByStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return enrollment, true
}

// idParam parses a positive integer path parameter.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, name+" must be a positive integer"))
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return false
	}
	return true
}
