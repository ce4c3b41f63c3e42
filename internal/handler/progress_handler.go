package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/study-progress-api/internal/dto"
	"github.com/noah-isme/study-progress-api/internal/middleware"
	appErrors "github.com/noah-isme/study-progress-api/pkg/errors"
	"github.com/noah-isme/study-progress-api/pkg/response"
)

type progressService interface {
	Snapshot(ctx context.Context, studentID, lang string) (*dto.ProgressSnapshot, bool, error)
}

// ProgressHandler serves the progress dashboard.
type ProgressHandler struct {
	progress progressService
}

// NewProgressHandler constructs ProgressHandler.
func NewProgressHandler(progress progressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

// Mine godoc
// @Summary Progress snapshot of the own active enrollment
// @Tags Progress
// @Produce json
// @Security BearerAuth
// @Param lang query string false "Language of the texts (de, en)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /me/progress [get]
func (h *ProgressHandler) Mine(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	h.snapshot(c, claims.UserID)
}

// ForStudent godoc
// @Summary Progress snapshot of a student
// @Tags Progress
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param lang query string false "Language of the texts (de, en)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/progress [get]
func (h *ProgressHandler) ForStudent(c *gin.Context) {
	h.snapshot(c, c.Param("id"))
}

func (h *ProgressHandler) snapshot(c *gin.Context, studentID string) {
	lang := c.Query("lang")
	if lang == "" {
		lang = c.GetHeader("Accept-Language")
		if len(lang) > 2 {
			lang = lang[:2]
		}
	}
	snapshot, cacheHit, err := h.progress.Snapshot(c.Request.Context(), studentID, lang)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.OK(c, snapshot, middleware.ExtractMeta(c))
}
