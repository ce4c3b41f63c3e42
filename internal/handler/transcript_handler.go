package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/study-progress-api/internal/service"
	"github.com/noah-isme/study-progress-api/pkg/response"
)

type transcriptExporter interface {
	Export(ctx context.Context, enrollmentID int64, format string) (*service.TranscriptFile, error)
}

// TranscriptHandler streams transcripts of records.
type TranscriptHandler struct {
	enrollments activeEnrollmentResolver
	transcripts transcriptExporter
}

// NewTranscriptHandler constructs TranscriptHandler.
func NewTranscriptHandler(enrollments activeEnrollmentResolver, transcripts transcriptExporter) *TranscriptHandler {
	return &TranscriptHandler{enrollments: enrollments, transcripts: transcripts}
}

// Mine godoc
// @Summary Download the own transcript of records
// @Tags Transcript
// @Produce application/pdf
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param format query string false "csv, pdf or xlsx" default(pdf)
// @Success 200 {file} file
// @Router /me/transcript [get]
func (h *TranscriptHandler) Mine(c *gin.Context) {
	enrollment, ok := myEnrollment(c, h.enrollments)
	if !ok {
		return
	}
	file, err := h.transcripts.Export(c.Request.Context(), enrollment.ID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}
