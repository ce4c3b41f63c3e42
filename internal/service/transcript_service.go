package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/study-progress-api/internal/models"
	appErrors "github.com/noah-isme/study-progress-api/pkg/errors"
	"github.com/noah-isme/study-progress-api/pkg/export"
)

type transcriptBookings interface {
	ListByEnrollment(ctx context.Context, enrollmentID int64) ([]models.BookingDetail, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// TranscriptFile is a rendered transcript ready for download.
type TranscriptFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

var transcriptHeaders = []string{"Modul", "Semester", "ECTS", "Status", "Note", "Versuch"}

// TranscriptService renders an enrollment's bookings as CSV, PDF or XLSX.
type TranscriptService struct {
	enrollments enrollmentFinder
	bookings    transcriptBookings
	renderers   map[export.Format]datasetRenderer
	logger      *zap.Logger
}

// NewTranscriptService constructs TranscriptService with the default renderers.
func NewTranscriptService(enrollments enrollmentFinder, bookings transcriptBookings, logger *zap.Logger) *TranscriptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscriptService{
		enrollments: enrollments,
		bookings:    bookings,
		renderers: map[export.Format]datasetRenderer{
			export.FormatCSV:  export.NewCSVExporter(),
			export.FormatPDF:  export.NewPDFExporter(),
			export.FormatXLSX: export.NewXLSXExporter(),
		},
		logger: logger,
	}
}

// Export renders the transcript in the requested format (pdf when empty).
func (s *TranscriptService) Export(ctx context.Context, enrollmentID int64, format string) (*TranscriptFile, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv, pdf or xlsx")
	}
	renderer, ok := s.renderers[f]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format not supported")
	}

	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, notFoundOr(err, appErrors.ErrEnrollmentNotFound, "failed to load enrollment")
	}
	bookings, err := s.bookings.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list bookings")
	}

	payload, err := renderer.Render(transcriptDataset(enrollment, bookings))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render transcript")
	}
	s.logger.Debug("transcript rendered", zap.Int64("enrollment_id", enrollmentID), zap.String("format", string(f)), zap.Int("bytes", len(payload)))

	return &TranscriptFile{
		Filename:    fmt.Sprintf("transcript-%d.%s", enrollmentID, f),
		ContentType: f.ContentType(),
		Payload:     payload,
	}, nil
}

func transcriptDataset(enrollment *models.EnrollmentDetail, bookings []models.BookingDetail) export.Dataset {
	rows := make([]map[string]string, 0, len(bookings))
	earned := 0
	var gradeSum float64
	graded := 0
	for _, b := range bookings {
		grade, attempt := "", ""
		if b.Result != nil {
			attempt = strconv.Itoa(b.Result.Attempt)
		}
		if b.HasGrade() {
			grade = strconv.FormatFloat(*b.Result.Grade, 'f', 1, 64)
		}
		if b.Status.Completed() {
			earned += b.ECTS
		}
		if b.Status == models.BookingStatusPassed && b.HasGrade() {
			gradeSum += *b.Result.Grade
			graded++
		}
		rows = append(rows, map[string]string{
			"Modul":    b.ModuleName,
			"Semester": strconv.Itoa(b.Semester),
			"ECTS":     strconv.Itoa(b.ECTS),
			"Status":   string(b.Status),
			"Note":     grade,
			"Versuch":  attempt,
		})
	}

	average := "-"
	if graded > 0 {
		average = strconv.FormatFloat(gradeSum/float64(graded), 'f', 2, 64)
	}
	return export.Dataset{
		Title: "Transcript of Records",
		Summary: []export.SummaryLine{
			{Label: "Student", Value: enrollment.StudentID},
			{Label: "Studiengang", Value: enrollment.ProgramName + " (" + enrollment.Degree + ")"},
			{Label: "ECTS erreicht", Value: strconv.Itoa(earned)},
			{Label: "Durchschnittsnote", Value: average},
		},
		Headers: transcriptHeaders,
		Rows:    rows,
	}
}
