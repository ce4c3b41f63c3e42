package dto

import (
	"time"

	"github.com/noah-isme/study-progress-api/internal/models"
)

// BookModuleRequest is the payload to book a module.
type BookModuleRequest struct {
	ModuleID int64 `json:"module_id" validate:"required,gt=0"`
}

// BookingResult describes a committed booking.
type BookingResult struct {
	BookingID       string               `json:"booking_id"`
	ModuleID        int64                `json:"module_id"`
	Semester        int                  `json:"semester"`
	ElectiveGroup   models.ElectiveGroup `json:"elective_group"`
	CurrentSemester int                  `json:"current_semester"`
	CatchUp         bool                 `json:"catch_up"`
}

// CurrentSemesterResponse reports the completion-derived semester.
type CurrentSemesterResponse struct {
	EnrollmentID     int64 `json:"enrollment_id"`
	CurrentSemester  int   `json:"current_semester"`
	NominalSemesters int   `json:"nominal_semesters"`
}

// Module status values shown in semester listings besides BookingStatus.
const (
	ModuleStatusOpen       = "open"
	ModuleStatusRegistered = "registered"
)

// BookableModule is one curriculum entry of a semester with the student's booking state.
type BookableModule struct {
	ModuleID        int64                  `json:"module_id"`
	ModuleName      string                 `json:"module_name"`
	ECTS            int                    `json:"ects"`
	Semester        int                    `json:"semester"`
	RequirementKind models.RequirementKind `json:"requirement_kind"`
	ElectiveGroup   models.ElectiveGroup   `json:"elective_group"`
	BookingID       *string                `json:"booking_id,omitempty"`
	Status          string                 `json:"status"`
	Grade           *float64               `json:"grade,omitempty"`
	ExamDate        *time.Time             `json:"exam_date,omitempty"`
	Bookable        bool                   `json:"bookable"`
}

// ElectiveChoice is a module option of an elective group.
type ElectiveChoice struct {
	ModuleID int64    `json:"module_id"`
	Name     string   `json:"name"`
	ECTS     int      `json:"ects"`
	Status   string   `json:"status,omitempty"`
	Grade    *float64 `json:"grade,omitempty"`
}

// ElectiveGroupStatus reports the booked choice and remaining options of one group.
type ElectiveGroupStatus struct {
	Group    models.ElectiveGroup `json:"group"`
	Semester int                  `json:"semester"`
	Booked   *ElectiveChoice      `json:"booked,omitempty"`
	Options  []ElectiveChoice     `json:"options"`
}

// ElectiveOverview lists all elective groups of an enrollment's program.
type ElectiveOverview struct {
	EnrollmentID int64                 `json:"enrollment_id"`
	Groups       []ElectiveGroupStatus `json:"groups"`
}
