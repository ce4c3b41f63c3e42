package dto

// Grade tiers of the progress snapshot.
const (
	GradeTierFast    = "fast"
	GradeTierMedium  = "medium"
	GradeTierSlow    = "slow"
	GradeTierUnknown = "unknown"
)

// Schedule bands.
const (
	TimeAhead  = "plus"
	TimeBehind = "minus"
)

// Fee states.
const (
	FeeZero = "zero"
	FeeOpen = "open"
)

// Overall status values.
const (
	StatusExcellent = "excellent"
	StatusGood      = "good"
	StatusOkay      = "okay"
	StatusCritical  = "critical"
)

// ProgressTexts carries localized sentences describing the snapshot.
type ProgressTexts struct {
	Grade string `json:"grade"`
	Time  string `json:"time"`
	Fee   string `json:"fee"`
}

// ProgressSnapshot is the read model composed for the student dashboard.
type ProgressSnapshot struct {
	EnrollmentID      int64         `json:"enrollment_id"`
	StudentID         string        `json:"student_id"`
	ProgramName       string        `json:"program_name"`
	TimeModel         string        `json:"time_model"`
	NominalSemesters  int           `json:"nominal_semesters"`
	AverageGrade      *float64      `json:"average_grade"`
	PassedCount       int           `json:"passed_count"`
	BookedCount       int           `json:"booked_count"`
	TotalModules      int           `json:"total_modules"`
	CompletionPercent float64       `json:"completion_percent"`
	OpenFees          float64       `json:"open_fees"`
	OpenFeesFormatted string        `json:"open_fees_formatted"`
	ProgressSemester  float64       `json:"progress_semester"`
	CurrentSemester   int           `json:"current_semester"`
	ExpectedSemester  int           `json:"expected_semester"`
	DaysDeviation     int           `json:"days_deviation"`
	OnSchedule        bool          `json:"on_schedule"`
	GradeCategory     string        `json:"grade_category"`
	TimeCategory      string        `json:"time_category"`
	FeeCategory       string        `json:"fee_category"`
	StatusCategory    string        `json:"status_category"`
	Texts             ProgressTexts `json:"texts"`
	NextExam          *NextExam     `json:"next_exam,omitempty"`
}
