package models

// RequirementKind classifies how a module counts toward the curriculum.
type RequirementKind string

const (
	RequirementMandatory          RequirementKind = "mandatory"
	RequirementRestrictedElective RequirementKind = "restricted_elective"
	RequirementFreeElective       RequirementKind = "free_elective"
)

// ElectiveGroup names a per-semester slot from which exactly one module is chosen.
type ElectiveGroup string

const (
	ElectiveGroupNone ElectiveGroup = "none"
	ElectiveGroupA    ElectiveGroup = "A"
	ElectiveGroupB    ElectiveGroup = "B"
	ElectiveGroupC    ElectiveGroup = "C"
)

// IsElective reports whether the group constrains the semester to one booking.
func (g ElectiveGroup) IsElective() bool {
	return g != "" && g != ElectiveGroupNone
}

// Program is an immutable study program.
type Program struct {
	ID               int64  `db:"id" json:"id"`
	Name             string `db:"name" json:"name"`
	Degree           string `db:"degree" json:"degree"`
	NominalSemesters int    `db:"nominal_semesters" json:"nominal_semesters"`
}

// Module is a course that may appear in several programs.
type Module struct {
	ID          int64   `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	ECTS        int     `db:"ects" json:"ects"`
	Description *string `db:"description" json:"description,omitempty"`
}

// ProgramModule assigns a module to a semester and elective group of a program.
type ProgramModule struct {
	ProgramID       int64           `db:"program_id" json:"program_id"`
	ModuleID        int64           `db:"module_id" json:"module_id"`
	Semester        int             `db:"semester" json:"semester"`
	RequirementKind RequirementKind `db:"requirement_kind" json:"requirement_kind"`
	ElectiveGroup   ElectiveGroup   `db:"elective_group" json:"elective_group"`
}

// CurriculumEntry joins a ProgramModule with its module data.
type CurriculumEntry struct {
	ProgramModule
	ModuleName string `db:"module_name" json:"module_name"`
	ECTS       int    `db:"ects" json:"ects"`
}

// TimeModel describes full- or part-time study and its monthly rate.
type TimeModel struct {
	ID         int64   `db:"id" json:"id"`
	Name       string  `db:"name" json:"name"`
	MonthlyFee float64 `db:"monthly_fee" json:"monthly_fee"`
}
