package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/study-progress-api/internal/dto"
	"github.com/noah-isme/study-progress-api/internal/models"
	"github.com/noah-isme/study-progress-api/internal/repository"
	appErrors "github.com/noah-isme/study-progress-api/pkg/errors"
)

type bookingEnrollmentStore interface {
	FindByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error)
	LockByID(ctx context.Context, tx *sqlx.Tx, id int64) (*models.EnrollmentDetail, error)
}

type curriculumReader interface {
	FindProgramModule(ctx context.Context, tx *sqlx.Tx, programID, moduleID int64) (*models.CurriculumEntry, error)
	ListElectives(ctx context.Context, programID int64) ([]models.CurriculumEntry, error)
}

type bookingStore interface {
	FindInElectiveSlot(ctx context.Context, tx *sqlx.Tx, enrollmentID int64, group models.ElectiveGroup, semester int) (*models.BookingDetail, error)
	ExistsInGroup(ctx context.Context, tx *sqlx.Tx, enrollmentID, moduleID int64, group models.ElectiveGroup) (bool, error)
	Exists(ctx context.Context, tx *sqlx.Tx, enrollmentID, moduleID int64) (bool, error)
	Create(ctx context.Context, tx *sqlx.Tx, booking *models.ModuleBooking) error
	ListByEnrollment(ctx context.Context, enrollmentID int64) ([]models.BookingDetail, error)
	ListSemesterModules(ctx context.Context, enrollmentID, programID int64, semester int) ([]repository.SemesterModuleRow, error)
}

// BookingService validates and commits module bookings.
type BookingService struct {
	tx          txProvider
	enrollments bookingEnrollmentStore
	catalog     curriculumReader
	bookings    bookingStore
	progression *ProgressionService
	invalidator *progressInvalidator
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewBookingService constructs BookingService.
func NewBookingService(
	tx txProvider,
	enrollments bookingEnrollmentStore,
	catalog curriculumReader,
	bookings bookingStore,
	progression *ProgressionService,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		tx:          tx,
		enrollments: enrollments,
		catalog:     catalog,
		bookings:    bookings,
		progression: progression,
		invalidator: newProgressInvalidator(cache, enrollments, logger),
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// ListBookableModules lists a semester's curriculum with the enrollment's booking state.
func (s *BookingService) ListBookableModules(ctx context.Context, enrollmentID int64, semester int) ([]dto.BookableModule, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, notFoundOr(err, appErrors.ErrEnrollmentNotFound, "failed to load enrollment")
	}
	if semester < 1 || semester > enrollment.NominalSemesters {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester out of range").
			WithDetails("max_semester", enrollment.NominalSemesters)
	}

	rows, err := s.bookings.ListSemesterModules(ctx, enrollment.ID, enrollment.ProgramID, semester)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list semester modules")
	}

	modules := make([]dto.BookableModule, 0, len(rows))
	for _, row := range rows {
		item := dto.BookableModule{
			ModuleID:        row.ModuleID,
			ModuleName:      row.ModuleName,
			ECTS:            row.ECTS,
			Semester:        row.Semester,
			RequirementKind: row.RequirementKind,
			ElectiveGroup:   row.ElectiveGroup,
			Status:          dto.ModuleStatusOpen,
			Bookable:        !row.BookingID.Valid,
		}
		if row.BookingID.Valid {
			id := row.BookingID.String
			item.BookingID = &id
			item.Status = row.BookingStatus.String
		}
		if row.RegisteredExamDate.Valid {
			date := row.RegisteredExamDate.Time
			item.ExamDate = &date
			item.Status = dto.ModuleStatusRegistered
		}
		if row.Grade.Valid {
			grade := row.Grade.Float64
			item.Grade = &grade
		}
		modules = append(modules, item)
	}
	return modules, nil
}

// BookModule books moduleID for the enrollment. All checks and the insert
// run in one transaction holding the enrollment row lock.
func (s *BookingService) BookModule(ctx context.Context, enrollmentID, moduleID int64) (result *dto.BookingResult, err error) {
	defer func() { s.metrics.RecordBooking(outcomeOf(err)) }()

	if moduleID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "module_id is required")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	enrollment, err := s.enrollments.LockByID(ctx, tx, enrollmentID)
	if err != nil {
		err = notFoundOr(err, appErrors.ErrEnrollmentNotFound, "failed to load enrollment")
		return nil, err
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		err = appErrors.ErrEnrollmentInactive.WithDetails("status", enrollment.Status)
		return nil, err
	}

	entry, err := s.catalog.FindProgramModule(ctx, tx, enrollment.ProgramID, moduleID)
	if err != nil {
		err = notFoundOr(err, appErrors.ErrNotInProgram, "failed to resolve curriculum entry")
		return nil, err
	}

	if err = s.checkElectiveRules(ctx, tx, enrollment.ID, entry); err != nil {
		return nil, err
	}

	current, err := s.progression.currentSemesterTx(ctx, tx, enrollment)
	if err != nil {
		err = appErrors.Internal(err, "failed to compute current semester")
		return nil, err
	}
	if entry.Semester > current {
		err = appErrors.ErrSemesterLocked.
			WithDetails("module_semester", entry.Semester).
			WithDetails("current_semester", current)
		return nil, err
	}
	catchUp := entry.Semester < current-1
	if catchUp {
		s.logger.Info("catch-up booking",
			zap.Int64("enrollment_id", enrollment.ID),
			zap.Int64("module_id", moduleID),
			zap.Int("module_semester", entry.Semester),
			zap.Int("current_semester", current),
		)
	}

	exists, err := s.bookings.Exists(ctx, tx, enrollment.ID, moduleID)
	if err != nil {
		err = appErrors.Internal(err, "failed to check existing booking")
		return nil, err
	}
	if exists {
		err = appErrors.ErrAlreadyBooked
		return nil, err
	}

	booking := &models.ModuleBooking{
		EnrollmentID:  enrollment.ID,
		ModuleID:      moduleID,
		BookedAt:      dateOf(s.now()),
		Status:        models.BookingStatusBooked,
		ElectiveGroup: entry.ElectiveGroup,
		Semester:      entry.Semester,
	}
	if err = s.bookings.Create(ctx, tx, booking); err != nil {
		err = translateStoreError(err, "failed to create booking")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = translateStoreError(err, "failed to commit booking")
		return nil, err
	}

	s.invalidator.student(ctx, enrollment.StudentID)
	return &dto.BookingResult{
		BookingID:       booking.ID,
		ModuleID:        moduleID,
		Semester:        entry.Semester,
		ElectiveGroup:   entry.ElectiveGroup,
		CurrentSemester: current,
		CatchUp:         catchUp,
	}, nil
}

// checkElectiveRules enforces one module per (group, semester) and keeps
// group C distinct from the choice made under group A.
func (s *BookingService) checkElectiveRules(ctx context.Context, tx *sqlx.Tx, enrollmentID int64, entry *models.CurriculumEntry) error {
	if !entry.ElectiveGroup.IsElective() {
		return nil
	}

	taken, err := s.bookings.FindInElectiveSlot(ctx, tx, enrollmentID, entry.ElectiveGroup, entry.Semester)
	if err != nil {
		return appErrors.Internal(err, "failed to check elective slot")
	}
	if taken != nil {
		if taken.ModuleID == entry.ModuleID {
			return appErrors.ErrAlreadyBooked
		}
		return appErrors.ErrElectiveSlotTaken.
			WithDetails("booked_module_id", taken.ModuleID).
			WithDetails("booked_module_name", taken.ModuleName)
	}

	if entry.ElectiveGroup != models.ElectiveGroupC {
		return nil
	}
	inA, err := s.bookings.ExistsInGroup(ctx, tx, enrollmentID, entry.ModuleID, models.ElectiveGroupA)
	if err != nil {
		return appErrors.Internal(err, "failed to check group A booking")
	}
	if inA {
		return appErrors.ErrDuplicateAcrossGroups
	}
	return nil
}

// ElectiveOverview reports, per elective group and semester, the booked
// module and the options still open.
func (s *BookingService) ElectiveOverview(ctx context.Context, enrollmentID int64) (*dto.ElectiveOverview, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, notFoundOr(err, appErrors.ErrEnrollmentNotFound, "failed to load enrollment")
	}
	entries, err := s.catalog.ListElectives(ctx, enrollment.ProgramID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list electives")
	}
	bookings, err := s.bookings.ListByEnrollment(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list bookings")
	}

	type slot struct {
		group    models.ElectiveGroup
		semester int
	}
	booked := make(map[slot]models.BookingDetail)
	bookedModules := make(map[int64]bool, len(bookings))
	for _, b := range bookings {
		bookedModules[b.ModuleID] = true
		if b.ElectiveGroup.IsElective() {
			booked[slot{b.ElectiveGroup, b.Semester}] = b
		}
	}

	overview := &dto.ElectiveOverview{EnrollmentID: enrollment.ID, Groups: []dto.ElectiveGroupStatus{}}
	index := make(map[slot]int)
	for _, entry := range entries {
		key := slot{entry.ElectiveGroup, entry.Semester}
		pos, ok := index[key]
		if !ok {
			status := dto.ElectiveGroupStatus{Group: entry.ElectiveGroup, Semester: entry.Semester, Options: []dto.ElectiveChoice{}}
			if b, found := booked[key]; found {
				choice := dto.ElectiveChoice{ModuleID: b.ModuleID, Name: b.ModuleName, ECTS: b.ECTS, Status: string(b.Status)}
				if b.HasGrade() {
					choice.Grade = b.Result.Grade
				}
				status.Booked = &choice
			}
			overview.Groups = append(overview.Groups, status)
			pos = len(overview.Groups) - 1
			index[key] = pos
		}

		group := &overview.Groups[pos]
		// A module booked anywhere, including under group A, is no longer an option.
		if group.Booked != nil || bookedModules[entry.ModuleID] {
			continue
		}
		group.Options = append(group.Options, dto.ElectiveChoice{ModuleID: entry.ModuleID, Name: entry.ModuleName, ECTS: entry.ECTS})
	}
	return overview, nil
}
