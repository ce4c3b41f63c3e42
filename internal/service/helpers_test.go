package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/study-progress-api/internal/models"
	"github.com/noah-isme/study-progress-api/internal/repository"
	appErrors "github.com/noah-isme/study-progress-api/pkg/errors"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

var fixedNow = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func activeEnrollment(id int64, studentID string) models.EnrollmentDetail {
	return models.EnrollmentDetail{
		Enrollment: models.Enrollment{
			ID:          id,
			StudentID:   studentID,
			ProgramID:   1,
			TimeModelID: 1,
			StartDate:   time.Date(2023, time.October, 1, 0, 0, 0, 0, time.UTC),
			Status:      models.EnrollmentStatusActive,
		},
		ProgramName:      "Informatik",
		Degree:           "B.Sc.",
		NominalSemesters: 6,
		TimeModelName:    "Vollzeit",
	}
}

type fakeEnrollmentStore struct {
	mu          sync.Mutex
	enrollments map[int64]models.EnrollmentDetail
	otherActive int
	updates     []models.EnrollmentStatus
}

func newFakeEnrollmentStore(enrollments ...models.EnrollmentDetail) *fakeEnrollmentStore {
	store := &fakeEnrollmentStore{enrollments: make(map[int64]models.EnrollmentDetail)}
	for _, e := range enrollments {
		store.enrollments[e.ID] = e
	}
	return store
}

func (f *fakeEnrollmentStore) FindByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[id]
	if !ok {
		return nil, fmt.Errorf("find enrollment: %w", sql.ErrNoRows)
	}
	return &e, nil
}

func (f *fakeEnrollmentStore) LockByID(ctx context.Context, tx *sqlx.Tx, id int64) (*models.EnrollmentDetail, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeEnrollmentStore) FindActiveByStudent(ctx context.Context, studentID string) (*models.EnrollmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.enrollments {
		if e.StudentID == studentID && e.Status == models.EnrollmentStatusActive {
			found := e
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentStore) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EnrollmentDetail
	for _, e := range f.enrollments {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEnrollmentStore) CountOtherActive(ctx context.Context, tx *sqlx.Tx, studentID string, excludeID int64) (int, error) {
	return f.otherActive, nil
}

func (f *fakeEnrollmentStore) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id int64, status models.EnrollmentStatus, withdrawnAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.enrollments[id]
	e.Status = status
	e.WithdrawnAt = withdrawnAt
	f.enrollments[id] = e
	f.updates = append(f.updates, status)
	return nil
}

type fakeCatalog struct {
	entries []models.CurriculumEntry
}

func (f *fakeCatalog) FindProgramModule(ctx context.Context, tx *sqlx.Tx, programID, moduleID int64) (*models.CurriculumEntry, error) {
	for _, entry := range f.entries {
		if entry.ProgramID == programID && entry.ModuleID == moduleID {
			found := entry
			return &found, nil
		}
	}
	return nil, fmt.Errorf("find program module: %w", sql.ErrNoRows)
}

func (f *fakeCatalog) ListElectives(ctx context.Context, programID int64) ([]models.CurriculumEntry, error) {
	var out []models.CurriculumEntry
	for _, entry := range f.entries {
		if entry.ProgramID == programID && entry.ElectiveGroup.IsElective() {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeCatalog) FindModule(ctx context.Context, id int64) (*models.Module, error) {
	for _, entry := range f.entries {
		if entry.ModuleID == id {
			return &models.Module{ID: id, Name: entry.ModuleName, ECTS: entry.ECTS}, nil
		}
	}
	return nil, sql.ErrNoRows
}

func curriculumEntry(moduleID int64, name string, semester int, group models.ElectiveGroup) models.CurriculumEntry {
	kind := models.RequirementMandatory
	if group.IsElective() {
		kind = models.RequirementRestrictedElective
	}
	return models.CurriculumEntry{
		ProgramModule: models.ProgramModule{
			ProgramID:       1,
			ModuleID:        moduleID,
			Semester:        semester,
			RequirementKind: kind,
			ElectiveGroup:   group,
		},
		ModuleName: name,
		ECTS:       5,
	}
}

type fakeBookingStore struct {
	mu           sync.Mutex
	bookings     []models.BookingDetail
	semesterRows []repository.SemesterModuleRow
	createErr    error
	nextID       int
	results      map[string]*models.ExamResult
}

func (f *fakeBookingStore) find(id string) (int, bool) {
	for i, b := range f.bookings {
		if b.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (f *fakeBookingStore) FindInElectiveSlot(ctx context.Context, tx *sqlx.Tx, enrollmentID int64, group models.ElectiveGroup, semester int) (*models.BookingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.EnrollmentID == enrollmentID && b.ElectiveGroup == group && b.Semester == semester {
			found := b
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeBookingStore) ExistsInGroup(ctx context.Context, tx *sqlx.Tx, enrollmentID, moduleID int64, group models.ElectiveGroup) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.EnrollmentID == enrollmentID && b.ModuleID == moduleID && b.ElectiveGroup == group {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBookingStore) Exists(ctx context.Context, tx *sqlx.Tx, enrollmentID, moduleID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.EnrollmentID == enrollmentID && b.ModuleID == moduleID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBookingStore) Create(ctx context.Context, tx *sqlx.Tx, booking *models.ModuleBooking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	booking.ID = fmt.Sprintf("booking-%d", f.nextID)
	f.bookings = append(f.bookings, models.BookingDetail{ModuleBooking: *booking})
	return nil
}

func (f *fakeBookingStore) ListByEnrollment(ctx context.Context, enrollmentID int64) ([]models.BookingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.BookingDetail
	for _, b := range f.bookings {
		if b.EnrollmentID == enrollmentID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBookingStore) ListSemesterModules(ctx context.Context, enrollmentID, programID int64, semester int) ([]repository.SemesterModuleRow, error) {
	return f.semesterRows, nil
}

func (f *fakeBookingStore) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.BookingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.find(id)
	if !ok {
		return nil, fmt.Errorf("lock booking: %w", sql.ErrNoRows)
	}
	found := f.bookings[i]
	if found.Result != nil {
		result := *found.Result
		found.Result = &result
	}
	return &found, nil
}

func (f *fakeBookingStore) UpsertResult(ctx context.Context, tx *sqlx.Tx, result *models.ExamResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.find(result.ModuleBookingID)
	if !ok {
		return sql.ErrNoRows
	}
	stored := *result
	f.bookings[i].Result = &stored
	return nil
}

func (f *fakeBookingStore) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status models.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.find(id)
	if !ok {
		return sql.ErrNoRows
	}
	f.bookings[i].Status = status
	return nil
}

func bookingDetail(id string, enrollmentID, moduleID int64, group models.ElectiveGroup, semester int, status models.BookingStatus) models.BookingDetail {
	return models.BookingDetail{
		ModuleBooking: models.ModuleBooking{
			ID:            id,
			EnrollmentID:  enrollmentID,
			ModuleID:      moduleID,
			Status:        status,
			ElectiveGroup: group,
			Semester:      semester,
		},
		ModuleName: fmt.Sprintf("Module %d", moduleID),
		ECTS:       5,
	}
}

type fakeCompletion struct {
	rows []repository.SemesterCompletion
	err  error
}

func (f *fakeCompletion) SemesterCompletion(ctx context.Context, tx *sqlx.Tx, enrollmentID, programID int64) ([]repository.SemesterCompletion, error) {
	return f.rows, f.err
}

// memoryCache stores JSON payloads like the redis repository does.
type memoryCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = payload
	return nil
}

func (m *memoryCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, prefix)
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *memoryCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

func newTestCache(repo CacheRepository) *CacheService {
	return NewCacheService(repo, nil, time.Minute, nil, true)
}

func requireAppError(t *testing.T, err error, target *appErrors.Error) *appErrors.Error {
	t.Helper()
	require.Error(t, err)
	require.True(t, appErrors.Is(err, target), "expected %s, got %v", target.Code, err)
	return appErrors.FromError(err)
}
