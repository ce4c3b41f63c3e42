package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/study-progress-api/internal/dto"
	"github.com/noah-isme/study-progress-api/internal/models"
	"github.com/noah-isme/study-progress-api/internal/repository"
	"github.com/noah-isme/study-progress-api/pkg/config"
	appErrors "github.com/noah-isme/study-progress-api/pkg/errors"
)

type activeEnrollmentReader interface {
	FindActiveByStudent(ctx context.Context, studentID string) (*models.EnrollmentDetail, error)
}

type progressStatsReader interface {
	Stats(ctx context.Context, enrollmentID, programID int64) (*repository.ProgressStats, error)
}

type openBalanceReader interface {
	OpenBalance(ctx context.Context, enrollmentID int64) (float64, error)
}

type nextExamFinder interface {
	NextExam(ctx context.Context, enrollmentID int64) (*dto.NextExam, error)
}

const progressCacheNamespace = "progress:"

func progressCachePrefix(studentID string) string {
	return progressCacheNamespace + studentID + ":"
}

// ProgressService composes the dashboard snapshot of a student's active enrollment.
type ProgressService struct {
	enrollments activeEnrollmentReader
	stats       progressStatsReader
	fees        openBalanceReader
	exams       nextExamFinder
	progression *ProgressionService
	cache       *CacheService
	cfg         config.ProgressConfig
	ttl         time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewProgressService constructs ProgressService.
func NewProgressService(
	enrollments activeEnrollmentReader,
	stats progressStatsReader,
	fees openBalanceReader,
	exams nextExamFinder,
	progression *ProgressionService,
	cache *CacheService,
	cfg config.ProgressConfig,
	ttl time.Duration,
	logger *zap.Logger,
) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ModulesPerSemester <= 0 {
		cfg.ModulesPerSemester = 7
	}
	if cfg.TotalModules <= 0 {
		cfg.TotalModules = 49
	}
	return &ProgressService{
		enrollments: enrollments,
		stats:       stats,
		fees:        fees,
		exams:       exams,
		progression: progression,
		cache:       cache,
		cfg:         cfg,
		ttl:         ttl,
		logger:      logger,
		now:         time.Now,
	}
}

// Snapshot returns the progress snapshot and whether it came from cache.
func (s *ProgressService) Snapshot(ctx context.Context, studentID, lang string) (*dto.ProgressSnapshot, bool, error) {
	lang = normalizeLanguage(lang, s.cfg.DefaultLanguage)
	key := progressCachePrefix(studentID) + lang

	var cached dto.ProgressSnapshot
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	enrollment, err := s.enrollments.FindActiveByStudent(ctx, studentID)
	if err != nil {
		return nil, false, notFoundOr(err, appErrors.ErrEnrollmentNotFound, "failed to load active enrollment")
	}

	snapshot := s.compose(ctx, enrollment, lang)
	s.cache.Set(ctx, key, snapshot, s.ttl)
	return snapshot, false, nil
}

// compose never fails: each collaborator error leaves its fields at the fallback.
func (s *ProgressService) compose(ctx context.Context, enrollment *models.EnrollmentDetail, lang string) *dto.ProgressSnapshot {
	logger := s.logger.With(zap.Int64("enrollment_id", enrollment.ID))
	snapshot := &dto.ProgressSnapshot{
		EnrollmentID:     enrollment.ID,
		StudentID:        enrollment.StudentID,
		ProgramName:      enrollment.ProgramName,
		TimeModel:        enrollment.TimeModelName,
		NominalSemesters: enrollment.NominalSemesters,
		TotalModules:     s.cfg.TotalModules,
	}

	stats, err := s.stats.Stats(ctx, enrollment.ID, enrollment.ProgramID)
	if err != nil {
		logger.Warn("progress stats unavailable", zap.Error(err))
	} else {
		snapshot.AverageGrade = stats.AverageGrade
		snapshot.PassedCount = stats.PassedCount
		snapshot.BookedCount = stats.BookedCount
	}

	open, err := s.fees.OpenBalance(ctx, enrollment.ID)
	if err != nil {
		logger.Warn("open fee balance unavailable", zap.Error(err))
	} else {
		snapshot.OpenFees = open
	}
	snapshot.OpenFeesFormatted = formatEuro(snapshot.OpenFees)

	if next, err := s.exams.NextExam(ctx, enrollment.ID); err != nil {
		logger.Warn("next exam unavailable", zap.Error(err))
	} else {
		snapshot.NextExam = next
	}

	snapshot.CurrentSemester = s.progression.CurrentSemesterFor(ctx, enrollment)
	snapshot.ProgressSemester = progressSemester(snapshot.PassedCount, s.cfg.ModulesPerSemester, enrollment.NominalSemesters)
	snapshot.ExpectedSemester = expectedSemester(enrollment.StartDate, s.now())
	snapshot.DaysDeviation = daysDeviation(snapshot.ProgressSemester, snapshot.ExpectedSemester)
	snapshot.OnSchedule = onSchedule(snapshot.DaysDeviation)
	snapshot.CompletionPercent = completionPercent(snapshot.PassedCount, s.cfg.TotalModules)

	snapshot.GradeCategory = gradeTier(snapshot.AverageGrade)
	snapshot.TimeCategory = timeCategory(snapshot.DaysDeviation)
	snapshot.FeeCategory = feeCategory(snapshot.OpenFees)
	snapshot.StatusCategory = overallStatus(snapshot.AverageGrade, snapshot.DaysDeviation, snapshot.OpenFees)
	snapshot.Texts = renderTexts(snapshot, lang)
	return snapshot
}

// progressInvalidator drops cached snapshots after writes that change them.
type progressInvalidator struct {
	cache       *CacheService
	enrollments enrollmentFinder
	logger      *zap.Logger
}

func newProgressInvalidator(cache *CacheService, enrollments enrollmentFinder, logger *zap.Logger) *progressInvalidator {
	return &progressInvalidator{cache: cache, enrollments: enrollments, logger: logger}
}

func (p *progressInvalidator) student(ctx context.Context, studentID string) {
	if p == nil || !p.cache.Enabled() || studentID == "" {
		return
	}
	p.cache.Invalidate(ctx, progressCachePrefix(studentID))
}

func (p *progressInvalidator) enrollment(ctx context.Context, enrollmentID int64) {
	if p == nil || !p.cache.Enabled() || p.enrollments == nil {
		return
	}
	enrollment, err := p.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		p.logger.Warn("skip progress cache invalidation", zap.Int64("enrollment_id", enrollmentID), zap.Error(err))
		return
	}
	p.student(ctx, enrollment.StudentID)
}

// all drops every cached snapshot, used after bulk writes.
func (p *progressInvalidator) all(ctx context.Context) {
	if p == nil || !p.cache.Enabled() {
		return
	}
	p.cache.Invalidate(ctx, progressCacheNamespace)
}
