package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/study-progress-api/internal/dto"
	"github.com/noah-isme/study-progress-api/internal/models"
	appErrors "github.com/noah-isme/study-progress-api/pkg/errors"
	"github.com/noah-isme/study-progress-api/pkg/jobs"
)

type fakeFeeRepo struct {
	fees        []models.Fee
	generatedAt []time.Time
	created     int64
	err         error
}

func (f *fakeFeeRepo) OpenBalance(ctx context.Context, enrollmentID int64) (float64, error) {
	total := 0.0
	for _, fee := range f.fees {
		if fee.EnrollmentID == enrollmentID && fee.PaidAt == nil {
			total += fee.Amount
		}
	}
	return total, nil
}

func (f *fakeFeeRepo) ListByEnrollment(ctx context.Context, enrollmentID int64) ([]models.Fee, error) {
	var out []models.Fee
	for _, fee := range f.fees {
		if fee.EnrollmentID == enrollmentID {
			out = append(out, fee)
		}
	}
	return out, nil
}

func (f *fakeFeeRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) (*models.Fee, error) {
	for i := range f.fees {
		if f.fees[i].ID == id && f.fees[i].PaidAt == nil {
			f.fees[i].PaidAt = &paidAt
			fee := f.fees[i]
			return &fee, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeFeeRepo) GenerateMonthly(ctx context.Context, dueDate time.Time) (int64, error) {
	f.generatedAt = append(f.generatedAt, dueDate)
	if f.err != nil {
		return 0, f.err
	}
	return f.created, nil
}

func newFeeFixture() (*FeeService, *fakeFeeRepo, *memoryCache, *MetricsService) {
	paid := time.Date(2024, time.February, 3, 0, 0, 0, 0, time.UTC)
	repo := &fakeFeeRepo{fees: []models.Fee{
		{ID: "fee-1", EnrollmentID: 1, FeeType: models.FeeTypeMonthly, Amount: 199, DueDate: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), PaidAt: &paid},
		{ID: "fee-2", EnrollmentID: 1, FeeType: models.FeeTypeMonthly, Amount: 199, DueDate: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "fee-3", EnrollmentID: 1, FeeType: models.FeeTypeExam, Amount: 1050.5, DueDate: time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)},
	}}
	cache := newMemoryCache()
	metrics := NewMetricsService()
	enrollments := newFakeEnrollmentStore(activeEnrollment(1, "student-1"))
	svc := NewFeeService(repo, enrollments, newTestCache(cache), metrics, nil, nil)
	svc.now = fixedClock
	return svc, repo, cache, metrics
}

func TestFeeListSummarisesBalance(t *testing.T) {
	svc, _, _, _ := newFeeFixture()

	overview, err := svc.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, overview.Fees, 3)
	assert.InDelta(t, 1249.5, overview.OpenBalance, 0.001)
	assert.Equal(t, "1.249,50 €", overview.OpenBalanceFormatted)
	assert.Equal(t, 1, overview.OverdueCount)
}

func TestFeeMarkPaid(t *testing.T) {
	svc, _, cache, _ := newFeeFixture()
	ctx := context.Background()

	fee, err := svc.MarkPaid(ctx, "fee-2")
	require.NoError(t, err)
	require.NotNil(t, fee.PaidAt)
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), *fee.PaidAt)
	assert.Contains(t, cache.invalidated, "progress:student-1:")

	_, err = svc.MarkPaid(ctx, "fee-2")
	requireAppError(t, err, appErrors.ErrFeeNotFound)

	balance, err := svc.OpenBalance(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1050.5, balance, 0.001)
}

func TestGenerateMonthlyFees(t *testing.T) {
	svc, repo, cache, metrics := newFeeFixture()
	repo.created = 3

	result, err := svc.GenerateMonthlyFees(context.Background(), dto.GenerateFeesRequest{Month: "2024-04"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Created)
	require.Len(t, repo.generatedAt, 1)
	assert.Equal(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), repo.generatedAt[0])
	assert.Contains(t, cache.invalidated, "progress:")
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.feesGenerated))
}

func TestGenerateMonthlyFeesRepeatedRunSkipsInvalidation(t *testing.T) {
	svc, repo, cache, _ := newFeeFixture()
	repo.created = 0

	result, err := svc.GenerateMonthlyFees(context.Background(), dto.GenerateFeesRequest{Month: "2024-04"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Created)
	assert.Empty(t, cache.invalidated)
}

func TestGenerateMonthlyFeesValidatesMonth(t *testing.T) {
	svc, repo, _, _ := newFeeFixture()

	for _, month := range []string{"", "2024-13", "April"} {
		_, err := svc.GenerateMonthlyFees(context.Background(), dto.GenerateFeesRequest{Month: month})
		requireAppError(t, err, appErrors.ErrValidation)
	}
	assert.Empty(t, repo.generatedAt)
}

func TestFeeJobRoundTrip(t *testing.T) {
	svc, repo, _, _ := newFeeFixture()

	job := svc.MonthlyJob(time.Date(2024, time.May, 31, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, FeeJobType, job.Type)
	assert.Equal(t, "fees.generate_monthly:2024-05", job.ID)

	require.NoError(t, svc.HandleJob(context.Background(), job))
	require.Len(t, repo.generatedAt, 1)
	assert.Equal(t, time.May, repo.generatedAt[0].Month())

}

func TestFeeJobDropsUnprocessablePayload(t *testing.T) {
	svc, repo, _, _ := newFeeFixture()

	require.NoError(t, svc.HandleJob(context.Background(), jobs.Job{Type: FeeJobType, Payload: "bogus"}))
	require.NoError(t, svc.HandleJob(context.Background(), jobs.Job{
		Type:    FeeJobType,
		Payload: dto.GenerateFeesRequest{Month: "2024-13"},
	}))
	assert.Empty(t, repo.generatedAt)
}

func TestFeeJobPropagatesRepositoryFailure(t *testing.T) {
	svc, repo, _, _ := newFeeFixture()
	repo.err = errors.New("connection reset")

	err := svc.HandleJob(context.Background(), svc.MonthlyJob(time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)))
	requireAppError(t, err, appErrors.ErrInternal)
}
