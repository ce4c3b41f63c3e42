package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/study-progress-api/internal/dto"
	"github.com/noah-isme/study-progress-api/internal/models"
	appErrors "github.com/noah-isme/study-progress-api/pkg/errors"
)

type fakeFeeService struct {
	listedFor int64
	paid      string
	month     string
}

func (f *fakeFeeService) List(_ context.Context, enrollmentID int64) (*dto.FeeOverview, error) {
	f.listedFor = enrollmentID
	return &dto.FeeOverview{EnrollmentID: enrollmentID, OpenBalance: 398, OpenBalanceFormatted: "398,00 €"}, nil
}

func (f *fakeFeeService) MarkPaid(_ context.Context, id string) (*models.Fee, error) {
	if id == "missing" {
		return nil, appErrors.ErrFeeNotFound
	}
	f.paid = id
	paidAt := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	return &models.Fee{ID: id, PaidAt: &paidAt}, nil
}

func (f *fakeFeeService) GenerateMonthlyFees(_ context.Context, req dto.GenerateFeesRequest) (*dto.GenerateFeesResult, error) {
	f.month = req.Month
	return &dto.GenerateFeesResult{Month: req.Month, Created: 12}, nil
}

func TestFeeHandlerMine(t *testing.T) {
	fees := &fakeFeeService{}
	handler := NewFeeHandler(activeResolver(), fees)
	c, rec := newGinContext(http.MethodGet, "/me/fees", nil, studentClaims())

	handler.Mine(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), fees.listedFor)
	var body dto.FeeOverview
	decodeData(t, rec, &body)
	assert.Equal(t, "398,00 €", body.OpenBalanceFormatted)
}

func TestFeeHandlerPay(t *testing.T) {
	fees := &fakeFeeService{}
	handler := NewFeeHandler(activeResolver(), fees)
	c, rec := newGinContext(http.MethodPost, "/fees/fee-1/pay", nil, nil)
	c.AddParam("id", "fee-1")

	handler.Pay(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fee-1", fees.paid)
}

func TestFeeHandlerPayUnknownFee(t *testing.T) {
	handler := NewFeeHandler(activeResolver(), &fakeFeeService{})
	c, rec := newGinContext(http.MethodPost, "/fees/missing/pay", nil, nil)
	c.AddParam("id", "missing")

	handler.Pay(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeeHandlerGenerate(t *testing.T) {
	fees := &fakeFeeService{}
	handler := NewFeeHandler(activeResolver(), fees)
	c, rec := newGinContext(http.MethodPost, "/fees/generate", dto.GenerateFeesRequest{Month: "2024-04"}, nil)

	handler.Generate(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-04", fees.month)
	var body dto.GenerateFeesResult
	decodeData(t, rec, &body)
	assert.Equal(t, int64(12), body.Created)
}
