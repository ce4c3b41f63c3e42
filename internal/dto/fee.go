package dto

import "github.com/noah-isme/study-progress-api/internal/models"

// FeeOverview lists an enrollment's fees and open balance.
type FeeOverview struct {
	EnrollmentID         int64        `json:"enrollment_id"`
	Fees                 []models.Fee `json:"fees"`
	OpenBalance          float64      `json:"open_balance"`
	OpenBalanceFormatted string       `json:"open_balance_formatted"`
	OverdueCount         int          `json:"overdue_count"`
}

// GenerateFeesRequest triggers monthly fee generation for a month (YYYY-MM).
type GenerateFeesRequest struct {
	Month string `json:"month" validate:"required,datetime=2006-01"`
}

// GenerateFeesResult reports how many fees were inserted.
type GenerateFeesResult struct {
	Month   string `json:"month"`
	Created int64  `json:"created"`
}
