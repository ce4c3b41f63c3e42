package service

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/study-progress-api/internal/dto"
)

const (
	daysPerSemester       = 180
	scheduleToleranceDays = 30
	goodAverageGrade      = 2.5
)

// monthsSince counts calendar months from start to ref, ignoring days.
func monthsSince(start, ref time.Time) int {
	months := (ref.Year()-start.Year())*12 + int(ref.Month()) - int(start.Month())
	if months < 0 {
		return 0
	}
	return months
}

// expectedSemester is the time-based position: floor(months / 6) + 1.
func expectedSemester(start, ref time.Time) int {
	return monthsSince(start, ref)/6 + 1
}

// progressSemester is the continuous estimate passed/perSemester + 1 clamped to [1, nominal].
func progressSemester(passed, perSemester, nominal int) float64 {
	if perSemester <= 0 {
		perSemester = 1
	}
	value := float64(passed)/float64(perSemester) + 1
	if nominal > 0 && value > float64(nominal) {
		value = float64(nominal)
	}
	return math.Max(1, value)
}

func daysDeviation(progress float64, expected int) int {
	return int((progress - float64(expected)) * daysPerSemester)
}

func onSchedule(days int) bool {
	return days >= -scheduleToleranceDays && days <= scheduleToleranceDays
}

func gradeTier(avg *float64) string {
	switch {
	case avg == nil:
		return dto.GradeTierUnknown
	case *avg <= 2.0:
		return dto.GradeTierFast
	case *avg <= 3.0:
		return dto.GradeTierMedium
	default:
		return dto.GradeTierSlow
	}
}

func timeCategory(days int) string {
	if days >= 0 {
		return dto.TimeAhead
	}
	return dto.TimeBehind
}

func feeCategory(open float64) string {
	if open > 0 {
		return dto.FeeOpen
	}
	return dto.FeeZero
}

// overallStatus combines grade, schedule and fee health. A missing average counts as good.
func overallStatus(avg *float64, days int, open float64) string {
	gradeOK := avg == nil || *avg <= goodAverageGrade
	timeOK := onSchedule(days)
	feesOK := open <= 0

	switch {
	case gradeOK && timeOK && feesOK:
		return dto.StatusExcellent
	case gradeOK && timeOK:
		return dto.StatusGood
	case gradeOK || timeOK:
		return dto.StatusOkay
	default:
		return dto.StatusCritical
	}
}

func completionPercent(passed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Min(100, float64(passed)/float64(total)*100)
}

// formatEuro renders an amount the German way, e.g. "1.234,56 €".
func formatEuro(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	raw := strconv.FormatFloat(amount, 'f', 2, 64)
	whole, cents := raw[:len(raw)-3], raw[len(raw)-2:]

	var grouped strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(digit)
	}
	return sign + grouped.String() + "," + cents + " €"
}
