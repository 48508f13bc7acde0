// Package calc holds the derived-value calculators: SLA deadlines,
// overtime pay, leave-day counts and asset depreciation. All functions are
// pure and deterministic; money math uses decimals throughout.
package calc

import (
	"time"

	"github.com/crewdeck/crewdeck/internal/apperr"
	"github.com/shopspring/decimal"
)

// Working-time constants behind the overtime formula: 8-hour days, 22
// working days per month, overtime at time-and-a-half.
var (
	hoursPerDay        = decimal.NewFromInt(8)
	workingDaysMonthly = decimal.NewFromInt(22)
	monthlyHours       = hoursPerDay.Mul(workingDaysMonthly) // 176
	overtimeMultiplier = decimal.RequireFromString("1.5")
)

// DailyOvertimeThresholdHours is the point past which a worked day accrues
// overtime.
const DailyOvertimeThresholdHours = 8

// SLA is the response/resolution window for a ticket priority.
type SLA struct {
	ResponseHours   int
	ResolutionHours int
}

// slaTable is fixed; unknown priorities fall back to Medium.
var slaTable = map[string]SLA{
	"Low":      {ResponseHours: 24, ResolutionHours: 72},
	"Medium":   {ResponseHours: 24, ResolutionHours: 72},
	"High":     {ResponseHours: 4, ResolutionHours: 24},
	"Critical": {ResponseHours: 1, ResolutionHours: 4},
}

// SLAFor returns the SLA window for a priority.
func SLAFor(priority string) SLA {
	if s, ok := slaTable[priority]; ok {
		return s
	}
	return slaTable["Medium"]
}

// SLADeadlines returns the response and resolution deadlines for a ticket
// created (or escalated) at the given instant.
func SLADeadlines(priority string, at time.Time) (response, resolution time.Time) {
	s := SLAFor(priority)
	return at.Add(time.Duration(s.ResponseHours) * time.Hour),
		at.Add(time.Duration(s.ResolutionHours) * time.Hour)
}

// Pay is the result of an overtime computation.
type Pay struct {
	HourlyRate  decimal.Decimal
	RegularPay  decimal.Decimal
	OvertimePay decimal.Decimal
	GrossPay    decimal.Decimal
}

// StandardMonthlyHours returns the full-month working hours (8h days, 22
// working days) assumed when no attendance was recorded.
func StandardMonthlyHours() decimal.Decimal {
	return monthlyHours
}

// HourlyRate derives the hourly rate from a monthly salary (8h days, 22
// working days).
func HourlyRate(monthlySalary decimal.Decimal) decimal.Decimal {
	return monthlySalary.Div(monthlyHours)
}

// OvertimePay computes regular and overtime pay for the given hours.
// Overtime is paid at 1.5x the hourly rate.
func OvertimePay(monthlySalary, regularHours, overtimeHours decimal.Decimal) Pay {
	rate := HourlyRate(monthlySalary)
	regular := regularHours.Mul(rate)
	overtime := overtimeHours.Mul(rate).Mul(overtimeMultiplier)
	return Pay{
		HourlyRate:  rate,
		RegularPay:  regular,
		OvertimePay: overtime,
		GrossPay:    regular.Add(overtime),
	}
}

// SplitWorkedHours divides a worked duration into regular and overtime
// hours against the daily threshold.
func SplitWorkedHours(worked time.Duration) (regular, overtime decimal.Decimal) {
	hours := decimal.NewFromFloat(worked.Hours())
	threshold := decimal.NewFromInt(DailyOvertimeThresholdHours)
	if hours.LessThanOrEqual(threshold) {
		return hours, decimal.Zero
	}
	return threshold, hours.Sub(threshold)
}

// LeaveDays counts the days in [start, end], inclusive of both endpoints.
// With excludeWeekends set, Saturdays and Sundays do not count. An end
// date before the start date is a validation error.
func LeaveDays(start, end time.Time, excludeWeekends bool) (int, error) {
	start = truncateDay(start)
	end = truncateDay(end)
	if end.Before(start) {
		return 0, apperr.Validation("end date must not be before start date")
	}

	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if excludeWeekends {
			if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
				continue
			}
		}
		days++
	}
	return days, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StraightLineValue returns the current book value under straight-line
// depreciation. The value never drops below the residual.
func StraightLineValue(purchasePrice, residual decimal.Decimal, usefulLifeYears, yearsElapsed int) decimal.Decimal {
	if usefulLifeYears <= 0 {
		return purchasePrice
	}
	annual := purchasePrice.Sub(residual).Div(decimal.NewFromInt(int64(usefulLifeYears)))
	value := purchasePrice.Sub(annual.Mul(decimal.NewFromInt(int64(yearsElapsed))))
	if value.LessThan(residual) {
		return residual
	}
	return value
}

// DecliningBalanceValue returns the current book value under double
// declining-balance depreciation: rate = 2 / usefulLife, applied per year
// elapsed.
func DecliningBalanceValue(purchasePrice decimal.Decimal, usefulLifeYears, yearsElapsed int) decimal.Decimal {
	if usefulLifeYears <= 0 {
		return purchasePrice
	}
	rate := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(usefulLifeYears)))
	factor := decimal.NewFromInt(1).Sub(rate)
	value := purchasePrice
	for i := 0; i < yearsElapsed; i++ {
		value = value.Mul(factor)
	}
	return value
}

// YearsElapsed counts whole years between purchase and now.
func YearsElapsed(purchasedAt, now time.Time) int {
	years := now.Year() - purchasedAt.Year()
	anniversary := purchasedAt.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
