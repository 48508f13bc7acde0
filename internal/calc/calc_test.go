package calc_test

import (
	"testing"
	"time"

	"github.com/crewdeck/crewdeck/internal/calc"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSLADeadlines(t *testing.T) {
	at := date(2024, time.March, 1)

	tests := []struct {
		priority        string
		responseHours   int
		resolutionHours int
	}{
		{"Low", 24, 72},
		{"Medium", 24, 72},
		{"High", 4, 24},
		{"Critical", 1, 4},
		{"Unknown", 24, 72}, // falls back to Medium
	}
	for _, tt := range tests {
		t.Run(tt.priority, func(t *testing.T) {
			response, resolution := calc.SLADeadlines(tt.priority, at)
			assert.Equal(t, at.Add(time.Duration(tt.responseHours)*time.Hour), response)
			assert.Equal(t, at.Add(time.Duration(tt.resolutionHours)*time.Hour), resolution)
		})
	}
}

func TestOvertimePay_WorkedExample(t *testing.T) {
	// salary 22000, 8 regular + 2 overtime hours:
	// rate = 22000/176 = 125, regular = 1000, overtime = 2*125*1.5 = 375.
	pay := calc.OvertimePay(decimal.NewFromInt(22000), decimal.NewFromInt(8), decimal.NewFromInt(2))

	assert.True(t, pay.HourlyRate.Equal(decimal.NewFromInt(125)), "rate = %s", pay.HourlyRate)
	assert.True(t, pay.RegularPay.Equal(decimal.NewFromInt(1000)), "regular = %s", pay.RegularPay)
	assert.True(t, pay.OvertimePay.Equal(decimal.NewFromInt(375)), "overtime = %s", pay.OvertimePay)
	assert.True(t, pay.GrossPay.Equal(decimal.NewFromInt(1375)), "gross = %s", pay.GrossPay)
}

func TestOvertimePay_NoOvertime(t *testing.T) {
	pay := calc.OvertimePay(decimal.NewFromInt(22000), decimal.NewFromInt(8), decimal.Zero)
	assert.True(t, pay.OvertimePay.IsZero())
	assert.True(t, pay.GrossPay.Equal(decimal.NewFromInt(1000)))
}

func TestSplitWorkedHours(t *testing.T) {
	regular, overtime := calc.SplitWorkedHours(10 * time.Hour)
	assert.True(t, regular.Equal(decimal.NewFromInt(8)))
	assert.True(t, overtime.Equal(decimal.NewFromInt(2)))

	regular, overtime = calc.SplitWorkedHours(6 * time.Hour)
	assert.True(t, regular.Equal(decimal.NewFromInt(6)))
	assert.True(t, overtime.IsZero())
}

func TestLeaveDays_InclusiveOfBothEndpoints(t *testing.T) {
	days, err := calc.LeaveDays(date(2024, time.March, 1), date(2024, time.March, 3), false)
	require.NoError(t, err)
	assert.Equal(t, 3, days)
}

func TestLeaveDays_SingleDay(t *testing.T) {
	days, err := calc.LeaveDays(date(2024, time.March, 1), date(2024, time.March, 1), false)
	require.NoError(t, err)
	assert.Equal(t, 1, days)
}

func TestLeaveDays_ExcludeWeekends(t *testing.T) {
	// 2024-03-01 is a Friday; through Monday 2024-03-04 spans one weekend.
	days, err := calc.LeaveDays(date(2024, time.March, 1), date(2024, time.March, 4), true)
	require.NoError(t, err)
	assert.Equal(t, 2, days)

	// Same range counts all four days when weekends are included.
	days, err = calc.LeaveDays(date(2024, time.March, 1), date(2024, time.March, 4), false)
	require.NoError(t, err)
	assert.Equal(t, 4, days)
}

func TestLeaveDays_EndBeforeStart(t *testing.T) {
	_, err := calc.LeaveDays(date(2024, time.March, 3), date(2024, time.March, 1), false)
	require.Error(t, err)
}

func TestStraightLineValue(t *testing.T) {
	purchase := decimal.NewFromInt(10000)
	residual := decimal.NewFromInt(1000)

	// (10000-1000)/3 = 3000 per year.
	assert.True(t, calc.StraightLineValue(purchase, residual, 3, 0).Equal(decimal.NewFromInt(10000)))
	assert.True(t, calc.StraightLineValue(purchase, residual, 3, 1).Equal(decimal.NewFromInt(7000)))
	assert.True(t, calc.StraightLineValue(purchase, residual, 3, 3).Equal(decimal.NewFromInt(1000)))
	// Never below residual.
	assert.True(t, calc.StraightLineValue(purchase, residual, 3, 10).Equal(residual))
}

func TestDecliningBalanceValue(t *testing.T) {
	purchase := decimal.NewFromInt(10000)

	// rate = 2/4 = 0.5: 10000 -> 5000 -> 2500.
	assert.True(t, calc.DecliningBalanceValue(purchase, 4, 0).Equal(decimal.NewFromInt(10000)))
	assert.True(t, calc.DecliningBalanceValue(purchase, 4, 1).Equal(decimal.NewFromInt(5000)))
	assert.True(t, calc.DecliningBalanceValue(purchase, 4, 2).Equal(decimal.NewFromInt(2500)))
}

func TestYearsElapsed(t *testing.T) {
	purchased := date(2020, time.June, 15)
	assert.Equal(t, 3, calc.YearsElapsed(purchased, date(2024, time.June, 14)))
	assert.Equal(t, 4, calc.YearsElapsed(purchased, date(2024, time.June, 15)))
	assert.Equal(t, 0, calc.YearsElapsed(purchased, date(2019, time.June, 15)))
}
