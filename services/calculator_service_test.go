package services

import (
	"math"
	"testing"

	"github.com/rateflow/rateflow-backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthlyPaymentClosedForm(t *testing.T) {
	svc := NewCalculatorService()

	// 300000 at 6% over 30 years is the textbook 1798.65.
	payment := svc.MonthlyPayment(300000, 6.0, 360)
	assert.InDelta(t, 1798.65, payment, 0.01)

	// Zero rate degenerates to straight division.
	assert.InDelta(t, 1000.0, svc.MonthlyPayment(360000, 0, 360), 0.001)

	assert.Equal(t, 0.0, svc.MonthlyPayment(300000, 6.0, 0))
}

func TestAmortizeTotals(t *testing.T) {
	svc := NewCalculatorService()

	result, err := svc.Amortize(&models.AmortizationRequest{
		LoanAmount: 300000,
		AnnualRate: 6.0,
		TermYears:  30,
	})
	require.NoError(t, err)

	assert.InDelta(t, 1798.65, result.MonthlyPayment, 0.01)
	assert.InDelta(t, result.TotalPaid, 300000+result.TotalInterest, 0.01)
	// 30 years of interest on this loan is roughly 347515.
	assert.InDelta(t, 347515, result.TotalInterest, 5)
	assert.Empty(t, result.Schedule)
}

func TestAmortizeScheduleBalancesToZero(t *testing.T) {
	svc := NewCalculatorService()

	result, err := svc.Amortize(&models.AmortizationRequest{
		LoanAmount:   200000,
		AnnualRate:   5.0,
		TermYears:    15,
		WithSchedule: true,
	})
	require.NoError(t, err)
	require.Len(t, result.Schedule, 180)

	assert.Equal(t, 0.0, result.Schedule[179].Balance)

	// Balance decreases monotonically and principal share grows over time.
	for i := 1; i < len(result.Schedule); i++ {
		assert.LessOrEqual(t, result.Schedule[i].Balance, result.Schedule[i-1].Balance)
	}
	assert.Greater(t, result.Schedule[179].Principal, result.Schedule[0].Principal)

	// Principal portions sum back to the loan amount.
	principalSum := 0.0
	for _, period := range result.Schedule {
		principalSum += period.Principal
	}
	assert.InDelta(t, 200000, principalSum, 1.0)
}

func TestAmortizeRejectsBadInput(t *testing.T) {
	svc := NewCalculatorService()

	_, err := svc.Amortize(&models.AmortizationRequest{LoanAmount: 0, AnnualRate: 5, TermYears: 30})
	assert.Error(t, err)

	_, err = svc.Amortize(&models.AmortizationRequest{LoanAmount: 100000, AnnualRate: 5, TermYears: 0})
	assert.Error(t, err)

	_, err = svc.Amortize(&models.AmortizationRequest{LoanAmount: 100000, AnnualRate: -1, TermYears: 30})
	assert.Error(t, err)
}

func TestCompareARMRateNeverExceedsLifetimeCap(t *testing.T) {
	svc := NewCalculatorService()

	result, err := svc.CompareARM(&models.ARMComparisonRequest{
		LoanAmount:     400000,
		TermYears:      30,
		FixedRate:      6.5,
		ARMInitialRate: 5.5,
		ARMFixedYears:  5,
		ExpectedDrift:  1.5,
		InitialCap:     2.0,
		PeriodicCap:    1.0,
		LifetimeCap:    5.0,
	})
	require.NoError(t, err)
	require.Len(t, result.Projection, 30)

	lifetimeMax := 5.5 + 5.0
	for _, year := range result.Projection {
		assert.LessOrEqual(t, year.Rate, lifetimeMax)
		assert.GreaterOrEqual(t, year.Rate, 0.0)
	}

	// Rate holds steady through the initial fixed period.
	for i := 0; i < 5; i++ {
		assert.Equal(t, 5.5, result.Projection[i].Rate)
	}
	// First adjustment is bounded by the initial cap, later ones by the
	// periodic cap.
	assert.InDelta(t, 7.0, result.Projection[5].Rate, 0.001)
	assert.InDelta(t, 8.0, result.Projection[6].Rate, 0.001)
}

func TestCompareARMBreakEven(t *testing.T) {
	svc := NewCalculatorService()

	// Rising-rate ARM starts cheaper than the fixed loan, so the break-even
	// month exists and lands after the fixed period ends.
	rising, err := svc.CompareARM(&models.ARMComparisonRequest{
		LoanAmount:     400000,
		TermYears:      30,
		FixedRate:      6.5,
		ARMInitialRate: 5.5,
		ARMFixedYears:  5,
		ExpectedDrift:  1.0,
		InitialCap:     2.0,
		PeriodicCap:    1.0,
		LifetimeCap:    5.0,
	})
	require.NoError(t, err)
	assert.Greater(t, rising.BreakEvenMonth, 60)

	// A flat ARM that stays cheaper never breaks even.
	flat, err := svc.CompareARM(&models.ARMComparisonRequest{
		LoanAmount:     400000,
		TermYears:      30,
		FixedRate:      6.5,
		ARMInitialRate: 5.5,
		ARMFixedYears:  5,
		ExpectedDrift:  0,
		InitialCap:     2.0,
		PeriodicCap:    1.0,
		LifetimeCap:    5.0,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, flat.BreakEvenMonth)
	assert.Less(t, flat.ARMTotalCost, flat.FixedTotalCost)
}

func TestCompareARMRejectsBadFixedPeriod(t *testing.T) {
	svc := NewCalculatorService()

	_, err := svc.CompareARM(&models.ARMComparisonRequest{
		LoanAmount:     400000,
		TermYears:      30,
		FixedRate:      6.5,
		ARMInitialRate: 5.5,
		ARMFixedYears:  31,
	})
	assert.Error(t, err)
}

func TestRoundCentsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 12.63, roundCents(12.625))
	assert.Equal(t, 12.62, roundCents(12.624))
	assert.Equal(t, -12.63, roundCents(-12.625))
	assert.True(t, math.Abs(roundCents(0)) == 0)
}
