package services

import (
	"fmt"
	"math"

	"github.com/rateflow/rateflow-backend/models"
)

// CalculatorService implements the consumer-facing mortgage math: fixed-rate
// amortization and the cap-adjusted ARM-versus-fixed comparison. All methods
// are pure.
type CalculatorService struct{}

func NewCalculatorService() *CalculatorService {
	return &CalculatorService{}
}

// MonthlyPayment computes the standard fixed-payment formula
// P*r/(1-(1+r)^-n) for a monthly rate r over n months. A zero rate
// degenerates to straight principal division.
func (s *CalculatorService) MonthlyPayment(principal, annualRatePercent float64, months int) float64 {
	if months <= 0 {
		return 0
	}

	monthlyRate := annualRatePercent / 100 / 12
	if monthlyRate == 0 {
		return principal / float64(months)
	}

	return principal * monthlyRate / (1 - math.Pow(1+monthlyRate, -float64(months)))
}

// Amortize computes the monthly payment and totals for a fixed-rate loan,
// optionally with the full schedule.
func (s *CalculatorService) Amortize(req *models.AmortizationRequest) (*models.AmortizationResult, error) {
	if req.LoanAmount <= 0 {
		return nil, fmt.Errorf("loanAmount must be positive")
	}
	if req.TermYears <= 0 {
		return nil, fmt.Errorf("termYears must be positive")
	}
	if req.AnnualRate < 0 {
		return nil, fmt.Errorf("annualRate must not be negative")
	}

	months := req.TermYears * 12
	payment := s.MonthlyPayment(req.LoanAmount, req.AnnualRate, months)
	monthlyRate := req.AnnualRate / 100 / 12

	result := &models.AmortizationResult{
		MonthlyPayment: roundCents(payment),
	}

	balance := req.LoanAmount
	totalInterest := 0.0
	for month := 1; month <= months; month++ {
		interest := balance * monthlyRate
		principal := payment - interest
		if month == months {
			// Absorb rounding drift into the final payment.
			principal = balance
		}
		balance -= principal
		totalInterest += interest

		if req.WithSchedule {
			result.Schedule = append(result.Schedule, models.AmortizationPeriod{
				Month:     month,
				Payment:   roundCents(principal + interest),
				Principal: roundCents(principal),
				Interest:  roundCents(interest),
				Balance:   roundCents(balance),
			})
		}
	}

	result.TotalInterest = roundCents(totalInterest)
	result.TotalPaid = roundCents(req.LoanAmount + totalInterest)
	return result, nil
}

// CompareARM projects an ARM year by year against a fixed-rate alternative.
// After the initial fixed period the ARM rate drifts by ExpectedDrift per
// year, clamped by the initial, periodic, and lifetime caps, and the payment
// is recast against the remaining balance and term each adjustment. The
// break-even month is the first month the ARM's cumulative cost exceeds the
// fixed loan's.
func (s *CalculatorService) CompareARM(req *models.ARMComparisonRequest) (*models.ARMComparisonResult, error) {
	if req.LoanAmount <= 0 {
		return nil, fmt.Errorf("loanAmount must be positive")
	}
	if req.TermYears <= 0 {
		return nil, fmt.Errorf("termYears must be positive")
	}
	if req.ARMFixedYears <= 0 || req.ARMFixedYears > req.TermYears {
		return nil, fmt.Errorf("armFixedYears must be within the loan term")
	}

	totalMonths := req.TermYears * 12
	fixedPayment := s.MonthlyPayment(req.LoanAmount, req.FixedRate, totalMonths)

	result := &models.ARMComparisonResult{
		FixedMonthlyPayment: roundCents(fixedPayment),
	}

	lifetimeMax := req.ARMInitialRate + req.LifetimeCap

	armRate := req.ARMInitialRate
	armBalance := req.LoanAmount
	armPayment := s.MonthlyPayment(armBalance, armRate, totalMonths)

	armCumulative := 0.0
	fixedCumulative := 0.0
	breakEvenMonth := 0

	for year := 1; year <= req.TermYears; year++ {
		if year > req.ARMFixedYears {
			cap := req.PeriodicCap
			if year == req.ARMFixedYears+1 {
				cap = req.InitialCap
			}

			adjustment := req.ExpectedDrift
			if adjustment > cap {
				adjustment = cap
			}
			if adjustment < -cap {
				adjustment = -cap
			}

			armRate += adjustment
			if armRate > lifetimeMax {
				armRate = lifetimeMax
			}
			if armRate < 0 {
				armRate = 0
			}

			remainingMonths := totalMonths - (year-1)*12
			armPayment = s.MonthlyPayment(armBalance, armRate, remainingMonths)
		}

		monthlyRate := armRate / 100 / 12
		for month := 1; month <= 12; month++ {
			interest := armBalance * monthlyRate
			armBalance -= armPayment - interest

			armCumulative += armPayment
			fixedCumulative += fixedPayment

			if breakEvenMonth == 0 && armCumulative > fixedCumulative {
				breakEvenMonth = (year-1)*12 + month
			}
		}
		if armBalance < 0 {
			armBalance = 0
		}

		result.Projection = append(result.Projection, models.ARMYearProjection{
			Year:           year,
			Rate:           math.Round(armRate*1000) / 1000,
			MonthlyPayment: roundCents(armPayment),
			EndBalance:     roundCents(armBalance),
		})
	}

	result.ARMTotalCost = roundCents(armCumulative)
	result.FixedTotalCost = roundCents(fixedCumulative)
	result.BreakEvenMonth = breakEvenMonth
	return result, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
