package models

// AmortizationRequest is the input for the fixed-rate amortization calculator.
type AmortizationRequest struct {
	LoanAmount   float64 `json:"loanAmount"`
	AnnualRate   float64 `json:"annualRate"`
	TermYears    int     `json:"termYears"`
	WithSchedule bool    `json:"withSchedule"`
}

// AmortizationPeriod is one row of an amortization schedule.
type AmortizationPeriod struct {
	Month     int     `json:"month"`
	Payment   float64 `json:"payment"`
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Balance   float64 `json:"balance"`
}

// AmortizationResult holds the computed payment and totals.
type AmortizationResult struct {
	MonthlyPayment float64              `json:"monthlyPayment"`
	TotalPaid      float64              `json:"totalPaid"`
	TotalInterest  float64              `json:"totalInterest"`
	Schedule       []AmortizationPeriod `json:"schedule,omitempty"`
}

// ARMComparisonRequest compares an adjustable-rate mortgage against a fixed
// alternative over the full term.
type ARMComparisonRequest struct {
	LoanAmount       float64 `json:"loanAmount"`
	TermYears        int     `json:"termYears"`
	FixedRate        float64 `json:"fixedRate"`
	ARMInitialRate   float64 `json:"armInitialRate"`
	ARMFixedYears    int     `json:"armFixedYears"`
	ExpectedDrift    float64 `json:"expectedDrift"`
	InitialCap       float64 `json:"initialCap"`
	PeriodicCap      float64 `json:"periodicCap"`
	LifetimeCap      float64 `json:"lifetimeCap"`
}

// ARMYearProjection is the projected ARM state for a single year.
type ARMYearProjection struct {
	Year           int     `json:"year"`
	Rate           float64 `json:"rate"`
	MonthlyPayment float64 `json:"monthlyPayment"`
	EndBalance     float64 `json:"endBalance"`
}

// ARMComparisonResult is the calculator output: per-year ARM projection,
// cumulative costs for both products, and the break-even month (0 when the
// ARM never becomes more expensive within the term).
type ARMComparisonResult struct {
	FixedMonthlyPayment float64             `json:"fixedMonthlyPayment"`
	Projection          []ARMYearProjection `json:"projection"`
	ARMTotalCost        float64             `json:"armTotalCost"`
	FixedTotalCost      float64             `json:"fixedTotalCost"`
	BreakEvenMonth      int                 `json:"breakEvenMonth"`
}
