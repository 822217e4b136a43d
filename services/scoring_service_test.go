package services

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rateflow/rateflow-backend/config"
	"github.com/rateflow/rateflow-backend/models"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string   { return &s }
func intPtr(i int) *int         { return &i }
func f64Ptr(f float64) *float64 { return &f }

func fullScoreInput() LeadScoreInput {
	return LeadScoreInput{
		Phone:       strPtr("555-0100"),
		FirstName:   strPtr("Jordan"),
		LastName:    strPtr("Avery"),
		CreditScore: intPtr(720),
		LoanAmount:  f64Ptr(350000),
		HomePrice:   f64Ptr(450000),
		DownPayment: f64Ptr(100000),
		ZipCode:     strPtr("80302"),
	}
}

func TestScoreLeadAllFactorsPresent(t *testing.T) {
	svc := NewScoringService(nil)

	result := svc.ScoreLead(fullScoreInput())

	assert.Equal(t, 100, result.Score)
	assert.Equal(t, models.QualityHigh, result.Quality)
}

func TestScoreLeadAllFactorsAbsent(t *testing.T) {
	svc := NewScoringService(nil)

	result := svc.ScoreLead(LeadScoreInput{})

	assert.Equal(t, 0, result.Score)
	assert.Equal(t, models.QualityLow, result.Quality)
}

func TestScoreLeadBlankStringsScoreNothing(t *testing.T) {
	svc := NewScoringService(nil)

	result := svc.ScoreLead(LeadScoreInput{
		Phone:     strPtr("   "),
		FirstName: strPtr(""),
		LastName:  strPtr("Avery"),
		ZipCode:   strPtr("\t"),
	})

	assert.Equal(t, 0, result.Score)
}

func TestScoreLeadFullNameRequiresBothParts(t *testing.T) {
	svc := NewScoringService(nil)
	cfg := config.DefaultScoringConfig()

	onlyFirst := svc.ScoreLead(LeadScoreInput{FirstName: strPtr("Jordan")})
	assert.Equal(t, 0, onlyFirst.Score)

	both := svc.ScoreLead(LeadScoreInput{FirstName: strPtr("Jordan"), LastName: strPtr("Avery")})
	assert.Equal(t, cfg.FullNamePoints, both.Score)
}

func TestScoreLeadLoanRangeBoundaries(t *testing.T) {
	svc := NewScoringService(nil)
	cfg := config.DefaultScoringConfig()

	cases := []struct {
		amount float64
		points int
	}{
		{cfg.LoanRangeMin - 1, 0},
		{cfg.LoanRangeMin, cfg.LoanRangePoints},
		{350000, cfg.LoanRangePoints},
		{cfg.LoanRangeMax, cfg.LoanRangePoints},
		{cfg.LoanRangeMax + 1, 0},
	}
	for _, tc := range cases {
		result := svc.ScoreLead(LeadScoreInput{LoanAmount: f64Ptr(tc.amount)})
		assert.Equalf(t, tc.points, result.Score, "loan amount %v", tc.amount)
	}
}

func TestScoreLeadDownPaymentRatioBoundary(t *testing.T) {
	svc := NewScoringService(nil)
	cfg := config.DefaultScoringConfig()

	// Exactly at the ratio counts.
	atRatio := svc.ScoreLead(LeadScoreInput{HomePrice: f64Ptr(400000), DownPayment: f64Ptr(40000)})
	assert.Equal(t, cfg.DownPaymentPoints, atRatio.Score)

	below := svc.ScoreLead(LeadScoreInput{HomePrice: f64Ptr(400000), DownPayment: f64Ptr(39999)})
	assert.Equal(t, 0, below.Score)

	// Missing home price means the ratio cannot be evaluated.
	noPrice := svc.ScoreLead(LeadScoreInput{DownPayment: f64Ptr(40000)})
	assert.Equal(t, 0, noPrice.Score)
}

func TestTierThresholdsInclusive(t *testing.T) {
	svc := NewScoringService(nil)

	assert.Equal(t, models.QualityMedium, svc.tierFor(30))
	assert.Equal(t, models.QualityMedium, svc.tierFor(59))
	assert.Equal(t, models.QualityHigh, svc.tierFor(60))
	assert.Equal(t, models.QualityLow, svc.tierFor(29))
	assert.Equal(t, models.QualityLow, svc.tierFor(0))
}

// genScoreInput builds arbitrary score inputs with independently present or
// absent fields.
func genScoreInput() gopter.Gen {
	return gopter.CombineGens(
		gen.PtrOf(gen.AlphaString()),
		gen.PtrOf(gen.AlphaString()),
		gen.PtrOf(gen.AlphaString()),
		gen.PtrOf(gen.IntRange(300, 850)),
		gen.PtrOf(gen.Float64Range(10000, 2000000)),
		gen.PtrOf(gen.Float64Range(10000, 3000000)),
		gen.PtrOf(gen.Float64Range(0, 1000000)),
		gen.PtrOf(gen.NumString()),
	).Map(func(values []interface{}) LeadScoreInput {
		// PtrOf yields absent values as a bare nil interface, so the
		// assertions must tolerate nil.
		strAt := func(i int) *string {
			p, _ := values[i].(*string)
			return p
		}
		f64At := func(i int) *float64 {
			p, _ := values[i].(*float64)
			return p
		}
		credit, _ := values[3].(*int)
		return LeadScoreInput{
			Phone:       strAt(0),
			FirstName:   strAt(1),
			LastName:    strAt(2),
			CreditScore: credit,
			LoanAmount:  f64At(4),
			HomePrice:   f64At(5),
			DownPayment: f64At(6),
			ZipCode:     strAt(7),
		}
	})
}

func TestScoringProperties(t *testing.T) {
	svc := NewScoringService(nil)
	properties := gopter.NewProperties(nil)

	properties.Property("scoring is deterministic", prop.ForAll(
		func(input LeadScoreInput) bool {
			first := svc.ScoreLead(input)
			second := svc.ScoreLead(input)
			return first == second
		},
		genScoreInput(),
	))

	properties.Property("score is within the additive range", prop.ForAll(
		func(input LeadScoreInput) bool {
			result := svc.ScoreLead(input)
			return result.Score >= 0 && result.Score <= 100
		},
		genScoreInput(),
	))

	properties.Property("adding a phone never lowers the score", prop.ForAll(
		func(input LeadScoreInput) bool {
			input.Phone = nil
			without := svc.ScoreLead(input)
			input.Phone = strPtr("555-0100")
			with := svc.ScoreLead(input)
			return with.Score >= without.Score
		},
		genScoreInput(),
	))

	properties.Property("adding a credit score never lowers the score", prop.ForAll(
		func(input LeadScoreInput) bool {
			input.CreditScore = nil
			without := svc.ScoreLead(input)
			input.CreditScore = intPtr(700)
			with := svc.ScoreLead(input)
			return with.Score >= without.Score
		},
		genScoreInput(),
	))

	properties.Property("tier always matches the score thresholds", prop.ForAll(
		func(input LeadScoreInput) bool {
			result := svc.ScoreLead(input)
			switch {
			case result.Score >= 60:
				return result.Quality == models.QualityHigh
			case result.Score >= 30:
				return result.Quality == models.QualityMedium
			default:
				return result.Quality == models.QualityLow
			}
		},
		genScoreInput(),
	))

	properties.TestingRun(t)
}
