package services

import (
	"strings"

	"github.com/rateflow/rateflow-backend/config"
	"github.com/rateflow/rateflow-backend/models"
)

// LeadScoreInput carries the subset of lead fields that contribute to the
// quality score. Every field is optional; absent fields simply contribute
// no points.
type LeadScoreInput struct {
	Phone       *string
	FirstName   *string
	LastName    *string
	CreditScore *int
	LoanAmount  *float64
	HomePrice   *float64
	DownPayment *float64
	ZipCode     *string
}

// ScoreResult is the computed quality tier and numeric score for a lead.
type ScoreResult struct {
	Quality models.QualityTier `json:"quality"`
	Score   int                `json:"score"`
}

// ScoringService computes lead quality scores. It is pure and deterministic:
// the same input always produces the same result, and adding any contributing
// factor never lowers the score.
type ScoringService struct {
	cfg *config.ScoringConfig
}

func NewScoringService(cfg *config.ScoringConfig) *ScoringService {
	if cfg == nil {
		cfg = config.DefaultScoringConfig()
	}
	return &ScoringService{cfg: cfg}
}

// ScoreLead applies the additive point system and maps the total to a tier.
// Tier thresholds are inclusive lower bounds.
func (s *ScoringService) ScoreLead(input LeadScoreInput) ScoreResult {
	score := 0

	if hasText(input.Phone) {
		score += s.cfg.PhonePoints
	}

	if hasText(input.FirstName) && hasText(input.LastName) {
		score += s.cfg.FullNamePoints
	}

	if input.CreditScore != nil {
		score += s.cfg.CreditScorePoints
	}

	if input.LoanAmount != nil && *input.LoanAmount >= s.cfg.LoanRangeMin && *input.LoanAmount <= s.cfg.LoanRangeMax {
		score += s.cfg.LoanRangePoints
	}

	// Down-payment ratio only counts when both figures are present and the
	// home price is positive.
	if input.HomePrice != nil && input.DownPayment != nil && *input.HomePrice > 0 {
		if *input.DownPayment / *input.HomePrice >= s.cfg.DownPaymentRatio {
			score += s.cfg.DownPaymentPoints
		}
	}

	if hasText(input.ZipCode) {
		score += s.cfg.ZipCodePoints
	}

	return ScoreResult{Quality: s.tierFor(score), Score: score}
}

func (s *ScoringService) tierFor(score int) models.QualityTier {
	switch {
	case score >= s.cfg.HighThreshold:
		return models.QualityHigh
	case score >= s.cfg.MediumThreshold:
		return models.QualityMedium
	default:
		return models.QualityLow
	}
}

func hasText(value *string) bool {
	return value != nil && strings.TrimSpace(*value) != ""
}
