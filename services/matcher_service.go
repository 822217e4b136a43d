package services

import (
	"github.com/rateflow/rateflow-backend/models"
	"github.com/sirupsen/logrus"
)

// MatcherService filters a candidate lender pool down to the lenders eligible
// for a scored lead. The caller supplies only active lenders under their daily
// cap, ordered by bid descending (ties broken by lender id); the matcher
// preserves that order and never re-sorts.
type MatcherService struct{}

func NewMatcherService() *MatcherService {
	return &MatcherService{}
}

// MatchLenders returns the candidates that pass all four eligibility
// predicates, in the caller's order. An empty result is a normal outcome,
// not an error.
func (m *MatcherService) MatchLenders(lead *models.Lead, candidates []models.Lender) []models.Lender {
	eligible := make([]models.Lender, 0, len(candidates))

	for _, lender := range candidates {
		if !m.IsEligible(lead, &lender) {
			continue
		}
		eligible = append(eligible, lender)
	}

	logrus.WithFields(logrus.Fields{
		"lead_id":    lead.ID,
		"candidates": len(candidates),
		"eligible":   len(eligible),
	}).Debug("Matched lenders for lead")

	return eligible
}

// IsEligible applies the per-lender eligibility predicates: quality minimum
// by ordinal rank, state targeting (wildcard allowed), loan type targeting,
// and inclusive loan amount range.
func (m *MatcherService) IsEligible(lead *models.Lead, lender *models.Lender) bool {
	if lead.Quality.Rank() < lender.QualityMinimum.Rank() {
		return false
	}

	if !lender.AcceptsState(lead.State) {
		return false
	}

	// A lead without a loan type cannot satisfy any lender's target set.
	if lead.LoanType == nil || !lender.AcceptsLoanType(*lead.LoanType) {
		return false
	}

	if lead.LoanAmount < lender.MinLoanAmount || lead.LoanAmount > lender.MaxLoanAmount {
		return false
	}

	return true
}
