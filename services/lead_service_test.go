package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rateflow/rateflow-backend/config"
	"github.com/rateflow/rateflow-backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLeadServiceForTest(t *testing.T) (*LeadService, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewLeadService(db, NewScoringService(nil)), mock
}

func TestCreateLeadInputValidation(t *testing.T) {
	valid := &CreateLeadInput{
		Email:      "a@b.com",
		HomePrice:  f64Ptr(400000),
		LoanAmount: f64Ptr(320000),
		State:      "FL",
	}
	assert.Nil(t, valid.Validate())

	empty := &CreateLeadInput{}
	err := empty.Validate()
	require.NotNil(t, err)
	assert.ElementsMatch(t, []string{"email", "homePrice", "loanAmount", "state"}, err.MissingFields)

	noAt := &CreateLeadInput{
		Email:      "plainaddress",
		HomePrice:  f64Ptr(400000),
		LoanAmount: f64Ptr(320000),
		State:      "FL",
	}
	err = noAt.Validate()
	require.NotNil(t, err)
	assert.Equal(t, []string{"email"}, err.MissingFields)
}

func TestCreateLeadDerivesDownPayment(t *testing.T) {
	svc, mock := newLeadServiceForTest(t)

	mock.ExpectExec("INSERT INTO leads").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(0, 1))

	lead, err := svc.CreateLead(context.Background(), &CreateLeadInput{
		Email:      "a@b.com",
		HomePrice:  f64Ptr(400000),
		LoanAmount: f64Ptr(320000),
		State:      "fl",
	})
	require.NoError(t, err)

	require.NotNil(t, lead.DownPayment)
	assert.Equal(t, 80000.0, *lead.DownPayment)
	require.NotNil(t, lead.DownPaymentPercent)
	assert.Equal(t, 20.0, *lead.DownPaymentPercent)

	// State is normalized, status starts as new, and the id is app-assigned.
	assert.Equal(t, "FL", lead.State)
	assert.Equal(t, models.LeadStatusNew, lead.Status)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", lead.ID.String())

	// Derived figures feed the score: +20 loan range, +10 down payment ratio.
	assert.Equal(t, 30, lead.QualityScore)
	assert.Equal(t, models.QualityMedium, lead.Quality)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLeadKeepsExplicitDownPayment(t *testing.T) {
	svc, mock := newLeadServiceForTest(t)

	mock.ExpectExec("INSERT INTO leads").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(0, 1))

	lead, err := svc.CreateLead(context.Background(), &CreateLeadInput{
		Email:       "a@b.com",
		HomePrice:   f64Ptr(400000),
		LoanAmount:  f64Ptr(320000),
		DownPayment: f64Ptr(20000),
		State:       "FL",
	})
	require.NoError(t, err)

	require.NotNil(t, lead.DownPayment)
	assert.Equal(t, 20000.0, *lead.DownPayment)
	require.NotNil(t, lead.DownPaymentPercent)
	assert.Equal(t, 5.0, *lead.DownPaymentPercent)

	// A 5% down payment misses the ratio threshold; only loan range counts.
	assert.Equal(t, 20, lead.QualityScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLeadTwiceYieldsIndependentLeads(t *testing.T) {
	svc, mock := newLeadServiceForTest(t)

	input := &CreateLeadInput{
		Email:      "a@b.com",
		HomePrice:  f64Ptr(400000),
		LoanAmount: f64Ptr(320000),
		State:      "FL",
	}

	mock.ExpectExec("INSERT INTO leads").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO leads").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(0, 1))

	first, err := svc.CreateLead(context.Background(), input)
	require.NoError(t, err)
	second, err := svc.CreateLead(context.Background(), input)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCandidateLendersScansTargetArrays(t *testing.T) {
	svc, mock := newLeadServiceForTest(t)

	mock.ExpectQuery(`SELECT (.+) FROM lenders`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "active", "bid_amount", "quality_minimum",
			"target_states", "target_loan_types", "min_loan_amount", "max_loan_amount",
			"max_leads_per_day", "current_leads_today", "webhook_url",
		}).AddRow(
			"7d444840-9dc0-11d1-b245-5ffdce74fad2", "Alpha", true, 200.0, "low",
			"{*}", "{conventional,fha}", 100000.0, 1000000.0, 50, 3, "https://lender.example.com/hook",
		))

	lenders, err := svc.GetCandidateLenders(context.Background(), config.DefaultRoutingConfig())
	require.NoError(t, err)
	require.Len(t, lenders, 1)

	assert.Equal(t, "Alpha", lenders[0].Name)
	assert.True(t, lenders[0].AcceptsState("NY"))
	assert.True(t, lenders[0].AcceptsLoanType("fha"))
	assert.False(t, lenders[0].AcceptsLoanType("jumbo"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
