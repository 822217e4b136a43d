package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/rateflow/rateflow-backend/config"
	"github.com/rateflow/rateflow-backend/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminAppForTest(t *testing.T, token string) (*fiber.App, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	leads := services.NewLeadService(db, services.NewScoringService(nil))
	delivery := services.NewDeliveryService(db, nil, leads, config.DefaultRoutingConfig())
	handler := NewAdminHandler(db, delivery)

	app := fiber.New()
	admin := app.Group("/api/v1/admin", RequireAdminToken(token))
	admin.Post("/lenders", handler.CreateLender)
	admin.Get("/lenders", handler.ListLenders)
	admin.Post("/lenders/reset-counters", handler.ResetCounters)
	admin.Get("/outbox", handler.ListOutbox)
	return app, mock
}

func TestAdminRoutesRejectMissingToken(t *testing.T) {
	app, _ := newAdminAppForTest(t, "secret-token")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/lenders", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/lenders", nil)
	req.Header.Set("X-Admin-Token", "wrong")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminRoutesUnavailableWithoutConfiguredToken(t *testing.T) {
	app, _ := newAdminAppForTest(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/lenders", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestResetCountersZeroesLenders(t *testing.T) {
	app, mock := newAdminAppForTest(t, "secret-token")

	mock.ExpectExec("UPDATE lenders SET current_leads_today = 0").
		WillReturnResult(sqlmock.NewResult(0, 4))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/lenders/reset-counters", nil)
	req.Header.Set("X-Admin-Token", "secret-token")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLenderValidatesInput(t *testing.T) {
	app, mock := newAdminAppForTest(t, "secret-token")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/lenders",
		strings.NewReader(`{"name":"Alpha"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", "secret-token")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLenderInsertsWithDefaults(t *testing.T) {
	app, mock := newAdminAppForTest(t, "secret-token")

	mock.ExpectExec("INSERT INTO lenders").WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/lenders",
		strings.NewReader(`{"name":"Alpha","bidAmount":150,"webhookUrl":"https://hooks.example.com/a","maxLeadsPerDay":25}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", "secret-token")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Active          bool     `json:"active"`
			QualityMinimum  string   `json:"quality_minimum"`
			TargetStates    []string `json:"target_states"`
			TargetLoanTypes []string `json:"target_loan_types"`
			MaxLoanAmount   float64  `json:"max_loan_amount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))

	assert.True(t, body.Data.Active)
	assert.Equal(t, "low", body.Data.QualityMinimum)
	assert.Equal(t, []string{"*"}, body.Data.TargetStates)
	// Omitted loan types become an empty set, never NULL.
	assert.NotNil(t, body.Data.TargetLoanTypes)
	assert.Empty(t, body.Data.TargetLoanTypes)
	assert.Equal(t, float64(10_000_000), body.Data.MaxLoanAmount)
}
