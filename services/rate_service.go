package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rateflow/rateflow-backend/config"
	"github.com/rateflow/rateflow-backend/database"
	"github.com/rateflow/rateflow-backend/models"
	"github.com/rateflow/rateflow-backend/shared"
	"github.com/sirupsen/logrus"
)

const (
	rateCacheKeyCurrent = "rates:current"
	rateCacheKeyHistory = "rates:history:"
)

// rateProducts maps the public product names to economic-data API series ids.
var rateProducts = map[string]string{
	"30_year_fixed": "MORTGAGE30US",
	"15_year_fixed": "MORTGAGE15US",
	"5_1_arm":       "MORTGAGE5US",
}

// RateService proxies weekly average mortgage rates from the economic-data
// API, with a Redis cache in front and an HTML table fallback for the
// published survey page when the JSON API is unavailable.
type RateService struct {
	Redis       *database.RedisClient
	factory     *shared.HTTPClientFactory
	baseURL     string
	apiKey      string
	fallbackURL string
	cacheTTL    time.Duration
	httpCfg     shared.HTTPConfig
	metrics     *shared.ServiceMetrics
}

func NewRateService(redis *database.RedisClient, cfg *config.Config) *RateService {
	httpCfg := shared.DefaultHTTPConfig()
	return &RateService{
		Redis:       redis,
		factory:     shared.NewHTTPClientFactory(httpCfg.RequestTimeout),
		baseURL:     cfg.RatesAPIBaseURL,
		apiKey:      cfg.RatesAPIKey,
		fallbackURL: "https://www.freddiemac.com/pmms",
		cacheTTL:    cfg.GetRateCacheTTL(),
		httpCfg:     httpCfg,
		metrics:     shared.NewServiceMetrics("rate-service"),
	}
}

// observationsResponse is the shape of the economic-data API's observations
// endpoint.
type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// GetCurrentRates returns the latest observation for every tracked product,
// served from cache when fresh.
func (s *RateService) GetCurrentRates(ctx context.Context) (*models.RateSnapshot, error) {
	if cached := s.readCachedSnapshot(ctx, rateCacheKeyCurrent); cached != nil {
		return cached, nil
	}

	snapshot := &models.RateSnapshot{FetchedAt: time.Now()}
	for product, seriesID := range rateProducts {
		rates, err := s.fetchSeries(ctx, product, seriesID, 1)
		if err != nil {
			logrus.WithError(err).WithField("series_id", seriesID).Warn("Rates API fetch failed, trying survey page fallback")
			return s.fetchSurveyFallback(ctx)
		}
		if len(rates) > 0 {
			snapshot.Rates = append(snapshot.Rates, rates[0])
		}
	}

	s.writeCachedSnapshot(ctx, rateCacheKeyCurrent, snapshot)
	return snapshot, nil
}

// GetRateHistory returns up to weeks weekly observations for one product,
// newest first.
func (s *RateService) GetRateHistory(ctx context.Context, product string, weeks int) ([]models.MortgageRate, error) {
	seriesID, ok := rateProducts[product]
	if !ok {
		return nil, shared.NewServiceError(shared.ErrorCategoryValidation, "UNKNOWN_PRODUCT",
			fmt.Sprintf("unknown rate product %q", product), "rate-service", "GetRateHistory", false, nil)
	}
	if weeks <= 0 || weeks > 520 {
		weeks = 52
	}

	cacheKey := rateCacheKeyHistory + product + ":" + strconv.Itoa(weeks)
	if s.Redis != nil {
		if raw, err := s.Redis.Get(ctx, cacheKey); err == nil {
			var rates []models.MortgageRate
			if json.Unmarshal([]byte(raw), &rates) == nil {
				return rates, nil
			}
		}
	}

	rates, err := s.fetchSeries(ctx, product, seriesID, weeks)
	if err != nil {
		return nil, err
	}

	if s.Redis != nil {
		if raw, marshalErr := json.Marshal(rates); marshalErr == nil {
			if cacheErr := s.Redis.Set(ctx, cacheKey, raw, s.cacheTTL); cacheErr != nil {
				logrus.WithError(cacheErr).Debug("Failed to cache rate history")
			}
		}
	}

	return rates, nil
}

func (s *RateService) fetchSeries(ctx context.Context, product, seriesID string, limit int) ([]models.MortgageRate, error) {
	startTime := time.Now()

	endpoint := fmt.Sprintf("%s/series/observations?series_id=%s&api_key=%s&file_type=json&sort_order=desc&limit=%d",
		s.baseURL, url.QueryEscape(seriesID), url.QueryEscape(s.apiKey), limit)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build rates API request: %w", err)
	}

	client := s.factory.Client(s.httpCfg.RequestTimeout)
	response, err := shared.ExecuteHTTPRequestWithRetry(client, request, s.httpCfg.MaxRetryAttempts)
	if err != nil {
		s.metrics.RecordRequest(false, time.Since(startTime))
		return nil, shared.WrapError(err, shared.ErrorCategoryNetwork, "RATES_API_FAILED", "rate-service", "fetchSeries", true)
	}
	defer response.Body.Close()

	var parsed observationsResponse
	if err := json.NewDecoder(response.Body).Decode(&parsed); err != nil {
		s.metrics.RecordRequest(false, time.Since(startTime))
		return nil, shared.WrapError(err, shared.ErrorCategoryProcessing, "RATES_API_DECODE_FAILED", "rate-service", "fetchSeries", false)
	}

	var rates []models.MortgageRate
	for _, obs := range parsed.Observations {
		// The API reports missing observations as "."
		if obs.Value == "." {
			continue
		}
		value, parseErr := strconv.ParseFloat(obs.Value, 64)
		if parseErr != nil {
			continue
		}
		observedAt, parseErr := time.Parse("2006-01-02", obs.Date)
		if parseErr != nil {
			continue
		}
		rates = append(rates, models.MortgageRate{
			Product:    product,
			SeriesID:   seriesID,
			Rate:       value,
			ObservedAt: observedAt,
			Source:     "api",
		})
	}

	s.metrics.RecordRequest(true, time.Since(startTime))
	return rates, nil
}

// fetchSurveyFallback scrapes the published weekly survey table when the
// JSON API is down. Only the current snapshot is recoverable this way.
func (s *RateService) fetchSurveyFallback(ctx context.Context) (*models.RateSnapshot, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, s.fallbackURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build survey page request: %w", err)
	}

	client := s.factory.Client(s.httpCfg.RequestTimeout)
	response, err := shared.ExecuteHTTPRequestWithRetry(client, request, s.httpCfg.MaxRetryAttempts)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryNetwork, "RATES_FALLBACK_FAILED", "rate-service", "fetchSurveyFallback", true)
	}
	defer response.Body.Close()

	doc, err := goquery.NewDocumentFromReader(response.Body)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryProcessing, "RATES_FALLBACK_PARSE_FAILED", "rate-service", "fetchSurveyFallback", false)
	}

	snapshot := &models.RateSnapshot{FetchedAt: time.Now()}
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		label := strings.ToLower(strings.TrimSpace(cells.Eq(0).Text()))
		valueText := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(cells.Eq(1).Text()), "%"))
		value, parseErr := strconv.ParseFloat(valueText, 64)
		if parseErr != nil {
			return
		}

		var product string
		switch {
		case strings.Contains(label, "30"):
			product = "30_year_fixed"
		case strings.Contains(label, "15"):
			product = "15_year_fixed"
		case strings.Contains(label, "5/1") || strings.Contains(label, "arm"):
			product = "5_1_arm"
		default:
			return
		}

		snapshot.Rates = append(snapshot.Rates, models.MortgageRate{
			Product:    product,
			SeriesID:   rateProducts[product],
			Rate:       value,
			ObservedAt: time.Now(),
			Source:     "survey_page",
		})
	})

	if len(snapshot.Rates) == 0 {
		return nil, shared.NewServiceError(shared.ErrorCategoryProcessing, "RATES_UNAVAILABLE",
			"no rates available from API or survey page", "rate-service", "fetchSurveyFallback", true, nil)
	}

	s.writeCachedSnapshot(ctx, rateCacheKeyCurrent, snapshot)
	return snapshot, nil
}

// RefreshCurrentRates forces a fresh fetch, bypassing and then repopulating
// the cache. Used by the hourly rate update job.
func (s *RateService) RefreshCurrentRates(ctx context.Context) (*models.RateSnapshot, error) {
	if s.Redis != nil {
		if err := s.Redis.Client.Del(ctx, rateCacheKeyCurrent).Err(); err != nil {
			logrus.WithError(err).Debug("Failed to invalidate rate cache before refresh")
		}
	}
	return s.GetCurrentRates(ctx)
}

func (s *RateService) readCachedSnapshot(ctx context.Context, key string) *models.RateSnapshot {
	if s.Redis == nil {
		return nil
	}
	raw, err := s.Redis.Get(ctx, key)
	if err != nil {
		return nil
	}
	var snapshot models.RateSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil
	}
	return &snapshot
}

func (s *RateService) writeCachedSnapshot(ctx context.Context, key string, snapshot *models.RateSnapshot) {
	if s.Redis == nil {
		return
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, key, raw, s.cacheTTL); err != nil {
		logrus.WithError(err).Debug("Failed to cache rate snapshot")
	}
}
