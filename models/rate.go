package models

import "time"

// MortgageRate is a single weekly average rate observation for a loan product.
type MortgageRate struct {
	Product    string    `json:"product"`
	SeriesID   string    `json:"series_id"`
	Rate       float64   `json:"rate"`
	ObservedAt time.Time `json:"observed_at"`
	Source     string    `json:"source"`
}

// RateSnapshot bundles the current rate for each tracked product.
type RateSnapshot struct {
	Rates     []MortgageRate `json:"rates"`
	FetchedAt time.Time      `json:"fetched_at"`
}
