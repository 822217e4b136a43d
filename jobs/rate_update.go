package jobs

import (
	"context"
	"time"

	"github.com/rateflow/rateflow-backend/services"
	"github.com/sirupsen/logrus"
)

// RateUpdateJob refreshes the cached mortgage rate snapshot every hour so
// the public rates endpoint rarely pays the upstream latency.
type RateUpdateJob struct {
	Rates *services.RateService
}

func NewRateUpdateJob(rates *services.RateService) *RateUpdateJob {
	return &RateUpdateJob{Rates: rates}
}

func (j *RateUpdateJob) Start() {
	logrus.Info("Starting rate update job (runs every 1 hour)...")
	ticker := time.NewTicker(1 * time.Hour)

	go func() {
		// Warm the cache on startup
		j.Run()

		for range ticker.C {
			j.Run()
		}
	}()
}

func (j *RateUpdateJob) Run() {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	snapshot, err := j.Rates.RefreshCurrentRates(ctx)
	if err != nil {
		logrus.Errorf("Rate update job failed: %v", err)
		return
	}

	logrus.Infof("Rate update job completed: refreshed %d products (took %v)",
		len(snapshot.Rates), time.Since(startTime))
}
