package jobs

import (
	"context"
	"time"

	"github.com/rateflow/rateflow-backend/services"
	"github.com/sirupsen/logrus"
)

// OutboxSweepJob retries pending webhook deliveries once per minute. The
// delivery service backoff decides which entries are due; the job just
// drives the sweep.
type OutboxSweepJob struct {
	Delivery *services.DeliveryService
}

func NewOutboxSweepJob(delivery *services.DeliveryService) *OutboxSweepJob {
	return &OutboxSweepJob{Delivery: delivery}
}

func (j *OutboxSweepJob) Start() {
	logrus.Info("Starting outbox sweep job (runs every 1 minute)...")
	ticker := time.NewTicker(1 * time.Minute)

	go func() {
		for range ticker.C {
			j.Run()
		}
	}()
}

func (j *OutboxSweepJob) Run() {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
	defer cancel()

	delivered, err := j.Delivery.SweepDue(ctx)
	if err != nil {
		logrus.Errorf("Outbox sweep failed: %v", err)
		return
	}

	if delivered > 0 {
		logrus.Infof("Outbox sweep delivered %d webhooks (took %v)", delivered, time.Since(startTime))
	}
}
