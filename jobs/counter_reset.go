package jobs

import (
	"context"
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"
)

// CounterResetJob zeroes every lender's daily routed-lead counter shortly
// after midnight UTC so daily caps start fresh.
type CounterResetJob struct {
	DB *sql.DB
}

func NewCounterResetJob(db *sql.DB) *CounterResetJob {
	return &CounterResetJob{DB: db}
}

func (j *CounterResetJob) Start() {
	logrus.Info("Starting lender counter reset job (runs daily at midnight UTC)...")

	go func() {
		for {
			now := time.Now().UTC()
			next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
			time.Sleep(time.Until(next))
			j.Run()
		}
	}()
}

func (j *CounterResetJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := j.DB.ExecContext(ctx,
		`UPDATE lenders SET current_leads_today = 0, updated_at = NOW() WHERE current_leads_today > 0`)
	if err != nil {
		logrus.Errorf("Lender counter reset failed: %v", err)
		return
	}

	affected, _ := result.RowsAffected()
	logrus.Infof("Lender counter reset completed: %d lenders reset", affected)
}
