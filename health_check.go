//go:build ignore

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rateflow/rateflow-backend/config"
	"github.com/rateflow/rateflow-backend/database"
	"github.com/rateflow/rateflow-backend/services"
)

// Standalone diagnostic: run with `go run health_check.go` against a
// configured environment to verify the service's external collaborators.
func main() {
	fmt.Printf("RateFlow Health Check - %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Println(strings.Repeat("=", 50))

	cfg := config.LoadConfig()
	healthScore := 0
	totalTests := 3

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Test 1: Postgres
	fmt.Print("Postgres: ")
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		fmt.Printf("FAILED (%v)\n", err)
	} else if err := database.ValidateSchema(); err != nil {
		fmt.Printf("CONNECTED, schema invalid (%v)\n", err)
	} else {
		fmt.Println("OK")
		healthScore++
	}
	defer database.Close()

	// Test 2: Redis
	fmt.Print("Redis: ")
	redis := database.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	defer redis.Close()
	if err := redis.Ping(ctx); err != nil {
		fmt.Printf("FAILED (%v)\n", err)
	} else {
		fmt.Println("OK")
		healthScore++
	}

	// Test 3: Rates API
	fmt.Print("Rates API: ")
	rates := services.NewRateService(redis, cfg)
	if snapshot, err := rates.GetCurrentRates(ctx); err != nil {
		fmt.Printf("FAILED (%v)\n", err)
	} else {
		fmt.Printf("OK (%d products)\n", len(snapshot.Rates))
		healthScore++
	}

	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Health: %d/%d checks passed\n", healthScore, totalTests)
}
