package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rateflow/rateflow-backend/shared"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

var DB *sql.DB

// Connect establishes the database connection with the default pool configuration.
func Connect(dbURL string) error {
	config := shared.DefaultDatabaseConfig()
	return ConnectWithConfig(dbURL, &config)
}

// ConnectWithConfig establishes the database connection with custom pool configuration.
func ConnectWithConfig(dbURL string, config *shared.DatabaseConfig) error {
	var err error
	DB, err = sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(config.MaxOpenConns)
	DB.SetMaxIdleConns(config.MaxIdleConns)
	DB.SetConnMaxLifetime(config.ConnMaxLifetime)
	DB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), config.PingTimeout)
	defer cancel()

	if err = DB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"max_open_conns":    config.MaxOpenConns,
		"max_idle_conns":    config.MaxIdleConns,
		"conn_max_lifetime": config.ConnMaxLifetime,
	}).Info("Connected to database")

	return nil
}

func Close() {
	if DB != nil {
		DB.Close()
		logrus.Info("Database connection closed")
	}
}

// HealthCheck pings the database and verifies the pool has live connections.
func HealthCheck() error {
	if DB == nil {
		return fmt.Errorf("database connection not established")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	stats := DB.Stats()
	logrus.WithFields(logrus.Fields{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
	}).Debug("Database connection pool health check")

	return nil
}

// Migrate executes the schema file statement by statement. Statements that
// fail against an existing schema are logged and skipped so repeated startups
// are safe.
func Migrate(schemaPath string) error {
	content, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	statements := parseSQLStatements(string(content))

	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		if _, err = DB.Exec(stmt); err != nil {
			logrus.Warnf("Migration statement failed (continuing): %v", err)
		}
	}

	logrus.Info("Database migration completed")
	return nil
}

// parseSQLStatements splits SQL content into individual statements, handling
// multi-line statements and comment-only lines.
func parseSQLStatements(content string) []string {
	var statements []string
	var currentStatement strings.Builder

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}

		if currentStatement.Len() > 0 {
			currentStatement.WriteString(" ")
		}
		currentStatement.WriteString(line)

		if strings.HasSuffix(line, ";") {
			stmt := strings.TrimSpace(strings.TrimSuffix(currentStatement.String(), ";"))
			if stmt != "" {
				statements = append(statements, stmt)
			}
			currentStatement.Reset()
		}
	}

	if currentStatement.Len() > 0 {
		stmt := strings.TrimSpace(currentStatement.String())
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}

	return statements
}

// ValidateSchema checks that the tables and columns the routing pipeline
// depends on exist, and reports anything missing. It never mutates the schema.
func ValidateSchema() error {
	if DB == nil {
		return fmt.Errorf("database connection not established")
	}

	requiredTables := map[string][]string{
		"leads": {
			"id", "email", "phone", "first_name", "last_name",
			"home_price", "loan_amount", "down_payment", "down_payment_percent",
			"credit_score", "property_type", "property_use", "state", "zip_code",
			"loan_type", "loan_term", "interest_rate", "monthly_payment",
			"calculator", "partner_id", "utm_source", "utm_medium", "utm_campaign",
			"quality", "quality_score", "status",
			"routed_lender_id", "lender_bid", "partner_payout",
			"created_at", "updated_at",
		},
		"lenders": {
			"id", "name", "active", "bid_amount", "quality_minimum",
			"target_states", "target_loan_types", "min_loan_amount", "max_loan_amount",
			"max_leads_per_day", "current_leads_today", "webhook_url",
			"created_at", "updated_at",
		},
		"partners": {"id", "name", "email", "active", "created_at"},
		"payouts":  {"id", "partner_id", "lead_id", "amount", "status", "created_at"},
		"events":   {"id", "lead_id", "event_type", "payload", "created_at"},
		"webhook_outbox": {
			"id", "lead_id", "lender_id", "webhook_url", "payload",
			"status", "attempts", "next_attempt_at", "last_error",
			"created_at", "updated_at",
		},
	}

	var missing []string
	for tableName, columns := range requiredTables {
		exists, err := tableExists(tableName)
		if err != nil {
			return fmt.Errorf("failed to check table %s: %w", tableName, err)
		}
		if !exists {
			missing = append(missing, tableName)
			continue
		}

		existingColumns, err := getTableColumns(tableName)
		if err != nil {
			return fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
		}
		for _, column := range columns {
			if _, ok := existingColumns[column]; !ok {
				missing = append(missing, tableName+"."+column)
			}
		}
	}

	if len(missing) > 0 {
		logrus.WithField("missing", missing).Warn("Schema validation found missing tables or columns")
		return fmt.Errorf("schema validation failed: missing %s", strings.Join(missing, ", "))
	}

	logrus.Info("Schema validation passed")
	return nil
}

func tableExists(tableName string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`
	var exists bool
	err := DB.QueryRow(query, tableName).Scan(&exists)
	return exists, err
}

func getTableColumns(tableName string) (map[string]string, error) {
	query := `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
	`
	rows, err := DB.Query(query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make(map[string]string)
	for rows.Next() {
		var columnName, dataType string
		if err := rows.Scan(&columnName, &dataType); err != nil {
			return nil, err
		}
		columns[columnName] = dataType
	}

	return columns, rows.Err()
}
