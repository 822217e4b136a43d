package shared

import "time"

// DatabaseConfig holds database connection pool configuration.
type DatabaseConfig struct {
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	PingTimeout     time.Duration `json:"ping_timeout"`
}

// DefaultDatabaseConfig returns pool settings suitable for moderate
// concurrent load.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		PingTimeout:     10 * time.Second,
	}
}

// HTTPConfig holds outbound HTTP client configuration.
type HTTPConfig struct {
	RequestTimeout   time.Duration `json:"request_timeout"`
	MaxRetryAttempts int           `json:"max_retries"`
}

// DefaultHTTPConfig returns defaults for outbound calls (rates API, webhooks).
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		RequestTimeout:   10 * time.Second,
		MaxRetryAttempts: 2,
	}
}
