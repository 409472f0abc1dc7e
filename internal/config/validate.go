package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates all configuration problems found by Validate.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Validate checks the configuration for problems. It returns nil when the
// configuration is usable, or a ValidationErrors listing every issue found.
func (c Config) Validate() error {
	var errs ValidationErrors

	if c.DatabaseURL == "" {
		errs = append(errs, ValidationError{"DATABASE_URL", "must not be empty"})
	}

	if c.HTTPAddr == "" {
		errs = append(errs, ValidationError{"HTTP_ADDR", "must not be empty"})
	}

	errs = append(errs, validateDuration("SCAN_INTERVAL", c.ScanIntervalStr, c.ScanInterval, time.Second)...)
	errs = append(errs, validateDuration("NOTIFY_TIMEOUT", c.NotifyTimeoutStr, c.NotifyTimeout, time.Millisecond)...)
	errs = append(errs, validateDuration("DB_OP_TIMEOUT", c.DBOpTimeoutStr, c.DBOpTimeout, time.Millisecond)...)
	errs = append(errs, validateDuration("DB_CONN_MAX_LIFETIME", c.DBConnMaxLifetimeStr, c.DBConnMaxLifetime, time.Second)...)
	errs = append(errs, validateDuration("DB_CONN_MAX_IDLE_TIME", c.DBConnMaxIdleTimeStr, c.DBConnMaxIdleTime, time.Second)...)
	errs = append(errs, validateDuration("HTTP_SHUTDOWN_TIMEOUT", c.HTTPShutdownTimeoutStr, c.HTTPShutdownTimeout, time.Second)...)
	errs = append(errs, validateDuration("CIRCUIT_BREAKER_COOLDOWN", c.CircuitBreakerCooldownStr, c.CircuitBreakerCooldown, time.Second)...)
	errs = append(errs, validateDuration("LEADER_RETRY_INTERVAL", c.LeaderRetryIntervalStr, c.LeaderRetryInterval, time.Second)...)
	errs = append(errs, validateDuration("LEADER_HEARTBEAT_INTERVAL", c.LeaderHeartbeatIntervalStr, c.LeaderHeartbeatInterval, time.Second)...)
	errs = append(errs, validateDuration("ANALYTICS_WINDOW", c.AnalyticsWindowStr, c.AnalyticsWindow, time.Second)...)
	errs = append(errs, validateDuration("ANALYTICS_RETENTION", c.AnalyticsRetentionStr, c.AnalyticsRetention, time.Minute)...)

	switch c.NotifyPolicy {
	case "mark", "complete":
	default:
		errs = append(errs, ValidationError{"NOTIFY_POLICY", fmt.Sprintf("must be %q or %q, got %q", "mark", "complete", c.NotifyPolicy)})
	}

	if c.NotifyWebhookURL != "" &&
		!strings.HasPrefix(c.NotifyWebhookURL, "http://") &&
		!strings.HasPrefix(c.NotifyWebhookURL, "https://") {
		errs = append(errs, ValidationError{"NOTIFY_WEBHOOK_URL", "must start with http:// or https://"})
	}

	if c.ScanBatchLimit <= 0 {
		errs = append(errs, ValidationError{"SCAN_BATCH_LIMIT", "must be positive"})
	}
	if c.ConflictMaxRetries <= 0 {
		errs = append(errs, ValidationError{"CONFLICT_MAX_RETRIES", "must be positive"})
	}
	if c.MaxRemindersPerUser <= 0 {
		errs = append(errs, ValidationError{"MAX_REMINDERS_PER_USER", "must be positive"})
	}
	if c.CircuitBreakerThreshold < 0 {
		errs = append(errs, ValidationError{"CIRCUIT_BREAKER_THRESHOLD", "must be zero or positive"})
	}
	if c.LeaderElectionEnabled && !c.UsesPostgres() {
		errs = append(errs, ValidationError{"LEADER_ELECTION_ENABLED", "requires a PostgreSQL DATABASE_URL"})
	}
	if c.DBMaxIdleConns > c.DBMaxOpenConns {
		errs = append(errs, ValidationError{"DB_MAX_IDLE_CONNS", "must not exceed DB_MAX_OPEN_CONNS"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateDuration checks that a duration string parsed and meets a minimum.
func validateDuration(field, raw string, parsed, min time.Duration) ValidationErrors {
	if parsed == 0 && raw != "" {
		if _, err := time.ParseDuration(raw); err != nil {
			return ValidationErrors{{field, fmt.Sprintf("invalid duration %q", raw)}}
		}
	}
	if parsed < min {
		return ValidationErrors{{field, fmt.Sprintf("must be at least %s, got %q", min, raw)}}
	}
	return nil
}
