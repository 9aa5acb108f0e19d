package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const (
	DATE_PARSE_FORMAT  = "2006-01-02"
	CLOCK_PARSE_FORMAT = "15:04"
	TIME_PARSE_FORMAT  = "2006-01-02 15:04:05 -07:00"
)

func durationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	mins, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(mins) * time.Minute
}

// WaitlistClaimWindow is how long a notified waitlist entry has to check
// out before it expires and the queue advances.
func WaitlistClaimWindow() time.Duration {
	return durationEnv("WAITLIST_CLAIM_WINDOW", time.Hour)
}

// OrderExpirationWindow is how long an unpaid, non-exempt order may sit
// pending before the sweeper rejects it.
func OrderExpirationWindow() time.Duration {
	return durationEnv("ORDER_EXPIRATION_WINDOW", 24*time.Hour)
}

func SweepInterval() time.Duration {
	return durationEnv("SWEEP_INTERVAL", 5*time.Minute)
}

func WaitlistFeatureEnabled() bool {
	return os.Getenv("WAITLIST_ENABLED") != "false"
}
