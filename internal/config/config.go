// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cardpath/dispute-resolution-portal/internal/decision"
	"github.com/cardpath/dispute-resolution-portal/internal/retry"
)

// Env holds the configuration values for the application.
type Env struct {
	Region        string
	CardsTable    string
	CaseTable     string
	Bucket        string
	PresignTTL    time.Duration
	Decision      decision.Config
	RetryAttempts int
	RetryBase     time.Duration
	DevBypassAuth bool
}

// MustLoad reads the environment variables and returns an Env struct.
func MustLoad() Env {
	ttlSec := mustInt("PRESIGN_TTL_SECONDS", "300")
	attempts := mustInt("RETRY_MAX_ATTEMPTS", strconv.Itoa(retry.DefaultMaxAttempts))
	baseMS := mustInt("RETRY_BASE_DELAY_MS", strconv.Itoa(int(retry.DefaultBaseDelay/time.Millisecond)))
	devBypass := get("DEV_BYPASS_AUTH", "") == "true"

	e := Env{
		Region:        get("AWS_REGION", "us-east-1"),
		CardsTable:    get("CARDS_TABLE", "dispute_resol_customer_cards_and_transactions"),
		CaseTable:     get("CASE_TABLE", "dispute_resol_case_db"),
		Bucket:        must("S3_BUCKET"),
		PresignTTL:    time.Duration(ttlSec) * time.Second,
		Decision:      loadDecision(),
		RetryAttempts: attempts,
		RetryBase:     time.Duration(baseMS) * time.Millisecond,
		DevBypassAuth: devBypass,
	}
	return e
}

// RetryPolicy builds the retry policy from the loaded knobs.
func (e Env) RetryPolicy() retry.Policy {
	return retry.NewPolicy(e.RetryAttempts, e.RetryBase)
}

// loadDecision reads the business thresholds, falling back to production
// defaults. A malformed threshold is a deployment error worth dying over.
func loadDecision() decision.Config {
	cfg := decision.DefaultConfig()
	if v := os.Getenv("TIME_BARRED_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			panic(fmt.Errorf("bad TIME_BARRED_DAYS %q: %w", v, err))
		}
		cfg.TimeBarredDays = days
	}
	if v := os.Getenv("AUTO_RESOLVE_AMOUNT"); v != "" {
		amt, err := decimal.NewFromString(v)
		if err != nil {
			panic(fmt.Errorf("bad AUTO_RESOLVE_AMOUNT %q: %w", v, err))
		}
		cfg.AutoResolveAmount = amt
	}
	return cfg
}

// mustInt reads an integer environment variable with a fallback. A malformed
// value is a deployment error worth dying over, same as a bad threshold.
func mustInt(k, def string) int {
	v := get(k, def)
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Errorf("bad %s %q: %w", k, v, err))
	}
	return n
}

// get returns the value of the environment variable k or def if not set.
func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// must returns the value of the environment variable k or panics if not set.
func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic(fmt.Errorf("missing env %s", k))
	}
	return v
}
