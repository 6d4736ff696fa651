package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearTuning blanks the optional knobs so defaults apply regardless of the
// surrounding environment.
func clearTuning(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PRESIGN_TTL_SECONDS", "RETRY_MAX_ATTEMPTS", "RETRY_BASE_DELAY_MS",
		"TIME_BARRED_DAYS", "AUTO_RESOLVE_AMOUNT", "DEV_BYPASS_AUTH",
	} {
		t.Setenv(k, "")
	}
}

func TestMustLoadDefaults(t *testing.T) {
	clearTuning(t)
	t.Setenv("S3_BUCKET", "dispute-docs")

	e := MustLoad()

	assert.Equal(t, 3, e.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, e.RetryBase)
	assert.Equal(t, 300*time.Second, e.PresignTTL)
	assert.Equal(t, 600, e.Decision.TimeBarredDays)
	assert.Equal(t, "100", e.Decision.AutoResolveAmount.String())
	assert.False(t, e.DevBypassAuth)

	policy := e.RetryPolicy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, policy.BaseDelay)
}

func TestMustLoadOverrides(t *testing.T) {
	clearTuning(t)
	t.Setenv("S3_BUCKET", "dispute-docs")
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("RETRY_BASE_DELAY_MS", "250")
	t.Setenv("PRESIGN_TTL_SECONDS", "60")
	t.Setenv("TIME_BARRED_DAYS", "90")
	t.Setenv("AUTO_RESOLVE_AMOUNT", "25.00")

	e := MustLoad()

	assert.Equal(t, 5, e.RetryAttempts)
	assert.Equal(t, 250*time.Millisecond, e.RetryBase)
	assert.Equal(t, time.Minute, e.PresignTTL)
	assert.Equal(t, 90, e.Decision.TimeBarredDays)
	assert.Equal(t, "25", e.Decision.AutoResolveAmount.String())
}

func TestMustLoadRejectsMalformedKnobs(t *testing.T) {
	cases := map[string]string{
		"RETRY_MAX_ATTEMPTS":  "three",
		"RETRY_BASE_DELAY_MS": "half-a-second",
		"PRESIGN_TTL_SECONDS": "5m",
		"TIME_BARRED_DAYS":    "1y",
		"AUTO_RESOLVE_AMOUNT": "a hundred",
	}
	for key, bad := range cases {
		t.Run(key, func(t *testing.T) {
			clearTuning(t)
			t.Setenv("S3_BUCKET", "dispute-docs")
			t.Setenv(key, bad)
			require.Panics(t, func() { MustLoad() })
		})
	}
}

func TestMustLoadRequiresBucket(t *testing.T) {
	clearTuning(t)
	t.Setenv("S3_BUCKET", "")
	require.Panics(t, func() { MustLoad() })
}
