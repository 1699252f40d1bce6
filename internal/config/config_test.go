package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// TestPurpose: Validates defaults and environment overrides.
// Scope: Unit Test
// Expected: Unset variables take defaults; malformed values fall back to defaults.
// Test Case ID: CFG-01
func TestLoad_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("BILLING_RECOMPUTE_INTERVAL", "15m")
	t.Setenv("OWNERSHIP_HIDE_FOREIGN", "true")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("RATELIMIT_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "propdesk", cfg.Auth.JWTIssuer)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 15*time.Minute, cfg.Billing.RecomputeInterval)
	assert.True(t, cfg.Billing.HideForeignResources)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
}

// TestPurpose: Validates that insecure or incomplete configuration is refused.
// Scope: Unit Test
// Security: Secret strength
// Expected: Missing DB password and short JWT secrets fail validation.
// Test Case ID: CFG-02
func TestLoad_Validation(t *testing.T) {
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("JWT_SECRET", testSecret)
	_, err := Load()
	assert.ErrorContains(t, err, "DB_PASSWORD")

	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("JWT_SECRET", "short")
	_, err = Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}
