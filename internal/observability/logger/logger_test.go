package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates level parsing used by LOG_LEVEL.
// Scope: Unit Test
// Expected: Known names map to their level; anything else falls back to info.
// Test Case ID: LOG-01
func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

// TestPurpose: Validates the JSON log shape and the attribute helpers.
// Scope: Unit Test
// Expected: Records carry service, tenant and error attributes under stable keys.
// Test Case ID: LOG-02
func TestNew_JSONAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", ServiceName: "propdesk", Output: &buf})

	l.Info("tenant recomputed", TenantID("tnt_1"), Error(errors.New("boom")))
	l.Debug("suppressed")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "propdesk", rec["service"])
	assert.Equal(t, "tnt_1", rec["tenant_id"])
	assert.Equal(t, "boom", rec["error"])
	assert.Equal(t, "tenant recomputed", rec["msg"])
}
