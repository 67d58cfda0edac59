//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reply-assistant/internal/config"
)

func TestWithAttachesContextIDs(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf, config.LogConfig{Level: "debug", Format: "json"}, false)

	ctx := WithTraceID(context.Background(), "tr-1")
	ctx = WithTenantID(ctx, "tenant-9")
	ctx = WithJobID(ctx, "job-3")
	With(ctx, base).Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "tr-1", line["trace_id"])
	assert.Equal(t, "tenant-9", line["tenant_id"])
	assert.Equal(t, "job-3", line["job_id"])
	assert.NotContains(t, line, "user_id")
	assert.Equal(t, "tr-1", TraceID(ctx))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, config.LogConfig{Level: "warn"}, false)
	l.Info().Msg("dropped")
	assert.Zero(t, buf.Len())
	l.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "***", Redact("short", false))
	assert.Equal(t, "1234...yz", Redact("1234567890xyz", false))
	assert.Equal(t, "visible", Redact("visible", true))
}
