//go:build !integration

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reply-assistant/internal/config"
	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
)

func TestDecodePayload(t *testing.T) {
	t.Run("generation job is validated", func(t *testing.T) {
		p, err := decodePayload(model.QueueGeneration, []byte(`{"tenant_id":"t1","user_id":"u1","conversation_id":"c1","trigger":"reply","trigger_text":"hi"}`))
		require.NoError(t, err)
		assert.Equal(t, model.QueueGeneration, p.Queue())

		_, err = decodePayload(model.QueueGeneration, []byte(`{"tenant_id":"t1","trigger":"reply"}`))
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("peripheral payloads decode to their queue", func(t *testing.T) {
		p, err := decodePayload(model.QueueRetention, []byte(`{"older_than_days":30}`))
		require.NoError(t, err)
		assert.Equal(t, model.RetentionPayload{OlderThanDays: 30}, p)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		_, err := decodePayload(model.QueueRetention, []byte(`{"days":30}`))
		assert.Error(t, err)
	})

	t.Run("unknown queue", func(t *testing.T) {
		_, err := decodePayload("emails", []byte(`{}`))
		assert.ErrorContains(t, err, "unknown queue")
	})
}

func TestQueueConfigMapping(t *testing.T) {
	def := config.DefaultQueues()["generation"]
	got := queueConfig(def)
	assert.Equal(t, def.Concurrency, got.Concurrency)
	assert.Equal(t, def.RateLimit.Max, got.RateLimit.Max)
	assert.Equal(t, def.RateLimit.Duration, got.RateLimit.Duration)
	assert.Equal(t, def.Backoff.Base, got.Backoff.Base)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "reply-assistant dev")
}
