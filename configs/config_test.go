package configs

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestQueueBindings_Decode(t *testing.T) {
	t.Run("it should decode queues with ordered routing keys", func(t *testing.T) {
		var q QueueBindings
		err := q.Decode("harvest_start = harvest.start.twitter, harvest.start.flickr.*; warc_created=warc_created;")
		require.NoError(t, err)

		assert.Equal(t, QueueBindings{
			"harvest_start": {"harvest.start.twitter", "harvest.start.flickr.*"},
			"warc_created":  {"warc_created"},
		}, q)
		assert.Equal(t, "harvest_start=harvest.start.twitter,harvest.start.flickr.*;warc_created=warc_created", q.String())
	})

	t.Run("it should keep each routing key once per queue", func(t *testing.T) {
		var q QueueBindings
		require.NoError(t, q.Decode("q=a.b,c;q=a.b;q=d,c"))

		assert.Equal(t, QueueBindings{"q": {"a.b", "c", "d"}}, q)
	})

	t.Run("it should reject malformed entries", func(t *testing.T) {
		for _, value := range []string{"no_equals", "=key", "queue=", "queue= , "} {
			var q QueueBindings
			assert.Error(t, q.Decode(value), value)
		}
	})

	t.Run("it should decode an empty value to no queues", func(t *testing.T) {
		var q QueueBindings
		require.NoError(t, q.Decode(""))
		assert.Empty(t, q)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("RABBIT_HOST", "rabbit")
	t.Setenv("RABBIT_USERNAME", "sfm")
	t.Setenv("RABBIT_PASSWORD", "secret")
	t.Setenv("RABBIT_QUEUES", "harvest_start=harvest.start.#")
	t.Setenv("RABBIT_PUBLISH_RETRY_INTERVAL_SECONDS", "7")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 5672, cfg.RabbitMQ.Port)
	assert.Equal(t, "sfm_exchange", cfg.RabbitMQ.Exchange)
	assert.Equal(t, uint64(5), cfg.RabbitMQ.PublishMaxRetries)
	assert.Equal(t, 7*time.Second, cfg.RabbitMQ.PublishRetryInterval())

	mq := cfg.RabbitMQ.ToMqConfig()
	assert.True(t, mq.Complete())
	assert.NoError(t, mq.Validate())
	assert.Equal(t, map[string][]string{"harvest_start": {"harvest.start.#"}}, mq.Queues)
	assert.Equal(t, mq.URI(), cfg.RabbitMQ.ToRabbitConnectionUri())
}

func TestLoadConfig_IncompleteDisablesConsumer(t *testing.T) {
	t.Setenv("RABBIT_HOST", "")
	t.Setenv("RABBIT_USERNAME", "")
	t.Setenv("RABBIT_PASSWORD", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.RabbitMQ.ToMqConfig().Complete())
}
