package consumer

import (
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestMqConfig_Complete(t *testing.T) {
	var nilConfig *MqConfig
	assert.False(t, nilConfig.Complete())

	cfg := testConfig()
	assert.True(t, cfg.Complete())

	cfg.Exchange = ""
	cfg.Queues = nil
	// only the connection parameters decide whether the consumer is usable
	assert.True(t, cfg.Complete())

	for _, mutate := range []func(c *MqConfig){
		func(c *MqConfig) { c.Host = "" },
		func(c *MqConfig) { c.Username = "" },
		func(c *MqConfig) { c.Password = "" },
	} {
		cfg := testConfig()
		mutate(cfg)
		assert.False(t, cfg.Complete())
	}
}

func TestMqConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *MqConfig)
		wantErr bool
	}{
		{"valid", func(c *MqConfig) {}, false},
		{"missing exchange", func(c *MqConfig) { c.Exchange = "" }, true},
		{"no queues", func(c *MqConfig) { c.Queues = map[string][]string{} }, true},
		{"empty queue name", func(c *MqConfig) { c.Queues[""] = []string{"k"} }, true},
		{"queue without routing keys", func(c *MqConfig) { c.Queues["q"] = nil }, true},
		{"empty routing key", func(c *MqConfig) { c.Queues["q"] = []string{"k", ""} }, true},
		{"duplicate routing key", func(c *MqConfig) { c.Queues["q"] = []string{"a.b", "a.b"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMqConfig_URI(t *testing.T) {
	t.Run("it should default port and vhost", func(t *testing.T) {
		uri, err := amqp.ParseURI(testConfig().URI())
		require.NoError(t, err)

		assert.Equal(t, "localhost", uri.Host)
		assert.Equal(t, DefaultPort, uri.Port)
		assert.Equal(t, "sfm", uri.Username)
		assert.Equal(t, "secret", uri.Password)
		assert.Equal(t, "/", uri.Vhost)
	})

	t.Run("it should keep explicit port, vhost and escaped credentials", func(t *testing.T) {
		cfg := testConfig()
		cfg.Port = 5673
		cfg.VHost = "sfm"
		cfg.Password = "p@ss:word"

		uri, err := amqp.ParseURI(cfg.URI())
		require.NoError(t, err)

		assert.Equal(t, 5673, uri.Port)
		assert.Equal(t, "sfm", uri.Vhost)
		assert.Equal(t, "p@ss:word", uri.Password)
	})
}

func TestMqConfig_QueueNames(t *testing.T) {
	cfg := testConfig()
	cfg.Queues["aaa"] = []string{"k"}

	assert.Equal(t, []string{"aaa", "harvest_start", "warc_created"}, cfg.QueueNames())
}
