package rabbitmq

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		pattern    string
		routingKey string
		expected   bool
	}{
		{"harvest.start", "harvest.start", true},
		{"harvest.start", "harvest.stop", false},
		{"harvest.*", "harvest.start", true},
		{"harvest.*", "harvest.start.twitter", false},
		{"harvest.*", "harvest", false},
		{"harvest.#", "harvest", true},
		{"harvest.#", "harvest.start.twitter.search", true},
		{"#", "anything.at.all", true},
		{"#", "", true},
		{"*", "", false},
		{"*", "harvest", true},
		{"", "", true},
		{"", "harvest", false},
		{"*.start.#", "harvest.start", true},
		{"*.start.#", "start", false},
		{"#.warc", "export.warc", true},
		{"#.warc", "warc", true},
		{"#.warc", "warc.created", false},
		{"a.#.z", "a.b.c.z", true},
		{"a.#.z", "a.z", true},
		{"a.#.z", "a.b.c", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" vs "+tt.routingKey, func(t *testing.T) {
			assert.Equal(t, tt.expected, MatchTopic(tt.pattern, tt.routingKey))
		})
	}
}
