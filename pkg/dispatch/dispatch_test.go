package dispatch

import (
	"context"
	"github.com/sf7293/sfm-utils/internal/domain"
	"github.com/stretchr/testify/assert"
	"testing"
)

func recorder(name string, got *[]string) domain.HandlerFunc {
	return func(ctx context.Context, msg domain.Message, producer domain.Publisher) {
		*got = append(*got, name+":"+msg.RoutingKey)
	}
}

func TestRouter_HandleMessage(t *testing.T) {
	var got []string
	router := NewRouter().
		HandleFunc("harvest.start.twitter", recorder("twitter", &got)).
		HandleFunc("harvest.start.*", recorder("start", &got)).
		HandleFunc("#.warc", recorder("warc", &got))

	for _, key := range []string{"harvest.start.twitter", "harvest.start.flickr", "export.warc", "harvest.stop"} {
		router.HandleMessage(context.Background(), domain.Message{RoutingKey: key}, nil)
	}

	// first match wins; unmatched keys without a fallback are dropped
	assert.Equal(t, []string{
		"twitter:harvest.start.twitter",
		"start:harvest.start.flickr",
		"warc:export.warc",
	}, got)
}

func TestRouter_Fallback(t *testing.T) {
	var got []string
	router := NewRouter().
		HandleFunc("harvest.#", recorder("harvest", &got)).
		Fallback(recorder("fallback", &got))

	router.HandleMessage(context.Background(), domain.Message{RoutingKey: "warc_created"}, nil)
	router.HandleMessage(context.Background(), domain.Message{RoutingKey: "harvest"}, nil)

	assert.Equal(t, []string{"fallback:warc_created", "harvest:harvest"}, got)
}

func TestRouter_Route(t *testing.T) {
	router := NewRouter()
	assert.Nil(t, router.Route("anything"))
}
