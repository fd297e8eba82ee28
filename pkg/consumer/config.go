package consumer

import (
	"github.com/go-playground/validator/v10"
	amqp "github.com/rabbitmq/amqp091-go"
	"sort"
)

const (
	DefaultPort     = 5672
	DefaultVHost    = "/"
	DefaultExchange = "sfm_exchange"
)

var validate = validator.New()

// MqConfig describes where to consume from: the broker, a topic exchange and
// a mapping of queue names to the routing-key patterns bound to them.
type MqConfig struct {
	Host     string `validate:"required"`
	Port     int
	VHost    string
	Username string `validate:"required"`
	Password string `validate:"required"`
	Exchange string `validate:"required"`
	// Queues maps every queue name to its ordered routing-key patterns, each listed once.
	Queues map[string][]string `validate:"required,min=1,dive,keys,required,endkeys,min=1,unique,dive,required"`
}

// Complete reports whether the connection parameters are present. A consumer built from an
// incomplete config is inert.
func (c *MqConfig) Complete() bool {
	if c == nil {
		return false
	}

	return validate.StructPartial(c, "Host", "Username", "Password") == nil
}

func (c *MqConfig) Validate() error {
	return validate.Struct(c)
}

// URI returns the amqp connection URI for the config.
func (c *MqConfig) URI() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}

	vhost := c.VHost
	if vhost == "" {
		vhost = DefaultVHost
	}

	uri := amqp.URI{
		Scheme:   "amqp",
		Host:     c.Host,
		Port:     port,
		Username: c.Username,
		Password: c.Password,
		Vhost:    vhost,
	}
	return uri.String()
}

// QueueNames returns the configured queue names in sorted order.
func (c *MqConfig) QueueNames() []string {
	names := make([]string, 0, len(c.Queues))
	for name := range c.Queues {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
