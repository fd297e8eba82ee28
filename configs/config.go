package configs

import (
	"fmt"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sf7293/sfm-utils/pkg/consumer"
	"log"
	"os"
	"slices"
	"sort"
	"strings"
	"time"
)

type Config struct {
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`
	RabbitMQ   RabbitMQConfig
}

type RabbitMQConfig struct {
	Username                    string        `envconfig:"RABBIT_USERNAME"`
	Password                    string        `envconfig:"RABBIT_PASSWORD"`
	Host                        string        `envconfig:"RABBIT_HOST"`
	Port                        int           `envconfig:"RABBIT_PORT" default:"5672"`
	VHost                       string        `envconfig:"RABBIT_VHOST" default:"/"`
	Exchange                    string        `envconfig:"RABBIT_EXCHANGE" default:"sfm_exchange"`
	Queues                      QueueBindings `envconfig:"RABBIT_QUEUES"`
	ConsumerTag                 string        `envconfig:"RABBIT_CONSUMER_TAG"`
	PublishMaxRetries           uint64        `envconfig:"RABBIT_PUBLISH_MAX_RETRIES" default:"5"`
	PublishRetryIntervalSeconds int64         `envconfig:"RABBIT_PUBLISH_RETRY_INTERVAL_SECONDS" default:"3"`
}

// QueueBindings maps queue names to routing-key patterns. It decodes from
// "queue1=key1,key2;queue2=key3".
type QueueBindings map[string][]string

func (q *QueueBindings) Decode(value string) error {
	bindings := QueueBindings{}
	for _, entry := range strings.Split(value, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		queueName, keys, found := strings.Cut(entry, "=")
		queueName = strings.TrimSpace(queueName)
		if !found || queueName == "" {
			return fmt.Errorf("invalid queue binding %q, expected queue=key1,key2", entry)
		}

		added := 0
		for _, key := range strings.Split(keys, ",") {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}

			added++
			if !slices.Contains(bindings[queueName], key) {
				bindings[queueName] = append(bindings[queueName], key)
			}
		}
		if added == 0 {
			return fmt.Errorf("queue %q has no routing keys", queueName)
		}
	}

	*q = bindings
	return nil
}

func (q QueueBindings) String() string {
	names := make([]string, 0, len(q))
	for name := range q {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]string, 0, len(names))
	for _, name := range names {
		entries = append(entries, name+"="+strings.Join(q[name], ","))
	}

	return strings.Join(entries, ";")
}

func (r RabbitMQConfig) PublishRetryInterval() time.Duration {
	return time.Duration(r.PublishRetryIntervalSeconds) * time.Second
}

// ToMqConfig returns the consumer configuration described by the environment
func (r RabbitMQConfig) ToMqConfig() *consumer.MqConfig {
	return &consumer.MqConfig{
		Host:     r.Host,
		Port:     r.Port,
		VHost:    r.VHost,
		Username: r.Username,
		Password: r.Password,
		Exchange: r.Exchange,
		Queues:   r.Queues,
	}
}

// ToRabbitConnectionUri returns a connection URI to be used with the rabbitmq/amqp091-go package
func (r RabbitMQConfig) ToRabbitConnectionUri() string {
	return r.ToMqConfig().URI()
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("unable to load .env: %w", err)
	}

	var cfg Config
	err = envconfig.Process("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("cannot load env: %w", err)
	}

	return &cfg, nil
}

func InitConfig() *Config {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Unable to load config %v", err)
	}

	return cfg
}
