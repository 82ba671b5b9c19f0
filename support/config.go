package support

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

type Mode string

const (
	Online  Mode = "online"
	Restore Mode = "restore"
)

type Config struct {
	Mode     Mode   `env:"MODE" envDefault:"online"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":9080"`

	DatabaseURL string `env:"DATABASE_URL"`

	KafkaBrokers         []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic           string        `env:"KAFKA_TOPIC" envDefault:"events"`
	KafkaTopics          []string      `env:"KAFKA_TOPICS" envSeparator:","`
	OnlineConsumerGroup  string        `env:"ONLINE_CONSUMER_GROUP"`
	RestoreConsumerGroup string        `env:"RESTORE_CONSUMER_GROUP"`
	OffsetSyncInterval   time.Duration `env:"OFFSET_SYNC_INTERVAL" envDefault:"10s"`
	RedeliveryInterval   time.Duration `env:"REDELIVERY_INTERVAL" envDefault:"5s"`

	RelayInterval  time.Duration `env:"RELAY_INTERVAL" envDefault:"1s"`
	RelayBatchSize int           `env:"RELAY_BATCH_SIZE" envDefault:"100"`

	NATSURL    string `env:"NATS_URL"`
	NATSStream string `env:"NATS_STREAM" envDefault:"EVENTS"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// LoadConfig reads the process configuration from the environment.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, errors.Wrap(err, "invalid configuration")
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Mode {
	case Online:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required in online mode")
		}
		if len(c.KafkaBrokers) == 0 && c.NATSURL == "" {
			return errors.New("KAFKA_BROKERS or NATS_URL is required in online mode")
		}
	case Restore:
		if c.DatabaseURL == "" || len(c.KafkaBrokers) == 0 {
			return errors.New("DATABASE_URL and KAFKA_BROKERS are required in restore mode")
		}
		if c.OnlineConsumerGroup == "" || c.RestoreConsumerGroup == "" {
			return errors.New("ONLINE_CONSUMER_GROUP and RESTORE_CONSUMER_GROUP are required in restore mode")
		}
	default:
		return errors.Errorf("unknown mode %q", c.Mode)
	}

	return nil
}

// Topics are the topics consumed, defaulting to the published topic.
func (c Config) Topics() []string {
	if len(c.KafkaTopics) > 0 {
		return c.KafkaTopics
	}

	return []string{c.KafkaTopic}
}
