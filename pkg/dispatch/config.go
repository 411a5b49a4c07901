package dispatch

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ProducerConfig holds all connection and publishing settings for the
// dispatch producer.
type ProducerConfig struct {
	// Brokers is the Kafka bootstrap address list, one "host:port" per entry.
	Brokers []string
	// ClientID is the fixed logical identity this producer presents to the
	// cluster, useful for broker-side quota and audit configuration.
	ClientID string
	// TaskTopic is the topic task messages are published to.
	TaskTopic string
	// ResultTopic is the topic task results are published to.
	ResultTopic string
	// TLSEnabled switches the broker connection to TLS.
	TLSEnabled bool
	// SASLUsername enables SASL/PLAIN authentication when non-empty.
	SASLUsername string
	// SASLPassword is the SASL/PLAIN credential paired with SASLUsername.
	SASLPassword string
	// RetryMax bounds the client's own publish retry attempts.
	RetryMax int
	// RetryBackoff is the initial wait between retry attempts.
	RetryBackoff time.Duration
	// SendTimeout bounds each publish round trip, including the wait for
	// all-replica acknowledgment.
	SendTimeout time.Duration
}

// Env constants for producer settings.
const (
	EnvKafkaBrokers      = "KAFKA_BROKERS"
	EnvKafkaClientID     = "KAFKA_CLIENT_ID"
	EnvKafkaTLSEnabled   = "KAFKA_TLS_ENABLED"
	EnvKafkaSASLUsername = "KAFKA_SASL_USERNAME"
	EnvKafkaSASLPassword = "KAFKA_SASL_PASSWORD"
	EnvKafkaRetryMax     = "KAFKA_RETRY_MAX"
	EnvKafkaRetryBackoff = "KAFKA_RETRY_BACKOFF"
	EnvKafkaSendTimeout  = "KAFKA_SEND_TIMEOUT"
)

// Default topic names. The consumer side of both topics lives outside this
// repository; these names are the shared contract.
const (
	DefaultTaskTopic   = "ai-tasks"
	DefaultResultTopic = "ai-results"
)

// NewProducerConfigDefaults provides a config with sensible defaults: a
// single local broker, no TLS or SASL, bounded retries with a short initial
// backoff, and a 30 second send timeout.
func NewProducerConfigDefaults() *ProducerConfig {
	return &ProducerConfig{
		Brokers:      []string{"localhost:9092"},
		ClientID:     "ai-task-producer",
		TaskTopic:    DefaultTaskTopic,
		ResultTopic:  DefaultResultTopic,
		RetryMax:     8,
		RetryBackoff: 100 * time.Millisecond,
		SendTimeout:  30 * time.Second,
	}
}

// LoadProducerConfigWithEnv loads producer configuration from environment
// variables, falling back to defaults for anything unset. Malformed values
// are logged and ignored rather than failing startup.
func LoadProducerConfigWithEnv() *ProducerConfig {
	cfg := NewProducerConfigDefaults()

	if brokers := os.Getenv(EnvKafkaBrokers); brokers != "" {
		parts := strings.Split(brokers, ",")
		cfg.Brokers = cfg.Brokers[:0]
		for _, p := range parts {
			if addr := strings.TrimSpace(p); addr != "" {
				cfg.Brokers = append(cfg.Brokers, addr)
			}
		}
	}
	if clientID := os.Getenv(EnvKafkaClientID); clientID != "" {
		cfg.ClientID = clientID
	}
	if tlsEnabled := os.Getenv(EnvKafkaTLSEnabled); tlsEnabled != "" {
		v, err := strconv.ParseBool(tlsEnabled)
		if err == nil {
			cfg.TLSEnabled = v
		} else {
			log.Warn().Str("value", tlsEnabled).Msg("dispatch: could not parse TLS flag, leaving disabled")
		}
	}
	cfg.SASLUsername = os.Getenv(EnvKafkaSASLUsername)
	cfg.SASLPassword = os.Getenv(EnvKafkaSASLPassword)

	if retries := os.Getenv(EnvKafkaRetryMax); retries != "" {
		v, err := strconv.Atoi(retries)
		if err == nil && v > 0 {
			cfg.RetryMax = v
		} else {
			log.Warn().Str("value", retries).Msg("dispatch: could not parse retry max, using default")
		}
	}
	if backoff := os.Getenv(EnvKafkaRetryBackoff); backoff != "" {
		v, err := time.ParseDuration(backoff)
		if err == nil {
			cfg.RetryBackoff = v
		} else {
			log.Warn().Str("value", backoff).Msg("dispatch: could not parse retry backoff, using default")
		}
	}
	if timeout := os.Getenv(EnvKafkaSendTimeout); timeout != "" {
		v, err := time.ParseDuration(timeout)
		if err == nil {
			cfg.SendTimeout = v
		} else {
			log.Warn().Str("value", timeout).Msg("dispatch: could not parse send timeout, using default")
		}
	}

	return cfg
}
