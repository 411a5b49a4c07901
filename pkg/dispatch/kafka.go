package dispatch

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// messageWriter is the slice of kafka.Writer the service depends on.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// metadataClient is the slice of kafka.Client used for the health probe.
type metadataClient interface {
	Metadata(ctx context.Context, req *kafka.MetadataRequest) (*kafka.MetadataResponse, error)
}

// brokerConn bundles the per-topic writers and the admin client that together
// make up one logical connection to the cluster.
type brokerConn struct {
	taskWriter   messageWriter
	resultWriter messageWriter
	admin        metadataClient
}

func (c *brokerConn) close() error {
	taskErr := c.taskWriter.Close()
	resultErr := c.resultWriter.Close()
	if taskErr != nil {
		return taskErr
	}
	return resultErr
}

// kafkaDialer builds the dial function used on first send or health probe.
// It verifies the cluster is reachable before handing back writers, so a
// misconfigured broker list fails at connect time rather than on the first
// publish.
func kafkaDialer(cfg *ProducerConfig, logger zerolog.Logger) func(ctx context.Context) (*brokerConn, error) {
	return func(ctx context.Context) (*brokerConn, error) {
		transport := &kafka.Transport{
			ClientID:    cfg.ClientID,
			DialTimeout: 10 * time.Second,
		}
		if cfg.TLSEnabled {
			transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		if cfg.SASLUsername != "" {
			transport.SASL = plain.Mechanism{
				Username: cfg.SASLUsername,
				Password: cfg.SASLPassword,
			}
		}

		admin := &kafka.Client{
			Addr:      kafka.TCP(cfg.Brokers...),
			Timeout:   cfg.SendTimeout,
			Transport: transport,
		}
		if err := probeCluster(ctx, admin, cfg); err != nil {
			return nil, err
		}

		newWriter := func(topic string) *kafka.Writer {
			return &kafka.Writer{
				Addr:      kafka.TCP(cfg.Brokers...),
				Topic:     topic,
				Transport: transport,
				// Hash balancing keeps every message with the same key on the
				// same partition, preserving per-task ordering.
				Balancer:        &kafka.Hash{},
				RequiredAcks:    kafka.RequireAll,
				Compression:     kafka.Gzip,
				MaxAttempts:     cfg.RetryMax,
				WriteBackoffMin: cfg.RetryBackoff,
				WriteTimeout:    cfg.SendTimeout,
			}
		}

		logger.Info().Strs("brokers", cfg.Brokers).Str("client_id", cfg.ClientID).Msg("Connected to Kafka cluster.")
		return &brokerConn{
			taskWriter:   newWriter(cfg.TaskTopic),
			resultWriter: newWriter(cfg.ResultTopic),
			admin:        admin,
		}, nil
	}
}

// probeCluster performs a metadata round trip with the configured retry
// budget. Attempts are bounded; an unreachable cluster surfaces as an error
// rather than retrying forever.
func probeCluster(ctx context.Context, admin metadataClient, cfg *ProducerConfig) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.RetryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(cfg.RetryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return fmt.Errorf("failed to connect to brokers %v: %w", cfg.Brokers, ctx.Err())
			}
		}
		probeCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		_, lastErr = admin.Metadata(probeCtx, &kafka.MetadataRequest{})
		cancel()
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("failed to connect to brokers %v after %d attempts: %w", cfg.Brokers, cfg.RetryMax+1, lastErr)
}
