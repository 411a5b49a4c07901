package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Message header keys shared with consumers and monitoring. Duplicating the
// correlation and routing data into headers lets downstream tooling filter
// messages without deserializing the JSON payload.
const (
	HeaderCorrelationID = "correlation-id"
	HeaderUserID        = "user-id"
	HeaderTaskType      = "task-type"
	HeaderPriority      = "priority"
	HeaderTimestamp     = "timestamp"
	HeaderStatus        = "status"
)

// envelopeVersion is the protocol version stamped into every published
// message.
const envelopeVersion = "1.0"

// wireTimestamp is the RFC 3339 UTC layout used for envelope and header
// timestamps.
const wireTimestamp = "2006-01-02T15:04:05.000Z07:00"

// Service publishes task messages to the task topic and task results to the
// result topic over a single lazily established broker connection. It is safe
// for concurrent use; the underlying writers serialize wire access
// themselves, and the service only locks around connection lifecycle
// transitions.
type Service struct {
	cfg    *ProducerConfig
	logger zerolog.Logger

	mu   sync.Mutex
	conn *brokerConn
	dial func(ctx context.Context) (*brokerConn, error)

	newCorrelationID func() string
	now              func() time.Time
}

// NewService creates a dispatch service for the given configuration. No
// connection is made until the first operation needs one.
func NewService(cfg *ProducerConfig, logger zerolog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("dispatch: config cannot be nil")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("dispatch: at least one broker address is required")
	}
	svcLogger := logger.With().Str("component", "DispatchService").Logger()
	return &Service{
		cfg:              cfg,
		logger:           svcLogger,
		dial:             kafkaDialer(cfg, svcLogger),
		newCorrelationID: func() string { return uuid.NewString() },
		now:              time.Now,
	}, nil
}

// Connect ensures a live connection to the broker cluster. It is idempotent:
// calling it while already connected is a no-op. Most callers never need it;
// every send and health probe connects on demand.
func (s *Service) Connect(ctx context.Context) error {
	_, err := s.ensureConnected(ctx)
	return err
}

// Close releases the broker connection, flushing any buffered writes. It is
// idempotent, and failures are logged rather than returned: shutdown must not
// fail the caller's own shutdown sequence. The context bounds how long the
// flush may take.
func (s *Service) Close(ctx context.Context) {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return
	}

	closeDone := make(chan error, 1)
	go func() { closeDone <- conn.close() }()

	select {
	case err := <-closeDone:
		if err != nil {
			s.logger.Error().Err(err).Msg("Error closing Kafka writers.")
			return
		}
		s.logger.Info().Msg("Disconnected from Kafka cluster.")
	case <-ctx.Done():
		s.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for Kafka writers to flush and close.")
	}
}

// SendTask publishes a single task to the task topic and returns the
// correlation id generated for this send. The correlation id is the caller's
// only handle for pairing the eventual result with this request; the task id
// is the partition key and stays stable across resends.
func (s *Service) SendTask(ctx context.Context, task TaskMessage) (string, error) {
	if err := task.Validate(); err != nil {
		return "", err
	}
	conn, err := s.ensureConnected(ctx)
	if err != nil {
		return "", err
	}

	msg, correlationID, err := s.taskToMessage(task)
	if err != nil {
		return "", err
	}
	if err := conn.taskWriter.WriteMessages(ctx, msg); err != nil {
		return "", fmt.Errorf("failed to publish task %s: %w", task.ID, err)
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("correlation_id", correlationID).
		Str("task_type", task.Type).
		Str("topic", s.cfg.TaskTopic).
		Msg("Task dispatched.")
	return correlationID, nil
}

// SendBatch publishes all tasks in a single broker batch write and returns
// one correlation id per task, in task order. The batch is one network call,
// not an application-level transaction: if the write fails, none of the
// returned ids are usable and the caller must retry the whole batch. An empty
// batch is a no-op and never dials the broker.
func (s *Service) SendBatch(ctx context.Context, tasks []TaskMessage) ([]string, error) {
	if len(tasks) == 0 {
		return []string{}, nil
	}
	for _, task := range tasks {
		if err := task.Validate(); err != nil {
			return nil, fmt.Errorf("task %q: %w", task.ID, err)
		}
	}
	conn, err := s.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	msgs := make([]kafka.Message, len(tasks))
	correlationIDs := make([]string, len(tasks))
	for i, task := range tasks {
		msgs[i], correlationIDs[i], err = s.taskToMessage(task)
		if err != nil {
			return nil, err
		}
	}
	if err := conn.taskWriter.WriteMessages(ctx, msgs...); err != nil {
		return nil, fmt.Errorf("failed to publish batch of %d tasks: %w", len(tasks), err)
	}

	s.logger.Info().
		Int("task_count", len(tasks)).
		Str("topic", s.cfg.TaskTopic).
		Msg("Task batch dispatched.")
	return correlationIDs, nil
}

// PublishResult publishes the outcome of a previously dispatched task to the
// result topic, keyed by the original task id. The envelope carries only the
// pairing identifiers and the outcome, never the originating task's business
// fields.
func (s *Service) PublishResult(ctx context.Context, result TaskResult) error {
	if err := result.Validate(); err != nil {
		return err
	}
	conn, err := s.ensureConnected(ctx)
	if err != nil {
		return err
	}

	envelope := resultEnvelope{
		TaskResult: result,
		Timestamp:  s.now().UTC().Format(wireTimestamp),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal result for task %s: %w", result.TaskID, err)
	}

	msg := kafka.Message{
		Key:   []byte(result.TaskID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: HeaderCorrelationID, Value: []byte(result.CorrelationID)},
			{Key: HeaderStatus, Value: []byte(result.Status)},
		},
	}
	if err := conn.resultWriter.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish result for task %s: %w", result.TaskID, err)
	}

	s.logger.Info().
		Str("task_id", result.TaskID).
		Str("correlation_id", result.CorrelationID).
		Str("status", string(result.Status)).
		Str("topic", s.cfg.ResultTopic).
		Msg("Task result published.")
	return nil
}

// IsHealthy reports whether the broker cluster is reachable and the task
// topic exists. It exists to be polled by liveness checks, so every failure
// mode is converted to false; it never returns an error.
func (s *Service) IsHealthy(ctx context.Context) bool {
	conn, err := s.ensureConnected(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Health check could not connect to cluster.")
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	resp, err := conn.admin.Metadata(probeCtx, &kafka.MetadataRequest{})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Health check metadata request failed.")
		return false
	}
	for _, topic := range resp.Topics {
		if topic.Name == s.cfg.TaskTopic && topic.Error == nil {
			return true
		}
	}
	s.logger.Warn().Str("topic", s.cfg.TaskTopic).Msg("Health check did not find task topic.")
	return false
}

// ensureConnected returns the live connection, dialing on first use.
func (s *Service) ensureConnected(ctx context.Context) (*brokerConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn, nil
	}
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return conn, nil
}

// taskToMessage stamps the send-time envelope onto a task and builds the
// Kafka message for it. Each call generates a fresh correlation id, even for
// identical task content.
func (s *Service) taskToMessage(task TaskMessage) (kafka.Message, string, error) {
	task.Priority = task.Priority.orDefault()
	correlationID := s.newCorrelationID()
	timestamp := s.now().UTC().Format(wireTimestamp)

	envelope := taskEnvelope{
		TaskMessage:   task,
		CorrelationID: correlationID,
		Timestamp:     timestamp,
		Version:       envelopeVersion,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return kafka.Message{}, "", fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}

	return kafka.Message{
		Key:   []byte(task.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: HeaderCorrelationID, Value: []byte(correlationID)},
			{Key: HeaderUserID, Value: []byte(task.UserID)},
			{Key: HeaderTaskType, Value: []byte(task.Type)},
			{Key: HeaderPriority, Value: []byte(task.Priority)},
			{Key: HeaderTimestamp, Value: []byte(timestamp)},
		},
	}, correlationID, nil
}
