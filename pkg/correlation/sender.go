package correlation

import (
	"context"
	"time"

	"github.com/illmade-knight/go-task-dispatch/pkg/dispatch"
	"github.com/rs/zerolog"
)

// Sender is the dispatching surface of the dispatch service.
type Sender interface {
	SendTask(ctx context.Context, task dispatch.TaskMessage) (string, error)
	SendBatch(ctx context.Context, tasks []dispatch.TaskMessage) ([]string, error)
}

// TrackedSender wraps a Sender and records a dispatch record for every
// correlation id a successful send returns. The core send path stays free of
// storage concerns; tracking failures are logged, never surfaced, since the
// send itself already succeeded.
type TrackedSender struct {
	next    Sender
	tracker Tracker
	logger  zerolog.Logger
	now     func() time.Time
}

// NewTrackedSender wraps next so every successful send is recorded in tracker.
func NewTrackedSender(next Sender, tracker Tracker, logger zerolog.Logger) *TrackedSender {
	return &TrackedSender{
		next:    next,
		tracker: tracker,
		logger:  logger.With().Str("component", "TrackedSender").Logger(),
		now:     time.Now,
	}
}

// SendTask dispatches the task and records its correlation id.
func (s *TrackedSender) SendTask(ctx context.Context, task dispatch.TaskMessage) (string, error) {
	correlationID, err := s.next.SendTask(ctx, task)
	if err != nil {
		return "", err
	}
	s.record(ctx, correlationID, task)
	return correlationID, nil
}

// SendBatch dispatches the batch and records each correlation id against its
// task, preserving the index correspondence the underlying send guarantees.
func (s *TrackedSender) SendBatch(ctx context.Context, tasks []dispatch.TaskMessage) ([]string, error) {
	correlationIDs, err := s.next.SendBatch(ctx, tasks)
	if err != nil {
		return nil, err
	}
	for i, correlationID := range correlationIDs {
		s.record(ctx, correlationID, tasks[i])
	}
	return correlationIDs, nil
}

func (s *TrackedSender) record(ctx context.Context, correlationID string, task dispatch.TaskMessage) {
	priority := task.Priority
	if priority == "" {
		priority = dispatch.PriorityMedium
	}
	d := Dispatch{
		TaskID:       task.ID,
		UserID:       task.UserID,
		TaskType:     task.Type,
		Priority:     priority,
		DispatchedAt: s.now().UTC(),
	}
	if err := s.tracker.Record(ctx, correlationID, d); err != nil {
		s.logger.Error().Err(err).
			Str("correlation_id", correlationID).
			Str("task_id", task.ID).
			Msg("Failed to record dispatch; result pairing via tracker will miss this send.")
	}
}
