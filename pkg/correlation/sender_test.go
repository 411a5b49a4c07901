package correlation_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/illmade-knight/go-task-dispatch/pkg/correlation"
	"github.com/illmade-knight/go-task-dispatch/pkg/dispatch"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender issues deterministic correlation ids or a canned error.
type fakeSender struct {
	nextID  int
	sendErr error
}

func (f *fakeSender) SendTask(_ context.Context, _ dispatch.TaskMessage) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.nextID++
	return fmt.Sprintf("corr-%d", f.nextID), nil
}

func (f *fakeSender) SendBatch(_ context.Context, tasks []dispatch.TaskMessage) ([]string, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	ids := make([]string, len(tasks))
	for i := range tasks {
		f.nextID++
		ids[i] = fmt.Sprintf("corr-%d", f.nextID)
	}
	return ids, nil
}

// failingTracker always refuses to record.
type failingTracker struct{}

func (failingTracker) Record(context.Context, string, correlation.Dispatch) error {
	return errors.New("tracker unavailable")
}

func (failingTracker) Lookup(context.Context, string) (correlation.Dispatch, error) {
	return correlation.Dispatch{}, errors.New("tracker unavailable")
}

func TestTrackedSender_RecordsSuccessfulSend(t *testing.T) {
	// --- Arrange ---
	ctx := context.Background()
	tracker := correlation.NewInMemoryTracker()
	sender := correlation.NewTrackedSender(&fakeSender{}, tracker, zerolog.Nop())
	task := dispatch.TaskMessage{ID: "t1", UserID: "u1", Type: "VALUATION", Input: map[string]any{}}

	// --- Act ---
	correlationID, err := sender.SendTask(ctx, task)

	// --- Assert ---
	require.NoError(t, err)
	got, err := tracker.Lookup(ctx, correlationID)
	require.NoError(t, err)
	assert.Equal(t, "t1", got.TaskID)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "VALUATION", got.TaskType)
	assert.Equal(t, dispatch.PriorityMedium, got.Priority, "recorded priority matches the defaulted wire value")
	assert.False(t, got.DispatchedAt.IsZero())
}

func TestTrackedSender_RecordsEachBatchEntry(t *testing.T) {
	ctx := context.Background()
	tracker := correlation.NewInMemoryTracker()
	sender := correlation.NewTrackedSender(&fakeSender{}, tracker, zerolog.Nop())
	tasks := []dispatch.TaskMessage{
		{ID: "t1", UserID: "u1", Type: "VALUATION", Input: map[string]any{}},
		{ID: "t2", UserID: "u1", Type: "SUMMARY", Input: map[string]any{}, Priority: dispatch.PriorityLow},
	}

	correlationIDs, err := sender.SendBatch(ctx, tasks)

	require.NoError(t, err)
	require.Len(t, correlationIDs, 2)
	for i, id := range correlationIDs {
		got, err := tracker.Lookup(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, tasks[i].ID, got.TaskID)
	}
}

func TestTrackedSender_FailedSendRecordsNothing(t *testing.T) {
	ctx := context.Background()
	tracker := correlation.NewInMemoryTracker()
	sender := correlation.NewTrackedSender(&fakeSender{sendErr: errors.New("broker down")}, tracker, zerolog.Nop())

	_, err := sender.SendTask(ctx, dispatch.TaskMessage{ID: "t1", UserID: "u1", Type: "VALUATION", Input: map[string]any{}})
	require.Error(t, err)

	_, err = tracker.Lookup(ctx, "corr-1")
	assert.Error(t, err, "a failed send must leave no dispatch record")
}

func TestTrackedSender_TrackerFailureDoesNotFailSend(t *testing.T) {
	sender := correlation.NewTrackedSender(&fakeSender{}, failingTracker{}, zerolog.Nop())

	correlationID, err := sender.SendTask(context.Background(), dispatch.TaskMessage{ID: "t1", UserID: "u1", Type: "VALUATION", Input: map[string]any{}})

	require.NoError(t, err, "the send already succeeded; tracking is best-effort")
	assert.NotEmpty(t, correlationID)
}
