// Package correlation records what was dispatched under each correlation id,
// giving callers a lookup point for pairing asynchronous results with the
// requests that produced them.
package correlation

import (
	"context"
	"time"

	"github.com/illmade-knight/go-task-dispatch/pkg/dispatch"
)

// Dispatch is the record kept per correlation id: enough to identify the
// originating request without retaining its payload.
type Dispatch struct {
	TaskID       string            `json:"taskId"`
	UserID       string            `json:"userId"`
	TaskType     string            `json:"taskType"`
	Priority     dispatch.Priority `json:"priority"`
	DispatchedAt time.Time         `json:"dispatchedAt"`
}

// Tracker stores and retrieves dispatch records keyed by correlation id.
type Tracker interface {
	// Record stores the dispatch record for a correlation id.
	Record(ctx context.Context, correlationID string, d Dispatch) error
	// Lookup retrieves the dispatch record for a correlation id.
	Lookup(ctx context.Context, correlationID string) (Dispatch, error)
}
