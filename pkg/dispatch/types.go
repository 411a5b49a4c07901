package dispatch

// Priority is an advisory scheduling hint attached to a task. The producer
// does not enforce any ordering based on it; consumers decide what it means.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// valid reports whether p is one of the defined priority levels.
func (p Priority) valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// orDefault returns p, or PriorityMedium when p is unset.
func (p Priority) orDefault() Priority {
	if p == "" {
		return PriorityMedium
	}
	return p
}

// ResultStatus is the terminal outcome of a processed task. There are no
// interim states; a task either completed or failed.
type ResultStatus string

const (
	StatusCompleted ResultStatus = "completed"
	StatusFailed    ResultStatus = "failed"
)

// TaskMessage describes one unit of asynchronous work to submit for
// processing. ID is the caller's stable business identifier and doubles as
// the partition key, so all messages for the same task land in order on the
// same partition. Input is an open payload whose schema belongs to the task
// type; this package does not inspect it.
type TaskMessage struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	Type       string         `json:"type"`
	DocumentID string         `json:"documentId,omitempty"`
	Input      map[string]any `json:"input"`
	Priority   Priority       `json:"priority,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Validate checks the fields required before a task may be sent.
func (t TaskMessage) Validate() error {
	if t.ID == "" {
		return ErrTaskIDRequired
	}
	if t.UserID == "" {
		return ErrUserIDRequired
	}
	if t.Type == "" {
		return ErrTaskTypeRequired
	}
	if t.Input == nil {
		return ErrInputRequired
	}
	if t.Priority != "" && !t.Priority.valid() {
		return ErrInvalidPriority
	}
	return nil
}

// TaskResult reports the outcome of a previously dispatched task. The
// correlation id must be the one returned by the send that dispatched the
// task; it is the only pairing handle across the two topics. Deliberately
// carries none of the task's business fields beyond TaskID.
type TaskResult struct {
	TaskID         string         `json:"taskId"`
	CorrelationID  string         `json:"correlationId"`
	Status         ResultStatus   `json:"status"`
	Result         map[string]any `json:"result,omitempty"`
	Error          string         `json:"error,omitempty"`
	ProcessingTime int64          `json:"processingTime,omitempty"`
}

// Validate checks the fields required before a result may be published.
func (r TaskResult) Validate() error {
	if r.TaskID == "" {
		return ErrResultTaskIDRequired
	}
	if r.CorrelationID == "" {
		return ErrCorrelationIDRequired
	}
	if r.Status != StatusCompleted && r.Status != StatusFailed {
		return ErrInvalidStatus
	}
	return nil
}

// taskEnvelope is the wire form of a task message. The send path stamps the
// correlation id, timestamp and protocol version; everything else is the
// caller's TaskMessage verbatim.
type taskEnvelope struct {
	TaskMessage
	CorrelationID string `json:"correlationId"`
	Timestamp     string `json:"timestamp"`
	Version       string `json:"version"`
}

// resultEnvelope is the wire form of a task result, stamped with the time of
// publication.
type resultEnvelope struct {
	TaskResult
	Timestamp string `json:"timestamp"`
}
