package dispatch

import "errors"

// Validation errors returned before anything touches the broker.
var (
	ErrTaskIDRequired        = errors.New("dispatch: task id is required")
	ErrUserIDRequired        = errors.New("dispatch: user id is required")
	ErrTaskTypeRequired      = errors.New("dispatch: task type is required")
	ErrInputRequired         = errors.New("dispatch: task input is required")
	ErrInvalidPriority       = errors.New("dispatch: invalid task priority")
	ErrResultTaskIDRequired  = errors.New("dispatch: result task id is required")
	ErrCorrelationIDRequired = errors.New("dispatch: result correlation id is required")
	ErrInvalidStatus         = errors.New("dispatch: result status must be completed or failed")
)
