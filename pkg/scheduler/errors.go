package scheduler

import (
	"errors"
	"fmt"
)

var (
	ErrNotStarted         = errors.New("work engine is not started")
	ErrAlreadyStarted     = errors.New("work engine is already started")
	ErrHandoffClosed      = errors.New("handoff queue is closed")
	ErrHandoffInterrupted = errors.New("interrupted while waiting for queue capacity")
	ErrQueueFull          = errors.New("queue hard capacity reached")
	ErrItemNotNew         = errors.New("work item was already scheduled")
	ErrShutdownTimeout    = errors.New("executor did not terminate in time")
)

// ConfigurationError reports a reference to a queue the engine cannot serve.
type ConfigurationError struct {
	QueueID string
	Reason  string
	Err     error
}

func NewConfigurationError(queueID, reason string) *ConfigurationError {
	return &ConfigurationError{QueueID: queueID, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("queue %q: %s: %v", e.QueueID, e.Reason, e.Err)
	}
	return fmt.Sprintf("queue %q: %s", e.QueueID, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// SubmissionError reports that the handoff queue refused an item.
type SubmissionError struct {
	QueueID string
	WorkID  string
	Err     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("failed to submit work %s to queue %s: %v", e.WorkID, e.QueueID, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func IsSubmissionError(err error) bool {
	var subErr *SubmissionError
	return errors.As(err, &subErr)
}
