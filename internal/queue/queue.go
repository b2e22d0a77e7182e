package queue

import "context"

const (
	// SubmissionQueue carries accepted messages awaiting provider submission.
	SubmissionQueue = "sms.submit"

	// SubmissionDLQ receives submissions rejected as unprocessable.
	SubmissionDLQ = "dlq.sms.submit"
)

// Publisher publishes submission jobs to the work queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg SubmissionMessage) error
	Close() error
}

// MessageHandler handles a consumed submission job.
type MessageHandler func(ctx context.Context, msg SubmissionMessage) error

// Consumer consumes submission jobs from the work queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}
