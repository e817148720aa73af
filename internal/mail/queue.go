package mail

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	queueCapacity = 256
	sendTimeout   = 30 * time.Second
	maxRetries    = 3
	baseDelay     = 500 * time.Millisecond
)

// Queue decouples email dispatch from the request path. Enqueue never
// blocks the caller beyond a full buffer drop; a single worker drains the
// queue with bounded exponential backoff per message.
type Queue struct {
	sender Sender
	logger *zap.Logger
	jobs   chan Message
	done   chan struct{}
}

// NewQueue creates a queue over the sender. Call Start to begin draining.
func NewQueue(sender Sender, logger *zap.Logger) *Queue {
	return &Queue{
		sender: sender,
		logger: logger,
		jobs:   make(chan Message, queueCapacity),
		done:   make(chan struct{}),
	}
}

// Start launches the worker. It exits when ctx is cancelled; pending
// messages are dropped at shutdown, consistent with fire-and-forget.
func (q *Queue) Start(ctx context.Context) {
	go func() {
		defer close(q.done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-q.jobs:
				q.deliver(ctx, msg)
			}
		}
	}()
}

// Wait blocks until the worker has exited.
func (q *Queue) Wait() {
	<-q.done
}

// Enqueue hands a message to the worker. A full buffer drops the message
// with a log line rather than blocking a request.
func (q *Queue) Enqueue(msg Message) {
	select {
	case q.jobs <- msg:
	default:
		q.logger.Warn("mail queue full, dropping message",
			zap.String("subject", msg.Subject))
	}
}

func (q *Queue) deliver(ctx context.Context, msg Message) {
	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(baseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()
		if err := q.sender.Send(sendCtx, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		q.logger.Error("mail delivery dropped after retries",
			zap.String("subject", msg.Subject),
			zap.Error(err))
	}
}
