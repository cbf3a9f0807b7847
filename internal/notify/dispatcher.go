package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/homecouncil/voting-service/pkg/queue"
)

// JobQueue is the consumer side of the notification queue. *queue.Queue
// implements it.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Dispatcher drains the notification queue and delivers each job through a
// Sender, retrying failed deliveries up to the queue's retry limit.
type Dispatcher struct {
	queue  JobQueue
	sender Sender
	logger *zap.Logger
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(q JobQueue, sender Sender, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{queue: q, sender: sender, logger: logger}
}

// Process delivers one job.
func (d *Dispatcher) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeVotingCreated:
		var payload queue.VotingCreatedPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return d.sender.SendVotingCreated(ctx, payload)
	case queue.JobTypeVotingDecided:
		var payload queue.VotingDecidedPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return d.sender.SendVotingDecided(ctx, payload)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// Run starts the dispatcher loop: dequeue, deliver, retry on error.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("notification dispatcher stopping")
			return
		default:
		}

		job, _, err := d.queue.Dequeue(ctx)
		if err != nil {
			d.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		d.logger.Debug("delivering notification", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := d.Process(ctx, job); err != nil {
			d.logger.Error("delivery failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := d.queue.Retry(ctx, job); reErr != nil {
				d.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
