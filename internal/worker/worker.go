package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusesi/backend/internal/mail"
	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/pkg/queue"
)

// JobQueue is the queue side the email processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context, keys ...string) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// EmailStatusStore records the delivery outcome on the notification an email mirrors.
type EmailStatusStore interface {
	SetEmailStatus(ctx context.Context, id uuid.UUID, status, errMsg string, at time.Time) error
}

// EmailProcessor delivers queued notification emails.
type EmailProcessor struct {
	queue   JobQueue
	sender  mail.Sender
	status  EmailStatusStore
	backoff time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewEmailProcessor creates an email processor.
func NewEmailProcessor(q JobQueue, sender mail.Sender, status EmailStatusStore, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{
		queue:   q,
		sender:  sender,
		status:  status,
		backoff: queue.RetryBackoff,
		now:     time.Now,
		logger:  logger,
	}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.RecipientEmail == "" {
		p.record(ctx, payload.NotificationID, models.EmailFailed, "recipient has no email address")
		return nil
	}

	err := p.sender.Send(ctx, mail.Message{
		ToAddress: payload.RecipientEmail,
		ToName:    payload.RecipientName,
		Subject:   payload.Subject,
		Body:      payload.Body,
	})
	if err != nil {
		if job.Attempt+1 >= queue.MaxRetries {
			p.record(ctx, payload.NotificationID, models.EmailFailed, err.Error())
		}
		return fmt.Errorf("send email: %w", err)
	}
	p.record(ctx, payload.NotificationID, models.EmailSent, "")
	p.logger.Info("email sent", zap.String("job_id", job.ID), zap.String("user_id", payload.UserID.String()))
	return nil
}

func (p *EmailProcessor) record(ctx context.Context, notificationID uuid.UUID, status, errMsg string) {
	if p.status == nil || notificationID == uuid.Nil {
		return
	}
	if err := p.status.SetEmailStatus(ctx, notificationID, status, errMsg, p.now()); err != nil {
		p.logger.Warn("email status not recorded", zap.String("notification_id", notificationID.String()), zap.Error(err))
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx, queue.QueueEmails)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, p.backoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			sleep(ctx, p.backoff)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
