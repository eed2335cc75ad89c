package notifications

import (
	"context"

	"hrerp/internal/domain/auth"
	"hrerp/internal/domain/leave"
	"hrerp/internal/platform/jobs"
)

// Enqueuer accepts background work without blocking.
type Enqueuer interface {
	Enqueue(jobType string, run jobs.RunFunc) bool
}

// Dispatcher hands leave side effects to the job queue so that a status
// change never waits on the notification table or the mail server.
type Dispatcher struct {
	svc   *Service
	queue Enqueuer
}

var _ leave.Notifier = (*Dispatcher)(nil)

func NewDispatcher(svc *Service, queue Enqueuer) *Dispatcher {
	return &Dispatcher{svc: svc, queue: queue}
}

func (d *Dispatcher) Notify(recipient auth.UserID, kind string, payload map[string]any) {
	d.queue.Enqueue(jobs.JobNotificationDispatch, func(ctx context.Context) (any, error) {
		return nil, d.svc.Create(ctx, recipient, kind, payload)
	})
}

func (d *Dispatcher) SendStatusChangeEmail(toEmail string, fields map[string]string) {
	d.queue.Enqueue(jobs.JobStatusEmail, func(ctx context.Context) (any, error) {
		return nil, d.svc.SendStatusChange(ctx, toEmail, fields)
	})
}
