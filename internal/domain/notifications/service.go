package notifications

import (
	"context"
	"log/slog"

	"hrerp/internal/domain/auth"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	store       StoreAPI
	Mailer      Mailer
	DefaultFrom string
}

func New(store StoreAPI, mailer Mailer, from string) *Service {
	if from == "" {
		from = "no-reply@example.com"
	}
	return &Service{store: store, Mailer: mailer, DefaultFrom: from}
}

// Create stores an in-app notification rendered from kind and payload.
func (s *Service) Create(ctx context.Context, userID auth.UserID, kind string, payload map[string]any) error {
	title, body := renderInApp(kind, payload)
	return s.store.CreateNotification(ctx, userID, kind, title, body, payload)
}

// SendStatusChange emails the requester about a status change. Failures are
// logged and returned for the job record; nobody upstream waits on them.
func (s *Service) SendStatusChange(ctx context.Context, to string, fields map[string]string) error {
	if s.Mailer == nil || to == "" {
		return nil
	}
	subject, body := renderStatusEmail(fields)
	if err := s.Mailer.Send(ctx, s.DefaultFrom, to, subject, body); err != nil {
		slog.Warn("status email send failed", "requestId", fields["requestId"], "err", err)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID auth.UserID, unreadOnly bool, limit, offset int) ([]Notification, error) {
	return s.store.ListNotifications(ctx, userID, unreadOnly, limit, offset)
}

func (s *Service) Count(ctx context.Context, userID auth.UserID, unreadOnly bool) (int, error) {
	return s.store.CountNotifications(ctx, userID, unreadOnly)
}

func (s *Service) MarkRead(ctx context.Context, userID auth.UserID, notificationID string) error {
	return s.store.MarkRead(ctx, userID, notificationID)
}

func (s *Service) MarkAllRead(ctx context.Context, userID auth.UserID) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}
