package notifications

import (
	"context"

	"hrerp/internal/domain/auth"
)

type StoreAPI interface {
	CreateNotification(ctx context.Context, userID auth.UserID, ntype, title, body string, payload map[string]any) error
	ListNotifications(ctx context.Context, userID auth.UserID, unreadOnly bool, limit, offset int) ([]Notification, error)
	CountNotifications(ctx context.Context, userID auth.UserID, unreadOnly bool) (int, error)
	MarkRead(ctx context.Context, userID auth.UserID, notificationID string) error
	MarkAllRead(ctx context.Context, userID auth.UserID) (int64, error)
}
