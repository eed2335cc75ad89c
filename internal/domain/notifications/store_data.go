package notifications

import (
	"context"
	"encoding/json"

	"hrerp/internal/domain/auth"
)

func (s *Store) CreateNotification(ctx context.Context, userID auth.UserID, ntype, title, body string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO notifications (user_id, type, title, body, payload)
    VALUES ($1,$2,$3,$4,$5)
  `, string(userID), ntype, title, body, payloadJSON)
	return err
}

func (s *Store) ListNotifications(ctx context.Context, userID auth.UserID, unreadOnly bool, limit, offset int) ([]Notification, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, type, title, body, payload, read_at, created_at
    FROM notifications
    WHERE user_id::text = $1 AND ($2 = false OR read_at IS NULL)
    ORDER BY created_at DESC
    LIMIT $3 OFFSET $4
  `, string(userID), unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var n Notification
		var payload []byte
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Body, &payload, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Payload = map[string]any{}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &n.Payload); err != nil {
				return nil, err
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) CountNotifications(ctx context.Context, userID auth.UserID, unreadOnly bool) (int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM notifications
    WHERE user_id::text = $1 AND ($2 = false OR read_at IS NULL)
  `, string(userID), unreadOnly).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) MarkRead(ctx context.Context, userID auth.UserID, notificationID string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE notifications SET read_at = COALESCE(read_at, now())
    WHERE user_id::text = $1 AND id::text = $2
  `, string(userID), notificationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID auth.UserID) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE notifications SET read_at = now()
    WHERE user_id::text = $1 AND read_at IS NULL
  `, string(userID))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
