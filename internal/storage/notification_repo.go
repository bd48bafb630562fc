package storage

import (
	"context"
	"fmt"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/models"
)

type NotificationRepo struct {
	db *DB
}

func NewNotificationRepo(db *DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) Create(ctx context.Context, n models.Notification) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO notifications (notification_id, recipient_id, bid_id, type, message, read)
VALUES ($1, $2, $3, $4, $5, FALSE)`,
		n.NotificationID, n.RecipientID, n.BidID, n.Type, n.Message,
	)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (r *NotificationRepo) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT notification_id, recipient_id, bid_id, type, message, read, created_at
FROM notifications
WHERE recipient_id=$1
ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]models.Notification, 0)
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.NotificationID, &n.RecipientID, &n.BidID, &n.Type, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *NotificationRepo) MarkRead(ctx context.Context, userID, notificationID string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE notifications SET read=TRUE WHERE notification_id=$1 AND recipient_id=$2`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE notifications SET read=TRUE WHERE recipient_id=$1`, userID)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}
