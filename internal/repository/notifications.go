package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/TadashiJei/ICP-QikCard-sub000/internal/domain"
)

const notificationColumns = `
	id, title, message, type, user_id, is_read, metadata, created_at`

func scanNotification(row pgx.Row) (domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(
		&n.ID,
		&n.Title,
		&n.Message,
		&n.Type,
		&n.UserID,
		&n.IsRead,
		&n.Metadata,
		&n.CreatedAt,
	)
	return n, err
}

func (s *Store) CreateNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (
			id, title, message, type, user_id, is_read, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.Title, n.Message, n.Type, n.UserID, n.IsRead, n.Metadata, n.CreatedAt)
	if err != nil {
		return domain.Notification{}, domain.Storage(err)
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, isRead *bool, kind string) ([]domain.Notification, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE ($1 = '' OR user_id = $1)
		  AND ($2::boolean IS NULL OR is_read = $2)
		  AND ($3 = '' OR type = $3)
		ORDER BY created_at DESC
	`, userID, isRead, kind)
	if err != nil {
		return nil, domain.Storage(err)
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, domain.Storage(err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage(err)
	}
	return notifications, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) (domain.Notification, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE notifications
		SET is_read = TRUE
		WHERE id = $1
		RETURNING `+notificationColumns,
		id)
	n, err := scanNotification(row)
	if err != nil {
		return domain.Notification{}, translate(err, domain.ErrNotificationNotFound, domain.ErrNotificationNotFound)
	}
	return n, nil
}
