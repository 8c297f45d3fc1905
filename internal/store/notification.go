package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/choreboard/choreboard/internal/model"
)

type NotificationStore struct {
	db DBTX
}

func NewNotificationStore(db DBTX) *NotificationStore {
	return &NotificationStore{db: db}
}

const notificationCols = `id, family_id, user_id, type, title, message, chore_id, is_read, created_at`

func scanNotification(s scanner) (*model.Notification, error) {
	var n model.Notification
	var choreID sql.NullInt64
	if err := s.Scan(&n.ID, &n.FamilyID, &n.UserID, &n.Type, &n.Title, &n.Message, &choreID, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.ChoreID = int64Ptr(choreID)
	return &n, nil
}

func (s *NotificationStore) Create(ctx context.Context, n model.Notification, now time.Time) (*model.Notification, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (family_id, user_id, type, title, message, chore_id, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		n.FamilyID, n.UserID, n.Type, n.Title, n.Message, nullInt64(n.ChoreID), now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	n.ID = id
	n.IsRead = false
	n.CreatedAt = now.UTC()
	return &n, nil
}

func (s *NotificationStore) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + notificationCols + ` FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// MarkRead flags one of the user's notifications as read. It reports false
// when the notification does not belong to the user.
func (s *NotificationStore) MarkRead(ctx context.Context, userID, id int64) (bool, error) {
	ok, err := execAffected(ctx, s.db, `UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	if ok {
		return true, nil
	}
	// Already-read rows report zero affected rows on MySQL.
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE id = ? AND user_id = ?`, id, userID).Scan(&n); err != nil {
		return false, fmt.Errorf("check notification: %w", err)
	}
	return n > 0, nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.RowsAffected()
}

func (s *NotificationStore) CountUnread(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}
