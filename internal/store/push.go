package store

import (
	"context"
	"fmt"
	"time"

	"github.com/choreboard/choreboard/internal/model"
)

type PushStore struct {
	db DBTX
}

func NewPushStore(db DBTX) *PushStore {
	return &PushStore{db: db}
}

const pushCols = `id, user_id, family_id, endpoint, p256dh_key, auth_key, device_name, created_at`

func scanSubscription(s scanner) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.Scan(&sub.ID, &sub.UserID, &sub.FamilyID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Save registers a subscription, replacing any earlier row for the same
// endpoint so a re-subscribing browser keeps a single entry.
func (s *PushStore) Save(ctx context.Context, sub model.PushSubscription, now time.Time) (*model.PushSubscription, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, sub.Endpoint); err != nil {
		return nil, fmt.Errorf("replace push subscription: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (user_id, family_id, endpoint, p256dh_key, auth_key, device_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.UserID, sub.FamilyID, sub.Endpoint, sub.P256dhKey, sub.AuthKey, sub.DeviceName, now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+pushCols+` FROM push_subscriptions WHERE id = ?`, id)
	saved, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return saved, nil
}

func (s *PushStore) ListByUser(ctx context.Context, userID int64) ([]model.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pushCols+` FROM push_subscriptions WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions by user: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// Delete removes a user's own subscription. It reports false when nothing matched.
func (s *PushStore) Delete(ctx context.Context, userID, id int64) (bool, error) {
	ok, err := execAffected(ctx, s.db, `DELETE FROM push_subscriptions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete push subscription: %w", err)
	}
	return ok, nil
}

func (s *PushStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint); err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}
