package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/choreboard/choreboard/internal/model"
)

type BackupStore struct {
	db DBTX
}

func NewBackupStore(db DBTX) *BackupStore {
	return &BackupStore{db: db}
}

const backupCols = `id, filename, location, size_bytes, status, error_message, started_at, completed_at, created_at`

func scanBackup(s scanner) (*model.Backup, error) {
	var b model.Backup
	var completedAt sql.NullTime
	err := s.Scan(&b.ID, &b.Filename, &b.Location, &b.SizeBytes, &b.Status, &b.ErrorMessage, &b.StartedAt, &completedAt, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.CompletedAt = timePtr(completedAt)
	return &b, nil
}

func (s *BackupStore) Create(ctx context.Context, filename, location string, now time.Time) (*model.Backup, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO backups (filename, location, status, error_message, started_at, created_at) VALUES (?, ?, ?, '', ?, ?)`,
		filename, location, model.BackupStatusRunning, now.UTC(), now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *BackupStore) GetByID(ctx context.Context, id int64) (*model.Backup, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+backupCols+` FROM backups WHERE id = ?`, id)
	b, err := scanBackup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}
	return b, nil
}

func (s *BackupStore) List(ctx context.Context, limit int) ([]model.Backup, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.list(ctx, `SELECT `+backupCols+` FROM backups ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
}

func (s *BackupStore) list(ctx context.Context, query string, args ...any) ([]model.Backup, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var out []model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *BackupStore) MarkFailed(ctx context.Context, id int64, msg string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE backups SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`,
		model.BackupStatusFailed, msg, now.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark backup failed: %w", err)
	}
	return nil
}

func (s *BackupStore) MarkCompleted(ctx context.Context, id int64, location string, size int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE backups SET status = ?, location = ?, size_bytes = ?, completed_at = ? WHERE id = ?`,
		model.BackupStatusCompleted, location, size, now.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark backup completed: %w", err)
	}
	return nil
}

// ListCompletedBefore returns completed backups that started before cutoff.
func (s *BackupStore) ListCompletedBefore(ctx context.Context, cutoff time.Time) ([]model.Backup, error) {
	return s.list(ctx,
		`SELECT `+backupCols+` FROM backups WHERE status = ? AND started_at < ? ORDER BY started_at ASC`,
		model.BackupStatusCompleted, cutoff.UTC(),
	)
}

func (s *BackupStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM backups WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	return nil
}
