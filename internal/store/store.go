package store

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so every store can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Stores bundles every table store over a single handle.
type Stores struct {
	Families       *FamilyStore
	Users          *UserStore
	Chores         *ChoreStore
	Assignments    *AssignmentStore
	Submissions    *SubmissionStore
	CompletedTasks *CompletedTaskStore
	Recurring      *RecurringStore
	Notifications  *NotificationStore
	Push           *PushStore
	Backups        *BackupStore
}

func New(db DBTX) *Stores {
	return &Stores{
		Families:       NewFamilyStore(db),
		Users:          NewUserStore(db),
		Chores:         NewChoreStore(db),
		Assignments:    NewAssignmentStore(db),
		Submissions:    NewSubmissionStore(db),
		CompletedTasks: NewCompletedTaskStore(db),
		Recurring:      NewRecurringStore(db),
		Notifications:  NewNotificationStore(db),
		Push:           NewPushStore(db),
		Backups:        NewBackupStore(db),
	}
}

type scanner interface{ Scan(...any) error }

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.UTC(), Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time.UTC()
	return &v
}

// execAffected runs an update and reports whether any row matched.
func execAffected(ctx context.Context, db DBTX, query string, args ...any) (bool, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
