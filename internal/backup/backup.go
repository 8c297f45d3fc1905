// Package backup dumps the database, optionally encrypts the dump and keeps
// it in local or S3 storage with a retention window.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/choreboard/choreboard/internal/apperr"
	"github.com/choreboard/choreboard/internal/database"
	"github.com/choreboard/choreboard/internal/model"
	"github.com/choreboard/choreboard/internal/storage"
	"github.com/choreboard/choreboard/internal/store"
)

// Dumper writes a consistent copy of the database to path.
type Dumper interface {
	Dump(ctx context.Context, path string) error
	// Extension is the file extension of the dump format.
	Extension() string
}

// SQLiteDumper snapshots a live SQLite database with VACUUM INTO.
type SQLiteDumper struct {
	DB *sql.DB
}

func (d SQLiteDumper) Dump(ctx context.Context, path string) error {
	if _, err := d.DB.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("vacuum into: %w", err)
	}
	return nil
}

func (SQLiteDumper) Extension() string { return "db" }

// MySQLDumper shells out to mysqldump. The password is passed through
// MYSQL_PWD so it never shows up in the process list.
type MySQLDumper struct {
	DSN    string
	Binary string
}

func (d MySQLDumper) command(ctx context.Context) (*exec.Cmd, error) {
	mc, err := mysql.ParseDSN(d.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	if mc.DBName == "" {
		return nil, errors.New("mysql dsn has no database name")
	}

	args := []string{"--single-transaction", "--quick", "--no-tablespaces"}
	switch mc.Net {
	case "unix":
		args = append(args, "--socket", mc.Addr)
	default:
		host, port, err := net.SplitHostPort(mc.Addr)
		if err != nil {
			host, port = mc.Addr, "3306"
		}
		args = append(args, "-h", host, "-P", port)
	}
	if mc.User != "" {
		args = append(args, "-u", mc.User)
	}
	args = append(args, mc.DBName)

	bin := d.Binary
	if bin == "" {
		bin = "mysqldump"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = append(os.Environ(), "MYSQL_PWD="+mc.Passwd)
	return cmd, nil
}

func (d MySQLDumper) Dump(ctx context.Context, path string) error {
	cmd, err := d.command(ctx)
	if err != nil {
		return err
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create dump file: %w", err)
	}
	defer out.Close()

	var stderr bytes.Buffer
	cmd.Stdout = out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("mysqldump: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out.Close()
}

func (MySQLDumper) Extension() string { return "sql" }

// NewDumper picks the dumper for the configured driver.
func NewDumper(driver, dsn, mysqldump string, db *sql.DB) (Dumper, error) {
	switch driver {
	case database.DriverSQLite, "":
		return SQLiteDumper{DB: db}, nil
	case database.DriverMySQL:
		return MySQLDumper{DSN: dsn, Binary: mysqldump}, nil
	}
	return nil, fmt.Errorf("unsupported driver %q", driver)
}

// Config holds backup manager configuration.
type Config struct {
	// Passphrase enables encryption when non-empty.
	Passphrase    string
	RetentionDays int
}

// State represents the backup manager state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateError   State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// Manager runs one backup at a time and records each run in the backups table.
type Manager struct {
	run sync.Mutex

	mu     sync.RWMutex
	status Status

	cfg     Config
	dumper  Dumper
	dest    storage.Storage
	backups *store.BackupStore
	logger  *slog.Logger
	now     func() time.Time
}

func NewManager(cfg Config, db *sql.DB, dumper Dumper, dest storage.Storage, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		dumper:  dumper,
		dest:    dest,
		backups: store.NewBackupStore(db),
		status:  Status{State: StateIdle},
		logger:  logger.With("component", "backup"),
		now:     time.Now,
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// RunNow takes a backup immediately. A run already in progress yields Conflict.
func (m *Manager) RunNow(ctx context.Context) (*model.Backup, error) {
	if !m.run.TryLock() {
		return nil, apperr.Conflict("a backup is already running")
	}
	defer m.run.Unlock()

	last := m.Status().LastBackup
	m.setStatus(Status{State: StateRunning, InProgress: true, LastBackup: last})

	started := m.now()
	filename := fmt.Sprintf("choreboard-%s.%s", started.UTC().Format("20060102T150405Z"), m.dumper.Extension())
	if m.cfg.Passphrase != "" {
		filename += ".enc"
	}

	record, err := m.backups.Create(ctx, filename, "", started)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error(), LastBackup: last})
		return nil, err
	}

	location, size, err := m.produce(ctx, filename)
	if err != nil {
		if merr := m.backups.MarkFailed(context.WithoutCancel(ctx), record.ID, err.Error(), m.now()); merr != nil {
			m.logger.Error("record failed backup", "backup_id", record.ID, "error", merr)
		}
		m.setStatus(Status{State: StateError, Error: err.Error(), LastBackup: last})
		m.logger.Error("backup failed", "backup_id", record.ID, "error", err)
		return nil, err
	}

	done := m.now()
	if err := m.backups.MarkCompleted(ctx, record.ID, location, size, done); err != nil {
		return nil, err
	}
	m.setStatus(Status{State: StateIdle, LastBackup: &done})
	m.logger.Info("backup completed", "backup_id", record.ID, "location", location,
		"size_bytes", size, "encrypted", m.cfg.Passphrase != "", "duration", done.Sub(started))
	return m.backups.GetByID(ctx, record.ID)
}

func (m *Manager) produce(ctx context.Context, filename string) (string, int64, error) {
	tmpDir, err := os.MkdirTemp("", "choreboard-backup-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	dumpPath := filepath.Join(tmpDir, "dump."+m.dumper.Extension())
	if err := m.dumper.Dump(ctx, dumpPath); err != nil {
		return "", 0, err
	}
	data, err := os.ReadFile(dumpPath)
	if err != nil {
		return "", 0, fmt.Errorf("read dump: %w", err)
	}
	if m.cfg.Passphrase != "" {
		if data, err = Encrypt(data, m.cfg.Passphrase); err != nil {
			return "", 0, fmt.Errorf("encrypt: %w", err)
		}
	}

	location, err := m.dest.Save(ctx, filename, "application/octet-stream", bytes.NewReader(data))
	if err != nil {
		return "", 0, fmt.Errorf("store backup: %w", err)
	}
	return location, int64(len(data)), nil
}

// Cleanup deletes completed backups older than the retention window and
// returns how many were removed.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	if m.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := m.now().AddDate(0, 0, -m.cfg.RetentionDays)
	expired, err := m.backups.ListCompletedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, b := range expired {
		if err := m.dest.Delete(ctx, b.Filename); err != nil && !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("delete backup object", "backup_id", b.ID, "filename", b.Filename, "error", err)
			continue
		}
		if err := m.backups.Delete(ctx, b.ID); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("expired backups removed", "count", removed, "retention_days", m.cfg.RetentionDays)
	}
	return removed, nil
}

// RunScheduled is the periodic job: a backup followed by retention cleanup.
func (m *Manager) RunScheduled(ctx context.Context) error {
	if _, err := m.RunNow(ctx); err != nil {
		return err
	}
	_, err := m.Cleanup(ctx)
	return err
}

func (m *Manager) List(ctx context.Context, limit int) ([]model.Backup, error) {
	list, err := m.backups.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Backup{}
	}
	return list, nil
}

// Open streams the stored bytes of a completed backup.
func (m *Manager) Open(ctx context.Context, id int64) (io.ReadCloser, *model.Backup, error) {
	b, err := m.backups.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !b.Restorable() {
		return nil, nil, apperr.NotFound("backup not found")
	}
	rc, err := m.dest.Open(ctx, b.Filename)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, apperr.NotFound("backup file is missing")
	}
	if err != nil {
		return nil, nil, err
	}
	return rc, b, nil
}

// Restore writes the plain dump of backup id to w, decrypting it with the
// configured passphrase when needed.
func (m *Manager) Restore(ctx context.Context, id int64, w io.Writer) error {
	rc, _, err := m.Open(ctx, id)
	if err != nil {
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	if IsEncrypted(data) {
		if m.cfg.Passphrase == "" {
			return errors.New("backup is encrypted but no passphrase is configured")
		}
		if data, err = Decrypt(data, m.cfg.Passphrase); err != nil {
			return err
		}
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write restored dump: %w", err)
	}
	return nil
}
