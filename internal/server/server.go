package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/choreboard/choreboard/internal/account"
	"github.com/choreboard/choreboard/internal/auth"
	"github.com/choreboard/choreboard/internal/backup"
	"github.com/choreboard/choreboard/internal/chore"
	"github.com/choreboard/choreboard/internal/config"
	"github.com/choreboard/choreboard/internal/email"
	"github.com/choreboard/choreboard/internal/handler"
	"github.com/choreboard/choreboard/internal/middleware"
	"github.com/choreboard/choreboard/internal/notify"
	"github.com/choreboard/choreboard/internal/push"
	"github.com/choreboard/choreboard/internal/recurring"
	"github.com/choreboard/choreboard/internal/storage"
	"github.com/choreboard/choreboard/internal/store"
	"github.com/choreboard/choreboard/internal/upload"
	ws "github.com/choreboard/choreboard/internal/websocket"
)

type Server struct {
	cfg *config.Config
	db  *sql.DB
	hub *ws.Hub

	accounts  *account.Service
	chores    *chore.Service
	generator *recurring.Generator
	backups   *backup.Manager
	limits    middleware.LimitStore

	authH         *handler.AuthHandler
	userH         *handler.UserHandler
	choreH        *handler.ChoreHandler
	recurringH    *handler.RecurringHandler
	notificationH *handler.NotificationHandler
	pushH         *handler.PushHandler
	backupH       *handler.BackupHandler
	uploadH       *handler.UploadHandler

	logger *slog.Logger
}

// New wires every service the API needs on top of db.
func New(ctx context.Context, db *sql.DB, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	loc := cfg.Location()
	hub := ws.NewHub(logger.With("component", "websocket"))
	stores := store.New(db)

	photoStore, err := photoStorage(cfg)
	if err != nil {
		return nil, err
	}
	photos := upload.NewPhotos(photoStore, cfg.Uploads.MaxBytes)

	backups, err := NewBackupManager(db, cfg, logger)
	if err != nil {
		return nil, err
	}

	mailer, err := email.New(ctx, cfg.Email.Region, cfg.Email.FromEmail, cfg.Email.FromName)
	if err != nil {
		return nil, fmt.Errorf("email sender: %w", err)
	}

	opts := notify.Options{Hub: hub, BaseURL: cfg.BaseURL}
	var keys handler.VAPIDKeyer
	if svc := push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subscriber); svc != nil {
		opts.Pusher = svc
		keys = svc
	}
	if mailer.Configured() {
		opts.Mailer = mailer
	}
	dispatcher := notify.NewDispatcher(db, opts, logger)

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
	accounts := account.NewService(db, tokens, logger)
	chores := chore.NewService(db, dispatcher, photos, logger)
	generator := recurring.NewGenerator(db, dispatcher, loc, logger)
	recurringSvc := recurring.NewService(stores, generator, loc, logger)

	rs := handler.NewResponder(logger.With("component", "http"), !cfg.IsProduction())

	logger.Info("services ready",
		"timezone", loc.String(),
		"photo_storage", storageKind(cfg.Uploads.UseS3 && cfg.S3.Enabled()),
		"backup_storage", storageKind(cfg.S3.Enabled()),
		"push", keys != nil,
		"email", mailer.Configured(),
	)

	return &Server{
		cfg:           cfg,
		db:            db,
		hub:           hub,
		accounts:      accounts,
		chores:        chores,
		generator:     generator,
		backups:       backups,
		limits:        middleware.NewMemoryStore(),
		authH:         handler.NewAuthHandler(rs, accounts),
		userH:         handler.NewUserHandler(rs, accounts, chores),
		choreH:        handler.NewChoreHandler(rs, chores, photos.MaxBytes()+1<<20),
		recurringH:    handler.NewRecurringHandler(rs, recurringSvc),
		notificationH: handler.NewNotificationHandler(rs, stores.Notifications),
		pushH:         handler.NewPushHandler(rs, stores.Push, keys),
		backupH:       handler.NewBackupHandler(rs, backups),
		uploadH:       handler.NewUploadHandler(rs, photos, chores),
		logger:        logger,
	}, nil
}

func storageKind(s3 bool) string {
	if s3 {
		return "s3"
	}
	return "local"
}

func photoStorage(cfg *config.Config) (storage.Storage, error) {
	if cfg.Uploads.UseS3 && cfg.S3.Enabled() {
		return storage.NewS3(s3Config(cfg.S3, "uploads/")), nil
	}
	return storage.NewLocal(cfg.Uploads.Dir)
}

// NewBackupManager wires the dumper for the configured driver to the backup
// destination: S3 when configured, the local backup directory otherwise.
func NewBackupManager(db *sql.DB, cfg *config.Config, logger *slog.Logger) (*backup.Manager, error) {
	dest, err := backupStorage(cfg)
	if err != nil {
		return nil, err
	}
	dumper, err := backup.NewDumper(cfg.Database.Driver, cfg.Database.DSN, cfg.Backup.MysqldumpPath, db)
	if err != nil {
		return nil, err
	}
	return backup.NewManager(backup.Config{
		Passphrase:    cfg.Backup.Passphrase,
		RetentionDays: cfg.Backup.RetentionDays,
	}, db, dumper, dest, logger.With("component", "backup")), nil
}

func backupStorage(cfg *config.Config) (storage.Storage, error) {
	if cfg.S3.Enabled() {
		return storage.NewS3(s3Config(cfg.S3, "backups/")), nil
	}
	return storage.NewLocal(cfg.Backup.Dir)
}

func s3Config(c config.S3Config, prefix string) storage.S3Config {
	return storage.S3Config{
		Endpoint:  c.Endpoint,
		Bucket:    c.Bucket,
		Region:    c.Region,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Prefix:    prefix,
	}
}

// Generator returns the recurring chore generator for scheduled runs.
func (s *Server) Generator() *recurring.Generator {
	return s.generator
}

// Chores returns the chore service for the expiry job.
func (s *Server) Chores() *chore.Service {
	return s.chores
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backups
}

// LimitStore returns the rate limit store for sweeping.
func (s *Server) LimitStore() middleware.LimitStore {
	return s.limits
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()
	rl := s.cfg.RateLimit
	httpLogger := s.logger.With("component", "http")

	authLimit := middleware.RateLimit(s.limits, "auth", rl.AuthLimit, rl.Window, httpLogger)

	// Public routes (no auth required)
	outerMux.Handle("POST /api/auth/register", authLimit(http.HandlerFunc(s.authH.Register)))
	outerMux.Handle("POST /api/auth/join", authLimit(http.HandlerFunc(s.authH.Join)))
	outerMux.Handle("POST /api/auth/login", authLimit(http.HandlerFunc(s.authH.Login)))
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.accounts, s.originPatterns(), s.logger.With("component", "websocket")))

	// Protected routes, wrapped with RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	requireAuth := middleware.RequireAuth(s.accounts, httpLogger)
	apiLimit := middleware.RateLimit(s.limits, "api", rl.APILimit, rl.Window, httpLogger)
	outerMux.Handle("/", middleware.Chain(protectedMux, apiLimit, requireAuth))

	return middleware.Chain(outerMux,
		middleware.Recover(httpLogger),
		middleware.RequestLogger(httpLogger),
	)
}

func (s *Server) originPatterns() []string {
	u, err := url.Parse(s.cfg.BaseURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "database unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "success"})
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	parent := func(h http.HandlerFunc) http.Handler { return middleware.RequireParent(h) }

	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Family members
	mux.HandleFunc("GET /api/users", s.userH.List)
	mux.Handle("POST /api/users", parent(s.userH.Create))
	mux.Handle("PATCH /api/users/{id}", parent(s.userH.Update))
	mux.HandleFunc("GET /api/users/{id}/chores", s.userH.Chores)
	mux.HandleFunc("GET /api/users/{id}/completed", s.userH.Completed)

	// Chore API routes
	mux.Handle("POST /api/chores", parent(s.choreH.Create))
	mux.HandleFunc("GET /api/chores", s.choreH.List)
	mux.HandleFunc("GET /api/chores/summary", s.choreH.Summary)
	mux.HandleFunc("GET /api/chores/{id}", s.choreH.Get)
	mux.HandleFunc("PATCH /api/chores/{id}", s.choreH.Update)
	mux.Handle("DELETE /api/chores/{id}", parent(s.choreH.Delete))
	mux.Handle("POST /api/chores/{id}/assign", parent(s.choreH.Assign))
	mux.HandleFunc("POST /api/chores/{id}/accept", s.choreH.Accept)
	mux.HandleFunc("POST /api/chores/{id}/decline", s.choreH.Decline)
	mux.HandleFunc("POST /api/chores/{id}/submit", s.choreH.Submit)
	mux.Handle("POST /api/chores/{id}/approve", parent(s.choreH.Approve))
	mux.Handle("POST /api/chores/{id}/reject", parent(s.choreH.Reject))

	// Recurring chore API routes
	mux.HandleFunc("GET /api/recurring", s.recurringH.List)
	mux.Handle("POST /api/recurring", parent(s.recurringH.Create))
	mux.Handle("POST /api/recurring/generate", parent(s.recurringH.Generate))
	mux.HandleFunc("GET /api/recurring/{id}", s.recurringH.Get)
	mux.Handle("PUT /api/recurring/{id}", parent(s.recurringH.Update))
	mux.Handle("DELETE /api/recurring/{id}", parent(s.recurringH.Delete))
	mux.HandleFunc("GET /api/recurring/{id}/history", s.recurringH.History)

	// Notifications
	mux.HandleFunc("GET /api/notifications", s.notificationH.List)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.notificationH.MarkRead)
	mux.HandleFunc("POST /api/notifications/read-all", s.notificationH.MarkAllRead)

	// Push notification API routes
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)

	// Backups
	mux.Handle("GET /api/backups", parent(s.backupH.List))
	mux.Handle("POST /api/backups", parent(s.backupH.Create))
	mux.Handle("GET /api/backups/{id}/download", parent(s.backupH.Download))

	// Uploaded photos
	mux.HandleFunc("GET /uploads/{key...}", s.uploadH.Serve)
}
