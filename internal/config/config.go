package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration. Values are resolved in order:
// built-in defaults, CHOREBOARD_* environment variables (a .env file in the
// working directory fills unset ones), then the YAML file.
type Config struct {
	Addr        string          `yaml:"addr"`
	Environment string          `yaml:"environment"`
	BaseURL     string          `yaml:"base_url"`
	Timezone    string          `yaml:"timezone"`
	Log         LogConfig       `yaml:"log"`
	Database    DatabaseConfig  `yaml:"database"`
	Auth        AuthConfig      `yaml:"auth"`
	Uploads     UploadConfig    `yaml:"uploads"`
	S3          S3Config        `yaml:"s3"`
	Email       EmailConfig     `yaml:"email"`
	Push        PushConfig      `yaml:"push"`
	Backup      BackupConfig    `yaml:"backup"`
	Scheduler   SchedulerConfig `yaml:"scheduler"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`
}

type UploadConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
	// UseS3 stores chore photos in the S3 bucket instead of Dir.
	UseS3 bool `yaml:"use_s3"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Enabled reports whether enough is configured to talk to a bucket.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type EmailConfig struct {
	Region    string `yaml:"region"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subscriber      string `yaml:"subscriber"`
}

type BackupConfig struct {
	Dir           string        `yaml:"dir"`
	Interval      time.Duration `yaml:"interval"`
	Passphrase    string        `yaml:"passphrase"`
	RetentionDays int           `yaml:"retention_days"`
	MysqldumpPath string        `yaml:"mysqldump_path"`
}

type SchedulerConfig struct {
	GenerateInterval  time.Duration `yaml:"generate_interval"`
	ExpireAssignments bool          `yaml:"expire_assignments"`
	ExpireInterval    time.Duration `yaml:"expire_interval"`
}

type RateLimitConfig struct {
	AuthLimit  int           `yaml:"auth_limit"`
	APILimit   int           `yaml:"api_limit"`
	Window     time.Duration `yaml:"window"`
	SweepEvery time.Duration `yaml:"sweep_every"`
}

// IsProduction reports whether internal error details must be hidden from clients.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load builds a Config from defaults and the environment, then overlays the
// YAML file at path when path is non-empty.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Addr:        getEnv("CHOREBOARD_ADDR", ":8080"),
		Environment: getEnv("CHOREBOARD_ENV", "development"),
		BaseURL:     getEnv("CHOREBOARD_BASE_URL", "http://localhost:8080"),
		Timezone:    getEnv("CHOREBOARD_TIMEZONE", "UTC"),
		Log: LogConfig{
			Level:  getEnv("CHOREBOARD_LOG_LEVEL", "info"),
			Format: getEnv("CHOREBOARD_LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("CHOREBOARD_DB_DRIVER", "sqlite"),
			DSN:          getEnv("CHOREBOARD_DB_DSN", "choreboard.db"),
			MaxOpenConns: getEnvInt("CHOREBOARD_DB_MAX_OPEN_CONNS", 10),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("CHOREBOARD_JWT_SECRET", ""),
			TokenDuration: getEnvDuration("CHOREBOARD_TOKEN_DURATION", 7*24*time.Hour),
		},
		Uploads: UploadConfig{
			Dir:      getEnv("CHOREBOARD_UPLOAD_DIR", "uploads"),
			MaxBytes: int64(getEnvInt("CHOREBOARD_UPLOAD_MAX_BYTES", 10<<20)),
			UseS3:    getEnv("CHOREBOARD_UPLOAD_S3", "") == "true",
		},
		S3: S3Config{
			Endpoint:  getEnv("CHOREBOARD_S3_ENDPOINT", ""),
			Bucket:    getEnv("CHOREBOARD_S3_BUCKET", ""),
			Region:    getEnv("CHOREBOARD_S3_REGION", "us-east-1"),
			AccessKey: getEnv("CHOREBOARD_S3_ACCESS_KEY", ""),
			SecretKey: getEnv("CHOREBOARD_S3_SECRET_KEY", ""),
		},
		Email: EmailConfig{
			Region:    getEnv("CHOREBOARD_SES_REGION", "us-east-1"),
			FromEmail: getEnv("CHOREBOARD_SES_FROM_EMAIL", ""),
			FromName:  getEnv("CHOREBOARD_SES_FROM_NAME", "Choreboard"),
		},
		Push: PushConfig{
			VAPIDPublicKey:  getEnv("CHOREBOARD_VAPID_PUBLIC_KEY", ""),
			VAPIDPrivateKey: getEnv("CHOREBOARD_VAPID_PRIVATE_KEY", ""),
			Subscriber:      getEnv("CHOREBOARD_VAPID_SUBSCRIBER", "mailto:noreply@choreboard.local"),
		},
		Backup: BackupConfig{
			Dir:           getEnv("CHOREBOARD_BACKUP_DIR", "backups"),
			Interval:      getEnvDuration("CHOREBOARD_BACKUP_INTERVAL", 24*time.Hour),
			Passphrase:    getEnv("CHOREBOARD_BACKUP_PASSPHRASE", ""),
			RetentionDays: getEnvInt("CHOREBOARD_BACKUP_RETENTION_DAYS", 30),
			MysqldumpPath: getEnv("CHOREBOARD_MYSQLDUMP", "mysqldump"),
		},
		Scheduler: SchedulerConfig{
			GenerateInterval:  getEnvDuration("CHOREBOARD_GENERATE_INTERVAL", time.Hour),
			ExpireAssignments: getEnv("CHOREBOARD_EXPIRE_ASSIGNMENTS", "") == "true",
			ExpireInterval:    getEnvDuration("CHOREBOARD_EXPIRE_INTERVAL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			AuthLimit:  getEnvInt("CHOREBOARD_RATE_AUTH", 10),
			APILimit:   getEnvInt("CHOREBOARD_RATE_API", 300),
			Window:     getEnvDuration("CHOREBOARD_RATE_WINDOW", time.Minute),
			SweepEvery: time.Minute,
		},
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.IsProduction() && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("jwt secret must be at least 32 bytes in production")
	}
	if c.Auth.TokenDuration <= 0 {
		return fmt.Errorf("token duration must be positive")
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
