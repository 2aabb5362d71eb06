package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Session store drivers.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Blob storage drivers.
const (
	BlobDriverLocal = "local"
	BlobDriverS3    = "s3"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Backend  BackendConfig
	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Sessions SessionsConfig
	Lists    ListsConfig
	Uploads  UploadsConfig
	Events   EventsConfig
	Audit    AuditConfig
	Fees     FeesConfig
}

// BackendConfig points the console at the school REST backend.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SessionsConfig governs edit session storage and the optional save timeout.
type SessionsConfig struct {
	Store       string
	TTL         time.Duration
	SaveTimeout time.Duration
	LockTTL     time.Duration
}

// ListsConfig governs list view caching and paging.
type ListsConfig struct {
	CacheEnabled    bool
	CacheTTL        time.Duration
	DefaultPageSize int
	MaxPageSize     int
}

// UploadsConfig controls file uploads for file-valued fields.
type UploadsConfig struct {
	Driver           string
	StorageDir       string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	ThumbnailWidth   int
	Retention        time.Duration
	S3               S3Config
}

// S3Config configures the S3-compatible blob backend.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// EventsConfig sizes the event bus worker pool.
type EventsConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// AuditConfig toggles change-set audit persistence.
type AuditConfig struct {
	Enabled bool
}

// FeesConfig holds opt-in fee form business rules.
type FeesConfig struct {
	ClearStatusWhenPaid bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Backend = BackendConfig{
		BaseURL: strings.TrimRight(v.GetString("BACKEND_BASE_URL"), "/"),
		Timeout: parseDuration(v.GetString("BACKEND_TIMEOUT"), 15*time.Second),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Sessions = SessionsConfig{
		Store:       strings.ToLower(v.GetString("SESSION_STORE")),
		TTL:         parseDuration(v.GetString("SESSION_TTL"), 2*time.Hour),
		SaveTimeout: parseDuration(v.GetString("SESSION_SAVE_TIMEOUT"), 0),
		LockTTL:     parseDuration(v.GetString("SESSION_LOCK_TTL"), time.Minute),
	}

	cfg.Lists = ListsConfig{
		CacheEnabled:    v.GetBool("ENABLE_LIST_CACHE"),
		CacheTTL:        parseDuration(v.GetString("LIST_CACHE_TTL"), 5*time.Minute),
		DefaultPageSize: v.GetInt("LIST_DEFAULT_PAGE_SIZE"),
		MaxPageSize:     v.GetInt("LIST_MAX_PAGE_SIZE"),
	}

	maxUpload := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 5 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		Driver:           strings.ToLower(v.GetString("UPLOADS_DRIVER")),
		StorageDir:       v.GetString("UPLOADS_STORAGE_DIR"),
		MaxFileSizeBytes: maxUpload,
		AllowedMIMEs:     splitAndTrim(v.GetString("UPLOADS_ALLOWED_MIME_TYPES")),
		SignedURLSecret:  v.GetString("UPLOADS_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("UPLOADS_SIGNED_URL_TTL"), 30*time.Minute),
		ThumbnailWidth:   v.GetInt("UPLOADS_THUMBNAIL_WIDTH"),
		Retention:        parseDuration(v.GetString("UPLOADS_RETENTION"), 7*24*time.Hour),
		S3: S3Config{
			Bucket:          v.GetString("UPLOADS_S3_BUCKET"),
			Region:          v.GetString("UPLOADS_S3_REGION"),
			Endpoint:        v.GetString("UPLOADS_S3_ENDPOINT"),
			AccessKeyID:     v.GetString("UPLOADS_S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("UPLOADS_S3_SECRET_ACCESS_KEY"),
			PathStyle:       v.GetBool("UPLOADS_S3_PATH_STYLE"),
		},
	}

	// Session expiry restarts on every write, so uploads referenced by a
	// draft must outlive several session TTLs.
	if floor := 2 * cfg.Sessions.TTL; cfg.Uploads.Retention < floor {
		cfg.Uploads.Retention = floor
	}

	cfg.Events = EventsConfig{
		Workers:    v.GetInt("EVENTS_WORKERS"),
		BufferSize: v.GetInt("EVENTS_BUFFER_SIZE"),
		MaxRetries: v.GetInt("EVENTS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("EVENTS_RETRY_DELAY"), time.Second),
	}

	cfg.Audit = AuditConfig{Enabled: v.GetBool("ENABLE_AUDIT")}
	cfg.Fees = FeesConfig{ClearStatusWhenPaid: v.GetBool("FEES_CLEAR_STATUS_WHEN_PAID")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("BACKEND_BASE_URL", "http://localhost:5000/api")
	v.SetDefault("BACKEND_TIMEOUT", "15s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "admin_console")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SESSION_STORE", SessionStoreMemory)
	v.SetDefault("SESSION_TTL", "2h")
	v.SetDefault("SESSION_SAVE_TIMEOUT", "")
	v.SetDefault("SESSION_LOCK_TTL", "1m")

	v.SetDefault("ENABLE_LIST_CACHE", false)
	v.SetDefault("LIST_CACHE_TTL", "5m")
	v.SetDefault("LIST_DEFAULT_PAGE_SIZE", 20)
	v.SetDefault("LIST_MAX_PAGE_SIZE", 200)

	v.SetDefault("UPLOADS_DRIVER", BlobDriverLocal)
	v.SetDefault("UPLOADS_STORAGE_DIR", "./uploads")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("UPLOADS_ALLOWED_MIME_TYPES", "image/jpeg,image/png,image/gif,application/pdf")
	v.SetDefault("UPLOADS_SIGNED_URL_SECRET", "dev_uploads_secret")
	v.SetDefault("UPLOADS_SIGNED_URL_TTL", "30m")
	v.SetDefault("UPLOADS_THUMBNAIL_WIDTH", 240)
	v.SetDefault("UPLOADS_RETENTION", "168h")
	v.SetDefault("UPLOADS_S3_REGION", "us-east-1")
	v.SetDefault("UPLOADS_S3_PATH_STYLE", false)

	v.SetDefault("EVENTS_WORKERS", 2)
	v.SetDefault("EVENTS_BUFFER_SIZE", 64)
	v.SetDefault("EVENTS_MAX_RETRIES", 3)
	v.SetDefault("EVENTS_RETRY_DELAY", "1s")

	v.SetDefault("ENABLE_AUDIT", false)
	v.SetDefault("FEES_CLEAR_STATUS_WHEN_PAID", false)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
