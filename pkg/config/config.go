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

// Store drivers.
const (
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
)

// Notification drivers.
const (
	NotifyNone  = "none"
	NotifyHTTP  = "http"
	NotifyFCM   = "fcm"
	NotifyKafka = "kafka"
)

// Auth providers.
const (
	AuthFirebase = "firebase"
	AuthHMAC     = "hmac"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Store         StoreConfig
	Firebase      FirebaseConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Cache         CacheConfig
	Auth          AuthConfig
	CORS          CORSConfig
	Log           LogConfig
	Notifications NotificationConfig
	XP            XPConfig
	Events        EventsConfig
	RateLimit     RateLimitConfig
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver string
}

// FirebaseConfig points at the Firebase project backing Firestore, Auth and FCM.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
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

// CacheConfig governs the event read cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// AuthConfig selects how bearer tokens are verified.
type AuthConfig struct {
	Provider   string
	HMACSecret string
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// NotificationConfig configures the fire-and-forget dispatcher.
type NotificationConfig struct {
	Driver       string
	WebhookURL   string
	Timeout      time.Duration
	KafkaBrokers []string
	KafkaTopic   string
	Workers      int
	MaxRetries   int
}

// XPConfig holds the flat XP constants awarded at event closure.
type XPConfig struct {
	Organizer     int
	Participation int
	BestPerformer int
}

// EventsConfig tunes event scheduling rules.
type EventsConfig struct {
	Timezone string
}

// RateLimitConfig caps ballot submissions per client.
type RateLimitConfig struct {
	Enabled bool
	Period  time.Duration
	Limit   int64
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

	cfg.Store = StoreConfig{Driver: strings.ToLower(v.GetString("STORE_DRIVER"))}

	cfg.Firebase = FirebaseConfig{
		ProjectID:       v.GetString("FIREBASE_PROJECT_ID"),
		CredentialsFile: v.GetString("GOOGLE_APPLICATION_CREDENTIALS"),
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

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_EVENT_CACHE"),
		TTL:     parseDuration(v.GetString("EVENT_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Auth = AuthConfig{
		Provider:   strings.ToLower(v.GetString("AUTH_PROVIDER")),
		HMACSecret: v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Notifications = NotificationConfig{
		Driver:       strings.ToLower(v.GetString("NOTIFY_DRIVER")),
		WebhookURL:   v.GetString("NOTIFY_WEBHOOK_URL"),
		Timeout:      parseDuration(v.GetString("NOTIFY_TIMEOUT"), 5*time.Second),
		KafkaBrokers: splitAndTrim(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:   v.GetString("KAFKA_NOTIFY_TOPIC"),
		Workers:      v.GetInt("NOTIFY_WORKERS"),
		MaxRetries:   v.GetInt("NOTIFY_MAX_RETRIES"),
	}

	cfg.XP = XPConfig{
		Organizer:     v.GetInt("XP_ORGANIZER"),
		Participation: v.GetInt("XP_PARTICIPATION"),
		BestPerformer: v.GetInt("XP_BEST_PERFORMER"),
	}

	cfg.Events = EventsConfig{Timezone: v.GetString("EVENT_TIMEZONE")}

	cfg.RateLimit = RateLimitConfig{
		Enabled: v.GetBool("ENABLE_RATE_LIMIT"),
		Period:  parseDuration(v.GetString("RATE_LIMIT_PERIOD"), time.Minute),
		Limit:   v.GetInt64("RATE_LIMIT_REQUESTS"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("STORE_DRIVER", StoreFirestore)
	v.SetDefault("FIREBASE_PROJECT_ID", "")
	v.SetDefault("GOOGLE_APPLICATION_CREDENTIALS", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "eventhub")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ENABLE_EVENT_CACHE", false)
	v.SetDefault("EVENT_CACHE_TTL", "5m")

	v.SetDefault("AUTH_PROVIDER", AuthHMAC)
	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("NOTIFY_DRIVER", NotifyNone)
	v.SetDefault("NOTIFY_WEBHOOK_URL", "")
	v.SetDefault("NOTIFY_TIMEOUT", "5s")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_NOTIFY_TOPIC", "event-notifications")
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_MAX_RETRIES", 3)

	v.SetDefault("XP_ORGANIZER", 50)
	v.SetDefault("XP_PARTICIPATION", 10)
	v.SetDefault("XP_BEST_PERFORMER", 30)

	v.SetDefault("EVENT_TIMEZONE", "UTC")

	v.SetDefault("ENABLE_RATE_LIMIT", false)
	v.SetDefault("RATE_LIMIT_PERIOD", "1m")
	v.SetDefault("RATE_LIMIT_REQUESTS", 60)
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
