package config

import (
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App       AppConfig
	Paths     PathsConfig
	Database  DatabaseConfig
	Facebook  FacebookConfig
	Scheduler SchedulerConfig
	Worker    WorkerPoolConfig
	APIKeys   APIKeysConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	BasePath           string
	TrustedProxies     []string
	BaseUrl            string
	CorsAllowedOrigins []string
	TokenEncryptionKey string
}

type PathsConfig struct {
	Storages string
	Statics  string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB name for Postgres
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

type FacebookConfig struct {
	GraphBaseURL       string
	GraphVersion       string
	WebhookVerifyToken string
	RequestTimeout     time.Duration
	ConversationLimit  int
	MessageLimit       int
}

type SchedulerConfig struct {
	PollInterval      time.Duration
	FireTolerance     time.Duration
	ActivityCacheTTL  time.Duration
	InterMessageDelay time.Duration
	InterTargetDelay  time.Duration
	MaxSendAttempts   int
	RetryBaseDelay    time.Duration
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

type APIKeysConfig struct {
	OpenAI string
	Gemini string
}

// Global provides access to the loaded configuration globally.
var Global *Config

// LoadConfig loads configuration from environment variables or defaults.
func LoadConfig() (*Config, error) {
	baseDir := getEnv("APP_BASE_DIR", "storages")

	corsOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	if v := getEnv("APP_CORS_ALLOWED_ORIGINS", ""); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:            "v1.3.0",
		Port:               getEnv("APP_PORT", "3000"),
		Debug:              getEnvBool("APP_DEBUG", false),
		Environment:        getEnv("APP_ENV", "development"),
		BasePath:           getEnv("APP_BASE_PATH", ""),
		BaseUrl:            getEnv("APP_BASE_URL", "http://localhost:3000"),
		CorsAllowedOrigins: corsOrigins,
		TokenEncryptionKey: getEnv("APP_TOKEN_ENCRYPTION_KEY", ""),
	}
	if v := getEnv("APP_BASIC_AUTH", ""); v != "" {
		appCfg.BasicAuth = strings.Split(v, ",")
	}
	if v := getEnv("APP_TRUSTED_PROXIES", ""); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	pathsCfg := PathsConfig{
		Storages: baseDir,
		Statics:  getEnv("PATH_STATICS", "statics"),
	}

	dbCfg := DatabaseConfig{
		Driver:          getEnv("DB_DRIVER", "sqlite"),
		Name:            getEnv("DB_NAME", filepath.Join(pathsCfg.Storages, "app.db")),
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		ValkeyEnabled:   getEnvBool("VALKEY_ENABLED", false),
		ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
		ValkeyDB:        getEnvInt("VALKEY_DB", 0),
		ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "azfbm:"),
	}

	fbCfg := FacebookConfig{
		GraphBaseURL:       getEnv("FB_GRAPH_BASE_URL", "https://graph.facebook.com"),
		GraphVersion:       getEnv("FB_GRAPH_VERSION", "v19.0"),
		WebhookVerifyToken: getEnv("FB_WEBHOOK_VERIFY_TOKEN", ""),
		RequestTimeout:     getEnvDuration("FB_REQUEST_TIMEOUT", 15*time.Second),
		ConversationLimit:  getEnvInt("FB_CONVERSATION_LIMIT", 100),
		MessageLimit:       getEnvInt("FB_MESSAGE_LIMIT", 25),
	}

	schedCfg := SchedulerConfig{
		PollInterval:      getEnvDuration("SCHEDULER_POLL_INTERVAL", 30*time.Second),
		FireTolerance:     getEnvDuration("SCHEDULER_FIRE_TOLERANCE", 30*time.Second),
		ActivityCacheTTL:  getEnvDuration("SCHEDULER_ACTIVITY_CACHE_TTL", 5*time.Minute),
		InterMessageDelay: getEnvDuration("SCHEDULER_INTER_MESSAGE_DELAY", time.Second),
		InterTargetDelay:  getEnvDuration("SCHEDULER_INTER_TARGET_DELAY", 2*time.Second),
		MaxSendAttempts:   getEnvInt("SCHEDULER_MAX_SEND_ATTEMPTS", 3),
		RetryBaseDelay:    getEnvDuration("SCHEDULER_RETRY_BASE_DELAY", time.Second),
	}

	cfg := &Config{
		App:       appCfg,
		Paths:     pathsCfg,
		Database:  dbCfg,
		Facebook:  fbCfg,
		Scheduler: schedCfg,
		Worker: WorkerPoolConfig{
			Size:      getEnvInt("WORKER_POOL_SIZE", 10),
			QueueSize: getEnvInt("WORKER_QUEUE_SIZE", 200),
		},
		APIKeys: APIKeysConfig{
			OpenAI: getEnv("OPENAI_API_KEY", ""),
			Gemini: getEnv("GEMINI_API_KEY", ""),
		},
	}

	Global = cfg
	return cfg, nil
}
