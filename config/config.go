package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Alert check interval bounds (seconds). Values outside are clamped.
const (
	MinCheckIntervalSeconds = 30
	MaxCheckIntervalSeconds = 600
)

type Config struct {
	Port        string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	Environment string

	// Market data providers
	FinnhubAPIKey      string
	AlphaVantageAPIKey string
	QuoteCacheTTLMS    int
	HistoryDBPath      string

	// Alert engine
	CheckIntervalSeconds int
	WorkerCount          int
	RequestDelayMS       int

	// Notification delivery
	SMTPHost       string
	SMTPPort       string
	SMTPUser       string
	SMTPPassword   string
	SMTPFrom       string
	AlertEmailTo   string
	PushWebhookURL string

	// Optional archive
	MongoURI string

	// Control endpoint auth
	ControlJWTSecret string
}

var AppConfig *Config
var DB *gorm.DB

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", ""),
		DBName:      getEnv("DB_NAME", "marketpulse_db"),
		Environment: getEnv("ENVIRONMENT", "development"),

		FinnhubAPIKey:      getEnv("FINNHUB_API_KEY", ""),
		AlphaVantageAPIKey: getEnv("ALPHA_VANTAGE_API_KEY", ""),
		QuoteCacheTTLMS:    getEnvInt("QUOTE_CACHE_TTL_MS", 5000),
		HistoryDBPath:      getEnv("HISTORY_DB_PATH", "data/history.db"),

		CheckIntervalSeconds: ClampCheckInterval(getEnvInt("ALERT_CHECK_INTERVAL_SECONDS", 60)),
		WorkerCount:          getEnvInt("ALERT_WORKER_COUNT", 4),
		RequestDelayMS:       getEnvInt("ALERT_REQUEST_DELAY_MS", 200),

		SMTPHost:       getEnv("SMTP_HOST", ""),
		SMTPPort:       getEnv("SMTP_PORT", "587"),
		SMTPUser:       getEnv("SMTP_USER", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:       getEnv("SMTP_FROM", "alerts@marketpulse.local"),
		AlertEmailTo:   getEnv("ALERT_EMAIL_TO", ""),
		PushWebhookURL: getEnv("PUSH_WEBHOOK_URL", ""),

		MongoURI: getEnv("MONGODB_URI", ""),

		ControlJWTSecret: getEnv("CONTROL_JWT_SECRET", ""),
	}

	AppConfig = config
	return config, nil
}

// ClampCheckInterval clamps the alert check interval into the allowed range
func ClampCheckInterval(seconds int) int {
	if seconds < MinCheckIntervalSeconds {
		return MinCheckIntervalSeconds
	}
	if seconds > MaxCheckIntervalSeconds {
		return MaxCheckIntervalSeconds
	}
	return seconds
}

// InitDB initializes database connection
func InitDB() (*gorm.DB, error) {
	// Log connection info (masked for security)
	log.Printf("Connecting to database: host=%s port=%s user=%s dbname=%s",
		maskHost(AppConfig.DBHost),
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBName,
	)

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=prefer TimeZone=UTC",
		AppConfig.DBHost,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBPort,
	)

	var logLevel logger.LogLevel
	if AppConfig.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})

	if err != nil {
		log.Printf("Database connection error: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection with ping
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Failed to get underlying database: %v", err)
		return nil, fmt.Errorf("failed to get database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		log.Printf("Database ping failed: %v", err)
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Printf("Database connection verified successfully")
	DB = db
	return db, nil
}

// maskHost masks host for logging, preserving domain structure
func maskHost(host string) string {
	if len(host) <= 3 {
		return "***"
	}
	if len(host) <= 15 {
		return host[:3] + "***"
	}
	return host[:8] + "***" + host[len(host)-10:]
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}
