package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config carries everything the server reads from the environment.
type Config struct {
	Port       string
	GinMode    string
	LogPath    string
	LogLevel   string
	CORSOrigin string

	StorageBackend string // "mysql", "sqlite" or "mongo"
	SQL            SQLConfig
	SQLitePath     string
	MongoURI       string
	MongoDB        string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TurnLockTTL   time.Duration

	AccessSecret string
	TokenTTL     time.Duration

	LLMProvider     string // "gemini", "openai" or "mock"
	LLMModel        string
	LLMBaseURL      string
	DefaultAPIKey   string
	PersonalityFile string
	MaxUploadBytes  int64

	SweepSchedule string

	SMTP SMTPConfig
}

// SQLConfig holds the MySQL connection settings.
type SQLConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

// Enabled reports whether outgoing mail is configured.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.From != ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.Warnf("invalid integer for %s: %q, using %d", key, v, def)
		return def
	}
	return n
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logrus.Warnf("invalid duration for %s: %q, using %s", key, v, def)
		return def
	}
	return d
}

// Load reads the env file (if present) and builds the config.
func Load(envFile string) *Config {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		logrus.Infof("no env file loaded from %s: %s", envFile, err)
	}

	defaultModel := "gemini-2.5-flash-lite"
	provider := getEnv("LLM_PROVIDER", "gemini")
	if provider == "openai" {
		defaultModel = "gpt-4o-mini"
	}

	return &Config{
		Port:       getEnv("PORT", "8080"),
		GinMode:    getEnv("GIN_MODE", "release"),
		LogPath:    getEnv("LOG_PATH", "./log"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:3000"),

		StorageBackend: getEnv("STORAGE_BACKEND", "mysql"),
		SQL: SQLConfig{
			Host:     os.Getenv("SQL_HOST"),
			Port:     getEnv("SQL_PORT", "3306"),
			User:     os.Getenv("SQL_USER"),
			Password: os.Getenv("SQL_PASSWORD"),
			DBName:   getEnv("SQL_DBNAME", "capstone"),
		},
		SQLitePath: getEnv("SQLITE_PATH", "capstone.db"),
		MongoURI:   getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:    getEnv("MONGO_DB", "capstone"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		TurnLockTTL:   getDurationEnv("TURN_LOCK_TTL", 5*time.Minute),

		AccessSecret: os.Getenv("ACCESS_SECRET"),
		TokenTTL:     getDurationEnv("TOKEN_TTL", 7*24*time.Hour),

		LLMProvider:     provider,
		LLMModel:        getEnv("LLM_MODEL", defaultModel),
		LLMBaseURL:      os.Getenv("LLM_BASE_URL"),
		DefaultAPIKey:   getEnv("GEMINI_API_KEY", os.Getenv("LLM_API_KEY")),
		PersonalityFile: getEnv("PERSONALITY_FILE", "chatbot-personality.txt"),
		MaxUploadBytes:  int64(getIntEnv("MAX_UPLOAD_MB", 10)) << 20,

		SweepSchedule: getEnv("SWEEP_SCHEDULE", "@every 1h"),

		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnv("SMTP_PORT", "587"),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
	}
}
