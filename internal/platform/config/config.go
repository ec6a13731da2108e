package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort            string
	JWTKey             []byte
	JWTExp             time.Duration
	CORSAllowedOrigins []string

	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSslMode   string
	DBConnStr   string
	ApplySchema bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JudgeAPIURL     string
	JudgeAPIKey     string
	JudgeAPIHost    string
	JudgeLanguageID int
	JudgeTimeout    time.Duration

	ExerciseCacheTTL    time.Duration
	ProgressEventsQueue string
	LeaderboardKey      string

	LogLevel  string
	LogFormat string
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, relying on environment variables")
	}
	AppConfig = FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() *Config {
	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8080"),
		JWTKey:             []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:             time.Duration(getEnvAsInt("JWT_EXPIRATION_MINUTES", 30)) * time.Minute,
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "user"),
		DBPassword:  getEnv("DB_PASSWORD", "password"),
		DBName:      getEnv("DB_NAME", "code_dojo_db"),
		DBSslMode:   getEnv("DB_SSLMODE", "disable"),
		ApplySchema: getEnvAsBool("APPLY_SCHEMA", true),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		JudgeAPIURL:     getEnv("JUDGE_API_URL", "https://judge0-ce.p.rapidapi.com"),
		JudgeAPIKey:     getEnv("JUDGE_API_KEY", ""),
		JudgeAPIHost:    getEnv("JUDGE_API_HOST", "judge0-ce.p.rapidapi.com"),
		JudgeLanguageID: getEnvAsInt("JUDGE_LANGUAGE_ID", 91),
		JudgeTimeout:    time.Duration(getEnvAsInt("JUDGE_TIMEOUT_SECONDS", 30)) * time.Second,

		ExerciseCacheTTL:    time.Duration(getEnvAsInt("EXERCISE_CACHE_TTL_SECONDS", 600)) * time.Second,
		ProgressEventsQueue: getEnv("PROGRESS_EVENTS_QUEUE", "progress_events_queue"),
		LeaderboardKey:      getEnv("LEADERBOARD_KEY", "leaderboard:xp"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	cfg.DBConnStr = "host=" + cfg.DBHost +
		" port=" + cfg.DBPort +
		" user=" + cfg.DBUser +
		" password=" + cfg.DBPassword +
		" dbname=" + cfg.DBName +
		" sslmode=" + cfg.DBSslMode
	return cfg
}

// RequestTimeout bounds one API request. Verification waits for the judge, so
// it scales with JudgeTimeout.
func (c *Config) RequestTimeout() time.Duration {
	return c.JudgeTimeout + 10*time.Second
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
