package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	DBPath             string
	LogLevel           string
	SessionTTL         time.Duration
	CookieName         string
	AllowedOrigins     []string
	SearchDefaultLimit int
	SearchMaxLimit     int
	Debug              bool
}

// Load reads an optional env file and then the environment. A missing env
// file is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, err
		}
	}
	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		DBPath:             getEnv("DB_PATH", "socialfeed.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		SessionTTL:         getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		CookieName:         getEnv("COOKIE_NAME", "session_id"),
		AllowedOrigins:     getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		SearchDefaultLimit: getEnvAsInt("SEARCH_DEFAULT_LIMIT", 50),
		SearchMaxLimit:     getEnvAsInt("SEARCH_MAX_LIMIT", 100),
		Debug:              getEnvAsBool("DEBUG", false),
	}
	if cfg.SearchMaxLimit < cfg.SearchDefaultLimit {
		cfg.SearchMaxLimit = cfg.SearchDefaultLimit
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultVal int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil && value > 0 {
		return value
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func getEnvAsList(key string, defaultVal []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
