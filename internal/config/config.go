package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	AppEnv             string
	LogLevel           slog.Level
	ApiServicePort     string
	PostgreSQLHost     string
	PostgreSQLPort     int64
	PostgreSQLUser     string
	PostgreSQLPassword string
	PostgreSQLDatabase string

	// Token signing. Access and refresh tokens use independent secrets
	// and lifetimes so a leaked refresh secret cannot forge access
	// tokens and vice versa.
	JWTAccessSecret        string
	JWTRefreshSecret       string
	AccessTokenExpiration  int64 // seconds
	RefreshTokenExpiration int64 // seconds

	// Cookie transport for the token pair.
	AccessCookieName  string
	RefreshCookieName string
	CookieSecure      bool
	CookieSameSite    string

	// Upstream identity provider.
	GoogleClientID string

	RedisHost     string
	RedisPort     int64
	RedisPassword string
	RedisDB       int64

	// Attempts allowed per client IP per window on the auth endpoints.
	AuthRateLimit      int64
	AuthRateWindowSecs int64

	CleanupIntervalSecs int64
}

func LoadConfig() *Config {
	return &Config{
		AppEnv:                 getEnv("APP_ENV", "development"),                        // Default development
		LogLevel:               getLogLevel(),                                           // Default INFO
		ApiServicePort:         getEnv("API_SERVICE_PORT", "8080"),                      // Default 8080
		PostgreSQLHost:         getEnv("POSTGRESQL_HOST", "db"),                         // Default db
		PostgreSQLPort:         getEnvAsInt64("POSTGRESQL_PORT", 5432),                  // Default 5432
		PostgreSQLUser:         getEnv("POSTGRESQL_USER", "campus_user"),                // Default user
		PostgreSQLPassword:     getEnv("POSTGRESQL_PASSWORD", "campus_password"),        // Default password
		PostgreSQLDatabase:     getEnv("POSTGRESQL_DATABASE", "campus_db"),              // Default database name
		JWTAccessSecret:        getEnv("JWT_ACCESS_SECRET", "dev-access-secret-change"), // Default access secret
		JWTRefreshSecret:       getEnv("JWT_REFRESH_SECRET", "dev-refresh-secret-chg"),  // Default refresh secret
		AccessTokenExpiration:  getEnvAsInt64("ACCESS_TOKEN_EXPIRATION", 900),           // Default 15 minutes
		RefreshTokenExpiration: getEnvAsInt64("REFRESH_TOKEN_EXPIRATION", 604800),       // Default 7 days
		AccessCookieName:       getEnv("ACCESS_TOKEN_COOKIE_NAME", "at"),                // Default at
		RefreshCookieName:      getEnv("REFRESH_TOKEN_COOKIE_NAME", "rt"),               // Default rt
		CookieSecure:           getEnvAsBool("COOKIE_SECURE", false),                    // Default false
		CookieSameSite:         getEnv("COOKIE_SAME_SITE", "lax"),                       // Default lax
		GoogleClientID:         getEnv("GOOGLE_CLIENT_ID", ""),                          // Google login disabled when empty
		RedisHost:              getEnv("REDIS_HOST", "redis"),                           // Default redis
		RedisPort:              getEnvAsInt64("REDIS_PORT", 6379),                       // Default 6379
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),                            // Default empty
		RedisDB:                getEnvAsInt64("REDIS_DATABASE", 0),                      // Default 0
		AuthRateLimit:          getEnvAsInt64("AUTH_RATE_LIMIT", 20),                    // Default 20 attempts
		AuthRateWindowSecs:     getEnvAsInt64("AUTH_RATE_WINDOW", 60),                   // Default 1 minute window
		CleanupIntervalSecs:    getEnvAsInt64("TOKEN_CLEANUP_INTERVAL", 3600),           // Default 1 hour
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
			return value
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return fallback
}

func getLogLevel() slog.Level {
	levelStr := getEnv("LOG_LEVEL", "INFO")

	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
