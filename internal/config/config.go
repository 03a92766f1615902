package config

// Package config provides configuration loading for the application.
import (
	"YcrudAPI/internal"
	"YcrudAPI/internal/logger"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	StoreDriver  string // mongo, postgres, memory
	Mongo        MongoConfig
	PostgresDSN  string
	Migrations   string
	ResourcesDir string
	CountCache   CountCacheConfig
	CORS         CORSConfig
	Auth         AuthConfig
}

type MongoConfig struct {
	URI      string
	Database string
}

// CountCacheConfig enables the redis cache for paginated totals.
// TTLSec <= 0 disables it.
type CountCacheConfig struct {
	RedisAddr string
	TTLSec    int64
}

type CORSConfig struct {
	AllowOrigin      string
	AllowCredentials bool
}

type AuthConfig struct {
	Enabled bool
	JWT     JWTConfig
}

type JWTConfig struct {
	ValidationType string
	Issuer         string
	Audience       string
	HMACSecret     string
	PublicKeyPEM   string
	PublicKeyPath  string
	ClockSkewSec   int64
}

func LoadConfig() *Config {
	// .env lives next to go.mod
	root, _ := internal.FindRepoRoot()
	_ = godotenv.Load(filepath.Join(root, ".env"))

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "mongo")),
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DB", "app"),
		},
		PostgresDSN:  getEnvOptional("POSTGRES_DSN"),
		Migrations:   getEnv("MIGRATIONS_DIR", "./migrations"),
		ResourcesDir: getEnv("RESOURCES_DIR", "./db"),
		CountCache: CountCacheConfig{
			RedisAddr: getEnvOptional("REDIS_ADDR"),
			TTLSec:    getEnvInt64("COUNT_CACHE_TTL_SEC", 0),
		},
		CORS: CORSConfig{
			AllowOrigin:      getEnv("CORS_ALLOW_ORIGIN", "*"),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", false),
		},
		Auth: AuthConfig{
			Enabled: getEnvBool("AUTH_ENABLED", false),
			JWT: JWTConfig{
				ValidationType: strings.ToUpper(getEnv("AUTH_JWT_VALIDATION_TYPE", "HS256")),
				Issuer:         getEnvOptional("AUTH_JWT_ISSUER"),
				Audience:       getEnvOptional("AUTH_JWT_AUDIENCE"),
				HMACSecret:     getEnvOptional("AUTH_JWT_HMAC_SECRET"),
				PublicKeyPEM:   getEnvOptional("AUTH_JWT_PUBLIC_KEY"),
				PublicKeyPath:  getEnvOptional("AUTH_JWT_PUBLIC_KEY_PATH"),
				ClockSkewSec:   getEnvInt64("AUTH_JWT_CLOCK_SKEW_SEC", 60),
			},
		},
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	logger.Warn("env_default", map[string]any{
		"key":      key,
		"fallback": fallback,
	})
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logger.Warn("env_invalid_bool", map[string]any{
			"key":      key,
			"value":    value,
			"fallback": fallback,
		})
		return fallback
	}
	return parsed
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logger.Warn("env_invalid_int", map[string]any{
			"key":      key,
			"value":    value,
			"fallback": fallback,
		})
		return fallback
	}
	return parsed
}

func getEnvOptional(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
