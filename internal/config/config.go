package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverPostgres  = "postgres"
	DriverFirestore = "firestore"
	DriverMongo     = "mongo"
	DriverMemory    = "memory"
)

// Auth modes.
const (
	AuthJWT      = "jwt"
	AuthFirebase = "firebase"
	AuthHTTP     = "http"
)

// Config captures all runtime configuration derived from environment variables
// and an optional config file.
type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	StoreDriver       string
	DBURL             string
	DBMaxConns        int
	DBMinConns        int
	DBMaxIdleSecs     int
	DBMaxLifeSecs     int
	DBConnTimeoutSecs int
	DBStatementCache  int

	FirebaseProjectID       string
	FirebaseCredentialsFile string
	MongoURI                string
	MongoDatabase           string

	AuthMode            string
	JWTSecret           string
	IdentityURL         string
	IdentityTimeoutSecs int

	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RatingCacheTTLSecs int

	KafkaBrokers []string
	KafkaTopic   string

	TxMaxAttempts    int
	RateLimitPerMin  int
	ReadTimeoutSecs  int
	WriteTimeoutSecs int
	IdleTimeoutSecs  int

	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", DriverPostgres)
	v.SetDefault("DB_URL", "")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_MAX_CONN_IDLE_SECS", 300)
	v.SetDefault("DB_MAX_CONN_LIFETIME_SECS", 3600)
	v.SetDefault("DB_CONN_TIMEOUT_SECS", 10)
	v.SetDefault("DB_STATEMENT_CACHE_CAPACITY", 256)
	v.SetDefault("FIREBASE_PROJECT_ID", "")
	v.SetDefault("FIREBASE_CREDENTIALS_FILE", "")
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DATABASE", "kiwispark")
	v.SetDefault("AUTH_MODE", AuthJWT)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("IDENTITY_URL", "")
	v.SetDefault("IDENTITY_TIMEOUT_SECS", 5)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATING_CACHE_TTL_SECS", 300)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "review-events")
	v.SetDefault("TX_MAX_ATTEMPTS", 5)
	v.SetDefault("RATE_LIMIT_PER_MIN", 60)
	v.SetDefault("TRUST_PROXY", false)
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 15)
	v.SetDefault("SERVER_IDLE_TIMEOUT", 60)
}

// Load reads configuration from environment variables, applying defaults and validation.
// A config.yaml in the working directory (or the file named by CONFIG_FILE) is
// read first when present; environment variables win over it.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || v.GetString("CONFIG_FILE") != "" {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := Config{
		Port:                    v.GetString("PORT"),
		AppEnv:                  v.GetString("APP_ENV"),
		LogLevel:                v.GetString("LOG_LEVEL"),
		StoreDriver:             strings.ToLower(v.GetString("STORE_DRIVER")),
		DBURL:                   v.GetString("DB_URL"),
		DBMaxConns:              v.GetInt("DB_MAX_CONNS"),
		DBMinConns:              v.GetInt("DB_MIN_CONNS"),
		DBMaxIdleSecs:           v.GetInt("DB_MAX_CONN_IDLE_SECS"),
		DBMaxLifeSecs:           v.GetInt("DB_MAX_CONN_LIFETIME_SECS"),
		DBConnTimeoutSecs:       v.GetInt("DB_CONN_TIMEOUT_SECS"),
		DBStatementCache:        v.GetInt("DB_STATEMENT_CACHE_CAPACITY"),
		FirebaseProjectID:       v.GetString("FIREBASE_PROJECT_ID"),
		FirebaseCredentialsFile: v.GetString("FIREBASE_CREDENTIALS_FILE"),
		MongoURI:                v.GetString("MONGO_URI"),
		MongoDatabase:           v.GetString("MONGO_DATABASE"),
		AuthMode:                strings.ToLower(v.GetString("AUTH_MODE")),
		JWTSecret:               v.GetString("JWT_SECRET"),
		IdentityURL:             v.GetString("IDENTITY_URL"),
		IdentityTimeoutSecs:     v.GetInt("IDENTITY_TIMEOUT_SECS"),
		RedisAddr:               v.GetString("REDIS_ADDR"),
		RedisPassword:           v.GetString("REDIS_PASSWORD"),
		RedisDB:                 v.GetInt("REDIS_DB"),
		RatingCacheTTLSecs:      v.GetInt("RATING_CACHE_TTL_SECS"),
		KafkaBrokers:            splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:              v.GetString("KAFKA_TOPIC"),
		TxMaxAttempts:           v.GetInt("TX_MAX_ATTEMPTS"),
		RateLimitPerMin:         v.GetInt("RATE_LIMIT_PER_MIN"),
		ReadTimeoutSecs:         v.GetInt("SERVER_READ_TIMEOUT"),
		WriteTimeoutSecs:        v.GetInt("SERVER_WRITE_TIMEOUT"),
		IdleTimeoutSecs:         v.GetInt("SERVER_IDLE_TIMEOUT"),
		TrustProxy:              v.GetBool("TRUST_PROXY"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DBURL == "" {
			return fmt.Errorf("DB_URL is required")
		}
		if cfg.DBMaxConns <= 0 {
			return fmt.Errorf("DB_MAX_CONNS must be positive")
		}
		if cfg.DBMinConns < 0 {
			return fmt.Errorf("DB_MIN_CONNS must be non-negative")
		}
		if cfg.DBMinConns > cfg.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
		}
		if cfg.DBStatementCache < 0 {
			return fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
		}
	case DriverFirestore:
		if cfg.FirebaseProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required")
		}
	case DriverMongo:
		if cfg.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required")
		}
		if cfg.MongoDatabase == "" {
			return fmt.Errorf("MONGO_DATABASE is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be one of postgres, firestore, mongo, memory")
	}

	switch cfg.AuthMode {
	case AuthJWT:
		if cfg.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required")
		}
	case AuthFirebase:
		if cfg.FirebaseProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required")
		}
	case AuthHTTP:
		if cfg.IdentityURL == "" {
			return fmt.Errorf("IDENTITY_URL is required")
		}
		if cfg.IdentityTimeoutSecs <= 0 {
			return fmt.Errorf("IDENTITY_TIMEOUT_SECS must be positive")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be one of jwt, firebase, http")
	}

	if cfg.TxMaxAttempts < 1 || cfg.TxMaxAttempts > 10 {
		return fmt.Errorf("TX_MAX_ATTEMPTS must be between 1 and 10")
	}
	if cfg.RatingCacheTTLSecs < 0 {
		return fmt.Errorf("RATING_CACHE_TTL_SECS must be non-negative")
	}
	if cfg.RateLimitPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must be positive")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
