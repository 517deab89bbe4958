package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	ShutdownTimeout         time.Duration

	JWTSecret string
	JWTTTL    time.Duration

	UserStore     string
	DatabaseURL   string
	DBMaxConns    int32
	DBMinConns    int32
	BcryptCost    int
	LastLoginWait time.Duration

	CORSOrigins []string
	LogLevel    string
	LogFormat   string

	AuthServiceURL      string
	BriefServiceURL     string
	ApprenantServiceURL string
	FormateurServiceURL string

	ProxyDialTimeout     time.Duration
	ProxyResponseTimeout time.Duration
}

const (
	UserStorePostgres = "postgres"
	UserStoreMemory   = "memory"
)

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "3000"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:         getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		JWTSecret:               strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTTTL:                  getDuration("JWT_EXPIRES_IN", 24*time.Hour),
		UserStore:               strings.ToLower(getEnv("USER_STORE", UserStorePostgres)),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:              int32(getInt("DB_MIN_CONNS", 1)),
		BcryptCost:              getInt("BCRYPT_COST", 12),
		LastLoginWait:           getDuration("LAST_LOGIN_TIMEOUT", 5*time.Second),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFormat:               getEnv("LOG_FORMAT", "pretty"),
		AuthServiceURL:          getEnv("AUTH_SERVICE_URL", "http://localhost:3001"),
		BriefServiceURL:         getEnv("BRIEF_SERVICE_URL", "http://localhost:3002"),
		ApprenantServiceURL:     getEnv("APPRENANT_SERVICE_URL", "http://localhost:3003"),
		FormateurServiceURL:     getEnv("FORMATEUR_SERVICE_URL", "http://localhost:3004"),
		ProxyDialTimeout:        getDuration("PROXY_DIAL_TIMEOUT", 5*time.Second),
		ProxyResponseTimeout:    getDuration("PROXY_RESPONSE_TIMEOUT", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN must be positive")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.ProxyDialTimeout <= 0 {
		return fmt.Errorf("PROXY_DIAL_TIMEOUT must be positive")
	}

	if c.UserStore != UserStorePostgres && c.UserStore != UserStoreMemory {
		return fmt.Errorf("USER_STORE must be %q or %q", UserStorePostgres, UserStoreMemory)
	}

	for key, raw := range map[string]string{
		"AUTH_SERVICE_URL":      c.AuthServiceURL,
		"BRIEF_SERVICE_URL":     c.BriefServiceURL,
		"APPRENANT_SERVICE_URL": c.ApprenantServiceURL,
		"FORMATEUR_SERVICE_URL": c.FormateurServiceURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL", key)
		}
	}

	return nil
}

// RequireDatabase reports whether the credential service can reach its user
// store with this configuration.
func (c *Config) RequireDatabase() error {
	if c.UserStore == UserStorePostgres && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when USER_STORE=%s", UserStorePostgres)
	}
	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
