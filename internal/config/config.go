package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Tenancy   TenancyConfig
	Billing   BillingConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Worker    WorkerConfig
}

type ServerConfig struct {
	Host string
	Port int
	Env  string // "development" or "production"
}

type DatabaseConfig struct {
	URL                  string
	MaxConns             int
	MinConns             int
	MigrationsPath       string
	TenantMigrationsPath string
	TenantDSNTemplate    string // e.g. postgres://u:p@db:5432/rental_%s; empty means shared schema
	TenantMaxConns       int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

type TenancyConfig struct {
	RootDomain        string
	ConnectorCapacity int
	ResolverCacheTTL  time.Duration
	DefaultPlanCode   string
}

type BillingConfig struct {
	WebhookSecret string
}

type CORSConfig struct {
	Origins []string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type WorkerConfig struct {
	Concurrency    int
	TrialSweepCron string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real env vars take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	tenantMaxConns, err := getEnvInt("TENANT_DB_MAX_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid TENANT_DB_MAX_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	tokenTTL, err := getEnvDuration("JWT_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}

	capacity, err := getEnvInt("TENANT_CONNECTOR_CAPACITY", 128)
	if err != nil {
		return nil, fmt.Errorf("invalid TENANT_CONNECTOR_CAPACITY: %w", err)
	}

	cacheTTL, err := getEnvDuration("TENANT_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid TENANT_CACHE_TTL: %w", err)
	}

	rps, err := getEnvFloat("RATE_LIMIT_RPS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	burst, err := getEnvInt("RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	concurrency, err := getEnvInt("WORKER_CONCURRENCY", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
			Env:  getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:                  getEnv("DATABASE_URL", ""),
			MaxConns:             maxConns,
			MinConns:             minConns,
			MigrationsPath:       getEnv("MIGRATIONS_PATH", "migrations/directory"),
			TenantMigrationsPath: getEnv("TENANT_MIGRATIONS_PATH", "migrations/tenant"),
			TenantDSNTemplate:    getEnv("TENANT_DSN_TEMPLATE", ""),
			TenantMaxConns:       tenantMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", "rentalshop"),
			TokenTTL:  tokenTTL,
		},
		Tenancy: TenancyConfig{
			RootDomain:        strings.ToLower(getEnv("ROOT_DOMAIN", "")),
			ConnectorCapacity: capacity,
			ResolverCacheTTL:  cacheTTL,
			DefaultPlanCode:   getEnv("DEFAULT_PLAN_CODE", "starter"),
		},
		Billing: BillingConfig{
			WebhookSecret: getEnv("BILLING_WEBHOOK_SECRET", ""),
		},
		CORS: CORSConfig{
			Origins: splitList(getEnv("CORS_ORIGINS", "*")),
		},
		RateLimit: RateLimitConfig{
			RPS:   rps,
			Burst: burst,
		},
		Worker: WorkerConfig{
			Concurrency:    concurrency,
			TrialSweepCron: getEnv("TRIAL_SWEEP_CRON", "@every 1h"),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.Tenancy.RootDomain == "" {
		missing = append(missing, "ROOT_DOMAIN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if c.Tenancy.ConnectorCapacity <= 0 {
		return fmt.Errorf("TENANT_CONNECTOR_CAPACITY must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
