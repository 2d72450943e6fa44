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
	Server      ServerConfig
	Auth        AuthConfig
	Admission   AdmissionConfig
	Maintenance MaintenanceConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	TrustedProxies []string // CIDR ranges allowed to set forwarding headers
}

type AuthConfig struct {
	JWTSecret         string
	AdminKeyTTL       time.Duration
	AdminRateLimit    int    // requests/min for the admin API outer limiter
	AdminBootstrapKey string // plaintext key registered at startup so the admin API is reachable
}

type AdmissionConfig struct {
	BaseLimit  uint
	Window     time.Duration
	LimitsFile string
}

type MaintenanceConfig struct {
	SweepInterval        time.Duration
	RecomputeInterval    time.Duration
	CounterIdleTTL       time.Duration
	LowReputationCutoff  float64
	CredentialExpiryLead time.Duration
	AuditRetention       time.Duration
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	SharedLimit  int
	SharedWindow time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			TrustedProxies: parseList(getEnv("TRUSTED_PROXIES", "")),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AdminKeyTTL:       getEnvAsDuration("ADMIN_KEY_TTL", 90*24*time.Hour),
			AdminRateLimit:    getEnvAsInt("ADMIN_RATE_LIMIT", 60),
			AdminBootstrapKey: getEnv("ADMIN_BOOTSTRAP_KEY", ""),
		},
		Admission: AdmissionConfig{
			BaseLimit:  uint(getEnvAsInt("BASE_RATE_LIMIT", 100)),
			Window:     getEnvAsDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
			LimitsFile: getEnv("LIMITS_FILE", ""),
		},
		Maintenance: MaintenanceConfig{
			SweepInterval:        getEnvAsDuration("SWEEP_INTERVAL", 5*time.Minute),
			RecomputeInterval:    getEnvAsDuration("BASELINE_RECOMPUTE_INTERVAL", 1*time.Hour),
			CounterIdleTTL:       getEnvAsDuration("COUNTER_IDLE_TTL", 1*time.Hour),
			LowReputationCutoff:  getEnvAsFloat("LOW_REPUTATION_CUTOFF", 20),
			CredentialExpiryLead: getEnvAsDuration("CREDENTIAL_EXPIRY_LEAD", 7*24*time.Hour),
			AuditRetention:       getEnvAsDuration("AUDIT_RETENTION", 90*24*time.Hour),
		},
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", ""),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "sentinel"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 10)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 2)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", ""),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			SharedLimit:  getEnvAsInt("REDIS_SHARED_LIMIT", 1000),
			SharedWindow: getEnvAsDuration("REDIS_SHARED_WINDOW", 1*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: parseList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "admission-alerts"),
		},
	}

	if cfg.Admission.BaseLimit == 0 {
		return nil, fmt.Errorf("BASE_RATE_LIMIT must be positive")
	}
	if cfg.Admission.Window <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}

	return cfg, nil
}

// AuditPersistenceEnabled reports whether the optional Postgres audit sink
// is configured
func (c *Config) AuditPersistenceEnabled() bool {
	return c.Database.Host != ""
}

// SharedWindowEnabled reports whether the optional Redis coarse limiter is
// configured
func (c *Config) SharedWindowEnabled() bool {
	return c.Redis.Addr != ""
}

// AlertEventsEnabled reports whether the Kafka alert sink is configured
func (c *Config) AlertEventsEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// validateJWTSecret enforces minimum security standards for the JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}
	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
