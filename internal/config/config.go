package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	AdminJWT    AdminJWTConfig
	Session     SessionConfig
	CacheTTL    CacheTTLConfig
	Gatekeeper  GatekeeperConfig
	Buffer      BufferConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxConn      int
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type AdminJWTConfig struct {
	Secret string
	Issuer string
}

// SessionConfig carries the session engine thresholds and the single device
// login toggle.
type SessionConfig struct {
	TimeoutMinutes     int
	WarningLeadMinutes int
	MaxDurationHours   int
	SingleDeviceLogin  bool
}

func (c SessionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

func (c SessionConfig) WarningLead() time.Duration {
	return time.Duration(c.WarningLeadMinutes) * time.Minute
}

func (c SessionConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationHours) * time.Hour
}

// CacheTTLConfig bounds how long each cached artifact may be served.
type CacheTTLConfig struct {
	User     time.Duration
	Cohort   time.Duration
	Mapping  time.Duration
	Verdict  time.Duration
	Activity time.Duration
}

// GatekeeperConfig holds the path classification lists. Paths matching
// neither list follow the unclassified policy: pass through by default,
// denied when DenyUnclassified is set.
type GatekeeperConfig struct {
	PublicPrefixes    []string
	ProtectedPrefixes []string
	DenyUnclassified  bool
}

type BufferConfig struct {
	Path         string
	SyncInterval time.Duration
	BatchSize    int
	MaxRetry     int
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

var defaultPublicPrefixes = []string{
	"/api/v1/auth/signin",
	"/api/v1/auth/cohort",
	"/api/v1/auth/logout",
	"/api/v1/auth/signup",
}

var defaultProtectedPrefixes = []string{
	"/api/v1/content",
	"/api/v1/attempts",
	"/api/v1/assignments",
	"/api/v1/progress",
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "learnstack-backend"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:      getInt("SERVER_MAX_CONN", 0),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "learnstack_db"),
			User:            getString("DB_USER", "learnstack_user"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		AdminJWT: AdminJWTConfig{
			Secret: os.Getenv("ADMIN_JWT_SECRET"),
			Issuer: getString("ADMIN_JWT_ISSUER", "learnstack-backend"),
		},
		Session: SessionConfig{
			TimeoutMinutes:     getInt("SESSION_TIMEOUT_MINUTES", 60),
			WarningLeadMinutes: getInt("SESSION_WARNING_LEAD_MINUTES", 5),
			MaxDurationHours:   getInt("SESSION_MAX_DURATION_HOURS", 8),
			SingleDeviceLogin:  getBool("SINGLE_DEVICE_LOGIN", true),
		},
		CacheTTL: CacheTTLConfig{
			User:     getDuration("CACHE_TTL_USER", 60*time.Minute),
			Cohort:   getDuration("CACHE_TTL_COHORT", 120*time.Minute),
			Mapping:  getDuration("CACHE_TTL_MAPPING", 60*time.Minute),
			Verdict:  getDuration("CACHE_TTL_VERDICT", 30*time.Minute),
			Activity: getDuration("CACHE_TTL_ACTIVITY", 5*time.Minute),
		},
		Gatekeeper: GatekeeperConfig{
			PublicPrefixes:    getList("GATEKEEPER_PUBLIC_PREFIXES", defaultPublicPrefixes),
			ProtectedPrefixes: getList("GATEKEEPER_PROTECTED_PREFIXES", defaultProtectedPrefixes),
			DenyUnclassified:  getBool("GATEKEEPER_DENY_UNCLASSIFIED", false),
		},
		Buffer: BufferConfig{
			Path:         getString("BOLTDB_PATH", "./data/actions.db"),
			SyncInterval: getDuration("SYNC_INTERVAL_SECONDS", 30*time.Second),
			BatchSize:    getInt("BUFFER_BATCH_SIZE", 50),
			MaxRetry:     getInt("MAX_RETRY_ATTEMPTS", 3),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
