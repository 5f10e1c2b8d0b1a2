package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Sheet     SheetConfig
	Carriers  CarrierConfig
	Yard      YardConfig
	Engine    EngineConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// SheetConfig holds the open move log (Smartsheet) settings
type SheetConfig struct {
	BaseURL string
	Token   string
	SheetID int64
	Timeout time.Duration
	Columns ColumnIDs
}

// ColumnIDs maps each logical move field to its sheet column
type ColumnIDs struct {
	MoveID          int64
	ContainerNumber int64
	LoadStatus      int64
	Priority        int64
	Customer        int64
	Origin          int64
	Destination     int64
	CarrierCode     int64
	TruckNumber     int64
	DriverID        int64
	Status          int64
	DetailedStatus  int64
	Comments        int64
}

// CarrierConfig holds the carrier driver-state service table
type CarrierConfig struct {
	// SCAC -> base URL, e.g. BMKJ -> https://bmkj.example.com/api/
	Endpoints map[string]string
	// Two-letter driver id prefix -> SCAC
	DriverPrefixes map[string]string
	Timeout        time.Duration
}

// YardConfig holds the recognized pickup/drop-off locations
type YardConfig struct {
	Locations []string
}

// EngineConfig holds assignment engine settings
type EngineConfig struct {
	LockBackend     string // "redis" or "local"
	LockTTL         time.Duration
	CandidateFilter string
	EventStream     string
}

// RateLimitConfig holds per-actor request limits, enforced through Redis
type RateLimitConfig struct {
	Enabled            bool
	RefreshPerMinute   int64
	MutationsPerMinute int64
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof   bool
	PprofPort     int
	EnableMetrics bool
	MetricsPort   int
}

// Load loads configuration from environment variables.
// A .env file in the working directory is read first when present.
func Load(serviceName string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "movesync"),
			User:        getEnv("POSTGRES_USER", "movesync"),
			Password:    getEnv("POSTGRES_PASSWORD", "movesync"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Sheet: SheetConfig{
			BaseURL: getEnv("SHEET_API_URL", "https://api.smartsheet.com/2.0"),
			Token:   getEnv("SHEET_TOKEN", ""),
			SheetID: getEnvInt64("SHEET_ID", 0),
			Timeout: getEnvDuration("SHEET_TIMEOUT", 20*time.Second),
			Columns: ColumnIDs{
				MoveID:          getEnvInt64("SHEET_COL_MOVE_ID", 0),
				ContainerNumber: getEnvInt64("SHEET_COL_CONTAINER", 0),
				LoadStatus:      getEnvInt64("SHEET_COL_LOAD_STATUS", 0),
				Priority:        getEnvInt64("SHEET_COL_PRIORITY", 0),
				Customer:        getEnvInt64("SHEET_COL_CUSTOMER", 0),
				Origin:          getEnvInt64("SHEET_COL_ORIGIN", 0),
				Destination:     getEnvInt64("SHEET_COL_DESTINATION", 0),
				CarrierCode:     getEnvInt64("SHEET_COL_CARRIER", 4303620233553796),
				TruckNumber:     getEnvInt64("SHEET_COL_TRUCK", 8807219860924292),
				DriverID:        getEnvInt64("SHEET_COL_DRIVER", 222233071249284),
				Status:          getEnvInt64("SHEET_COL_STATUS", 4725832698619780),
				DetailedStatus:  getEnvInt64("SHEET_COL_DETAILED_STATUS", 0),
				Comments:        getEnvInt64("SHEET_COL_COMMENTS", 2474032884934532),
			},
		},
		Carriers: CarrierConfig{
			Endpoints:      getEnvMap("CARRIER_ENDPOINTS", map[string]string{}),
			DriverPrefixes: getEnvMap("CARRIER_DRIVER_PREFIXES", map[string]string{}),
			Timeout:        getEnvDuration("CARRIER_TIMEOUT", 10*time.Second),
		},
		Yard: YardConfig{
			Locations: getEnvSlice("YARD_LOCATIONS", []string{}),
		},
		Engine: EngineConfig{
			LockBackend:     getEnv("ENGINE_LOCK_BACKEND", "redis"),
			LockTTL:         getEnvDuration("ENGINE_LOCK_TTL", 30*time.Second),
			CandidateFilter: getEnv("ENGINE_CANDIDATE_FILTER", ""),
			EventStream:     getEnv("ENGINE_EVENT_STREAM", "movesync.transitions"),
		},
		RateLimit: RateLimitConfig{
			Enabled:            getEnvBool("RATE_LIMIT_ENABLED", true),
			RefreshPerMinute:   getEnvInt64("RATE_LIMIT_REFRESH_PER_MINUTE", 6),
			MutationsPerMinute: getEnvInt64("RATE_LIMIT_MUTATIONS_PER_MINUTE", 120),
		},
		Telemetry: TelemetryConfig{
			EnablePprof:   getEnvBool("ENABLE_PPROF", false),
			PprofPort:     getEnvInt("PPROF_PORT", 6060),
			EnableMetrics: getEnvBool("ENABLE_METRICS", true),
			MetricsPort:   getEnvInt("METRICS_PORT", 9090),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	if c.Sheet.SheetID == 0 {
		return fmt.Errorf("SHEET_ID is required")
	}

	if missing := c.Sheet.Columns.missing(); len(missing) > 0 {
		return fmt.Errorf("sheet column ids not set: %s", strings.Join(missing, ", "))
	}

	for prefix, scac := range c.Carriers.DriverPrefixes {
		if len(prefix) != 2 {
			return fmt.Errorf("driver prefix %q must be two letters", prefix)
		}
		if _, ok := c.Carriers.Endpoints[scac]; !ok {
			return fmt.Errorf("driver prefix %s maps to carrier %s with no endpoint", prefix, scac)
		}
	}

	switch c.Engine.LockBackend {
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("redis lock backend requires REDIS_ENABLED")
		}
	case "local":
	default:
		return fmt.Errorf("unknown lock backend: %s", c.Engine.LockBackend)
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns host:port for the Redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// All returns the column ids in the fixed projection order used to fetch the log
func (c ColumnIDs) All() []int64 {
	return []int64{
		c.MoveID,
		c.ContainerNumber,
		c.LoadStatus,
		c.Priority,
		c.Customer,
		c.Origin,
		c.Destination,
		c.CarrierCode,
		c.TruckNumber,
		c.DriverID,
		c.Status,
		c.DetailedStatus,
		c.Comments,
	}
}

func (c ColumnIDs) missing() []string {
	named := []struct {
		name string
		id   int64
	}{
		{"move_id", c.MoveID},
		{"container", c.ContainerNumber},
		{"load_status", c.LoadStatus},
		{"priority", c.Priority},
		{"customer", c.Customer},
		{"origin", c.Origin},
		{"destination", c.Destination},
		{"carrier", c.CarrierCode},
		{"truck", c.TruckNumber},
		{"driver", c.DriverID},
		{"status", c.Status},
		{"detailed_status", c.DetailedStatus},
		{"comments", c.Comments},
	}

	var out []string
	for _, n := range named {
		if n.id == 0 {
			out = append(out, n.name)
		}
	}
	return out
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvMap parses "K1=V1,K2=V2"
func getEnvMap(key string, defaultValue map[string]string) map[string]string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	out := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}
