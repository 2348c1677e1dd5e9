// Package config provides centralized default values for the identity engine
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	AllowedOrigins     []string

	// Database Pool
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	DBConnMaxIdleMinutes     int
	DBPoolCleanupInterval    time.Duration

	// Tenant Configuration
	MaxTenants    int
	TenantDataDir string

	// Session Configuration
	SessionTTL time.Duration

	// Identity Cache
	VisitorCacheTTL      time.Duration
	CacheCleanupInterval time.Duration

	// Cluster Locking
	LockWaitTimeout   time.Duration
	LockIdleReapAfter time.Duration

	// Identification Oracle
	OracleEndpoint string
	OracleAPIKey   string
	OracleTimeout  time.Duration

	// Security
	JWTSecret    string
	AdminKeyHash string

	// Observability
	SlowQueryThreshold time.Duration
	LogVerbose         bool
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)
	AllowedOrigins = strings.Split(getEnvString("ALLOWED_ORIGINS", "*"), ",")

	// Database Pool
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	DBConnMaxIdleMinutes = getEnvInt("DB_CONN_MAX_IDLE_MINUTES", 3)
	DBPoolCleanupInterval = time.Duration(getEnvInt("DB_POOL_CLEANUP_INTERVAL_MINUTES", 5)) * time.Minute

	// Tenant Configuration
	MaxTenants = getEnvInt("MAX_TENANTS", 25)
	TenantDataDir = getEnvString("TENANT_DATA_DIR", "data/tenants")

	// Session Configuration
	SessionTTL = time.Duration(getEnvInt("SESSION_TTL_HOURS", 24)) * time.Hour

	// Identity Cache
	VisitorCacheTTL = time.Duration(getEnvInt("VISITOR_CACHE_TTL_MINUTES", 60)) * time.Minute
	CacheCleanupInterval = time.Duration(getEnvInt("CACHE_CLEANUP_INTERVAL_MINUTES", 30)) * time.Minute

	// Cluster Locking
	LockWaitTimeout = getEnvDuration("LOCK_WAIT_TIMEOUT", 5*time.Second)
	LockIdleReapAfter = getEnvDuration("LOCK_IDLE_REAP_AFTER", 10*time.Minute)

	// Identification Oracle
	OracleEndpoint = getEnvString("ORACLE_ENDPOINT", "https://api.fpjs.io/events")
	OracleAPIKey = getEnvString("ORACLE_API_KEY", "")
	OracleTimeout = getEnvDuration("ORACLE_TIMEOUT", 10*time.Second)

	// Security
	JWTSecret = getEnvString("JWT_SECRET", "")
	AdminKeyHash = getEnvString("ADMIN_KEY_HASH", "")

	// Observability
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 500*time.Millisecond)
	LogVerbose = getEnvBool("LOG_VERBOSE", false)
}
