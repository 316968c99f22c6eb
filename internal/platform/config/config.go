package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DeletePolicyUnconditional = "unconditional"
	DeletePolicyRejectActive  = "reject_active"
)

type Config struct {
	APIPort    string
	JWTKey     []byte
	JWTExp     time.Duration
	BcryptCost int

	DBDriver      string
	DBDSN         string
	DBAutoMigrate bool

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	BookDeletePolicy string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LedgerQueueName      string
	LedgerLockTTLSeconds int

	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file and the process environment. It never
// fails on missing values; call Validate before serving traffic.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		APIPort:    getEnv("API_PORT", "8080"),
		JWTKey:     []byte(getEnv("JWT_SECRET", "")),
		JWTExp:     time.Duration(getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60)) * time.Minute,
		BcryptCost: getEnvAsInt("BCRYPT_COST", 0),

		DBDriver:      strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		DBDSN:         getEnv("DB_DSN", ""),
		DBAutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", true),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "library"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "library"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		BookDeletePolicy: strings.ToLower(getEnv("BOOK_DELETE_POLICY", DeletePolicyUnconditional)),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		LedgerQueueName:      getEnv("LEDGER_QUEUE_NAME", "loan_events"),
		LedgerLockTTLSeconds: getEnvAsInt("LEDGER_LOCK_TTL_SECONDS", 30),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if cfg.DBDSN == "" {
		cfg.DBDSN = cfg.defaultDSN()
	}
	return cfg
}

func (c *Config) defaultDSN() string {
	if c.DBDriver == DriverPostgres {
		return "host=" + c.DBHost +
			" port=" + c.DBPort +
			" user=" + c.DBUser +
			" password=" + c.DBPassword +
			" dbname=" + c.DBName +
			" sslmode=" + c.DBSslMode
	}
	return "file:library.db"
}

// Validate checks the settings the HTTP server cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if len(c.JWTKey) == 0 {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}
	if c.JWTExp <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	if c.DBDriver != DriverSQLite && c.DBDriver != DriverPostgres {
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.BookDeletePolicy != DeletePolicyUnconditional && c.BookDeletePolicy != DeletePolicyRejectActive {
		errs = append(errs, fmt.Errorf("unsupported BOOK_DELETE_POLICY %q", c.BookDeletePolicy))
	}
	return errors.Join(errs...)
}

// LedgerLockTTL is the lifetime of the per-book audit lock.
func (c *Config) LedgerLockTTL() time.Duration {
	return time.Duration(c.LedgerLockTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}
