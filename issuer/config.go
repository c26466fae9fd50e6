package issuer

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is a configuration for the issuer application
type Config struct {
	HTTPAddr string

	// BINPrefix, MinAccountID and MaxAccountID feed the card number generator.
	BINPrefix    int64
	MinAccountID int64
	MaxAccountID int64
	// PINLength is the number of digits in a freshly issued PIN.
	PINLength int
	// CreateAttempts bounds the generate-then-insert loop on number collisions.
	CreateAttempts int
	// PINScheme is "plain" (default) or "bcrypt".
	PINScheme string

	// DBDriver is "sqlite", "postgres" or "mem".
	DBDriver string
	DBDSN    string

	// SessionBackend is "mem" or "redis"; only the HTTP API uses it.
	SessionBackend string
	RedisAddr      string
	RedisPassword  string
	SessionTTL     time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:       "localhost:9090",
		BINPrefix:      400000,
		MinAccountID:   100000000,
		MaxAccountID:   999999999,
		PINLength:      4,
		CreateAttempts: 5,
		PINScheme:      PINSchemePlain,
		DBDriver:       DriverSQLite,
		DBDSN:          "card.s3db",
		SessionBackend: SessionBackendMemory,
		RedisAddr:      "localhost:6379",
		SessionTTL:     15 * time.Minute,
	}
}

// ConfigFromEnv starts from DefaultConfig and applies environment overrides.
func ConfigFromEnv() (*Config, error) {
	c := DefaultConfig()
	c.HTTPAddr = getenv("HTTP_ADDR", c.HTTPAddr)
	c.PINScheme = getenv("PIN_SCHEME", c.PINScheme)
	c.DBDriver = getenv("DB_DRIVER", c.DBDriver)
	c.DBDSN = getenv("DB_DSN", c.DBDSN)
	c.SessionBackend = getenv("SESSION_BACKEND", c.SessionBackend)
	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getenv("REDIS_PASSWORD", c.RedisPassword)

	var err error
	if c.BINPrefix, err = getenvInt64("BIN_PREFIX", c.BINPrefix); err != nil {
		return nil, err
	}
	if c.MinAccountID, err = getenvInt64("MIN_ACCOUNT_ID", c.MinAccountID); err != nil {
		return nil, err
	}
	if c.MaxAccountID, err = getenvInt64("MAX_ACCOUNT_ID", c.MaxAccountID); err != nil {
		return nil, err
	}
	pinLen, err := getenvInt64("PIN_LENGTH", int64(c.PINLength))
	if err != nil {
		return nil, err
	}
	c.PINLength = int(pinLen)
	attempts, err := getenvInt64("CREATE_ATTEMPTS", int64(c.CreateAttempts))
	if err != nil {
		return nil, err
	}
	c.CreateAttempts = int(attempts)
	if v := os.Getenv("SESSION_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SESSION_TTL: %w", err)
		}
		c.SessionTTL = ttl
	}
	return c, c.Validate()
}

// Validate rejects settings the issuer can not run with.
func (c *Config) Validate() error {
	if c.MinAccountID > c.MaxAccountID {
		return fmt.Errorf("MIN_ACCOUNT_ID %d > MAX_ACCOUNT_ID %d", c.MinAccountID, c.MaxAccountID)
	}
	if c.PINLength <= 0 {
		return fmt.Errorf("PIN_LENGTH must be positive")
	}
	if c.CreateAttempts <= 0 {
		return fmt.Errorf("CREATE_ATTEMPTS must be positive")
	}
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unsupported DB_DRIVER=%s", c.DBDriver)
	}
	switch c.SessionBackend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		return fmt.Errorf("unsupported SESSION_BACKEND=%s", c.SessionBackend)
	}
	if _, err := NewPINScheme(c.PINScheme); err != nil {
		return err
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt64(k string, def int64) (int64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}
