package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	AuthJWT    = "jwt"
	AuthHeader = "header"
)

type DBConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type AuthConfig struct {
	Mode          string
	JWTSecret     string
	JWTIssuer     string
	TrustedHeader string
}

type Config struct {
	HTTPAddr    string
	TLSCertFile string
	TLSKeyFile  string
	StoreDriver string
	BalanceMode string
	LogDir      string
	LogDebug    bool
	DB          DBConfig
	Auth        AuthConfig
}

// Load reads an optional env file (default config.env) and then the process environment.
func Load(envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	var errs []error
	cfg := &Config{
		HTTPAddr:    getString("HTTP_ADDR", ":8080"),
		TLSCertFile: os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:  os.Getenv("TLS_KEY_FILE"),
		StoreDriver: strings.ToLower(getString("STORE_DRIVER", StoreMemory)),
		BalanceMode: strings.ToLower(getString("BALANCE_MODE", "running")),
		LogDir:      os.Getenv("LOG_DIR"),
		LogDebug:    getBool("LOG_DEBUG", false, &errs),
		DB:          readDB(&errs),
		Auth: AuthConfig{
			Mode:          strings.ToLower(getString("AUTH_MODE", AuthJWT)),
			JWTSecret:     os.Getenv("AUTH_JWT_SECRET"),
			JWTIssuer:     os.Getenv("AUTH_JWT_ISSUER"),
			TrustedHeader: getString("AUTH_TRUSTED_HEADER", "X-Owner-ID"),
		},
	}

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// LoadDB reads only the logging and database settings. Tools that talk to
// postgres directly, like the migration runner, use it so that HTTP and
// auth settings are not required.
func LoadDB(envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	var errs []error
	cfg := &Config{
		StoreDriver: StorePostgres,
		LogDir:      os.Getenv("LOG_DIR"),
		LogDebug:    getBool("LOG_DEBUG", false, &errs),
		DB:          readDB(&errs),
	}

	errs = append(errs, cfg.DB.validate()...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func loadEnvFile(envFile string) error {
	if envFile == "" {
		envFile = "config.env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

func readDB(errs *[]error) DBConfig {
	return DBConfig{
		Host:         os.Getenv("DB_HOST"),
		Port:         getInt("DB_PORT", 5432, errs),
		User:         os.Getenv("DB_USER"),
		Password:     os.Getenv("DB_PASSWORD"),
		Name:         os.Getenv("DB_NAME"),
		SSLMode:      getString("DB_SSLMODE", "disable"),
		MaxOpenConns: getInt("DB_MAX_OPEN_CONNS", 10, errs),
		MaxIdleConns: getInt("DB_MAX_IDLE_CONNS", 5, errs),
		AutoMigrate:  getBool("DB_AUTO_MIGRATE", true, errs),
	}
}

func (c DBConfig) validate() []error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required for the postgres store"))
	}
	if c.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required for the postgres store"))
	}
	return errs
}

func (c *Config) validate() []error {
	var errs []error

	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		errs = append(errs, c.DB.validate()...)
	default:
		errs = append(errs, fmt.Errorf("invalid STORE_DRIVER %q", c.StoreDriver))
	}

	switch c.Auth.Mode {
	case AuthJWT:
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("AUTH_JWT_SECRET is required when AUTH_MODE=jwt"))
		}
	case AuthHeader:
		if c.Auth.TrustedHeader == "" {
			errs = append(errs, errors.New("AUTH_TRUSTED_HEADER must not be empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid AUTH_MODE %q", c.Auth.Mode))
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		errs = append(errs, errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together"))
	}

	return errs
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func getBool(key string, def bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return b
}
