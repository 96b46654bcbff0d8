package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Development-only fallbacks. Validate rejects them being absent in production.
const (
	devJWTSecret     = "dev-secret-change-me"
	devAdminPassword = "admin-change-me"
)

type AdminConfig struct {
	Email     string `yaml:"admin_email"`
	Password  string `yaml:"admin_password"`
	FirstName string `yaml:"admin_first_name"`
	LastName  string `yaml:"admin_last_name"`
}

// ThrottleConfig budgets login attempts per account+client (MaxAttempts) and
// per client address (MaxClientAttempts) within Window.
type ThrottleConfig struct {
	RedisAddr         string        `yaml:"redis_addr"`
	MaxAttempts       int           `yaml:"max_attempts"`
	MaxClientAttempts int           `yaml:"max_client_attempts"`
	Window            time.Duration `yaml:"window"`
}

type Config struct {
	Env         string
	HTTPAddr    string
	LogLevel    string
	DBDriver    string
	DBDSN       string
	JWTSecret   string
	BcryptCost  int
	FrontendURL string
	Admin       AdminConfig
	Throttle    ThrottleConfig

	insecure []string
}

type fileConfig struct {
	Env      string `yaml:"env"`
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`
	DB       struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"db"`
	Auth struct {
		JWTSecret  string `yaml:"jwt_secret"`
		BcryptCost int    `yaml:"bcrypt_cost"`
	} `yaml:"auth"`
	CORS struct {
		FrontendURL string `yaml:"frontend_url"`
	} `yaml:"cors"`
	Bootstrap AdminConfig    `yaml:"bootstrap"`
	Throttle  ThrottleConfig `yaml:"throttle"`
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func Defaults() Config {
	return Config{
		Env:         EnvDevelopment,
		HTTPAddr:    ":3001",
		LogLevel:    "info",
		DBDriver:    DriverSQLite,
		DBDSN:       "file:carebase.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		BcryptCost:  10,
		FrontendURL: "http://localhost:3000",
		Admin: AdminConfig{
			Email:     "admin@carebase.local",
			FirstName: "Admin",
			LastName:  "Carebase",
		},
		Throttle: ThrottleConfig{
			MaxAttempts:       5,
			MaxClientAttempts: 20,
			Window:            15 * time.Minute,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CAREBASE_CONFIG and the environment. Variables from env.local (or
// CAREBASE_ENV_FILE) are loaded first without overriding the real environment.
func Load() (Config, error) {
	if err := godotenv.Load(getenv("CAREBASE_ENV_FILE", "env.local")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	cfg := Defaults()
	if path := os.Getenv("CAREBASE_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.mergeEnv(); err != nil {
		return Config{}, err
	}
	cfg.applyDevFallbacks()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	setString(&c.Env, fc.Env)
	setString(&c.HTTPAddr, fc.HTTPAddr)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.DBDriver, fc.DB.Driver)
	setString(&c.DBDSN, fc.DB.DSN)
	setString(&c.JWTSecret, fc.Auth.JWTSecret)
	setString(&c.FrontendURL, fc.CORS.FrontendURL)
	setString(&c.Admin.Email, fc.Bootstrap.Email)
	setString(&c.Admin.Password, fc.Bootstrap.Password)
	setString(&c.Admin.FirstName, fc.Bootstrap.FirstName)
	setString(&c.Admin.LastName, fc.Bootstrap.LastName)
	setString(&c.Throttle.RedisAddr, fc.Throttle.RedisAddr)
	if fc.Auth.BcryptCost != 0 {
		c.BcryptCost = fc.Auth.BcryptCost
	}
	if fc.Throttle.MaxAttempts != 0 {
		c.Throttle.MaxAttempts = fc.Throttle.MaxAttempts
	}
	if fc.Throttle.MaxClientAttempts != 0 {
		c.Throttle.MaxClientAttempts = fc.Throttle.MaxClientAttempts
	}
	if fc.Throttle.Window != 0 {
		c.Throttle.Window = fc.Throttle.Window
	}
	return nil
}

func (c *Config) mergeEnv() error {
	c.Env = getenv("CAREBASE_ENV", c.Env)
	c.HTTPAddr = getenv("CAREBASE_HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = getenv("CAREBASE_LOG_LEVEL", c.LogLevel)
	c.DBDriver = getenv("CAREBASE_DB_DRIVER", c.DBDriver)
	c.DBDSN = getenv("CAREBASE_DB_DSN", c.DBDSN)
	c.JWTSecret = getenv("CAREBASE_JWT_SECRET", c.JWTSecret)
	c.FrontendURL = getenv("CAREBASE_FRONTEND_URL", c.FrontendURL)
	c.Admin.Email = getenv("CAREBASE_ADMIN_EMAIL", c.Admin.Email)
	c.Admin.Password = getenv("CAREBASE_ADMIN_PASSWORD", c.Admin.Password)
	c.Throttle.RedisAddr = getenv("CAREBASE_REDIS_ADDR", c.Throttle.RedisAddr)

	if v := os.Getenv("CAREBASE_BCRYPT_COST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CAREBASE_BCRYPT_COST: %w", err)
		}
		c.BcryptCost = n
	}
	if v := os.Getenv("CAREBASE_LOGIN_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CAREBASE_LOGIN_MAX_ATTEMPTS: %w", err)
		}
		c.Throttle.MaxAttempts = n
	}
	if v := os.Getenv("CAREBASE_LOGIN_MAX_CLIENT_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CAREBASE_LOGIN_MAX_CLIENT_ATTEMPTS: %w", err)
		}
		c.Throttle.MaxClientAttempts = n
	}
	if v := os.Getenv("CAREBASE_LOGIN_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CAREBASE_LOGIN_WINDOW: %w", err)
		}
		c.Throttle.Window = d
	}
	return nil
}

func (c *Config) applyDevFallbacks() {
	if c.Env != EnvDevelopment {
		return
	}
	if c.JWTSecret == "" {
		c.JWTSecret = devJWTSecret
		c.insecure = append(c.insecure, "jwt_secret")
	}
	if c.Admin.Password == "" {
		c.Admin.Password = devAdminPassword
		c.insecure = append(c.insecure, "admin_password")
	}
}

func (c Config) Validate() error {
	var errs []error
	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("env must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env))
	}
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("db driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.DBDriver))
	}
	if c.DBDSN == "" {
		errs = append(errs, errors.New("db dsn is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	if c.Admin.Email == "" || c.Admin.Password == "" {
		errs = append(errs, errors.New("bootstrap admin email and password are required"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("bcrypt cost must be in [%d, %d], got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost))
	}
	if c.Throttle.MaxAttempts <= 0 || c.Throttle.MaxClientAttempts <= 0 || c.Throttle.Window <= 0 {
		errs = append(errs, errors.New("throttle max attempts and window must be positive"))
	}
	return errors.Join(errs...)
}

// Insecure lists the settings that fell back to well-known development values.
func (c Config) Insecure() []string {
	return c.insecure
}

func (c Config) Production() bool {
	return c.Env == EnvProduction
}

func (c Config) String() string {
	return fmt.Sprintf("env=%s addr=%s driver=%s throttle=%s insecure=[%s]",
		c.Env, c.HTTPAddr, c.DBDriver, c.throttleMode(), strings.Join(c.insecure, ","))
}

func (c Config) throttleMode() string {
	if c.Throttle.RedisAddr != "" {
		return "redis"
	}
	return "local"
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
