package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	Notify    NotifyConfig
	Bootstrap BootstrapConfig
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
	ConnectTimeout    time.Duration
	StatementTimeout  time.Duration // 0 leaves the server default
	ApplicationName   string
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	MaxFailedAttempts  int
	LockoutDuration    time.Duration
	CleanupInterval    time.Duration
	BcryptCost         int
	TimingDelayBaseMs  int
	TimingDelayRandMs  int
	TOTPEncryptionKey  []byte // nil disables two-factor setup
	TOTPIssuer         string
}

// NotifyConfig drives the new-inquiry email. Empty FromAddress disables it.
type NotifyConfig struct {
	AWSRegion      string
	FromAddress    string
	StaffAddresses []string
}

// BootstrapConfig names the super_admin created on first start.
type BootstrapConfig struct {
	Email    string
	Password string
	Name     string
}

// Enabled reports whether both credentials are present.
func (b BootstrapConfig) Enabled() bool {
	return b.Email != "" && b.Password != ""
}

// Load reads .env (if present), then environment variables and an optional
// landmark.yaml in the working directory. Environment wins over the file.
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	jwtSecret := v.GetString("jwt_secret")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := v.GetString("env")

	cfg := &Config{
		Database: databaseConfig(v),
		Server: ServerConfig{
			Port:           v.GetString("port"),
			Env:            env,
			LogLevel:       v.GetString("log_level"),
			AllowedOrigins: parseAllowedOrigins(env, v.GetString("allowed_origins")),
			TrustedProxies: splitList(v.GetString("trusted_proxies")),
			ReadTimeout:    v.GetDuration("server_read_timeout"),
			WriteTimeout:   v.GetDuration("server_write_timeout"),
			IdleTimeout:    v.GetDuration("server_idle_timeout"),
		},
		Auth: AuthConfig{
			JWTSecret:          jwtSecret,
			AccessTokenExpiry:  v.GetDuration("access_token_expiry"),
			RefreshTokenExpiry: v.GetDuration("refresh_token_expiry"),
			MaxFailedAttempts:  v.GetInt("max_failed_login_attempts"),
			LockoutDuration:    v.GetDuration("lockout_duration"),
			CleanupInterval:    v.GetDuration("token_cleanup_interval"),
			BcryptCost:         v.GetInt("bcrypt_cost"),
			TimingDelayBaseMs:  v.GetInt("timing_delay_base_ms"),
			TimingDelayRandMs:  v.GetInt("timing_delay_random_ms"),
			TOTPIssuer:         v.GetString("totp_issuer"),
		},
		Notify: NotifyConfig{
			AWSRegion:      v.GetString("aws_region"),
			FromAddress:    v.GetString("ses_from_address"),
			StaffAddresses: splitList(v.GetString("ses_staff_addresses")),
		},
		Bootstrap: BootstrapConfig{
			Email:    strings.TrimSpace(v.GetString("super_admin_email")),
			Password: v.GetString("super_admin_password"),
			Name:     v.GetString("super_admin_name"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if raw := v.GetString("totp_encryption_key"); raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("TOTP_ENCRYPTION_KEY must be base64: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("TOTP_ENCRYPTION_KEY must decode to 32 bytes (got %d)", len(key))
		}
		cfg.Auth.TOTPEncryptionKey = key
	}

	if cfg.Auth.MaxFailedAttempts < 1 {
		return nil, fmt.Errorf("MAX_FAILED_LOGIN_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

// LoadDatabase reads only the database settings. The operator CLI uses it so
// that it does not need the signing secret.
func LoadDatabase() (*DatabaseConfig, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	cfg := databaseConfig(v)
	if cfg.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	return &cfg, nil
}

func newViper() (*viper.Viper, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("landmark")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

func databaseConfig(v *viper.Viper) DatabaseConfig {
	return DatabaseConfig{
		Host:              v.GetString("db_host"),
		Port:              v.GetInt("db_port"),
		User:              v.GetString("db_user"),
		Password:          v.GetString("db_password"),
		Name:              v.GetString("db_name"),
		SSLMode:           v.GetString("db_sslmode"),
		MaxConns:          v.GetInt32("db_max_conns"),
		MinConns:          v.GetInt32("db_min_conns"),
		MaxConnLifetime:   v.GetDuration("db_max_conn_lifetime"),
		MaxConnIdleTime:   v.GetDuration("db_max_conn_idle_time"),
		HealthCheckPeriod: v.GetDuration("db_health_check_period"),
		ConnectTimeout:    v.GetDuration("db_connect_timeout"),
		StatementTimeout:  v.GetDuration("db_statement_timeout"),
		ApplicationName:   v.GetString("db_application_name"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("server_read_timeout", 15*time.Second)
	v.SetDefault("server_write_timeout", 15*time.Second)
	v.SetDefault("server_idle_timeout", 60*time.Second)

	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_name", "landmark")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("db_max_conns", 25)
	v.SetDefault("db_min_conns", 5)
	v.SetDefault("db_max_conn_lifetime", 5*time.Minute)
	v.SetDefault("db_max_conn_idle_time", 1*time.Minute)
	v.SetDefault("db_health_check_period", 1*time.Minute)
	v.SetDefault("db_connect_timeout", 10*time.Second)
	v.SetDefault("db_statement_timeout", 15*time.Second)
	v.SetDefault("db_application_name", "landmark-api")

	v.SetDefault("access_token_expiry", 7*24*time.Hour)
	v.SetDefault("refresh_token_expiry", 30*24*time.Hour)
	v.SetDefault("max_failed_login_attempts", 5)
	v.SetDefault("lockout_duration", 2*time.Hour)
	v.SetDefault("token_cleanup_interval", 1*time.Hour)
	v.SetDefault("bcrypt_cost", 12)
	v.SetDefault("timing_delay_base_ms", 200)
	v.SetDefault("timing_delay_random_ms", 100)
	v.SetDefault("totp_issuer", "Landmark")

	v.SetDefault("aws_region", "eu-central-1")
	v.SetDefault("super_admin_name", "Super Admin")
}

// validateJWTSecret enforces minimum security standards for JWT secret
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

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env, raw string) []string {
	if origins := splitList(raw); len(origins) > 0 || env == "production" {
		return origins
	}

	// Development: the admin dashboard and the public site dev servers
	return []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
