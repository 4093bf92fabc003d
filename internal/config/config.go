package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const minSecretLength = 32

// ErrInvalidConfig wraps every validation failure so callers (and the load
// metric) can tell refusing-to-start from environment parse trouble.
var (
	ErrInvalidConfig = errors.New("validate config")
	errEnvParse      = errors.New("parse environment")
)

type Config struct {
	Profile string
	Addr    string

	DatabaseURL string
	RedisAddr   string

	JWTIssuer        string
	JWTAudience      string
	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration

	CookieSecure      bool
	LoginRedirectPath string

	APIRateLimitRPM  int
	AuthRateLimitRPM int

	RequestTimeout   time.Duration
	ShutdownTimeout  time.Duration
	FamilySweepEvery time.Duration

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
}

// Load reads configuration from the environment. Validation failures are
// returned to the caller and are fatal at startup; they are never a
// per-request condition.
func Load() (*Config, error) {
	cfg := &Config{
		Profile:           envString("APP_PROFILE", "dev"),
		Addr:              envString("HTTP_ADDR", ":8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		JWTIssuer:         envString("JWT_ISSUER", "palette"),
		JWTAudience:       envString("JWT_AUDIENCE", "palette-web"),
		JWTAccessSecret:   os.Getenv("JWT_ACCESS_SECRET"),
		JWTRefreshSecret:  os.Getenv("JWT_REFRESH_SECRET"),
		CookieSecure:      envBool("COOKIE_SECURE", true),
		LoginRedirectPath: envString("LOGIN_REDIRECT_PATH", "/login"),
		APIRateLimitRPM:   envInt("API_RATE_LIMIT_RPM", 300),
		AuthRateLimitRPM:  envInt("AUTH_RATE_LIMIT_RPM", 30),

		OTELServiceName:          envString("OTEL_SERVICE_NAME", "palette"),
		OTELEnvironment:          envString("OTEL_ENVIRONMENT", "dev"),
		OTELExporterOTLPEndpoint: envString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsEnabled:       envBool("OTEL_METRICS_ENABLED", false),
		OTELTracesEnabled:        envBool("OTEL_TRACES_ENABLED", false),
		OTELLogsEnabled:          envBool("OTEL_LOGS_ENABLED", false),
	}

	if err := cfg.loadDurations(); err != nil {
		recordConfigLoadResult(context.Background(), cfg.Profile, "invalid", err)
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		recordConfigLoadResult(context.Background(), cfg.Profile, "invalid", err)
		return nil, err
	}
	recordConfigLoadResult(context.Background(), cfg.Profile, "valid", nil)
	return cfg, nil
}

func (c *Config) loadDurations() error {
	var err error
	if c.AccessTTL, err = envDuration("JWT_ACCESS_TTL", 15*time.Minute); err != nil {
		return err
	}
	if c.RefreshTTL, err = envDuration("JWT_REFRESH_TTL", 7*24*time.Hour); err != nil {
		return err
	}
	if c.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return err
	}
	if c.ShutdownTimeout, err = envDuration("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return err
	}
	if c.FamilySweepEvery, err = envDuration("FAMILY_SWEEP_EVERY", time.Hour); err != nil {
		return err
	}
	c.OTELMetricsExportInterval, err = envDuration("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second)
	return err
}

func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if len(c.JWTAccessSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_ACCESS_SECRET must be at least %d bytes", minSecretLength))
	}
	if len(c.JWTRefreshSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_REFRESH_SECRET must be at least %d bytes", minSecretLength))
	}
	if c.JWTAccessSecret != "" && c.JWTAccessSecret == c.JWTRefreshSecret {
		errs = append(errs, errors.New("access and refresh secrets must differ"))
	}
	if c.AccessTTL <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_TTL must be positive"))
	}
	if c.RefreshTTL <= c.AccessTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must exceed JWT_ACCESS_TTL"))
	}
	if joined := errors.Join(errs...); joined != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, joined)
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", errEnvParse, key, err)
	}
	return d, nil
}
