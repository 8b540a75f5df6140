package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/landed-cost/internal/pricing"
)

// DefaultFXBaseURL is the public Frankfurter endpoint.
const DefaultFXBaseURL = "https://api.frankfurter.dev"

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string
	// TrustProxyHeaders lets X-Forwarded-For and friends set the client address.
	TrustProxyHeaders bool

	LocalCurrency string
	Jurisdiction  pricing.Jurisdiction

	FXBaseURL            string
	FXCacheTTL           time.Duration
	FXTimeout            time.Duration
	FXRetryMaxAttempts   int
	FXRetryBase          time.Duration
	FXRetryJitter        float64
	FXCircuitMinRequests int
	FXCircuitFailureRate float64
	FXCircuitOpenFor     time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int
	BodyLimitBytes  int64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		TrustProxyHeaders:  parseBool(k.String("TRUST_PROXY_HEADERS"), false),

		LocalCurrency: strings.ToUpper(valueOrDefault(k.String("LOCAL_CURRENCY"), "JPY")),

		FXBaseURL:            strings.TrimRight(valueOrDefault(k.String("FX_BASE_URL"), DefaultFXBaseURL), "/"),
		FXCacheTTL:           parseDuration(k.String("FX_CACHE_TTL"), "1h"),
		FXTimeout:            parseDuration(k.String("FX_TIMEOUT"), "3s"),
		FXRetryMaxAttempts:   parseInt(k.String("FX_RETRY_MAX_ATTEMPTS"), 2),
		FXRetryBase:          parseDuration(k.String("FX_RETRY_BASE"), "200ms"),
		FXRetryJitter:        parseFloat(k.String("FX_RETRY_JITTER"), 0.2),
		FXCircuitMinRequests: parseInt(k.String("FX_CIRCUIT_MIN_REQ"), 5),
		FXCircuitFailureRate: parseFloat(k.String("FX_CIRCUIT_FAILURE_RATE"), 0.5),
		FXCircuitOpenFor:     parseDuration(k.String("FX_CIRCUIT_OPEN_FOR"), "30s"),

		RateLimitWindow: parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:    parseInt(k.String("RATE_LIMIT_MAX"), 60),
		BodyLimitBytes:  int64(parseInt(k.String("BODY_LIMIT_BYTES"), 16<<10)),
	}

	if len(cfg.LocalCurrency) != 3 {
		return nil, errors.New("LOCAL_CURRENCY must be a three-letter code")
	}
	if cfg.FXRetryMaxAttempts < 1 {
		cfg.FXRetryMaxAttempts = 1
	}

	j, err := loadJurisdiction(k)
	if err != nil {
		return nil, err
	}
	cfg.Jurisdiction = j

	return cfg, nil
}

func loadJurisdiction(k *koanf.Koanf) (pricing.Jurisdiction, error) {
	j := pricing.DefaultJurisdiction()
	var errs []error
	overrideFloat := func(key string, dst *float64) {
		raw := strings.TrimSpace(k.String(key))
		if raw == "" {
			return
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: not a number: %q", key, raw))
			return
		}
		*dst = v
	}
	overrideMoney := func(key string, dst *pricing.Money) {
		raw := strings.TrimSpace(k.String(key))
		if raw == "" {
			return
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: not a whole number: %q", key, raw))
			return
		}
		*dst = v
	}
	overrideFloat("JURISDICTION_ASSESSED_RATIO", &j.AssessedRatio)
	overrideMoney("JURISDICTION_DUTY_EXEMPT_THRESHOLD", &j.DutyExemptThreshold)
	overrideMoney("JURISDICTION_TOBACCO_TAX_PER_KG", &j.TobaccoTaxPerKg)
	overrideFloat("JURISDICTION_VAT_NATIONAL_RATE", &j.VATNationalRate)
	overrideFloat("JURISDICTION_VAT_LOCAL_RATE", &j.VATLocalRate)
	overrideMoney("JURISDICTION_CUSTOMS_FEE", &j.CustomsFee)
	if len(errs) > 0 {
		return pricing.Jurisdiction{}, fmt.Errorf("jurisdiction config: %w", errors.Join(errs...))
	}
	if err := j.Validate(); err != nil {
		return pricing.Jurisdiction{}, fmt.Errorf("jurisdiction config: %w", err)
	}
	return j, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}

func parseBool(value string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
