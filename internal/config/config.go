package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dugouthq/lineup-api/internal/platform/logging"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv                       string
	ServiceName                  string
	ServiceVersion               string
	HTTPAddr                     string
	DBURL                        string
	DBDisablePreparedBinary      bool
	CORSAllowedOrigins           []string
	ReadTimeout                  time.Duration
	WriteTimeout                 time.Duration
	PprofEnabled                 bool
	PprofAddr                    string
	IdentityBaseURL              string
	IdentityIntrospectPath       string
	IdentityTimeout              time.Duration
	IdentityCircuitEnabled       bool
	IdentityCircuitFailureCount  int
	IdentityCircuitOpenTimeout   time.Duration
	IdentityCircuitHalfOpenMax   int
	OptimizerBaseURL             string
	OptimizerAPIKey              string
	OptimizerTimeout             time.Duration
	OptimizerCircuitEnabled      bool
	OptimizerCircuitFailureCount int
	OptimizerCircuitOpenTimeout  time.Duration
	OptimizerCircuitHalfOpenMax  int
	PaymentWebhookToken          string
	AccessGrantDuration          time.Duration
	PriceAmountCents             int64
	PriceCurrency                string
	UptraceEnabled               bool
	UptraceDSN                   string
	PyroscopeEnabled             bool
	PyroscopeServerAddress       string
	PyroscopeAppName             string
	PyroscopeAuthToken           string
	PyroscopeBasicAuthUser       string
	PyroscopeBasicAuthPassword   string
	PyroscopeUploadRate          time.Duration
	LogLevel                     logging.Level
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	pprofAddr := strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if pprofAddr == "" {
		pprofAddr = ":6060"
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}
	if pyroscopeUploadRate <= 0 {
		return Config{}, fmt.Errorf("PYROSCOPE_UPLOAD_RATE must be > 0")
	}

	readTimeout, err := time.ParseDuration(getEnv("APP_READ_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := time.ParseDuration(getEnv("APP_WRITE_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_WRITE_TIMEOUT: %w", err)
	}

	identityTimeout, err := time.ParseDuration(getEnv("IDENTITY_TIMEOUT", "3s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse IDENTITY_TIMEOUT: %w", err)
	}
	identityCircuitEnabled, err := strconv.ParseBool(getEnv("IDENTITY_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse IDENTITY_CIRCUIT_ENABLED: %w", err)
	}
	identityCircuitFailureCount, err := getEnvAsInt("IDENTITY_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse IDENTITY_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if identityCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("IDENTITY_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	identityCircuitOpenTimeout, err := time.ParseDuration(getEnv("IDENTITY_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse IDENTITY_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if identityCircuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("IDENTITY_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	identityCircuitHalfOpenMax, err := getEnvAsInt("IDENTITY_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse IDENTITY_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if identityCircuitHalfOpenMax < 1 {
		return Config{}, fmt.Errorf("IDENTITY_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	optimizerTimeout, err := time.ParseDuration(getEnv("OPTIMIZER_TIMEOUT", "5s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse OPTIMIZER_TIMEOUT: %w", err)
	}
	if optimizerTimeout <= 0 {
		return Config{}, fmt.Errorf("OPTIMIZER_TIMEOUT must be > 0")
	}
	optimizerCircuitEnabled, err := strconv.ParseBool(getEnv("OPTIMIZER_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse OPTIMIZER_CIRCUIT_ENABLED: %w", err)
	}
	optimizerCircuitFailureCount, err := getEnvAsInt("OPTIMIZER_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse OPTIMIZER_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if optimizerCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("OPTIMIZER_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	optimizerCircuitOpenTimeout, err := time.ParseDuration(getEnv("OPTIMIZER_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse OPTIMIZER_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if optimizerCircuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("OPTIMIZER_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	optimizerCircuitHalfOpenMax, err := getEnvAsInt("OPTIMIZER_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse OPTIMIZER_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if optimizerCircuitHalfOpenMax < 1 {
		return Config{}, fmt.Errorf("OPTIMIZER_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	// Zero means a grant never expires.
	accessGrantDuration, err := time.ParseDuration(getEnv("ACCESS_GRANT_DURATION", "8760h"))
	if err != nil {
		return Config{}, fmt.Errorf("parse ACCESS_GRANT_DURATION: %w", err)
	}
	if accessGrantDuration < 0 {
		return Config{}, fmt.Errorf("ACCESS_GRANT_DURATION must be >= 0")
	}

	priceAmountCents, err := getEnvAsInt64("PRICE_AMOUNT_CENTS", 2900)
	if err != nil {
		return Config{}, fmt.Errorf("parse PRICE_AMOUNT_CENTS: %w", err)
	}
	if priceAmountCents <= 0 {
		return Config{}, fmt.Errorf("PRICE_AMOUNT_CENTS must be > 0")
	}
	priceCurrency := strings.ToUpper(strings.TrimSpace(getEnv("PRICE_CURRENCY", "USD")))
	if len(priceCurrency) != 3 {
		return Config{}, fmt.Errorf("PRICE_CURRENCY must be a three letter code, got %q", priceCurrency)
	}

	dbDisablePreparedBinary, err := strconv.ParseBool(getEnv("DB_DISABLE_PREPARED_BINARY_RESULT", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_DISABLE_PREPARED_BINARY_RESULT: %w", err)
	}

	cfg := Config{
		AppEnv:                       appEnv,
		ServiceName:                  getEnv("APP_SERVICE_NAME", "lineup-api"),
		ServiceVersion:               getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:                     getEnv("APP_HTTP_ADDR", ":8080"),
		DBURL:                        strings.TrimSpace(getEnv("DB_URL", "")),
		DBDisablePreparedBinary:      dbDisablePreparedBinary,
		CORSAllowedOrigins:           splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		ReadTimeout:                  readTimeout,
		WriteTimeout:                 writeTimeout,
		PprofEnabled:                 pprofEnabled,
		PprofAddr:                    pprofAddr,
		IdentityBaseURL:              getEnv("IDENTITY_BASE_URL", "http://localhost:8081"),
		IdentityIntrospectPath:       getEnv("IDENTITY_INTROSPECT_PATH", "/v1/auth/introspect"),
		IdentityTimeout:              identityTimeout,
		IdentityCircuitEnabled:       identityCircuitEnabled,
		IdentityCircuitFailureCount:  identityCircuitFailureCount,
		IdentityCircuitOpenTimeout:   identityCircuitOpenTimeout,
		IdentityCircuitHalfOpenMax:   identityCircuitHalfOpenMax,
		OptimizerBaseURL:             getEnv("OPTIMIZER_BASE_URL", "http://localhost:8090"),
		OptimizerAPIKey:              strings.TrimSpace(getEnv("OPTIMIZER_API_KEY", "")),
		OptimizerTimeout:             optimizerTimeout,
		OptimizerCircuitEnabled:      optimizerCircuitEnabled,
		OptimizerCircuitFailureCount: optimizerCircuitFailureCount,
		OptimizerCircuitOpenTimeout:  optimizerCircuitOpenTimeout,
		OptimizerCircuitHalfOpenMax:  optimizerCircuitHalfOpenMax,
		PaymentWebhookToken:          strings.TrimSpace(getEnv("PAYMENT_WEBHOOK_TOKEN", "")),
		AccessGrantDuration:          accessGrantDuration,
		PriceAmountCents:             priceAmountCents,
		PriceCurrency:                priceCurrency,
		UptraceEnabled:               uptraceEnabled,
		UptraceDSN:                   uptraceDSN,
		PyroscopeEnabled:             pyroscopeEnabled,
		PyroscopeServerAddress:       pyroscopeServerAddress,
		PyroscopeAuthToken:           strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:       strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword:   strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:          pyroscopeUploadRate,
		LogLevel:                     parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if cfg.PyroscopeEnabled && cfg.PyroscopeAppName == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}
	if cfg.AppEnv == EnvProd && cfg.PaymentWebhookToken == "" {
		return Config{}, fmt.Errorf("PAYMENT_WEBHOOK_TOKEN is required when APP_ENV=prod")
	}

	return cfg, nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsInt64(key string, fallback int64) (int64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
