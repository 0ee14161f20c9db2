// Package config loads the gateway settings from the environment.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

const (
	Port                  = "PORT"
	AppName               = "APP_NAME"
	AppEnv                = "APP_ENV"
	MLAPIBaseURL          = "ML_API_BASE_URL"
	HealthTimeoutMs       = "ML_API_HEALTH_TIMEOUT_MS"
	ModelInfoTimeoutMs    = "ML_API_MODEL_INFO_TIMEOUT_MS"
	PredictTimeoutMs      = "ML_API_PREDICT_TIMEOUT_MS"
	CORSAllowOrigins      = "CORS_ALLOW_ORIGINS"
	HousingDataPath       = "HOUSING_DATA_PATH"
	LogResponse           = "LOG_RESPONSE"
	CompressMinBytes      = "COMPRESS_MIN_BYTES"
	OTelEnabled           = "OTEL_ENABLED"
	OTelDebug             = "OTEL_DEBUG"
	OTelExporterEndpoint  = "OTEL_EXPORTER_OTLP_ENDPOINT"
	defaultMLAPIBaseURL   = "http://localhost:8000"
	defaultPort           = "9000"
	defaultAppName        = "estimator-gateway"
	defaultHealthTimeout  = 3000
	defaultPredictTimeout = 5000
)

// Config is the resolved gateway configuration.
type Config struct {
	Port     string
	AppName  string
	AppEnv   string
	Upstream Upstream

	CORSAllowOrigins []string
	HousingDataPath  string
	LogResponse      bool
	CompressMinBytes int

	OTelEnabled  bool
	OTelDebug    bool
	OTLPEndpoint string
}

// Upstream holds the ML API location and per-operation timeouts.
type Upstream struct {
	BaseURL          string
	HealthTimeout    time.Duration
	ModelInfoTimeout time.Duration
	PredictTimeout   time.Duration
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "prod" || c.AppEnv == "production"
}

// ListenAddr returns the address the HTTP server binds.
func (c *Config) ListenAddr() string {
	return ":" + c.Port
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(Port, defaultPort)
	v.SetDefault(AppName, defaultAppName)
	v.SetDefault(MLAPIBaseURL, defaultMLAPIBaseURL)
	v.SetDefault(HealthTimeoutMs, defaultHealthTimeout)
	v.SetDefault(ModelInfoTimeoutMs, defaultHealthTimeout)
	v.SetDefault(PredictTimeoutMs, defaultPredictTimeout)
	v.SetDefault(CORSAllowOrigins, "*")
	v.SetDefault(CompressMinBytes, 1024)
	v.SetDefault(OTelExporterEndpoint, "localhost:4317")
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper resolves a Config from v, applying defaults for unset keys.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	cfg := &Config{
		Port:    v.GetString(Port),
		AppName: v.GetString(AppName),
		AppEnv:  v.GetString(AppEnv),
		Upstream: Upstream{
			BaseURL:          strings.TrimRight(strings.TrimSpace(v.GetString(MLAPIBaseURL)), "/"),
			HealthTimeout:    time.Duration(v.GetInt(HealthTimeoutMs)) * time.Millisecond,
			ModelInfoTimeout: time.Duration(v.GetInt(ModelInfoTimeoutMs)) * time.Millisecond,
			PredictTimeout:   time.Duration(v.GetInt(PredictTimeoutMs)) * time.Millisecond,
		},
		CORSAllowOrigins: splitList(v.GetString(CORSAllowOrigins)),
		HousingDataPath:  v.GetString(HousingDataPath),
		LogResponse:      v.GetBool(LogResponse),
		CompressMinBytes: v.GetInt(CompressMinBytes),
		OTelEnabled:      v.GetBool(OTelEnabled),
		OTelDebug:        v.GetBool(OTelDebug),
		OTLPEndpoint:     v.GetString(OTelExporterEndpoint),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Upstream.BaseURL == "" {
		return errors.Newf("%s cannot be empty", MLAPIBaseURL)
	}
	if !strings.HasPrefix(c.Upstream.BaseURL, "http://") && !strings.HasPrefix(c.Upstream.BaseURL, "https://") {
		return errors.Newf("%s must be an http(s) URL, got %q", MLAPIBaseURL, c.Upstream.BaseURL)
	}
	if c.Upstream.HealthTimeout <= 0 || c.Upstream.ModelInfoTimeout <= 0 || c.Upstream.PredictTimeout <= 0 {
		return errors.New("ML API timeouts must be positive")
	}
	if c.Port == "" {
		return errors.Newf("%s cannot be empty", Port)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
