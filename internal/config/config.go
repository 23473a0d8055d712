package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the sales analytics service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Data      DataConfig      `yaml:"data"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Router    RouterConfig    `yaml:"router"`
	Session   SessionConfig   `yaml:"session"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DataConfig describes where the sales dataset comes from.
type DataConfig struct {
	Source   string         `yaml:"source"` // "csv" or "postgres"
	CSVPath  string         `yaml:"csv_path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds connection details for a Postgres dataset source.
// A non-empty DSN takes precedence over the individual fields.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Table    string `yaml:"table"`
}

// AnalyticsConfig carries every statistical tunable. Each default mirrors
// the service's documented behavior; overriding them changes thresholds,
// never semantics.
type AnalyticsConfig struct {
	ZScoreThreshold     float64 `yaml:"zscore_threshold"`
	IQRMultiplier       float64 `yaml:"iqr_multiplier"`
	AnovaAlpha          float64 `yaml:"anova_alpha"`
	ModerateCorrelation float64 `yaml:"moderate_correlation"`
	StrongCorrelation   float64 `yaml:"strong_correlation"`
	FlatSlopeRatio      float64 `yaml:"flat_slope_ratio"`
	ConfidenceLevel     float64 `yaml:"confidence_level"`
	ForecastPeriods     int     `yaml:"forecast_periods"`
	MinForecastHistory  int     `yaml:"min_forecast_history"`
	MovingAvgWindow     int     `yaml:"moving_avg_window"`
	ChurnHighDays       int     `yaml:"churn_high_days"`
	ChurnMediumDays     int     `yaml:"churn_medium_days"`
	ChurnLookbackDays   int     `yaml:"churn_lookback_days"`
	MarginFloor         float64 `yaml:"margin_floor"`
	TopN                int     `yaml:"top_n"`
}

// RouterConfig bounds the orchestrator.
type RouterConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

// SessionConfig selects the conversation store. An empty RedisURL keeps
// sessions in memory.
type SessionConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// SynthesisConfig controls the optional LLM narration layer.
type SynthesisConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig selects the zap profile.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file or env overrides are
// present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			AllowedOrigins: []string{"*"},
		},
		Data: DataConfig{
			Source:  "csv",
			CSVPath: "data/sales_data.csv",
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				SSLMode: "disable",
				Table:   "sales",
			},
		},
		Analytics: AnalyticsConfig{
			ZScoreThreshold:     3.0,
			IQRMultiplier:       1.5,
			AnovaAlpha:          0.05,
			ModerateCorrelation: 0.3,
			StrongCorrelation:   0.7,
			FlatSlopeRatio:      0.01,
			ConfidenceLevel:     0.95,
			ForecastPeriods:     12,
			MinForecastHistory:  3,
			MovingAvgWindow:     6,
			ChurnHighDays:       180,
			ChurnMediumDays:     90,
			ChurnLookbackDays:   365,
			MarginFloor:         10.0,
			TopN:                5,
		},
		Router: RouterConfig{
			MaxIterations: 10,
		},
		Session: SessionConfig{
			TTL: 24 * time.Hour,
		},
		Synthesis: SynthesisConfig{
			Enabled: false,
			BaseURL: "http://localhost:11434",
			Model:   "qwen3-vl:2b",
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path (if non-empty), applies env overrides,
// and validates the result. A missing file is not an error when path is
// empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv maps well-known environment variables onto the config. Env wins
// over file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("SALES_DATA_PATH"); v != "" {
		c.Data.CSVPath = v
		c.Data.Source = "csv"
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		// A full DSN switches the source to postgres; individual fields are
		// ignored in that case.
		c.Data.Source = "postgres"
		c.Data.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Session.RedisURL = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		c.Synthesis.BaseURL = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		c.Synthesis.Model = v
	}
	if v := os.Getenv("SYNTHESIS_ENABLED"); v != "" {
		c.Synthesis.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Router.MaxIterations = n
		}
	}
	if v := os.Getenv("FORECAST_PERIODS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Analytics.ForecastPeriods = n
		}
	}
	if v := os.Getenv("CONFIDENCE_LEVEL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f < 1 {
			c.Analytics.ConfidenceLevel = f
		}
	}
}

// Validate rejects configurations the engines cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Data.Source {
	case "csv", "postgres":
	default:
		return fmt.Errorf("unknown data source %q", c.Data.Source)
	}
	a := c.Analytics
	if a.ZScoreThreshold <= 0 {
		return fmt.Errorf("zscore_threshold must be positive, got %v", a.ZScoreThreshold)
	}
	if a.IQRMultiplier <= 0 {
		return fmt.Errorf("iqr_multiplier must be positive, got %v", a.IQRMultiplier)
	}
	if a.AnovaAlpha <= 0 || a.AnovaAlpha >= 1 {
		return fmt.Errorf("anova_alpha must be in (0,1), got %v", a.AnovaAlpha)
	}
	if a.ConfidenceLevel <= 0 || a.ConfidenceLevel >= 1 {
		return fmt.Errorf("confidence_level must be in (0,1), got %v", a.ConfidenceLevel)
	}
	if a.ModerateCorrelation < 0 || a.StrongCorrelation > 1 || a.ModerateCorrelation > a.StrongCorrelation {
		return fmt.Errorf("correlation tiers must satisfy 0 <= moderate <= strong <= 1")
	}
	if a.ForecastPeriods <= 0 {
		return fmt.Errorf("forecast_periods must be positive, got %d", a.ForecastPeriods)
	}
	if a.MinForecastHistory < 2 {
		return fmt.Errorf("min_forecast_history must be at least 2, got %d", a.MinForecastHistory)
	}
	if a.ChurnMediumDays <= 0 || a.ChurnHighDays <= a.ChurnMediumDays {
		return fmt.Errorf("churn thresholds must satisfy 0 < medium < high")
	}
	if c.Router.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.Router.MaxIterations)
	}
	return nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
