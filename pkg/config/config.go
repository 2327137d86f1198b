package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/streakline/pkg/log"
	"github.com/cuemby/streakline/pkg/schedule"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "STREAKLINE_"

// Config is the streakline configuration
type Config struct {
	DataDir    string           `yaml:"dataDir"`
	Timezone   string           `yaml:"timezone"`
	API        APIConfig        `yaml:"api"`
	Log        LogConfig        `yaml:"log"`
	Enrollment EnrollmentConfig `yaml:"enrollment"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
}

type APIConfig struct {
	Addr      string  `yaml:"addr"`
	RateLimit float64 `yaml:"rateLimit"` // requests per second per client, 0 disables
	RateBurst int     `yaml:"rateBurst"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

type EnrollmentConfig struct {
	PollAttempts    int           `yaml:"pollAttempts"`
	PollInterval    time.Duration `yaml:"pollInterval"`
	VisibilityDelay time.Duration `yaml:"visibilityDelay"` // simulated store lag, 0 disables
	DefaultTime     string        `yaml:"defaultTime"`
	ActionRate      float64       `yaml:"actionRate"` // calendar action creations per second
	ActionBurst     int           `yaml:"actionBurst"`
}

type ReconcileConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DataDir: "./streakline-data",
		API: APIConfig{
			Addr:      "127.0.0.1:8080",
			RateLimit: 20,
			RateBurst: 40,
		},
		Log: LogConfig{
			Level: string(log.InfoLevel),
		},
		Enrollment: EnrollmentConfig{
			PollAttempts: 10,
			PollInterval: 200 * time.Millisecond,
			DefaultTime:  schedule.DefaultTime,
			ActionRate:   20,
			ActionBurst:  5,
		},
		Reconcile: ReconcileConfig{
			Interval: 30 * time.Second,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then environment overrides. envFiles are loaded into
// the environment first without replacing variables that are already set;
// with none given, ./.env is used when it exists.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}
	var err error
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && err == nil {
			*dst, err = strconv.Atoi(v)
			err = wrapEnv(name, err)
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && err == nil {
			*dst, err = strconv.ParseFloat(v, 64)
			err = wrapEnv(name, err)
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && err == nil {
			*dst, err = strconv.ParseBool(v)
			err = wrapEnv(name, err)
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && err == nil {
			*dst, err = time.ParseDuration(v)
			err = wrapEnv(name, err)
		}
	}

	str("DATA_DIR", &c.DataDir)
	str("TIMEZONE", &c.Timezone)
	str("API_ADDR", &c.API.Addr)
	float("API_RATE_LIMIT", &c.API.RateLimit)
	num("API_RATE_BURST", &c.API.RateBurst)
	str("LOG_LEVEL", &c.Log.Level)
	boolean("LOG_JSON", &c.Log.JSON)
	str("LOG_FILE", &c.Log.File)
	num("POLL_ATTEMPTS", &c.Enrollment.PollAttempts)
	duration("POLL_INTERVAL", &c.Enrollment.PollInterval)
	duration("VISIBILITY_DELAY", &c.Enrollment.VisibilityDelay)
	str("DEFAULT_TIME", &c.Enrollment.DefaultTime)
	duration("RECONCILE_INTERVAL", &c.Reconcile.Interval)
	return err
}

func wrapEnv(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
}

// Validate checks the configuration for values the engine cannot run with
func (c *Config) Validate() error {
	var problems []string

	if c.DataDir == "" {
		problems = append(problems, "dataDir is required")
	}
	if c.API.Addr == "" {
		problems = append(problems, "api.addr is required")
	}
	if c.API.RateLimit < 0 || c.API.RateBurst < 0 {
		problems = append(problems, "api rate limit and burst must not be negative")
	}
	switch log.Level(c.Log.Level) {
	case log.DebugLevel, log.InfoLevel, log.WarnLevel, log.ErrorLevel:
	default:
		problems = append(problems, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	if c.Enrollment.PollAttempts < 1 {
		problems = append(problems, "enrollment.pollAttempts must be at least 1")
	}
	if c.Enrollment.PollInterval <= 0 {
		problems = append(problems, "enrollment.pollInterval must be positive")
	}
	if c.Enrollment.VisibilityDelay < 0 {
		problems = append(problems, "enrollment.visibilityDelay must not be negative")
	}
	if _, err := schedule.Normalize(c.Enrollment.DefaultTime); err != nil {
		problems = append(problems, fmt.Sprintf("enrollment.defaultTime: %v", err))
	}
	if c.Enrollment.ActionRate <= 0 || c.Enrollment.ActionBurst < 1 {
		problems = append(problems, "enrollment action rate and burst must be positive")
	}
	if c.Reconcile.Interval <= 0 {
		problems = append(problems, "reconcile.interval must be positive")
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location returns the location "today" is computed in
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// LogConfig converts the log section for log.Init
func (c *Config) LogConfig() log.Config {
	cfg := log.Config{
		Level:      log.Level(c.Log.Level),
		JSONOutput: c.Log.JSON,
	}
	if c.Log.File != "" {
		cfg.File = &log.FileConfig{
			Path:       c.Log.File,
			MaxSizeMB:  c.Log.MaxSizeMB,
			MaxBackups: c.Log.MaxBackups,
			MaxAgeDays: c.Log.MaxAgeDays,
			Compress:   c.Log.Compress,
		}
	}
	return cfg
}
