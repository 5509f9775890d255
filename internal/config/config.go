// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

const (
	DriverPostgres = "postgres"
	DriverFirebase = "firebase"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // postgres|firebase|memory
	URL    string `yaml:"url"`
}

type FirebaseConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	DatabaseURL     string `yaml:"database_url"`
}

// RedisConfig is optional; an empty URL runs without cache and sweep lock.
type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type RatesConfig struct {
	URL             string        `yaml:"url"`
	APIKey          string        `yaml:"api_key"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	TTL             time.Duration `yaml:"ttl"`
	Timeout         time.Duration `yaml:"timeout"`
}

type PricingConfig struct {
	BasePriceUSD        float64            `yaml:"base_price_usd"`
	PlanMultipliers     map[string]float64 `yaml:"plan_multipliers"`
	DurationMultipliers map[int]float64    `yaml:"duration_multipliers"`
	WarningDays         int                `yaml:"warning_days"`
}

type CountryConfig struct {
	Currency string  `yaml:"currency"`
	Discount float64 `yaml:"discount"`
}

type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type SchedulerConfig struct {
	ExpiryInterval       time.Duration `yaml:"expiry_interval"`
	NotificationInterval time.Duration `yaml:"notification_interval"`
	// NotifyThresholds are the days-left marks at which an expiry reminder goes out.
	NotifyThresholds []int `yaml:"notify_thresholds"`
	Workers          int   `yaml:"workers"`
}

type Config struct {
	Log       LogConfig                `yaml:"log"`
	HTTP      HTTPConfig               `yaml:"http"`
	Database  DatabaseConfig           `yaml:"database"`
	Firebase  FirebaseConfig           `yaml:"firebase"`
	Redis     RedisConfig              `yaml:"redis"`
	Rates     RatesConfig              `yaml:"rates"`
	Pricing   PricingConfig            `yaml:"pricing"`
	Countries map[string]CountryConfig `yaml:"countries"`
	Email     EmailConfig              `yaml:"email"`
	Scheduler SchedulerConfig          `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads -config and -dev from the command line and loads the file.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()
	return Load(configPath, dev)
}

func Load(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.TokenTTL <= 0 {
		cfg.HTTP.TokenTTL = 12 * time.Hour
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 15 * time.Second
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPostgres
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Rates.URL == "" {
		cfg.Rates.URL = "https://open.er-api.com/v6/latest/USD"
	}
	if cfg.Rates.RefreshInterval <= 0 {
		cfg.Rates.RefreshInterval = time.Hour
	}
	if cfg.Rates.TTL <= 0 {
		cfg.Rates.TTL = time.Hour
	}
	if cfg.Rates.Timeout <= 0 {
		cfg.Rates.Timeout = 10 * time.Second
	}
	if cfg.Pricing.WarningDays <= 0 {
		cfg.Pricing.WarningDays = 3
	}
	if cfg.Email.Port == 0 {
		cfg.Email.Port = 587
	}
	if cfg.Scheduler.ExpiryInterval <= 0 {
		cfg.Scheduler.ExpiryInterval = time.Hour
	}
	if cfg.Scheduler.NotificationInterval <= 0 {
		cfg.Scheduler.NotificationInterval = 6 * time.Hour
	}
	if len(cfg.Scheduler.NotifyThresholds) == 0 {
		cfg.Scheduler.NotifyThresholds = []int{3, 1}
	}
	if cfg.Scheduler.Workers <= 0 {
		cfg.Scheduler.Workers = 4
	}
}

// Minimal validation
func (cfg *Config) validate() error {
	switch cfg.Database.Driver {
	case DriverPostgres:
		if cfg.Database.URL == "" {
			return errors.New("database.url is required for the postgres driver")
		}
	case DriverFirebase:
		if cfg.Firebase.DatabaseURL == "" {
			return errors.New("firebase.database_url is required for the firebase driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver %q is not supported", cfg.Database.Driver)
	}
	if cfg.HTTP.JWTSecret == "" {
		return errors.New("http.jwt_secret is required")
	}
	for country, c := range cfg.Countries {
		if c.Discount < 0 || c.Discount >= 1 {
			return fmt.Errorf("countries.%s.discount %v must be in [0,1)", country, c.Discount)
		}
	}
	if cfg.Email.Enabled && (cfg.Email.Host == "" || cfg.Email.From == "") {
		return errors.New("email.host and email.from are required when email is enabled")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
