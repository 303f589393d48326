package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config defines the application configuration structure
type Config struct {
	Auth        AuthConfig        `mapstructure:"auth"`
	Broker      BrokerConfig      `mapstructure:"broker"`
	Exchange    ExchangeConfig    `mapstructure:"exchange"`
	Data        DataConfig        `mapstructure:"data"`
	Instruments InstrumentsConfig `mapstructure:"instruments"`
	Correction  CorrectionConfig  `mapstructure:"correction"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
	Log         LogConfig         `mapstructure:"log"`
}

// AuthConfig defines authentication configuration
type AuthConfig struct {
	AuthServiceURL    string `mapstructure:"auth_service_url" validate:"omitempty,url"`
	AuthServiceAPIKey string `mapstructure:"auth_service_api_key"`
	BrokerName        string `mapstructure:"broker_name" validate:"required"`
	ApiKey            string `mapstructure:"api_key"`
	ApiSecret         string `mapstructure:"api_secret"`
	SessionToken      string `mapstructure:"session_token"`
}

// BrokerConfig defines the broker configuration
type BrokerConfig struct {
	InstrumentsURL string        `mapstructure:"instruments_url" validate:"required,url"`
	RequestDelay   time.Duration `mapstructure:"request_delay" validate:"gte=0"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=1"`
}

// ExchangeConfig defines the exchange calendar configuration
type ExchangeConfig struct {
	Timezone string `mapstructure:"timezone" validate:"required,timezone"`
}

// DataConfig defines where bars live and what the ETL produces
type DataConfig struct {
	Root       string   `mapstructure:"root" validate:"required"`
	Timeframes []string `mapstructure:"timeframes" validate:"required,min=1,dive,required"`
	Symbols    []string `mapstructure:"symbols" validate:"required,min=1,dive,required"`
	Workers    int      `mapstructure:"workers" validate:"gte=1,lte=64"`
}

// InstrumentsConfig maps supported symbol codes to vendor trading symbols
type InstrumentsConfig struct {
	Supported map[string]string `mapstructure:"supported" validate:"required,min=1"`
	CachePath string            `mapstructure:"cache_path" validate:"required"`
}

// CorrectionConfig locates the continuity correction table
type CorrectionConfig struct {
	Path string `mapstructure:"path"`
}

// ScheduleConfig defines the cron spec for the scheduled ETL
type ScheduleConfig struct {
	Cron string `mapstructure:"cron" validate:"required"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
}

// Location resolves the configured exchange timezone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Exchange.Timezone)
}

var envBindings = map[string]string{
	"auth.auth_service_url":     "TXBARS_AUTH_SERVICE_URL",
	"auth.auth_service_api_key": "TXBARS_AUTH_SERVICE_KEY",
	"auth.broker_name":          "TXBARS_BROKER_NAME",
	"auth.api_key":              "TXBARS_API_KEY",
	"auth.api_secret":           "TXBARS_API_SECRET",
	"auth.session_token":        "TXBARS_SESSION_TOKEN",
	"broker.instruments_url":    "TXBARS_INSTRUMENTS_URL",
	"broker.request_delay":      "TXBARS_REQUEST_DELAY",
	"broker.max_retries":        "TXBARS_MAX_RETRIES",
	"exchange.timezone":         "TXBARS_TIMEZONE",
	"data.root":                 "TXBARS_DATA_ROOT",
	"data.timeframes":           "TXBARS_TIMEFRAMES",
	"data.symbols":              "TXBARS_SYMBOLS",
	"data.workers":              "TXBARS_WORKERS",
	"instruments.cache_path":    "TXBARS_INSTRUMENTS_PATH",
	"correction.path":           "TXBARS_CORRECTION_PATH",
	"schedule.cron":             "TXBARS_SCHEDULE",
	"log.level":                 "TXBARS_LOG_LEVEL",
	"log.format":                "TXBARS_LOG_FORMAT",
}

// LoadConfig loads configuration from file and overrides with environment variables.
// A missing file is not an error; defaults and the environment fill in.
func LoadConfig(path string, logger logrus.FieldLogger) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TXBARS")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("error binding %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			logger.WithField("path", path).Info("config file not found, using environment and defaults")
		} else {
			return Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else {
		logger.WithField("path", v.ConfigFileUsed()).Info("loaded config file")
	}

	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}

	applyDefaults(&config)
	return config, nil
}

// Validate checks the struct tags. Call it after CLI overrides are applied.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyDefaults sets default values for any config values not set from file or environment
func applyDefaults(config *Config) {
	if config.Auth.BrokerName == "" {
		config.Auth.BrokerName = "zerodha"
	}

	if config.Broker.InstrumentsURL == "" {
		config.Broker.InstrumentsURL = "https://api.kite.trade/instruments/NFO"
	}
	if config.Broker.RequestDelay == 0 {
		config.Broker.RequestDelay = 500 * time.Millisecond
	}
	if config.Broker.MaxRetries == 0 {
		config.Broker.MaxRetries = 3
	}

	if config.Exchange.Timezone == "" {
		config.Exchange.Timezone = "Asia/Taipei"
	}

	if config.Data.Root == "" {
		config.Data.Root = "./data"
	}
	if len(config.Data.Timeframes) == 0 {
		config.Data.Timeframes = []string{"5s", "1m", "5m", "1h", "1d"}
	}
	if len(config.Data.Symbols) == 0 {
		config.Data.Symbols = []string{"TXF", "TSE"}
	}
	if config.Data.Workers == 0 {
		config.Data.Workers = 4
	}

	if len(config.Instruments.Supported) == 0 {
		config.Instruments.Supported = map[string]string{"TXF": "TXF", "TSE": "TSE"}
	}
	if config.Instruments.CachePath == "" {
		config.Instruments.CachePath = "./instruments.csv"
	}

	// The scheduled run processes the previous calendar day.
	if config.Schedule.Cron == "" {
		config.Schedule.Cron = "0 6 * * *"
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}
