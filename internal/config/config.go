package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/recurring/internal/types"
	"github.com/flexprice/recurring/internal/validator"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment   DeploymentConfig
	Logging      LoggingConfig
	Postgres     PostgresConfig
	Temporal     TemporalConfig
	Kafka        KafkaConfig
	Sentry       SentryConfig
	Checkout     CheckoutConfig
	Subscription SubscriptionConfig
	Processor    ProcessorConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required"`
}

type LoggingConfig struct {
	Level          types.LogLevel `mapstructure:"level" validate:"required"`
	FluentdEnabled bool           `mapstructure:"fluentd_enabled"`
	FluentdHost    string         `mapstructure:"fluentd_host"`
	FluentdPort    int            `mapstructure:"fluentd_port"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host" validate:"required"`
	Port                   int    `mapstructure:"port" validate:"required"`
	User                   string `mapstructure:"user" validate:"required"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname" validate:"required"`
	SSLMode                string `mapstructure:"sslmode" validate:"required"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type TemporalConfig struct {
	Address   string `mapstructure:"address" validate:"required"`
	Namespace string `mapstructure:"namespace" validate:"required"`
	TaskQueue string `mapstructure:"task_queue" validate:"required"`
}

type KafkaConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Brokers       []string `mapstructure:"brokers"`
	ClientID      string   `mapstructure:"client_id"`
	Topic         string   `mapstructure:"topic"`
	TLS           bool     `mapstructure:"tls"`
	UseSASL       bool     `mapstructure:"use_sasl"`
	SASLMechanism string   `mapstructure:"sasl_mechanism"`
	SASLUser      string   `mapstructure:"sasl_user"`
	SASLPassword  string   `mapstructure:"sasl_password"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type CheckoutConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	RetryMax int           `mapstructure:"retry_max"`
}

// SubscriptionConfig holds the process-wide subscription policy. It is read-only during an
// operation and passed explicitly to the services that need it.
type SubscriptionConfig struct {
	MaximumSuccessiveSkips int                   `mapstructure:"maximum_successive_skips" validate:"min=0"`
	MaximumTotalSkips      int                   `mapstructure:"maximum_total_skips" validate:"min=0"`
	ProcessJobErrorHandler types.ErrorHandlerType `mapstructure:"process_job_error_handler"`
}

type ProcessorConfig struct {
	BatchSize         int     `mapstructure:"batch_size" validate:"min=1"`
	Concurrency       int     `mapstructure:"concurrency" validate:"min=1"`
	CheckoutRateLimit float64 `mapstructure:"checkout_rate_limit" validate:"min=0"`
	CronSchedule      string  `mapstructure:"cron_schedule"`
}

// NewConfig loads configuration from config.yaml, the environment and an optional .env file
func NewConfig() (*Configuration, error) {
	// Missing .env files are fine outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RECURRING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Configuration) Validate() error {
	if err := validator.ValidateRequest(c); err != nil {
		return err
	}
	if c.Subscription.ProcessJobErrorHandler != "" {
		if err := c.Subscription.ProcessJobErrorHandler.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetDefaultConfig returns a configuration built purely from defaults
func GetDefaultConfig() *Configuration {
	v := viper.New()
	setDefaults(v)

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("invalid default configuration: %v", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.ModeLocal))

	v.SetDefault("logging.level", string(types.LogLevelInfo))
	v.SetDefault("logging.fluentd_enabled", false)
	v.SetDefault("logging.fluentd_port", 24224)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "recurring")
	v.SetDefault("postgres.password", "recurring")
	v.SetDefault("postgres.dbname", "recurring")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 60)
	v.SetDefault("postgres.auto_migrate", true)

	v.SetDefault("temporal.address", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "subscriptions")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:29092"})
	v.SetDefault("kafka.client_id", "recurring")
	v.SetDefault("kafka.topic", "subscription_events")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("checkout.base_url", "http://localhost:8081")
	v.SetDefault("checkout.timeout", 30*time.Second)
	v.SetDefault("checkout.retry_max", 2)

	v.SetDefault("subscription.maximum_successive_skips", 1)
	v.SetDefault("subscription.maximum_total_skips", 3)
	v.SetDefault("subscription.process_job_error_handler", string(types.ErrorHandlerTypeSwallow))

	v.SetDefault("processor.batch_size", 100)
	v.SetDefault("processor.concurrency", 10)
	v.SetDefault("processor.checkout_rate_limit", 0)
	v.SetDefault("processor.cron_schedule", "0 * * * *")
}
