package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/obex-alerts/pkg/messaging/redis"
	"github.com/jwalitptl/obex-alerts/pkg/worker"
)

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url"`
	AlertChannel string        `mapstructure:"alert_channel"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Topic    string `mapstructure:"topic"`
	QoS      byte   `mapstructure:"qos"`
}

type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

type SMSConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	SenderID        string        `mapstructure:"sender_id"`
	CountryCode     string        `mapstructure:"country_code"`
	Timeout         time.Duration `mapstructure:"timeout"`
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type EmailConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Provider     string `mapstructure:"provider"`
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUser     string `mapstructure:"smtp_user"`
	SMTPPassword string `mapstructure:"smtp_password"`
	ResendAPIKey string `mapstructure:"resend_api_key"`
	FromName     string `mapstructure:"from_name"`
	FromAddress  string `mapstructure:"from_address"`
	Subject      string `mapstructure:"subject"`
}

type NotificationConfig struct {
	Workers         int           `mapstructure:"workers"`
	QueueSize       int           `mapstructure:"queue_size"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ContactCacheTTL time.Duration `mapstructure:"contact_cache_ttl"`
	DrainTimeout    time.Duration `mapstructure:"drain_timeout"`
}

type WebsocketConfig struct {
	ConnectionURL  string   `mapstructure:"connection_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowedHeaders   []string      `mapstructure:"allowed_headers"`
	ExposedHeaders   []string      `mapstructure:"exposed_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Redis        RedisConfig        `mapstructure:"redis"`
	MQTT         MQTTConfig         `mapstructure:"mqtt"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	SMS          SMSConfig          `mapstructure:"sms"`
	Email        EmailConfig        `mapstructure:"email"`
	Notification NotificationConfig `mapstructure:"notification"`
	Websocket    WebsocketConfig    `mapstructure:"websocket"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	CORS         CORSConfig         `mapstructure:"cors"`
}

// Secrets are read from OBEX_* environment variables and override the file.
type Secrets struct {
	DatabasePassword string `envconfig:"DB_PASSWORD"`
	JWTSecret        string `envconfig:"JWT_SECRET"`
	SMSAPIKey        string `envconfig:"SMS_API_KEY"`
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
	ResendAPIKey     string `envconfig:"RESEND_API_KEY"`
	MQTTPassword     string `envconfig:"MQTT_PASSWORD"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("logging.level", "info")

	v.SetDefault("redis.alert_channel", "obex:alerts")
	v.SetDefault("mqtt.topic", "obex/alerts")
	v.SetDefault("mqtt.client_id", "obex-alerts")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("kafka.topic", "obex.alerts")
	v.SetDefault("kafka.group_id", "obex-alerts")

	v.SetDefault("sms.enabled", true)
	v.SetDefault("sms.base_url", "https://api.ng.termii.com")
	v.SetDefault("sms.country_code", "234")
	v.SetDefault("sms.timeout", 10*time.Second)
	v.SetDefault("sms.breaker_failures", 5)
	v.SetDefault("sms.breaker_timeout", 30*time.Second)

	v.SetDefault("email.enabled", true)
	v.SetDefault("email.provider", "smtp")
	v.SetDefault("email.smtp_host", "smtp.gmail.com")
	v.SetDefault("email.smtp_port", 465)
	v.SetDefault("email.subject", "New Obex Security Alert Received")

	v.SetDefault("notification.workers", 8)
	v.SetDefault("notification.queue_size", 1024)
	v.SetDefault("notification.timeout", 10*time.Second)
	v.SetDefault("notification.contact_cache_ttl", 30*time.Second)
	v.SetDefault("notification.drain_timeout", 10*time.Second)

	v.SetDefault("websocket.connection_url", "ws://localhost:8000/ws/alerts/{user_id}")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 50)
	v.SetDefault("rate_limit.burst", 100)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"})
	v.SetDefault("cors.exposed_headers", []string{"X-Request-ID"})
	v.SetDefault("cors.max_age", 12*time.Hour)
}

// LoadConfig reads config.yml (or $CONFIG_FILE) and applies environment overrides.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")           // current directory
		v.AddConfigPath("./config")    // config subdirectory
		v.AddConfigPath("/app")        // container root directory
		v.AddConfigPath("/app/config") // container config directory
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.applySecrets(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applySecrets() error {
	var s Secrets
	if err := envconfig.Process("OBEX", &s); err != nil {
		return fmt.Errorf("failed to read secrets: %w", err)
	}

	override := func(dst *string, val string) {
		if val != "" {
			*dst = val
		}
	}
	override(&c.Database.Password, s.DatabasePassword)
	override(&c.JWT.Secret, s.JWTSecret)
	override(&c.SMS.APIKey, s.SMSAPIKey)
	override(&c.Email.SMTPPassword, s.SMTPPassword)
	override(&c.Email.ResendAPIKey, s.ResendAPIKey)
	override(&c.MQTT.Password, s.MQTTPassword)
	return nil
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0:
		return errors.New("server.port must be set")
	case c.Database.Host == "":
		return errors.New("database.host must be set")
	case c.JWT.Secret == "":
		return errors.New("jwt.secret must be set")
	case c.Notification.Workers <= 0:
		return errors.New("notification.workers must be greater than 0")
	case c.Notification.QueueSize < 0:
		return errors.New("notification.queue_size must not be negative")
	case c.Redis.Enabled && c.Redis.URL == "":
		return errors.New("redis.url must be set when redis is enabled")
	case c.MQTT.Enabled && c.MQTT.Broker == "":
		return errors.New("mqtt.broker must be set when mqtt is enabled")
	case c.Kafka.Enabled && c.Kafka.Brokers == "":
		return errors.New("kafka.brokers must be set when kafka is enabled")
	}
	return nil
}

// Add conversion methods to convert config types
func (c *NotificationConfig) ToPoolConfig() worker.PoolConfig {
	return worker.PoolConfig{
		Workers:   c.Workers,
		QueueSize: c.QueueSize,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}
