package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"crud-master/billing/internal/infrastructure/database"
	"crud-master/billing/internal/infrastructure/rabbitmq"
)

type Config struct {
	Host  string `envconfig:"HOST" default:"0.0.0.0"`
	Port  int    `envconfig:"PORT" default:"8081"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DBHost         string `envconfig:"BILLING_DB_HOST" default:"localhost"`
	DBPort         int    `envconfig:"BILLING_DB_PORT" default:"5432"`
	DBUser         string `envconfig:"BILLING_DB_USER" default:"postgres"`
	DBPassword     string `envconfig:"BILLING_DB_PASSWORD" default:"postgres"`
	DBName         string `envconfig:"BILLING_DB_NAME" default:"billing_db"`
	DBSSLMode      string `envconfig:"BILLING_DB_SSLMODE" default:"disable"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"file://migrations"`

	RabbitMQHost           string        `envconfig:"RABBITMQ_HOST" default:"localhost"`
	RabbitMQPort           int           `envconfig:"RABBITMQ_PORT" default:"5672"`
	RabbitMQUser           string        `envconfig:"RABBITMQ_USER" default:"guest"`
	RabbitMQPassword       string        `envconfig:"RABBITMQ_PASSWORD" default:"guest"`
	RabbitMQVHost          string        `envconfig:"RABBITMQ_VHOST" default:"/"`
	RabbitMQQueue          string        `envconfig:"RABBITMQ_QUEUE" default:"billing_queue"`
	RabbitMQConsumerTag    string        `envconfig:"RABBITMQ_CONSUMER_TAG" default:"billing-consumer"`
	RabbitMQHeartbeat      time.Duration `envconfig:"RABBITMQ_HEARTBEAT" default:"600s"`
	RabbitMQDialTimeout    time.Duration `envconfig:"RABBITMQ_DIAL_TIMEOUT" default:"30s"`
	RabbitMQBlockedTimeout time.Duration `envconfig:"RABBITMQ_BLOCKED_TIMEOUT" default:"300s"`
	RabbitMQReconnectDelay time.Duration `envconfig:"RABBITMQ_RECONNECT_DELAY" default:"5s"`

	MessageProcessTimeout time.Duration `envconfig:"MESSAGE_PROCESS_TIMEOUT" default:"30s"`
}

// LoadConfig reads an optional .env file and then the process environment.
// The result is shared read-only by every component of the process.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if cfg.RabbitMQReconnectDelay <= 0 {
		return nil, fmt.Errorf("invalid RABBITMQ_RECONNECT_DELAY: %s", cfg.RabbitMQReconnectDelay)
	}
	if cfg.RabbitMQQueue == "" {
		return nil, errors.New("RABBITMQ_QUEUE must not be empty")
	}

	return cfg, nil
}

func (c *Config) GetListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) DatabaseConfig() database.DBConfig {
	return database.DBConfig{
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		DBName:   c.DBName,
		SSLMode:  c.DBSSLMode,
	}
}

func (c *Config) GetDBMigrationConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

func (c *Config) GetRabbitMQURL() string {
	vhost := c.RabbitMQVHost
	if vhost == "/" {
		vhost = ""
	} else if len(vhost) > 0 && vhost[0] == '/' {
		vhost = vhost[1:]
	}
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.RabbitMQUser, c.RabbitMQPassword),
		Host:   net.JoinHostPort(c.RabbitMQHost, strconv.Itoa(c.RabbitMQPort)),
		Path:   "/" + vhost,
	}
	return u.String()
}

func (c *Config) ConsumerConfig() rabbitmq.ConsumerConfig {
	return rabbitmq.ConsumerConfig{
		URL:            c.GetRabbitMQURL(),
		Queue:          c.RabbitMQQueue,
		ConsumerTag:    c.RabbitMQConsumerTag,
		Heartbeat:      c.RabbitMQHeartbeat,
		DialTimeout:    c.RabbitMQDialTimeout,
		BlockedTimeout: c.RabbitMQBlockedTimeout,
		ReconnectDelay: c.RabbitMQReconnectDelay,
		ProcessTimeout: c.MessageProcessTimeout,
	}
}
