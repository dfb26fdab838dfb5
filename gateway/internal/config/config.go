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
)

type Config struct {
	Host           string        `envconfig:"HOST" default:"0.0.0.0"`
	GatewayPort    int           `envconfig:"API_GATEWAY_PORT" default:"5000"`
	InventoryURL   string        `envconfig:"INVENTORY_API_URL" default:"http://localhost:8080"`
	RequestTimeout time.Duration `envconfig:"GATEWAY_REQUEST_TIMEOUT" default:"30s"`
	Debug          bool          `envconfig:"DEBUG" default:"false"`

	RabbitMQHost     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	RabbitMQPort     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	RabbitMQUser     string `envconfig:"RABBITMQ_USER" default:"guest"`
	RabbitMQPassword string `envconfig:"RABBITMQ_PASSWORD" default:"guest"`
	RabbitMQVHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
	RabbitMQQueue    string `envconfig:"RABBITMQ_QUEUE" default:"billing_queue"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if _, err := url.ParseRequestURI(cfg.InventoryURL); err != nil {
		return nil, fmt.Errorf("invalid INVENTORY_API_URL: %w", err)
	}
	if cfg.GatewayPort <= 0 || cfg.GatewayPort > 65535 {
		return nil, fmt.Errorf("invalid API_GATEWAY_PORT: %d", cfg.GatewayPort)
	}

	return cfg, nil
}

func (c *Config) GetListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.GatewayPort))
}

func (c *Config) GetRabbitMQURL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.RabbitMQUser, c.RabbitMQPassword),
		Host:   net.JoinHostPort(c.RabbitMQHost, strconv.Itoa(c.RabbitMQPort)),
		Path:   "/" + trimLeadingSlash(c.RabbitMQVHost),
	}
	return u.String()
}

func trimLeadingSlash(vhost string) string {
	if vhost == "/" {
		return ""
	}
	if len(vhost) > 0 && vhost[0] == '/' {
		return vhost[1:]
	}
	return vhost
}
