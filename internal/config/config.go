package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	MongoDB   MongoDBConfig   `mapstructure:"mongodb"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
	// PublicURL is the externally reachable base of this service; the
	// gateway posts notifications to it.
	PublicURL string `mapstructure:"public_url"`
}

type MySQLConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type GatewayConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Currency string        `mapstructure:"currency"`
	// StorefrontURL is where the customer lands after paying; the order id
	// is appended as a query parameter.
	StorefrontURL string `mapstructure:"storefront_url"`
}

type CatalogConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
}

type ReconcileConfig struct {
	FetchAttempts  int           `mapstructure:"fetch_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
	LockWait       time.Duration `mapstructure:"lock_wait"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.public_url", "http://localhost:8080")

	v.SetDefault("mysql.host", "localhost")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.username", "root")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "checkout")
	v.SetDefault("mysql.max_open_conns", 100)
	v.SetDefault("mysql.max_idle_conns", 20)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 50)

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "order.exchange")

	v.SetDefault("mongodb.uri", "")
	v.SetDefault("mongodb.database", "checkout")
	v.SetDefault("mongodb.collection", "payment_notifications")

	v.SetDefault("gateway.base_url", "https://api.mercadopago.com")
	v.SetDefault("gateway.timeout", 5*time.Second)
	v.SetDefault("gateway.currency", "BRL")
	v.SetDefault("gateway.storefront_url", "http://localhost:3000/checkout/result")

	v.SetDefault("catalog.base_url", "http://localhost:8081")
	v.SetDefault("catalog.timeout", 2*time.Second)
	v.SetDefault("catalog.concurrency", 8)

	v.SetDefault("reconcile.fetch_attempts", 2)
	v.SetDefault("reconcile.initial_backoff", 200*time.Millisecond)
	v.SetDefault("reconcile.max_backoff", 2*time.Second)
	v.SetDefault("reconcile.lock_ttl", 15*time.Second)
	v.SetDefault("reconcile.lock_wait", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
}

// Load reads configPath when it is non-empty and lets CHECKOUT_* environment
// variables override any key (mysql.host -> CHECKOUT_MYSQL_HOST).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("checkout")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.PublicURL == "" {
		return fmt.Errorf("server.public_url is required")
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway.timeout must be positive")
	}
	if c.Reconcile.FetchAttempts < 1 {
		return fmt.Errorf("reconcile.fetch_attempts must be at least 1")
	}
	return nil
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}
