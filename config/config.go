package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported values for store.driver.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type ServerConfig struct {
	Port string `mapstructure:"port"`
	// PublicURL is the scheme://host used in emailed links. Required when mail
	// is enabled, since the request Host is client controlled.
	PublicURL       string        `mapstructure:"public_url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type MongoConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// JWTConfig holds the signing secrets. Access and refresh tokens use separate keys.
type JWTConfig struct {
	AccessSecret  string        `mapstructure:"access_secret"`
	AccessExpiry  time.Duration `mapstructure:"access_expiry"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	RefreshExpiry time.Duration `mapstructure:"refresh_expiry"`
}

type TokenConfig struct {
	SingleUseExpiry time.Duration `mapstructure:"single_use_expiry"`
}

type MailConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	From        string `mapstructure:"from"`
	ProductName string `mapstructure:"product_name"`
	ProductLink string `mapstructure:"product_link"`
	// ResetURL is the page that receives password reset tokens. When empty
	// the API's own reset-password route is used.
	ResetURL string `mapstructure:"reset_url"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Store    StoreConfig    `mapstructure:"store"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Token    TokenConfig    `mapstructure:"token"`
	Mail     MailConfig     `mapstructure:"mail"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("store.driver", StoreMongo)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "taskmanager")
	v.SetDefault("mongo.collection", "users")
	v.SetDefault("mongo.timeout", 10*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "taskmanager")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 10*time.Minute)

	v.SetDefault("jwt.access_secret", "")
	v.SetDefault("jwt.access_expiry", 15*time.Minute)
	v.SetDefault("jwt.refresh_secret", "")
	v.SetDefault("jwt.refresh_expiry", 7*24*time.Hour)

	v.SetDefault("token.single_use_expiry", 20*time.Minute)

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.host", "sandbox.smtp.mailtrap.io")
	v.SetDefault("mail.port", 2525)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "mail.taskmanager@example.com")
	v.SetDefault("mail.product_name", "Task Manager")
	v.SetDefault("mail.product_link", "https://taskmanager.com/")
	v.SetDefault("mail.reset_url", "")
}

// LoadConfig reads config.yml from path, overlays environment variables
// (JWT_ACCESS_SECRET, STORE_DRIVER, ...) and validates the result.
// A missing config file is not an error; defaults and env still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration that must stop the process at startup.
func (c *Config) Validate() error {
	if c.JWT.AccessSecret == "" {
		return errors.New("jwt.access_secret must be set")
	}
	if c.JWT.RefreshSecret == "" {
		return errors.New("jwt.refresh_secret must be set")
	}
	if c.JWT.AccessExpiry <= 0 || c.JWT.RefreshExpiry <= 0 {
		return errors.New("jwt expiries must be positive")
	}
	if c.Token.SingleUseExpiry <= 0 {
		return errors.New("token.single_use_expiry must be positive")
	}
	if c.Mail.Enabled && c.Server.PublicURL == "" {
		return errors.New("server.public_url must be set when mail is enabled")
	}

	switch c.Store.Driver {
	case StoreMongo, StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	return nil
}
