package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Email     EmailConfig     `mapstructure:"email"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CSRF      CSRFConfig      `mapstructure:"csrf"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Retention RetentionConfig `mapstructure:"retention"`
}

type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Driver       string        `mapstructure:"driver"`
	DSN          string        `mapstructure:"dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	ConnMaxLife  time.Duration `mapstructure:"conn_max_life"`
}

type RedisConfig struct {
	URL       string        `mapstructure:"url"`
	UnreadTTL time.Duration `mapstructure:"unread_ttl"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EmailConfig 邮件通知配置，provider 取值 log / smtp / sendgrid
type EmailConfig struct {
	Provider     string `mapstructure:"provider"`
	FromAddress  string `mapstructure:"from_address"`
	FromName     string `mapstructure:"from_name"`
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUser     string `mapstructure:"smtp_user"`
	SMTPPassword string `mapstructure:"smtp_password"`
	SendGridKey  string `mapstructure:"sendgrid_key"`
	QueueSize    int    `mapstructure:"queue_size"`
	Workers      int    `mapstructure:"workers"`
	FrontendURL  string `mapstructure:"frontend_url"`
}

type RateLimitConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	UserPerMinute  int  `mapstructure:"user_per_minute"`
	AdminPerMinute int  `mapstructure:"admin_per_minute"`
	EmailPerMinute int  `mapstructure:"email_per_minute"`
}

type CSRFConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// RetentionConfig 已关闭工单的清理策略，ClosedThreadDays 为 0 时不清理
type RetentionConfig struct {
	ClosedThreadDays int    `mapstructure:"closed_thread_days"`
	Schedule         string `mapstructure:"schedule"`
}

// Load 读取 config.yaml 与环境变量（前缀 SUPPORTDESK_），.env 存在时先加载
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("SUPPORTDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors_origins", []string{"http://localhost:9100"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:supportdesk.db?_foreign_keys=on")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_life", time.Hour)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.unread_ttl", 30*time.Second)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "supportdesk")
	v.SetDefault("jwt.ttl", 24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("email.provider", "log")
	v.SetDefault("email.from_address", "support@example.com")
	v.SetDefault("email.from_name", "Support")
	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.smtp_user", "")
	v.SetDefault("email.smtp_password", "")
	v.SetDefault("email.sendgrid_key", "")
	v.SetDefault("email.queue_size", 1000)
	v.SetDefault("email.workers", 2)
	v.SetDefault("email.frontend_url", "http://localhost:9100")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.user_per_minute", 60)
	v.SetDefault("rate_limit.admin_per_minute", 100)
	v.SetDefault("rate_limit.email_per_minute", 20)

	v.SetDefault("csrf.ttl", time.Hour)
	v.SetDefault("csrf.secure_cookie", false)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "supportdesk")

	v.SetDefault("retention.closed_thread_days", 0)
	v.SetDefault("retention.schedule", "@daily")
}

// Validate 校验配置组合
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Email.Provider {
	case "log", "smtp", "sendgrid":
	default:
		return fmt.Errorf("unsupported email provider %q", c.Email.Provider)
	}
	if c.Email.Provider == "sendgrid" && c.Email.SendGridKey == "" {
		return errors.New("email.sendgrid_key is required for the sendgrid provider")
	}
	if c.JWT.Secret == "" {
		if c.Server.Mode != "debug" {
			return errors.New("jwt.secret is required outside debug mode")
		}
		c.JWT.Secret = "dev-secret-change-me"
	}
	if c.Retention.ClosedThreadDays < 0 {
		return errors.New("retention.closed_thread_days must not be negative")
	}
	return nil
}

// IsProduction 生产模式下 cookie 强制 Secure
func (c *Config) IsProduction() bool { return c.Server.Mode == "release" }
