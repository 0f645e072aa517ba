package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// CookieName is the session cookie; the frontend expects this exact name.
	CookieName string `env:"SESSION_COOKIE, default=admin-token"`

	ResetTokenSecret string `env:"RESET_TOKEN_SECRET"`

	Throttle  ThrottleConfig
	Bootstrap BootstrapConfig
	Connect   ConnectConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	SMTP      SMTPConfig
	Telegram  TelegramConfig
}

type ThrottleConfig struct {
	MaxAttempts   int           `env:"LOGIN_MAX_ATTEMPTS,   default=5"`
	AttemptWindow time.Duration `env:"LOGIN_ATTEMPT_WINDOW, default=15m"`
	BlockDuration time.Duration `env:"LOGIN_BLOCK_DURATION, default=2880m"`
}

type BootstrapConfig struct {
	SuperOwnerUsername string `env:"BOOTSTRAP_SUPER_OWNER_USER, default=superowner"`
	SuperOwnerPassword string `env:"BOOTSTRAP_SUPER_OWNER_PASS, default=changeme"`
	OwnerUsername      string `env:"BOOTSTRAP_OWNER_USER,       default=owner"`
	OwnerPassword      string `env:"BOOTSTRAP_OWNER_PASS,       default=changeme"`
}

type ConnectConfig struct {
	APIKey    string `env:"CONNECT_API_KEY"`
	XORSecret string `env:"CONNECT_XOR_SECRET"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=license_panel"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST, default=localhost"`
	Port     int    `env:"SMTP_PORT, default=587"`
	Username string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASS"`
	From     string `env:"SMTP_FROM, default=noreply@localhost"`
}

type TelegramConfig struct {
	Token  string `env:"TELEGRAM_BOT_TOKEN"`
	ChatID int64  `env:"TELEGRAM_CHAT_ID"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
