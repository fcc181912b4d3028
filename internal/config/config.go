package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port   int    `env:"PORT" envDefault:"8000"`
	LogDir string `env:"LOG_DIR" envDefault:"logs"`
	Env    string `env:"APP_ENV" envDefault:"dev"`

	// DBDriver selects the SQL engine: "mysql" or "sqlite".
	DBDriver   string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN      string `env:"MYSQL_DSN" envDefault:"root:root@tcp(127.0.0.1:3306)/wowserver?parseTime=true&charset=utf8mb4"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"data/wowserver.db"`

	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"30s"`
	HeartbeatTimeout  time.Duration `env:"HEARTBEAT_TIMEOUT" envDefault:"3m"`

	LoginRate  float64 `env:"LOGIN_RATE" envDefault:"0.2"`
	LoginBurst int     `env:"LOGIN_BURST" envDefault:"8"`
	BcryptCost int     `env:"BCRYPT_COST" envDefault:"10"`

	AdminAccount  string `env:"ADMIN_ACCOUNT"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.LoginBurst <= 0 {
		return fmt.Errorf("LOGIN_BURST must be positive")
	}
	if (c.AdminAccount == "") != (c.AdminPassword == "") {
		return fmt.Errorf("ADMIN_ACCOUNT and ADMIN_PASSWORD must be set together")
	}
	return nil
}

// Debug reports whether the service runs in the development environment.
func (c *Config) Debug() bool {
	return c.Env == "dev"
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// DSN returns the data source name for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return "file:" + c.SQLitePath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	return c.DBDSN
}

// ClientConfig is read by the command-line client.
type ClientConfig struct {
	ServerURL string `env:"SERVER_URL" envDefault:"ws://localhost:8000/ws"`
	Region    string `env:"REGION"`
	LogDir    string `env:"LOG_DIR" envDefault:"logs"`
}

func LoadClient() (*ClientConfig, error) {
	_ = godotenv.Load()
	cfg := &ClientConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
