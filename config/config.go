package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the server reads from the environment.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"development"`
	Port   string `env:"PORT" envDefault:"8080"`

	DBDriver   string `env:"DB_DRIVER" envDefault:"postgres"` // postgres | mysql | sqlite
	DBDSN      string `env:"DB_DSN"`
	DBHost     string `env:"DB_HOST" envDefault:"db"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME"`
	DBTimeZone string `env:"DB_TIMEZONE" envDefault:"UTC"`

	JWTSecret     string `env:"JWT_SECRET"`
	SessionCookie string `env:"SESSION_COOKIE" envDefault:"session"`
	SessionHours  int    `env:"SESSION_HOURS" envDefault:"24"`

	AllowedOrigins  string `env:"ALLOWED_ORIGINS" envDefault:"*"`
	BodyLimitMB     int    `env:"BODY_LIMIT_MB" envDefault:"4"`
	RateLimitMax    int    `env:"RATE_LIMIT_MAX" envDefault:"60"`
	RateLimitWindow int    `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`

	SnowflakeNode int64 `env:"SNOWFLAKE_NODE" envDefault:"1"`

	SMTP SMTPConfig `envPrefix:"SMTP_"`

	Storage StorageConfig

	Log LogConfig `envPrefix:"LOG_"`
}

type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"no-reply@localhost"`
	FromName string `env:"FROM_NAME" envDefault:"Storefront"`
}

type StorageConfig struct {
	Driver          string `env:"STORAGE_DRIVER" envDefault:"local"` // local | s3
	LocalDir        string `env:"LOCAL_UPLOAD_DIR" envDefault:"./storage/uploads"`
	LocalURLPrefix  string `env:"LOCAL_UPLOAD_URL_PREFIX" envDefault:"/uploads"`
	S3Region        string `env:"S3_REGION"`
	S3Bucket        string `env:"S3_BUCKET"`
	S3Prefix        string `env:"S3_PREFIX" envDefault:"uploads"`
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`
}

type LogConfig struct {
	Level      string `env:"LEVEL" envDefault:"info"`
	Format     string `env:"FORMAT" envDefault:"text"`   // text | json
	Output     string `env:"OUTPUT" envDefault:"stdout"` // stdout | file | both
	Path       string `env:"PATH" envDefault:"./logs"`
	File       string `env:"FILE" envDefault:"app.log"`
	MaxSize    int    `env:"MAX_SIZE" envDefault:"100"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"7"`
	MaxAge     int    `env:"MAX_AGE" envDefault:"7"`
	Compress   bool   `env:"COMPRESS" envDefault:"true"`
}

// Load reads an optional .env file and parses the environment into a Config.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return nil, fmt.Errorf("load %s: %w", f, err)
			}
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("JWT_SECRET not configured")
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// DSN returns DB_DSN when set, otherwise assembles one for the selected driver.
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	switch c.DBDriver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
	case "sqlite":
		return "storefront.db"
	default:
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
			c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBTimeZone)
	}
}
