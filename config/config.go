package config

import (
	"errors"
	"os"
	"time"

	"blogapi/persistence"

	env "github.com/caarlos0/env/v7"
	"github.com/joho/godotenv"
)

const (
	EnvProduction = "production"
	// GinModeRelease mirrors gin.ReleaseMode.
	GinModeRelease = "release"

	defaultJWTSecret = "change_me"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	GinMode  string `env:"GIN_MODE" envDefault:"debug"`

	HTTP     HTTPConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Bcrypt   BcryptConfig
	Admin    AdminConfig
	Login    LoginConfig
	Search   SearchConfig
	Tracing  TracingConfig
}

type HTTPConfig struct {
	Port            int           `env:"HTTP_PORT" envDefault:"4000"`
	FrontendURL     string        `env:"FRONTEND_URL" envDefault:"http://localhost:8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

type DatabaseConfig struct {
	Driver   string `env:"DB_DRIVER" envDefault:"mysql"`
	Host     string `env:"DB_HOST" envDefault:"127.0.0.1"`
	Port     int    `env:"DB_PORT" envDefault:"3306"`
	Name     string `env:"DB_NAME" envDefault:"blog_api"`
	User     string `env:"DB_USER" envDefault:"root"`
	Password string `env:"DB_PASSWORD"`
	// DSN overrides every other field when present.
	DSN string `env:"DB_DSN"`
}

type JWTConfig struct {
	Secret  string        `env:"JWT_SECRET" envDefault:"change_me"`
	Expires time.Duration `env:"JWT_EXPIRES" envDefault:"24h"`
	Issuer  string        `env:"JWT_ISSUER" envDefault:"blogapi"`
}

type BcryptConfig struct {
	Cost int `env:"BCRYPT_COST" envDefault:"10"`
}

type AdminConfig struct {
	UserName string `env:"INITIAL_ADMIN_USERNAME" envDefault:"admin"`
	Email    string `env:"INITIAL_ADMIN_EMAIL" envDefault:"admin@blog.mx"`
	Password string `env:"INITIAL_ADMIN_PASSWORD" envDefault:"Admin123"`
}

type LoginConfig struct {
	RatePerMinute int `env:"LOGIN_RATE" envDefault:"10"`
	Burst         int `env:"LOGIN_BURST" envDefault:"5"`
}

type SearchConfig struct {
	ElasticsearchURL string `env:"ELASTICSEARCH_URL"`
	ReindexCron      string `env:"ELASTICSEARCH_REINDEX_CRON" envDefault:"0 0 23 * * ?"`
}

type TracingConfig struct {
	Enabled   bool   `env:"TRACING_ENABLED" envDefault:"false"`
	AgentHost string `env:"JAEGER_AGENT_HOST" envDefault:"127.0.0.1"`
	AgentPort int    `env:"JAEGER_AGENT_PORT" envDefault:"6831"`
}

var (
	ErrJWTSecretMissing  = errors.New("JWT_SECRET must not be empty")
	ErrJWTSecretDefault  = errors.New("JWT_SECRET must be changed in production")
	ErrJWTExpiresInvalid = errors.New("JWT_EXPIRES must be positive")
)

// Load reads envPath when it exists and then parses the process environment.
func Load(envPath string) (Config, error) {
	var c Config

	if envPath != "" {
		err := godotenv.Load(envPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	if err := env.Parse(&c); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return ErrJWTSecretMissing
	}
	if c.IsProduction() && c.JWT.Secret == defaultJWTSecret {
		return ErrJWTSecretDefault
	}
	if c.JWT.Expires <= 0 {
		return ErrJWTExpiresInvalid
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// IsRelease reports whether gin runs in release mode. It drives JSON logging and turns SQL logging off.
func (c Config) IsRelease() bool {
	return c.GinMode == GinModeRelease
}

// DataSource converts the database settings into the persistence layer configuration.
func (c Config) DataSource() *persistence.DatabaseConfig {
	d := c.Database
	if d.Driver == persistence.DriverSqlite {
		args := d.DSN
		if args == "" {
			args = d.Name + ".db"
		}
		return &persistence.DatabaseConfig{DriverType: persistence.DriverSqlite, DriverArgs: args, LogSQL: !c.IsRelease()}
	}

	args := d.DSN
	if args == "" {
		args = persistence.MysqlDSN(persistence.MysqlOptions{Host: d.Host, Port: d.Port, Database: d.Name, User: d.User, Password: d.Password})
	}
	return &persistence.DatabaseConfig{DriverType: persistence.DriverMysql, DriverArgs: args, LogSQL: !c.IsRelease()}
}
