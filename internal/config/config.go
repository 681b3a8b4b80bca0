// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Драйверы хранилища.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Config — корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig    `yaml:"http"`
	Ops      OpsConfig     `yaml:"ops"`
	GRPC     GRPCConfig    `yaml:"grpc"`
	Auth     AuthConfig    `yaml:"auth"`
	DB       DBConfig      `yaml:"db"`
	Redis    RedisConfig   `yaml:"redis"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// TimeoutConfig — таймауты сервиса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
}

// HTTPConfig — публичный REST-сервер.
type HTTPConfig struct {
	Host      string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port      string `yaml:"port" env:"HTTP_PORT" env-default:"5000"`
	BasePath  string `yaml:"base_path" env:"HTTP_BASE_PATH" env-default:"/api/v1"`
	BodyLimit int64  `yaml:"body_limit" env:"HTTP_BODY_LIMIT" env-default:"1048576"`
}

// OpsConfig — служебный HTTP: /livez, /healthz, /metrics.
type OpsConfig struct {
	Host string `yaml:"host" env:"OPS_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"OPS_PORT" env-default:"50081"`
}

// GRPCConfig — gRPC health-сервер.
type GRPCConfig struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"GRPC_PORT" env-default:"50051"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// Addr возвращает адрес в формате host:port.
func (o OpsConfig) Addr() string {
	return net.JoinHostPort(o.Host, o.Port)
}

// Addr возвращает адрес в формате host:port.
func (g GRPCConfig) Addr() string {
	return net.JoinHostPort(g.Host, g.Port)
}

// AuthConfig содержит параметры выпуска и валидации токенов и хэширования паролей.
// Секреты обязательны: значений по умолчанию нет.
type AuthConfig struct {
	AccessTokenSecret  string        `yaml:"access_token_secret" env:"ACCESS_TOKEN_SECRET" env-required:"true"`
	RefreshTokenSecret string        `yaml:"refresh_token_secret" env:"REFRESH_TOKEN_SECRET" env-required:"true"`
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"168h"`
	Issuer             string        `yaml:"issuer" env:"ISSUER" env-default:"auth-service"`
	BcryptCost         int           `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`
	HashConcurrency    int           `yaml:"hash_concurrency" env:"HASH_CONCURRENCY" env-default:"0"`
}

// DBConfig — настройки подключения к хранилищу.
// Для driver=memory URL не нужен. Параметры пула действуют только для postgres;
// ноль — значение pgx по умолчанию.
type DBConfig struct {
	Driver          string        `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	URL             string        `yaml:"db_url" env:"DATABASE_URL"`
	MaxConns        int32         `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"0"`
	MinConns        int32         `yaml:"min_conns" env:"DB_MIN_CONNS" env-default:"0"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"DB_MAX_CONN_LIFETIME" env-default:"0s"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DB_MAX_CONN_IDLE_TIME" env-default:"0s"`
}

// RedisConfig — кэш сессий; пустой URL отключает кэш.
type RedisConfig struct {
	URL string `yaml:"redis_url" env:"REDIS_URL"`
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// После чтения файла ENV-переменные накладываются поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file does not exist: %q: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			return nil, err
		}

		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет согласованность значений, которые cleanenv проверить не может.
func (c *Config) Validate() error {
	const op = "config.Validate"

	var errs []error

	if c.Auth.AccessTokenSecret == c.Auth.RefreshTokenSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}

	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}

	switch c.DB.Driver {
	case DriverPostgres, DriverMongo:
		if c.DB.URL == "" {
			errs = append(errs, fmt.Errorf("db_url is required for driver %q", c.DB.Driver))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown db driver %q", c.DB.Driver))
	}

	if c.DB.MaxConns < 0 || c.DB.MinConns < 0 {
		errs = append(errs, errors.New("db pool sizes must not be negative"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
