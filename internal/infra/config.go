package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config: корневая структура конфигурации сервиса оценки трудозатрат.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	GRPC       GRPCConfig       `mapstructure:"grpc"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// AppConfig: profile "prod" или "production" включает режим production.
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Profile string `mapstructure:"profile"`
}

func (a AppConfig) IsProduction() bool {
	p := strings.ToLower(strings.TrimSpace(a.Profile))
	return p == "prod" || p == "production"
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// GRPCConfig: порт gRPC-сервиса проверки токенов; 0 отключает его.
type GRPCConfig struct {
	Port int `mapstructure:"port"`
}

type MetricsConfig struct {
	Port int    `mapstructure:"port"`
	Path string `mapstructure:"path"`
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL          string        `mapstructure:"url"`
	MaxConns     int32         `mapstructure:"max_conns"`
	MinConns     int32         `mapstructure:"min_conns"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

// RedisConfig описывает подключение к Redis (кэш входа и отзыв токенов).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig: JWT и политика входа.
type AuthConfig struct {
	Secret              string        `mapstructure:"secret"` // base64
	SecretFile          string        `mapstructure:"secret_file"`
	KeyVaultURL         string        `mapstructure:"keyvault_url"`
	KeyVaultSecret      string        `mapstructure:"keyvault_secret"`
	Issuer              string        `mapstructure:"issuer"`
	Audience            string        `mapstructure:"audience"`
	Algorithm           string        `mapstructure:"algorithm"`
	AccessTTL           time.Duration `mapstructure:"access_ttl"`
	RefreshTTL          time.Duration `mapstructure:"refresh_ttl"`
	BcryptCost          int           `mapstructure:"bcrypt_cost"`
	MaxFailedAttempts   int           `mapstructure:"max_failed_attempts"`
	PasswordExpiry      time.Duration `mapstructure:"password_expiry"`
	RevalidateOnRequest bool          `mapstructure:"revalidate_on_request"`
	LoginRateLimit      float64       `mapstructure:"login_rate_limit"` // запросов в секунду на IP
	LoginRateBurst      int           `mapstructure:"login_rate_burst"`
}

// AuditConfig: буфер журнала аудита, ключ подписи и необязательный Kafka-приёмник.
type AuditConfig struct {
	BufferSize      int           `mapstructure:"buffer_size"`
	BatchSize       int           `mapstructure:"batch_size"`
	FlushInterval   time.Duration `mapstructure:"flush_interval"`
	SignatureSecret string        `mapstructure:"signature_secret"`
	KafkaBrokers    []string      `mapstructure:"kafka_brokers"`
	KafkaTopic      string        `mapstructure:"kafka_topic"`
}

// ResilienceConfig: Circuit Breaker и ретраи для Postgres и Redis.
type ResilienceConfig struct {
	CBMaxRequests      uint32        `mapstructure:"cb_max_requests"`
	CBInterval         time.Duration `mapstructure:"cb_interval"`
	CBTimeout          time.Duration `mapstructure:"cb_timeout"`
	CBFailureThreshold uint32        `mapstructure:"cb_failure_threshold"`
	RetryAttempts      uint          `mapstructure:"retry_attempts"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из .env, файла и ENV.
func LoadConfig() (*Config, error) {
	// 0. .env удобен локально; в контейнере его обычно нет
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// 2. Переменные окружения: AUTH_ACCESS_TTL=2h перекроет auth.access_ttl
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Установка дефолтных значений
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет: работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Секрет подписи: ENV с данными важнее файла, файл важнее значения из конфига
	if data := loadKeyResource(cfg.Auth.SecretFile, "AUTH_SECRET_DATA"); len(data) > 0 {
		cfg.Auth.Secret = strings.TrimSpace(string(data))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate отсекает заведомо нерабочие значения.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("config: database.url is required")
	}
	if c.Auth.MaxFailedAttempts <= 0 {
		return errors.New("config: auth.max_failed_attempts must be positive")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return errors.New("config: auth token ttl must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "manday-assess")
	v.SetDefault("app.profile", "dev")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	// Ключи без осмысленного дефолта объявляем пустыми, иначе AutomaticEnv их не увидит
	for _, key := range []string{
		"database.url", "redis.password", "auth.secret", "auth.secret_file",
		"auth.keyvault_url", "auth.keyvault_secret", "audit.signature_secret", "audit.kafka_brokers",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.query_timeout", 3*time.Second)
	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("auth.issuer", "manday-assess-system")
	v.SetDefault("auth.audience", "changsha-finance-gov")
	v.SetDefault("auth.algorithm", "HS512")
	v.SetDefault("auth.access_ttl", 24*time.Hour)
	v.SetDefault("auth.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.max_failed_attempts", 5)
	v.SetDefault("auth.password_expiry", 90*24*time.Hour)
	v.SetDefault("auth.login_rate_limit", 1.0)
	v.SetDefault("auth.login_rate_burst", 10)

	v.SetDefault("audit.buffer_size", 10000)
	v.SetDefault("audit.batch_size", 100)
	v.SetDefault("audit.flush_interval", 500*time.Millisecond)
	v.SetDefault("audit.kafka_topic", "manday.audit")

	v.SetDefault("resilience.cb_max_requests", 3)
	v.SetDefault("resilience.cb_interval", 5*time.Second)
	v.SetDefault("resilience.cb_timeout", 30*time.Second)
	v.SetDefault("resilience.cb_failure_threshold", 5)
	v.SetDefault("resilience.retry_attempts", 3)
	v.SetDefault("resilience.retry_delay", 50*time.Millisecond)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// loadKeyResource: сначала ENV с самими данными (Docker/K8s), затем файл по пути из конфига.
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
