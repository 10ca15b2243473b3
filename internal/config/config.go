package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host               string
	Port               int
	CORSAllowedOrigins []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
	AutoMigrate     bool
}

type AuthConfig struct {
	AccessSecret string
}

type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type StorageConfig struct {
	Driver         string
	FSRoot         string
	S3             S3Config
	MaxUploadMB    int64
	CleanupRetries uint
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

type RedisConfig struct {
	Addr           string
	Password       string
	IdempotencyTTL time.Duration
}

type Config struct {
	Environment    string
	HTTP           HTTPConfig
	DB             DBConfig
	Auth           AuthConfig
	Storage        StorageConfig
	AMQP           AMQPConfig
	Redis          RedisConfig
	MetricsEnabled bool
}

const (
	StorageDriverFS = "fs"
	StorageDriverS3 = "s3"
)

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("ATTACHMENT_CLEANUP_RETRIES", 5)
	v.SetDefault("IDEMPOTENCY_TTL", "24h")

	_ = v.ReadInConfig()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:               v.GetString("HTTP_HOST"),
			Port:               v.GetInt("HTTP_PORT"),
			CORSAllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
			AutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(v.GetString("STORAGE_DRIVER")),
			FSRoot: v.GetString("STORAGE_FS_ROOT"),
			S3: S3Config{
				Bucket:    v.GetString("STORAGE_S3_BUCKET"),
				Prefix:    v.GetString("STORAGE_S3_PREFIX"),
				Region:    v.GetString("STORAGE_S3_REGION"),
				Endpoint:  v.GetString("STORAGE_S3_ENDPOINT"),
				AccessKey: v.GetString("STORAGE_S3_ACCESS_KEY"),
				SecretKey: v.GetString("STORAGE_S3_SECRET_KEY"),
			},
			MaxUploadMB:    v.GetInt64("STORAGE_MAX_UPLOAD_MB"),
			CleanupRetries: v.GetUint("ATTACHMENT_CLEANUP_RETRIES"),
		},
		AMQP: AMQPConfig{
			URL:      v.GetString("AMQP_URL"),
			Exchange: v.GetString("AMQP_EXCHANGE"),
		},
		Redis: RedisConfig{
			Addr:           v.GetString("REDIS_ADDR"),
			Password:       v.GetString("REDIS_PASSWORD"),
			IdempotencyTTL: v.GetDuration("IDEMPOTENCY_TTL"),
		},
		MetricsEnabled: v.GetBool("METRICS_ENABLED"),
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageDriverFS
	}
	if cfg.Storage.FSRoot == "" {
		cfg.Storage.FSRoot = "./data/attachments"
	}
	if cfg.Storage.S3.Region == "" {
		cfg.Storage.S3.Region = "us-east-1"
	}
	if cfg.Storage.MaxUploadMB <= 0 {
		cfg.Storage.MaxUploadMB = 20
	}
	if cfg.AMQP.Exchange == "" {
		cfg.AMQP.Exchange = "billing.events"
	}
	if cfg.Redis.IdempotencyTTL <= 0 {
		cfg.Redis.IdempotencyTTL = 24 * time.Hour
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	switch cfg.Storage.Driver {
	case StorageDriverFS:
	case StorageDriverS3:
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("STORAGE_S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.Storage.Driver)
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
