package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	CORS     CORSConfig
	Log      LogConfig
	Engine   EngineConfig
	Cache    CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NATSConfig controls inbound grade/config change events.
type NATSConfig struct {
	Enabled       bool
	URL           string
	GradeSubject  string
	ConfigSubject string
	QueueGroup    string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EngineConfig holds the system-wide assessment defaults and batch tuning.
type EngineConfig struct {
	DefaultMonthlyExamCount int
	DefaultMonthlyWeight    float64
	DefaultSemesterWeight   float64
	WorkerConcurrency       int
}

// CacheConfig governs the Redis read-through layer in front of calculation results.
type CacheConfig struct {
	Enabled    bool
	ResultTTL  time.Duration
	RankingTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.NATS = NATSConfig{
		Enabled:       v.GetBool("ENABLE_NATS_EVENTS"),
		URL:           v.GetString("NATS_URL"),
		GradeSubject:  v.GetString("NATS_GRADE_SUBJECT"),
		ConfigSubject: v.GetString("NATS_CONFIG_SUBJECT"),
		QueueGroup:    v.GetString("NATS_QUEUE_GROUP"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Engine = EngineConfig{
		DefaultMonthlyExamCount: v.GetInt("DEFAULT_MONTHLY_EXAM_COUNT"),
		DefaultMonthlyWeight:    v.GetFloat64("DEFAULT_MONTHLY_WEIGHT"),
		DefaultSemesterWeight:   v.GetFloat64("DEFAULT_SEMESTER_WEIGHT"),
		WorkerConcurrency:       v.GetInt("ENGINE_WORKER_CONCURRENCY"),
	}
	if cfg.Engine.WorkerConcurrency <= 0 {
		cfg.Engine.WorkerConcurrency = 4
	}

	cfg.Cache = CacheConfig{
		Enabled:    v.GetBool("ENABLE_RESULT_CACHE"),
		ResultTTL:  parseDuration(v.GetString("RESULT_CACHE_TTL"), 30*time.Minute),
		RankingTTL: parseDuration(v.GetString("RANKING_CACHE_TTL"), 10*time.Minute),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8081)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "admin_panel_sma")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ENABLE_NATS_EVENTS", false)
	v.SetDefault("NATS_URL", "nats://localhost:4222")
	v.SetDefault("NATS_GRADE_SUBJECT", "grades.changed")
	v.SetDefault("NATS_CONFIG_SUBJECT", "configs.changed")
	v.SetDefault("NATS_QUEUE_GROUP", "grade-engine")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DEFAULT_MONTHLY_EXAM_COUNT", 4)
	v.SetDefault("DEFAULT_MONTHLY_WEIGHT", 50)
	v.SetDefault("DEFAULT_SEMESTER_WEIGHT", 50)
	v.SetDefault("ENGINE_WORKER_CONCURRENCY", 4)

	v.SetDefault("ENABLE_RESULT_CACHE", true)
	v.SetDefault("RESULT_CACHE_TTL", "30m")
	v.SetDefault("RANKING_CACHE_TTL", "10m")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
