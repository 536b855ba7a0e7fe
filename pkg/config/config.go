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

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Registration RegistrationConfig
	Payments     PaymentsConfig
	Utility      UtilityConfig
	Semester     SemesterConfig
	Scheduler    SchedulerConfig
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
	OpTimeout    time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RegistrationConfig tunes the registration engine.
type RegistrationConfig struct {
	HoldDuration time.Duration
	ReaperSpec   string
}

// PaymentsConfig governs payment reference issuance.
type PaymentsConfig struct {
	ReferenceTTL time.Duration
}

// UtilityConfig governs the monthly metering cycle job.
type UtilityConfig struct {
	CycleSpec        string
	ElectricityPrice int64
	WaterPrice       int64
}

// SemesterConfig tunes active-semester caching.
type SemesterConfig struct {
	CacheTTL time.Duration
}

// SchedulerConfig toggles the background job scheduler.
type SchedulerConfig struct {
	Enabled bool
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

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
		OpTimeout:    parseDuration(v.GetString("DB_OP_TIMEOUT"), 5*time.Second),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Registration = RegistrationConfig{
		HoldDuration: parseDuration(v.GetString("REGISTRATION_HOLD_DURATION"), 24*time.Hour),
		ReaperSpec:   v.GetString("REGISTRATION_REAPER_SPEC"),
	}

	cfg.Payments = PaymentsConfig{
		ReferenceTTL: parseDuration(v.GetString("PAYMENT_REFERENCE_TTL"), 5*time.Minute),
	}

	cfg.Utility = UtilityConfig{
		CycleSpec:        v.GetString("UTILITY_CYCLE_SPEC"),
		ElectricityPrice: v.GetInt64("UTILITY_ELECTRICITY_PRICE"),
		WaterPrice:       v.GetInt64("UTILITY_WATER_PRICE"),
	}

	cfg.Semester = SemesterConfig{
		CacheTTL: parseDuration(v.GetString("SEMESTER_CACHE_TTL"), time.Minute),
	}

	cfg.Scheduler = SchedulerConfig{Enabled: v.GetBool("ENABLE_SCHEDULER")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "dorm_api")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_OP_TIMEOUT", "5s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("REGISTRATION_HOLD_DURATION", "24h")
	v.SetDefault("REGISTRATION_REAPER_SPEC", "@hourly")

	v.SetDefault("PAYMENT_REFERENCE_TTL", "5m")

	v.SetDefault("UTILITY_CYCLE_SPEC", "0 2 1 * *")
	v.SetDefault("UTILITY_ELECTRICITY_PRICE", 3500)
	v.SetDefault("UTILITY_WATER_PRICE", 12000)

	v.SetDefault("SEMESTER_CACHE_TTL", "1m")

	v.SetDefault("ENABLE_SCHEDULER", true)
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
