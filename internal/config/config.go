package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/KairamCabral/terravik-sub002/internal/logging"
)

type Config struct {
	Port                   string
	AllowedOrigin          string
	DatabaseURL            string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	AddressCacheTTLSeconds int
	CEPBaseURL             string
	CEPTimeoutSeconds      int
	AuthSecret             string
	AccessTokenTTLMinutes  int
	Log                    logging.Config
}

const (
	defaultAddressCacheTTLSeconds = 30 * 24 * 60 * 60
	defaultCEPTimeoutSeconds      = 5
	defaultAccessTokenTTLMinutes  = 480
)

// Load reads configuration from the environment, optionally layered over the
// file named by CONFIG_FILE. Environment variables always win.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGIN", "http://127.0.0.1:3000")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ADDRESS_CACHE_TTL_SECONDS", defaultAddressCacheTTLSeconds)
	v.SetDefault("CEP_BASE_URL", "https://viacep.com.br")
	v.SetDefault("CEP_TIMEOUT_SECONDS", defaultCEPTimeoutSeconds)
	v.SetDefault("ACCESS_TOKEN_TTL_MINUTES", defaultAccessTokenTTLMinutes)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_OUTPUT", "stdout")
	v.AutomaticEnv()

	if file := strings.TrimSpace(v.GetString("CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("config file %s not found", file)
			}
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := Config{
		Port:                   v.GetString("PORT"),
		AllowedOrigin:          v.GetString("ALLOWED_ORIGIN"),
		DatabaseURL:            strings.TrimSpace(v.GetString("DATABASE_URL")),
		RedisAddr:              strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:          v.GetString("REDIS_PASSWORD"),
		RedisDB:                v.GetInt("REDIS_DB"),
		AddressCacheTTLSeconds: positiveOr(v.GetInt("ADDRESS_CACHE_TTL_SECONDS"), defaultAddressCacheTTLSeconds),
		CEPBaseURL:             strings.TrimRight(v.GetString("CEP_BASE_URL"), "/"),
		CEPTimeoutSeconds:      positiveOr(v.GetInt("CEP_TIMEOUT_SECONDS"), defaultCEPTimeoutSeconds),
		AuthSecret:             strings.TrimSpace(v.GetString("AUTH_SECRET")),
		AccessTokenTTLMinutes:  positiveOr(v.GetInt("ACCESS_TOKEN_TTL_MINUTES"), defaultAccessTokenTTLMinutes),
		Log: logging.Config{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			Output: v.GetString("LOG_OUTPUT"),
		},
	}

	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) AddressCacheTTL() time.Duration {
	return time.Duration(c.AddressCacheTTLSeconds) * time.Second
}

func (c Config) CEPTimeout() time.Duration {
	return time.Duration(c.CEPTimeoutSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func positiveOr(val int, fallback int) int {
	if val < 1 {
		return fallback
	}
	return val
}
