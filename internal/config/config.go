package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

type Config struct {
	ServerPort int
	LogLevel   string

	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	JWTSecret []byte

	AccessTokenMinutes int
	RefreshTokenDays   int
	ResetTokenMinutes  int
	VerifyTokenMinutes int

	MaxLoginAttempts  int
	LockDurationHours int
	MaxActiveSessions int

	KafkaBrokers []string
	KafkaTopic   string

	ES_URL      string
	ES_USER     string
	ES_PASSWORD string
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	cfg := &Config{
		ServerPort: EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:   EnvDefault("LOG_LEVEL", "info"),

		DB_HOST:     os.Getenv("DB_HOST"),
		DB_PORT:     os.Getenv("DB_PORT"),
		DB_USER:     os.Getenv("DB_USER"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_NAME:     os.Getenv("DB_NAME"),

		JWTSecret: []byte(os.Getenv("JWT_SECRET")),

		AccessTokenMinutes: EnvIntDefault("ACCESS_TOKEN_MINUTES", 15),
		RefreshTokenDays:   EnvIntDefault("REFRESH_TOKEN_DAYS", 7),
		ResetTokenMinutes:  EnvIntDefault("RESET_TOKEN_MINUTES", 10),
		VerifyTokenMinutes: EnvIntDefault("VERIFY_TOKEN_MINUTES", 10),

		MaxLoginAttempts:  EnvIntDefault("MAX_LOGIN_ATTEMPTS", 5),
		LockDurationHours: EnvIntDefault("LOCK_DURATION_HOURS", 4),
		MaxActiveSessions: EnvIntDefault("MAX_ACTIVE_SESSIONS", 5),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   EnvDefault("KAFKA_TOPIC", "user_events"),

		ES_URL:      os.Getenv("ES_URL"),
		ES_USER:     os.Getenv("ES_USER"),
		ES_PASSWORD: os.Getenv("ES_PASSWORD"),
	}

	return cfg, nil
}

func (c *Config) AccessTTL() time.Duration  { return time.Duration(c.AccessTokenMinutes) * time.Minute }
func (c *Config) RefreshTTL() time.Duration { return time.Duration(c.RefreshTokenDays) * 24 * time.Hour }
func (c *Config) ResetTTL() time.Duration   { return time.Duration(c.ResetTokenMinutes) * time.Minute }
func (c *Config) VerifyTTL() time.Duration  { return time.Duration(c.VerifyTokenMinutes) * time.Minute }
func (c *Config) LockDuration() time.Duration {
	return time.Duration(c.LockDurationHours) * time.Hour
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		log.Fatalf("missing required env %s", envName)
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if os.Getenv(key) != "" {
		return os.Getenv(key)
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
