package config

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	Env  string `validate:"required,oneof=dev prod"`
	HTTP struct {
		Addr string `validate:"required"`
	}
	Postgres struct {
		Host           string `validate:"required"`
		Port           int    `validate:"required"`
		User           string `validate:"required"`
		Password       string
		Database       string `validate:"required"`
		SSLMode        string `validate:"required"`
		MigrationsPath string `validate:"required"`
	}
	SQLite struct {
		Path           string `validate:"required"`
		MigrationsPath string `validate:"required"`
	}
	Schedule struct {
		TimeZone    string `validate:"required"`
		HorizonDays int    `validate:"required,min=1"`
		CronSpec    string `validate:"required"`
		NotifyURL   string
	}
	APIKeys []string
	Log struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}
}

var validate = validator.New()

// Load reads configuration from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	c.Env = getenv("ENV", "prod")
	c.HTTP.Addr = getenv("HTTP_ADDR", ":8080")

	c.Postgres.Host = getenv("POSTGRES_HOST", "localhost")
	c.Postgres.Port = getenvInt("POSTGRES_PORT", 5432)
	c.Postgres.User = getenv("POSTGRES_USER", "postgres")
	c.Postgres.Password = os.Getenv("POSTGRES_PASSWORD")
	c.Postgres.Database = getenv("POSTGRES_DB", "printflow")
	c.Postgres.SSLMode = getenv("POSTGRES_SSLMODE", "disable")
	c.Postgres.MigrationsPath = getenv("POSTGRES_MIGRATIONS_PATH", "file://migrations/postgres")

	c.SQLite.Path = getenv("RUN_HISTORY_SQLITE_PATH", "data/run_history.db")
	c.SQLite.MigrationsPath = getenv("SQLITE_MIGRATIONS_PATH", "file://migrations/sqlite")

	c.Schedule.TimeZone = getenv("SCHEDULE_TIMEZONE", "Africa/Johannesburg")
	c.Schedule.HorizonDays = getenvInt("SCHEDULE_HORIZON_DAYS", 370)
	c.Schedule.CronSpec = getenv("SCHEDULE_CRON_AUTO_SPEC", "0 */15 * * * *")
	c.Schedule.NotifyURL = os.Getenv("SCHEDULE_NOTIFY_WEBHOOK_URL")

	c.APIKeys = splitNonEmpty(os.Getenv("SCHEDULE_API_KEYS"))

	c.Log.ConsoleLevel = strings.ToLower(getenv("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(getenv("LOG_FILE_LEVEL", "debug"))
	c.Log.File = getenv("LOG_FILE", "data/logs/scheduler.log")

	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	return c, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n := 0
	for _, ch := range v {
		if ch < '0' || ch > '9' {
			return def
		}
		n = n*10 + int(ch-'0')
	}
	return n
}
