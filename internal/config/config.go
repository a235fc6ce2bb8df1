package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Env  string
		Name string
	} `mapstructure:"app"`

	HTTP struct {
		Port string
	} `mapstructure:"http"`

	Database struct {
		URL      string
		Host     string
		User     string
		Password string
		Name     string
		Port     string
		TimeZone string `mapstructure:"timezone"`
	} `mapstructure:"database"`

	Redis struct {
		Addr     string
		Password string
		DB       int
	} `mapstructure:"redis"`

	Session struct {
		TTL time.Duration
	} `mapstructure:"session"`

	JWT struct {
		Secret string
		TTL    time.Duration
	} `mapstructure:"jwt"`

	Numbering struct {
		MaxAttempts int           `mapstructure:"max_attempts"`
		Backoff     time.Duration `mapstructure:"backoff"`
	} `mapstructure:"numbering"`

	Ledger struct {
		TxRetries uint64        `mapstructure:"tx_retries"`
		TxBackoff time.Duration `mapstructure:"tx_backoff"`
	} `mapstructure:"ledger"`

	Reconcile struct {
		Schedule string
	} `mapstructure:"reconcile"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`
}

var defaults = map[string]interface{}{
	"app.env":                "production",
	"app.name":               "Accounting WS v1.0",
	"http.port":              "3000",
	"database.timezone":      "UTC",
	"redis.db":               0,
	"session.ttl":            "24h",
	"jwt.secret":             "your-super-secret-key-change-in-production",
	"jwt.ttl":                "24h",
	"numbering.max_attempts": 10,
	"numbering.backoff":      "20ms",
	"ledger.tx_retries":      5,
	"ledger.tx_backoff":      "10ms",
	"reconcile.schedule":     "@every 6h",
	"metrics.enabled":        true,
}

// Load reads configuration from the environment. Keys map to upper-case
// variables with dots replaced by underscores (numbering.max_attempts ->
// NUMBERING_MAX_ATTEMPTS). Database settings also accept the DB_* names.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range []string{"database.url", "database.host", "database.user", "database.password", "database.name", "database.port", "redis.addr", "redis.password"} {
		v.SetDefault(key, "")
	}

	binds := map[string][]string{
		"http.port":         {"HTTP_PORT", "PORT"},
		"database.url":      {"DATABASE_URL"},
		"database.host":     {"DB_HOST"},
		"database.user":     {"DB_USER"},
		"database.password": {"DB_PASSWORD"},
		"database.name":     {"DB_NAME"},
		"database.port":     {"DB_PORT"},
		"database.timezone": {"DB_TIMEZONE"},
	}
	for key, envs := range binds {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return Config{}, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	if c.Numbering.MaxAttempts < 1 {
		return c, fmt.Errorf("numbering.max_attempts must be at least 1, got %d", c.Numbering.MaxAttempts)
	}
	return c, nil
}

// DSN returns DATABASE_URL when set, otherwise builds a key/value DSN from the
// individual settings.
func (c Config) DSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
		c.Database.Host,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.Port,
		c.Database.TimeZone,
	)
}
