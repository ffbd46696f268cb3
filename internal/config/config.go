// Package config loads service settings from built-in defaults, an optional
// TOML file and ECO_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration written as a string such as "720h" in TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

type Push struct {
	VAPIDPublicKey  string `toml:"vapid_public_key"`
	VAPIDPrivateKey string `toml:"vapid_private_key"`
	Subscriber      string `toml:"subscriber"`
}

type Config struct {
	Port             string   `toml:"port"`
	DBPath           string   `toml:"db_path"`
	LogLevel         string   `toml:"log_level"`
	LogFormat        string   `toml:"log_format"`
	SessionTTL       Duration `toml:"session_ttl"`
	AdminEmails      []string `toml:"admin_emails"`
	CacheSize        int      `toml:"cache_size"`
	LeaderboardSize  int      `toml:"leaderboard_size"`
	WebSocketOrigins []string `toml:"websocket_origins"`
	CleanupInterval  Duration `toml:"cleanup_interval"`
	Push             Push     `toml:"push"`
}

func Default() *Config {
	return &Config{
		Port:            "8080",
		DBPath:          "ecochallenge.db",
		LogLevel:        "info",
		LogFormat:       "text",
		SessionTTL:      Duration(30 * 24 * time.Hour),
		CacheSize:       16,
		LeaderboardSize: 10,
		CleanupInterval: Duration(time.Hour),
	}
}

// Load builds the configuration. A missing file at path is not an error;
// an empty path skips the file layer entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("open config: %w", err)
		default:
			err = toml.NewDecoder(f).DisallowUnknownFields().Decode(cfg)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("decode config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		if err := dst.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return nil
	}

	str("ECO_PORT", &c.Port)
	str("ECO_DB_PATH", &c.DBPath)
	str("ECO_LOG_LEVEL", &c.LogLevel)
	str("ECO_LOG_FORMAT", &c.LogFormat)
	str("ECO_VAPID_PUBLIC_KEY", &c.Push.VAPIDPublicKey)
	str("ECO_VAPID_PRIVATE_KEY", &c.Push.VAPIDPrivateKey)
	str("ECO_PUSH_SUBSCRIBER", &c.Push.Subscriber)
	list("ECO_ADMIN_EMAILS", &c.AdminEmails)
	list("ECO_WEBSOCKET_ORIGINS", &c.WebSocketOrigins)

	return errors.Join(
		num("ECO_CACHE_SIZE", &c.CacheSize),
		num("ECO_LEADERBOARD_SIZE", &c.LeaderboardSize),
		dur("ECO_SESSION_TTL", &c.SessionTTL),
		dur("ECO_CLEANUP_INTERVAL", &c.CleanupInterval),
	)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session_ttl must be positive"))
	}
	if c.CacheSize <= 0 {
		errs = append(errs, errors.New("cache_size must be positive"))
	}
	if c.LeaderboardSize <= 0 {
		errs = append(errs, errors.New("leaderboard_size must be positive"))
	}
	if c.CleanupInterval <= 0 {
		errs = append(errs, errors.New("cleanup_interval must be positive"))
	}
	if (c.Push.VAPIDPublicKey == "") != (c.Push.VAPIDPrivateKey == "") {
		errs = append(errs, errors.New("vapid_public_key and vapid_private_key must be set together"))
	}
	return errors.Join(errs...)
}
