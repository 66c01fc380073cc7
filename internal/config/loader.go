package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "TODOSYNC"

// Config captures environment driven configuration values for the todosync service.
type Config struct {
	HTTPPort         int
	SQLiteDSN        string
	SessionTTL       time.Duration
	SessionCacheTTL  time.Duration
	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration
	OutboxSize       int
	LogLevel         string
	LogFile          string
	LogMaxSizeMB     int
}

var defaults = map[string]any{
	"http_port":         "8080",
	"sqlite_dsn":        "todosync.db",
	"session_ttl":       "24h",
	"session_cache_ttl": "30s",
	"handshake_timeout": "10s",
	"request_timeout":   "30s",
	"outbox_size":       "64",
	"log_level":         "info",
	"log_file":          "",
	"log_max_size_mb":   "50",
}

// Load parses configuration from the process environment and, when
// TODOSYNC_CONFIG names a file, from that file. Environment values win.
func Load() (Config, error) {
	return LoadWith(viper.New())
}

// LoadWith is Load with a caller supplied viper instance, which lets tests and
// the CLI inject values with Set.
func LoadWith(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	_ = v.BindEnv("config")

	if path := strings.TrimSpace(v.GetString("config")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file %s: %w", path, err)
			}
		}
	}

	p := parser{v: v}
	cfg := Config{
		HTTPPort:         p.positiveInt("http_port"),
		SQLiteDSN:        strings.TrimSpace(v.GetString("sqlite_dsn")),
		SessionTTL:       p.positiveDuration("session_ttl"),
		SessionCacheTTL:  p.duration("session_cache_ttl"),
		HandshakeTimeout: p.positiveDuration("handshake_timeout"),
		RequestTimeout:   p.positiveDuration("request_timeout"),
		OutboxSize:       p.positiveInt("outbox_size"),
		LogLevel:         strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		LogFile:          strings.TrimSpace(v.GetString("log_file")),
		LogMaxSizeMB:     p.positiveInt("log_max_size_mb"),
	}

	if cfg.SQLiteDSN == "" {
		p.invalid = append(p.invalid, envName("sqlite_dsn"))
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		p.invalid = append(p.invalid, envName("log_level"))
	}

	if len(p.invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(p.invalid, ", "))
	}
	return cfg, nil
}

type parser struct {
	v       *viper.Viper
	invalid []string
}

func (p *parser) positiveInt(key string) int {
	raw := strings.TrimSpace(p.v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		p.invalid = append(p.invalid, envName(key))
		return 0
	}
	return n
}

func (p *parser) positiveDuration(key string) time.Duration {
	d := p.duration(key)
	if d <= 0 && !p.seen(key) {
		p.invalid = append(p.invalid, envName(key))
	}
	return d
}

// duration accepts zero, which disables the feature the key controls.
func (p *parser) duration(key string) time.Duration {
	raw := strings.TrimSpace(p.v.GetString(key))
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		p.invalid = append(p.invalid, envName(key))
		return 0
	}
	return d
}

func (p *parser) seen(key string) bool {
	name := envName(key)
	for _, existing := range p.invalid {
		if existing == name {
			return true
		}
	}
	return false
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}
