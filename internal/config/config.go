package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type RateLimit struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type MembershipCache struct {
	TTL  time.Duration `mapstructure:"ttl"`
	Size int           `mapstructure:"size"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type Config struct {
	Mode              string          `mapstructure:"mode"`
	Port              int             `mapstructure:"port"`
	LogLevel          string          `mapstructure:"log_level"`
	StaticPath        string          `mapstructure:"static_path"`
	WSPath            string          `mapstructure:"ws_path"`
	ReadLimit         int64           `mapstructure:"read_limit"`
	SendBuffer        int             `mapstructure:"send_buffer"`
	PingPeriod        time.Duration   `mapstructure:"ping_period"`
	Secret            string          `mapstructure:"secret"`
	TokenTTL          time.Duration   `mapstructure:"token_ttl"`
	DatabasePath      string          `mapstructure:"database_path"`
	EventBuffer       int             `mapstructure:"event_buffer"`
	RateLimit         RateLimit       `mapstructure:"rate_limit"`
	MembershipCache   MembershipCache `mapstructure:"membership_cache"`
	AllowedOrigins    []string        `mapstructure:"allowed_origins"`
	ICEServers        []ICEServer     `mapstructure:"ice_servers"`
	DefaultCallerName string          `mapstructure:"default_caller_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 4000)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_path", "./web")
	v.SetDefault("ws_path", "/ws")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("send_buffer", 64)
	v.SetDefault("ping_period", "25s")
	v.SetDefault("token_ttl", "168h")
	v.SetDefault("database_path", "./data/messzola.sqlite")
	v.SetDefault("event_buffer", 256)
	v.SetDefault("rate_limit.limit", 100)
	v.SetDefault("rate_limit.interval", "1s")
	v.SetDefault("membership_cache.ttl", "0s")
	v.SetDefault("membership_cache.size", 1024)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
	v.SetDefault("default_caller_name", "User")
}

// Load reads config.<CONFIG_ENV>.yaml (env "dev" by default) from ./config or
// the working directory, then MESSZOLA_* environment overrides. A missing file
// falls back to defaults; a file that does not parse is an error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	name := "config." + env

	v.SetConfigName(name)
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MESSZOLA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config %s: %w", name, err)
		}
		log.Warn().Str("module", "config").Str("name", name).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", v.ConfigFileUsed()).Msg("loaded config")
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("ws", cfg.WSPath).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.PingPeriod <= 0 {
		errs = append(errs, errors.New("ping_period must be positive"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("send_buffer must be positive"))
	}
	if c.EventBuffer <= 0 {
		errs = append(errs, errors.New("event_buffer must be positive"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		errs = append(errs, fmt.Errorf("ws_path %q must start with /", c.WSPath))
	}
	if c.Secret == "" {
		errs = append(errs, errors.New("secret is required"))
	}
	return errors.Join(errs...)
}

// WebRTCICEServers converts the configured servers for clients building an RTCPeerConnection.
func (c *Config) WebRTCICEServers() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(c.ICEServers))
	for _, s := range c.ICEServers {
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
		}
		out = append(out, srv)
	}
	return out
}
