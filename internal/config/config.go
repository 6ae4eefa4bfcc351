// Package config loads settings for the example programs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/thesyncim/libgodatachannel/pkg/pc"
)

// Roles a signaling peer can take.
const (
	RoleOffer  = "offer"
	RoleAnswer = "answer"
)

type Config struct {
	LogLevel       string   `mapstructure:"log_level"`
	NativeLogLevel string   `mapstructure:"native_log_level"`
	ICEServers     []string `mapstructure:"ice_servers"`
	ICEUsername    string   `mapstructure:"ice_username"`
	ICECredential  string   `mapstructure:"ice_credential"`
	BindAddress    string   `mapstructure:"bind_address"`
	PortRangeBegin uint16   `mapstructure:"port_range_begin"`
	PortRangeEnd   uint16   `mapstructure:"port_range_end"`
	MaxMessageSize int      `mapstructure:"max_message_size"`

	SignalURL  string `mapstructure:"signal_url"`
	ListenAddr string `mapstructure:"listen_addr"`
	Room       string `mapstructure:"room"`
	Role       string `mapstructure:"role"`
	Label      string `mapstructure:"label"`

	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Load reads config.yaml from the working directory or ./config, then
// applies LIBDC_* environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit file path. An empty path searches the
// default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("LIBDC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("native_log_level", "warning")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("ice_username", "")
	v.SetDefault("ice_credential", "")
	v.SetDefault("bind_address", "")
	v.SetDefault("port_range_begin", 0)
	v.SetDefault("port_range_end", 0)
	v.SetDefault("max_message_size", 0)
	v.SetDefault("signal_url", "ws://localhost:8080/ws")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("room", "default")
	v.SetDefault("role", RoleOffer)
	v.SetDefault("label", "data")
	v.SetDefault("metrics_addr", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Debug().Str("module", "config").Msg("no config file, using defaults")
	} else {
		log.Debug().Str("module", "config").Str("file", v.ConfigFileUsed()).Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if _, err := c.NativeLevel(); err != nil {
		return err
	}
	if c.Role != RoleOffer && c.Role != RoleAnswer {
		return fmt.Errorf("role %q: want %s or %s", c.Role, RoleOffer, RoleAnswer)
	}
	if c.PortRangeEnd != 0 && c.PortRangeBegin > c.PortRangeEnd {
		return fmt.Errorf("port range %d-%d is inverted", c.PortRangeBegin, c.PortRangeEnd)
	}
	if c.Room == "" {
		return errors.New("room must not be empty")
	}
	return nil
}

// Level returns the parsed log_level.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// NativeLevel maps native_log_level to the library's log level.
func (c *Config) NativeLevel() (pc.LogLevel, error) {
	switch strings.ToLower(c.NativeLogLevel) {
	case "none", "":
		return pc.LogNone, nil
	case "fatal":
		return pc.LogFatal, nil
	case "error":
		return pc.LogError, nil
	case "warning", "warn":
		return pc.LogWarning, nil
	case "info":
		return pc.LogInfo, nil
	case "debug":
		return pc.LogDebug, nil
	case "verbose", "trace":
		return pc.LogVerbose, nil
	}
	return pc.LogNone, fmt.Errorf("native_log_level %q is not a known level", c.NativeLogLevel)
}

// PeerConfiguration builds the peer connection configuration. All ICE
// servers share the configured credentials.
func (c *Config) PeerConfiguration() pc.Configuration {
	cfg := pc.Configuration{
		BindAddress:    c.BindAddress,
		PortRangeBegin: c.PortRangeBegin,
		PortRangeEnd:   c.PortRangeEnd,
		MaxMessageSize: c.MaxMessageSize,
	}
	for _, u := range c.ICEServers {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		s := pc.ICEServer{URLs: []string{u}}
		if strings.HasPrefix(u, "turn") {
			s.Username = c.ICEUsername
			s.Credential = c.ICECredential
		}
		cfg.ICEServers = append(cfg.ICEServers, s)
	}
	return cfg
}

// RoomURL joins the signaling URL and the room.
func (c *Config) RoomURL() string {
	return strings.TrimSuffix(c.SignalURL, "/") + "/" + c.Room
}
