// Package config loads the host-facing configuration surface of
// spec.md §6 with viper, following the loader shape in
// firestige-Otus/internal/otus/config/loader.go: SetConfigName/AddConfigPath
// plus AutomaticEnv so every key can be overridden from the
// environment without a file.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/arzzra/embedded_ua/pkg/agent"
	"github.com/arzzra/embedded_ua/pkg/media"
)

// Config is the full host configuration: one SIP account plus the
// media parameters every dialog's session is built from.
type Config struct {
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Domain          string `mapstructure:"domain"`
	Registrar       string `mapstructure:"registrar"`
	RegistrarPort   int    `mapstructure:"registrar_port"`
	RegisterExpires int    `mapstructure:"register_expires"`
	TransportType   string `mapstructure:"transport_type"`
	LocalPort       int    `mapstructure:"local_port"`

	StunServer string `mapstructure:"stun_server"`
	StunPort   int    `mapstructure:"stun_port"`
	TurnServer string `mapstructure:"turn_server"`
	TurnPort   int    `mapstructure:"turn_port"`
	TurnUser   string `mapstructure:"turn_user"`
	TurnPass   string `mapstructure:"turn_pass"`
	EnableTurn bool   `mapstructure:"enable_turn"`

	AudioCodec      string `mapstructure:"audio_codec"`
	FrameDurationMs int    `mapstructure:"frame_duration_ms"`
	EnableRTCP      bool   `mapstructure:"enable_rtcp"`
	JitterBufferMs  int    `mapstructure:"jitter_buffer_ms"`
	EnableDTMF      bool   `mapstructure:"enable_dtmf"`
	EnableDTLS      bool   `mapstructure:"enable_dtls"`

	MQTTBrokerURL string `mapstructure:"mqtt_broker_url"`
	MQTTTopic     string `mapstructure:"mqtt_topic"`
}

// Load reads path (any format viper supports: yaml, json, toml) and
// overlays environment variables prefixed UAPHONE_, replacing "."
// and "-" with "_" the way Otus's loader does.
func Load(path string) (*Config, error) {
	v := viper.New()
	dir := filepath.Dir(path)
	filename := filepath.Base(path)
	ext := filepath.Ext(filename)
	v.SetConfigName(strings.TrimSuffix(filename, ext))
	v.SetConfigType(strings.TrimPrefix(ext, "."))
	v.AddConfigPath(dir)

	v.SetEnvPrefix("UAPHONE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("registrar_port", 5060)
	v.SetDefault("register_expires", 3600)
	v.SetDefault("transport_type", "udp")
	v.SetDefault("local_port", 5060)
	v.SetDefault("audio_codec", "PCMU")
	v.SetDefault("frame_duration_ms", 20)
	v.SetDefault("enable_rtcp", true)
	v.SetDefault("jitter_buffer_ms", 60)
}

// AgentConfig projects the shared fields onto an agent.Config.
func (c *Config) AgentConfig() agent.Config {
	cfg := agent.DefaultConfig()
	cfg.Username = c.Username
	cfg.Password = c.Password
	cfg.Domain = c.Domain
	cfg.Registrar = c.Registrar
	cfg.RegistrarPort = c.RegistrarPort
	cfg.RegisterExpires = c.RegisterExpires
	cfg.LocalPort = c.LocalPort
	return cfg
}

// MediaConfig projects the shared fields onto a media.Config.
func (c *Config) MediaConfig() media.Config {
	cfg := media.DefaultConfig()
	cfg.StunServer = c.StunServer
	cfg.StunPort = c.StunPort
	cfg.TurnServer = c.TurnServer
	cfg.TurnPort = c.TurnPort
	cfg.TurnUser = c.TurnUser
	cfg.TurnPass = c.TurnPass
	cfg.EnableTurn = c.EnableTurn
	cfg.AudioCodec = c.AudioCodec
	if c.FrameDurationMs > 0 {
		cfg.FrameDurationMs = c.FrameDurationMs
	}
	cfg.EnableRTCP = c.EnableRTCP
	if c.JitterBufferMs > 0 {
		cfg.JitterBufferMs = c.JitterBufferMs
	}
	cfg.EnableDTMF = c.EnableDTMF
	cfg.EnableDTLS = c.EnableDTLS
	return cfg
}
