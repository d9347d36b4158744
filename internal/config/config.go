// Package config loads client configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level client configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Device   DeviceConfig   `yaml:"device"`
	Audio    AudioConfig    `yaml:"audio"`
	AutoChat AutoChatConfig `yaml:"auto_chat"`
	Storage  StorageConfig  `yaml:"storage"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig locates the voice backend. Durations are seconds.
type ServerConfig struct {
	ConversationalURL string  `yaml:"conversational_url"`
	StreamingURL      string  `yaml:"streaming_url"`
	APIBaseURL        string  `yaml:"api_base_url"`
	DialTimeout       float64 `yaml:"dial_timeout"` // seconds

	ReconnectInitialBackoff float64 `yaml:"reconnect_initial_backoff"` // seconds
	ReconnectMaxBackoff     float64 `yaml:"reconnect_max_backoff"`     // seconds
	// Zero retries forever.
	ReconnectMaxElapsed float64 `yaml:"reconnect_max_elapsed"` // seconds
}

// DeviceConfig identifies this client to the backend
type DeviceConfig struct {
	ID        string `yaml:"id"`
	JWTSecret string `yaml:"-"`
}

// AudioConfig shapes microphone capture and chunk validation
type AudioConfig struct {
	SampleRate       int     `yaml:"sample_rate"`
	Channels         int     `yaml:"channels"`
	FrameInterval    float64 `yaml:"frame_interval"` // seconds
	EchoCancellation bool    `yaml:"echo_cancellation"`
	NoiseSuppression bool    `yaml:"noise_suppression"`
	StreamingEnabled bool    `yaml:"streaming_enabled"`
	MinChunkBytes    int     `yaml:"min_chunk_bytes"`
	MinHeaderBytes   int     `yaml:"min_header_bytes"`
}

// AutoChatConfig holds the default session settings
type AutoChatConfig struct {
	Theme           string `yaml:"theme"`
	IntervalSeconds int    `yaml:"interval_seconds"`
}

// StorageConfig locates the local chat log
type StorageConfig struct {
	ChatLogPath string `yaml:"chat_log_path"`
}

// HTTPConfig shapes the local control surface
type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingConfig shapes the zap logger
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration matching the demo backend's defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ConversationalURL:       "ws://localhost:6001/ws/chat",
			StreamingURL:            "ws://localhost:6001/ws/stt",
			APIBaseURL:              "http://localhost:6001",
			DialTimeout:             10,
			ReconnectInitialBackoff: 3,
			ReconnectMaxBackoff:     30,
		},
		Audio: AudioConfig{
			SampleRate:       16000,
			Channels:         1,
			FrameInterval:    2,
			EchoCancellation: true,
			NoiseSuppression: true,
			StreamingEnabled: true,
			MinChunkBytes:    1000,
			MinHeaderBytes:   32,
		},
		AutoChat: AutoChatConfig{
			Theme:           "casual",
			IntervalSeconds: 60,
		},
		Storage: StorageConfig{
			ChatLogPath: "sori-chat.db",
		},
		HTTP: HTTPConfig{
			ListenAddr: ":8090",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path when it exists, then applies
// environment overrides. An empty path skips the file entirely.
func Load(path string) (*Config, error) {
	// Optional .env file, same convention as the backend services.
	godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetDialTimeout returns the websocket handshake timeout as a time.Duration
func (s *ServerConfig) GetDialTimeout() time.Duration {
	return secondsToDuration(s.DialTimeout)
}

// GetReconnectInitialBackoff returns the first reconnect delay
func (s *ServerConfig) GetReconnectInitialBackoff() time.Duration {
	return secondsToDuration(s.ReconnectInitialBackoff)
}

// GetReconnectMaxBackoff returns the reconnect delay cap
func (s *ServerConfig) GetReconnectMaxBackoff() time.Duration {
	return secondsToDuration(s.ReconnectMaxBackoff)
}

// GetReconnectMaxElapsed returns the total reconnect budget, zero meaning
// retry forever
func (s *ServerConfig) GetReconnectMaxElapsed() time.Duration {
	return secondsToDuration(s.ReconnectMaxElapsed)
}

// GetFrameInterval returns the streaming frame cadence as a time.Duration
func (a *AudioConfig) GetFrameInterval() time.Duration {
	return secondsToDuration(a.FrameInterval)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (c *Config) applyEnv() {
	setString(&c.Server.ConversationalURL, "SORI_CONVERSATIONAL_URL")
	setString(&c.Server.StreamingURL, "SORI_STREAMING_URL")
	setString(&c.Server.APIBaseURL, "SORI_API_BASE_URL")
	setString(&c.Device.ID, "SORI_DEVICE_ID")
	setString(&c.Device.JWTSecret, "SORI_JWT_SECRET")
	setString(&c.AutoChat.Theme, "SORI_AUTO_CHAT_THEME")
	setInt(&c.AutoChat.IntervalSeconds, "SORI_AUTO_CHAT_INTERVAL")
	setString(&c.Storage.ChatLogPath, "SORI_CHAT_LOG_PATH")
	setString(&c.HTTP.ListenAddr, "SORI_HTTP_ADDR")
	setString(&c.Logging.Level, "SORI_LOG_LEVEL")
	setBool(&c.Audio.StreamingEnabled, "SORI_STREAMING_ENABLED")
}

func (c *Config) validate() error {
	if c.Server.ConversationalURL == "" {
		return fmt.Errorf("server.conversational_url is required")
	}
	if c.Audio.StreamingEnabled && c.Server.StreamingURL == "" {
		return fmt.Errorf("server.streaming_url is required when streaming is enabled")
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels != 1 {
		return fmt.Errorf("audio.channels must be 1, the backend expects mono capture")
	}
	if c.Audio.FrameInterval <= 0 {
		return fmt.Errorf("audio.frame_interval must be positive, got %f", c.Audio.FrameInterval)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
