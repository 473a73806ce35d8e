package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string            `yaml:"runtime_name"`
	Environment string            `yaml:"environment"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Bus         BusConfig         `yaml:"bus"`
	Node        NodeConfig        `yaml:"node"`
	Audio       AudioConfig       `yaml:"audio"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	History     HistoryConfig     `yaml:"history"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type NodeConfig struct {
	ID                string `yaml:"id"`
	HeartbeatInterval int    `yaml:"heartbeat_interval_ms"`
	HeartbeatTimeout  int    `yaml:"heartbeat_timeout_ms"`
}

// AudioConfig describes the capture format and the capture backend.
// The WAV header and the device open parameters both derive from it.
type AudioConfig struct {
	Mode            string `yaml:"mode"` // portaudio, exec, mock
	Command         string `yaml:"command"`
	Device          string `yaml:"device"`
	DumpDir         string `yaml:"dump_dir"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	BitDepth        int    `yaml:"bit_depth"`
	FrameDurationMS int    `yaml:"frame_duration_ms"`
}

type TranscriberConfig struct {
	Endpoint       string  `yaml:"endpoint"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	ResponseFormat string  `yaml:"response_format"`
	Language       string  `yaml:"language"`
	TimeoutMS      int     `yaml:"timeout_ms"`
}

type HistoryConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

func Default() Config {
	return Config{
		RuntimeName: "murmur-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8090,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9092",
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Node: NodeConfig{
			ID:                "murmur-node-1",
			HeartbeatInterval: 2000,
			HeartbeatTimeout:  6000,
		},
		Audio: AudioConfig{
			Mode:            "portaudio",
			SampleRate:      16000,
			Channels:        1,
			BitDepth:        16,
			FrameDurationMS: 20,
		},
		Transcriber: TranscriberConfig{
			Endpoint:       "https://api.openai.com/v1/audio/transcriptions",
			Model:          "whisper-1",
			Temperature:    0,
			ResponseFormat: "json",
			Language:       "en",
			TimeoutMS:      30000,
		},
		History: HistoryConfig{
			Path:          "./data/murmur-history.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "MURMUR_RUNTIME_NAME")
	overrideString(&cfg.Environment, "MURMUR_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "MURMUR_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "MURMUR_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "MURMUR_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "MURMUR_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "MURMUR_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "MURMUR_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "MURMUR_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "MURMUR_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "MURMUR_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "MURMUR_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "MURMUR_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "MURMUR_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "MURMUR_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "MURMUR_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "MURMUR_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "MURMUR_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Node.ID, "MURMUR_NODE_ID")
	overrideInt(&cfg.Node.HeartbeatInterval, "MURMUR_NODE_HEARTBEAT_INTERVAL_MS")
	overrideInt(&cfg.Node.HeartbeatTimeout, "MURMUR_NODE_HEARTBEAT_TIMEOUT_MS")
	overrideString(&cfg.Audio.Mode, "MURMUR_AUDIO_MODE")
	overrideString(&cfg.Audio.Command, "MURMUR_AUDIO_COMMAND")
	overrideString(&cfg.Audio.Device, "MURMUR_AUDIO_DEVICE")
	overrideString(&cfg.Audio.DumpDir, "MURMUR_AUDIO_DUMP_DIR")
	overrideInt(&cfg.Audio.SampleRate, "MURMUR_AUDIO_SAMPLE_RATE")
	overrideInt(&cfg.Audio.Channels, "MURMUR_AUDIO_CHANNELS")
	overrideInt(&cfg.Audio.BitDepth, "MURMUR_AUDIO_BIT_DEPTH")
	overrideInt(&cfg.Audio.FrameDurationMS, "MURMUR_AUDIO_FRAME_DURATION_MS")
	overrideString(&cfg.Transcriber.Endpoint, "MURMUR_TRANSCRIBER_ENDPOINT")
	overrideString(&cfg.Transcriber.APIKey, "MURMUR_TRANSCRIBER_API_KEY")
	overrideString(&cfg.Transcriber.Model, "MURMUR_TRANSCRIBER_MODEL")
	overrideFloat(&cfg.Transcriber.Temperature, "MURMUR_TRANSCRIBER_TEMPERATURE")
	overrideString(&cfg.Transcriber.ResponseFormat, "MURMUR_TRANSCRIBER_RESPONSE_FORMAT")
	overrideString(&cfg.Transcriber.Language, "MURMUR_TRANSCRIBER_LANGUAGE")
	overrideInt(&cfg.Transcriber.TimeoutMS, "MURMUR_TRANSCRIBER_TIMEOUT_MS")
	overrideString(&cfg.History.Path, "MURMUR_HISTORY_PATH")
	overrideString(&cfg.History.RetentionMode, "MURMUR_HISTORY_RETENTION_MODE")
	overrideInt(&cfg.History.RetentionDays, "MURMUR_HISTORY_RETENTION_DAYS")
	overrideInt(&cfg.History.MaxSessions, "MURMUR_HISTORY_MAX_SESSIONS")
	overrideBool(&cfg.History.VacuumOnStart, "MURMUR_HISTORY_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
		if cfg.Node.ID == "" {
			return errors.New("node.id must not be empty")
		}
		if cfg.Node.HeartbeatInterval <= 0 {
			return errors.New("node.heartbeat_interval_ms must be positive")
		}
		if cfg.Node.HeartbeatTimeout <= cfg.Node.HeartbeatInterval {
			return errors.New("node.heartbeat_timeout_ms must be greater than heartbeat interval")
		}
	}
	switch cfg.Audio.Mode {
	case "portaudio", "exec", "mock":
	default:
		return errors.New("audio.mode must be one of portaudio|exec|mock")
	}
	if cfg.Audio.Mode == "exec" && cfg.Audio.Command == "" {
		return errors.New("audio.command must be set when mode=exec")
	}
	if cfg.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if cfg.Audio.Channels <= 0 {
		return errors.New("audio.channels must be positive")
	}
	if cfg.Audio.BitDepth != 16 {
		return errors.New("audio.bit_depth must be 16")
	}
	if cfg.Audio.FrameDurationMS <= 0 {
		return errors.New("audio.frame_duration_ms must be positive")
	}
	if cfg.Transcriber.Endpoint == "" {
		return errors.New("transcriber.endpoint must not be empty")
	}
	if cfg.Transcriber.Model == "" {
		return errors.New("transcriber.model must not be empty")
	}
	if cfg.Transcriber.Temperature < 0 || cfg.Transcriber.Temperature > 1 {
		return errors.New("transcriber.temperature must be between 0 and 1")
	}
	if cfg.Transcriber.TimeoutMS <= 0 {
		return errors.New("transcriber.timeout_ms must be positive")
	}
	if cfg.History.Path == "" {
		return errors.New("history.path must not be empty")
	}
	switch cfg.History.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("history.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}
