package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/dice-oracle/internal/domain"
)

// DefaultFile is read from the working directory by Load.
const DefaultFile = "config.yaml"

const envPrefix = "ORACLE_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Upstream  UpstreamConfig  `koanf:"upstream"`
	Poll      PollConfig      `koanf:"poll"`
	Model     ModelConfig     `koanf:"model"`
	Engine    EngineConfig    `koanf:"engine"`
	Journal   JournalConfig   `koanf:"journal"`
	Streams   []StreamConfig  `koanf:"streams"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

// SlogLevel parses Level, falling back to info.
func (c LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

type UpstreamConfig struct {
	BaseURL    string        `koanf:"base_url"`
	PlatformID string        `koanf:"platform_id"`
	UserAgent  string        `koanf:"user_agent"`
	Timeout    time.Duration `koanf:"timeout"`
}

type PollConfig struct {
	Interval   time.Duration `koanf:"interval"`
	RetryDelay time.Duration `koanf:"retry_delay"`
}

type ModelConfig struct {
	LearningRate float64 `koanf:"learning_rate"`
	L2           float64 `koanf:"l2"`
}

type EngineConfig struct {
	HistorySize int    `koanf:"history_size"`
	Tag         string `koanf:"tag"`
}

type JournalConfig struct {
	Type        string `koanf:"type"` // memory, sqlite, none
	Path        string `koanf:"path"`
	MemoryLimit int    `koanf:"memory_limit"`
}

// StreamConfig binds a stream name to an upstream game id and its event codes.
type StreamConfig struct {
	Name      string            `koanf:"name"`
	GID       string            `koanf:"gid"`
	Kind      domain.StreamKind `koanf:"kind"`
	IDCmd     int               `koanf:"id_cmd"`
	ResultCmd int               `koanf:"result_cmd"`
}

// DefaultStreams are the two feeds served when no streams are configured.
func DefaultStreams() []StreamConfig {
	return []StreamConfig{
		{Name: "taixiu", GID: "vgmn_100", Kind: domain.StreamSplitDelivery, IDCmd: 1008, ResultCmd: 1003},
		{Name: "taixiumd5", GID: "vgmn_101", Kind: domain.StreamSelfContained, ResultCmd: 2006},
	}
}

var defaults = map[string]any{
	"server.port":            8080,
	"log.level":              "info",
	"telemetry.service_name": "dice-oracle",
	"upstream.base_url":      "https://api-agent.gowsazhjo.net/glms/v1/notify/taixiu",
	"upstream.platform_id":   "b5",
	"upstream.user_agent":    "Mozilla/5.0 (compatible; dice-oracle/1.0)",
	"upstream.timeout":       "10s",
	"poll.interval":          "5s",
	"poll.retry_delay":       "5s",
	"model.learning_rate":    0.08,
	"model.l2":               1e-4,
	"engine.history_size":    200,
	"engine.tag":             "dice-oracle",
	"journal.type":           "memory",
	"journal.path":           "oracle.db",
	"journal.memory_limit":   1000,
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads config.yaml from the working directory, if present, then
// ORACLE_ environment overrides.
func Load() (*Config, error) {
	return LoadFile(DefaultFile)
}

// LoadFile is Load with an explicit file path. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// Environment variables override the file: ORACLE_POLL__INTERVAL=2s.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if len(cfg.Streams) == 0 {
		cfg.Streams = DefaultStreams()
	}
	cfg.Upstream.BaseURL = substituteEnvVars(cfg.Upstream.BaseURL)
	cfg.Journal.Path = substituteEnvVars(cfg.Journal.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the runtime cannot start with.
func (c *Config) Validate() error {
	var errs []error

	// Port 0 binds an ephemeral port.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("upstream.base_url is required"))
	}
	if c.Poll.Interval <= 0 || c.Poll.RetryDelay <= 0 {
		errs = append(errs, errors.New("poll.interval and poll.retry_delay must be positive"))
	}
	if c.Model.LearningRate <= 0 || c.Model.L2 < 0 {
		errs = append(errs, errors.New("model.learning_rate must be positive and model.l2 non-negative"))
	}
	switch c.Journal.Type {
	case "memory", "none":
	case "sqlite":
		if c.Journal.Path == "" {
			errs = append(errs, errors.New("journal.path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("journal.type %q must be memory, sqlite or none", c.Journal.Type))
	}

	seen := make(map[string]bool, len(c.Streams))
	for i, s := range c.Streams {
		switch {
		case s.Name == "" || s.GID == "":
			errs = append(errs, fmt.Errorf("streams[%d]: name and gid are required", i))
		case seen[s.Name]:
			errs = append(errs, fmt.Errorf("streams[%d]: duplicate name %q", i, s.Name))
		case s.Name == "history" || s.Name == "journal":
			errs = append(errs, fmt.Errorf("streams[%d]: name %q is reserved", i, s.Name))
		case !s.Kind.Valid():
			errs = append(errs, fmt.Errorf("streams[%d]: kind %q must be split or self", i, s.Kind))
		case s.ResultCmd == 0:
			errs = append(errs, fmt.Errorf("streams[%d]: result_cmd is required", i))
		case s.Kind == domain.StreamSplitDelivery && s.IDCmd == 0:
			errs = append(errs, fmt.Errorf("streams[%d]: id_cmd is required for split streams", i))
		}
		seen[s.Name] = true
	}

	return errors.Join(errs...)
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
