package authflow

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/authflow/deeplink"
	"github.com/MrEthical07/authflow/internal/logging"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides read by [LoadConfig].
const EnvPrefix = "AUTHFLOW_"

const maxConfigFileSize = 1 << 20

// Config holds host-wide flow settings. Build a Host from DefaultConfig and
// override fields, or load one with LoadConfig.
type Config struct {
	Flow     FlowConfig     `koanf:"flow"`
	Password PasswordConfig `koanf:"password"`
	Code     CodeConfig     `koanf:"code"`
	Profile  ProfileConfig  `koanf:"profile"`
	Deeplink DeeplinkConfig `koanf:"deeplink"`
	Audit    AuditConfig    `koanf:"audit"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Logging  LoggingConfig  `koanf:"logging"`
}

/*
====================================
FLOW CONFIG
====================================
*/

// FlowConfig selects the identifier kinds a host accepts.
type FlowConfig struct {
	EmailEnabled  bool     `koanf:"email_enabled"`
	PhoneEnabled  bool     `koanf:"phone_enabled"`
	DefaultScopes []string `koanf:"default_scopes"`
	Animated      bool     `koanf:"animated"`
	RefreshTerms  bool     `koanf:"refresh_terms"`
}

// PasswordConfig controls the create-password step.
type PasswordConfig struct {
	MinLength int `koanf:"min_length"`
}

// CodeConfig controls one-time code entry and resend throttling.
type CodeConfig struct {
	Length         int           `koanf:"length"`
	ResendInterval time.Duration `koanf:"resend_interval"`
	ResendBurst    int           `koanf:"resend_burst"`
}

// ProfileConfig controls the profile step of a sign-up.
type ProfileConfig struct {
	BirthDateLayout string `koanf:"birth_date_layout"`
	MinimumAge      int    `koanf:"minimum_age"`
}

// DeeplinkConfig is the redirect scheme recognized by OpenURL.
type DeeplinkConfig struct {
	Scheme string `koanf:"scheme"`
	Host   string `koanf:"host"`
}

// ClientConfig converts d for the deeplink parser.
func (d DeeplinkConfig) ClientConfig() deeplink.ClientConfig {
	return deeplink.ClientConfig{Scheme: d.Scheme, Host: d.Host}
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `koanf:"enabled"`
	BufferSize int  `koanf:"buffer_size"`
	DropIfFull bool `koanf:"drop_if_full"`
}

// MetricsConfig enables in-process counters and histograms.
type MetricsConfig struct {
	Enabled                 bool `koanf:"enabled"`
	EnableLatencyHistograms bool `koanf:"enable_latency_histograms"`
}

// LoggingConfig builds the zap logger when no logger is injected.
type LoggingConfig struct {
	Level       string `koanf:"level"`
	Format      string `koanf:"format"`
	Development bool   `koanf:"development"`
}

func (l LoggingConfig) internal() logging.Config {
	return logging.Config{Level: l.Level, Format: l.Format, Development: l.Development}
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the settings used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Flow: FlowConfig{
			EmailEnabled: true,
			PhoneEnabled: false,
			Animated:     true,
			RefreshTerms: true,
		},
		Password: PasswordConfig{
			MinLength: 8,
		},
		Code: CodeConfig{
			Length:         6,
			ResendInterval: 30 * time.Second,
			ResendBurst:    1,
		},
		Profile: ProfileConfig{
			BirthDateLayout: "2006-01-02",
			MinimumAge:      13,
		},
		Deeplink: DeeplinkConfig{
			Scheme: "authflow",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Flow.DefaultScopes = append([]string(nil), cfg.Flow.DefaultScopes...)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if !c.Flow.EmailEnabled && !c.Flow.PhoneEnabled {
		return errors.New("Flow requires at least one of EmailEnabled or PhoneEnabled")
	}

	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	if c.Code.Length < 4 || c.Code.Length > 10 {
		return errors.New("Code Length must be between 4 and 10")
	}
	if c.Code.ResendInterval < 0 {
		return errors.New("Code ResendInterval must be >= 0")
	}
	if c.Code.ResendBurst < 1 {
		return errors.New("Code ResendBurst must be >= 1")
	}

	if strings.TrimSpace(c.Profile.BirthDateLayout) == "" {
		return errors.New("Profile BirthDateLayout must not be empty")
	}
	if c.Profile.MinimumAge < 0 {
		return errors.New("Profile MinimumAge must be >= 0")
	}

	if strings.TrimSpace(c.Deeplink.Scheme) == "" {
		return errors.New("Deeplink Scheme must not be empty")
	}
	if strings.ContainsAny(c.Deeplink.Scheme, ":/") {
		return errors.New("Deeplink Scheme must not contain ':' or '/'")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Enabled")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Enabled")
	}

	if err := c.Logging.internal().Validate(); err != nil {
		return fmt.Errorf("Logging: %w", err)
	}
	return nil
}

/*
====================================
LOADING
====================================
*/

// LoadConfig reads a YAML file over DefaultConfig, then applies AUTHFLOW_
// environment overrides (AUTHFLOW_CODE_RESEND_INTERVAL -> code.resend_interval).
// An empty path skips the file. The result is validated.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes", info.Size())
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// envKey splits on the first underscore only so field names keep theirs.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}
