package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/lookingglass/internal/diagnostics"
	"gopkg.in/yaml.v3"
)

const (
	EnvPort              = "PORT"
	EnvAdminPassword     = "ADMIN_PASSWORD"
	EnvPanelURL          = "PANEL_URL"
	EnvAgentToken        = "AGENT_TOKEN"
	EnvAgentStatus       = "AGENT_STATUS"
	EnvHeartbeatInterval = "HEARTBEAT_INTERVAL_MS"

	DefaultAddr              = ":3001"
	DefaultDiagnosticTimeout = 15 * time.Second
	DefaultMaxOutputBytes    = 1 << 20
	DefaultHeartbeatInterval = 30 * time.Second
	MinHeartbeatInterval     = 5 * time.Second
	MaxHeartbeatInterval     = 10 * time.Minute
)

// FileConfig is the on-disk shape shared by the TOML and YAML formats.
type FileConfig struct {
	Addr           string          `toml:"addr" yaml:"addr"`
	CorsOrigins    []string        `toml:"cors_origins" yaml:"cors_origins"`
	TrustedProxies []string        `toml:"trusted_proxies" yaml:"trusted_proxies"`
	FrontendDir    string          `toml:"frontend_dir" yaml:"frontend_dir"`
	AdminPassword  string          `toml:"admin_password" yaml:"admin_password"`
	AgentImage     string          `toml:"agent_image" yaml:"agent_image"`
	Diagnostics    DiagnosticsFile `toml:"diagnostics" yaml:"diagnostics"`
	Agent          AgentFile       `toml:"agent" yaml:"agent"`
}

type DiagnosticsFile struct {
	Timeout        string            `toml:"timeout" yaml:"timeout"`
	MaxOutputBytes int               `toml:"max_output_bytes" yaml:"max_output_bytes"`
	Tools          map[string]string `toml:"tools" yaml:"tools"`
}

type AgentFile struct {
	PanelURL          string `toml:"panel_url" yaml:"panel_url"`
	Token             string `toml:"token" yaml:"token"`
	Status            string `toml:"status" yaml:"status"`
	HeartbeatInterval string `toml:"heartbeat_interval" yaml:"heartbeat_interval"`
}

// Config is the resolved runtime configuration.
type Config struct {
	Addr           string
	CorsOrigins    []string
	TrustedProxies []string
	FrontendDir    string
	AdminPassword  string
	AgentImage     string
	Diagnostics    DiagnosticsConfig
	Agent          AgentConfig
}

type DiagnosticsConfig struct {
	Timeout        time.Duration
	MaxOutputBytes int
	Tools          map[diagnostics.Kind]string
}

type AgentConfig struct {
	PanelURL          string
	Token             string
	Status            string
	HeartbeatInterval time.Duration
}

// HeartbeatEnabled reports whether this process should report to a panel.
func (c AgentConfig) HeartbeatEnabled() bool {
	return strings.TrimSpace(c.PanelURL) != "" && strings.TrimSpace(c.Token) != ""
}

// DefaultFile returns the file-level defaults.
func DefaultFile() FileConfig {
	return FileConfig{
		Addr:           DefaultAddr,
		CorsOrigins:    []string{"*"},
		TrustedProxies: []string{"127.0.0.1", "::1"},
		Diagnostics: DiagnosticsFile{
			Timeout:        DefaultDiagnosticTimeout.String(),
			MaxOutputBytes: DefaultMaxOutputBytes,
			Tools:          map[string]string{},
		},
		Agent: AgentFile{
			Status:            "online",
			HeartbeatInterval: DefaultHeartbeatInterval.String(),
		},
	}
}

// Default returns the resolved defaults with no file and no environment.
func Default() Config {
	cfg, err := resolve(DefaultFile())
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load reads path (TOML or YAML by extension; empty path means defaults
// only), applies environment overrides, and validates the result.
func Load(path string) (Config, error) {
	raw := DefaultFile()
	if strings.TrimSpace(path) != "" {
		if err := decodeFile(path, &raw); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&raw, os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg, err := resolve(raw)
	if err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", displayPath(path), err)
	}
	return cfg, nil
}

func decodeFile(path string, out *FileConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(out); err != nil {
			return fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	default:
		meta, err := toml.Decode(string(data), out)
		if err != nil {
			return fmt.Errorf("config parse failed (%s): %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, key := range undecoded {
				keys = append(keys, key.String())
			}
			sort.Strings(keys)
			return fmt.Errorf("config parse failed (%s): unknown keys %s", path, strings.Join(keys, ", "))
		}
	}
	return nil
}

func applyEnv(raw *FileConfig, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPort); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("parse %s: invalid port %q", EnvPort, v)
		}
		raw.Addr = ":" + strconv.Itoa(port)
	}
	if v, ok := lookup(EnvAdminPassword); ok {
		raw.AdminPassword = v
	}
	if v, ok := lookup(EnvPanelURL); ok {
		raw.Agent.PanelURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvAgentToken); ok {
		raw.Agent.Token = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvAgentStatus); ok && strings.TrimSpace(v) != "" {
		raw.Agent.Status = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvHeartbeatInterval); ok && strings.TrimSpace(v) != "" {
		// Unparseable or zero values fall back to the default.
		ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || ms == 0 {
			raw.Agent.HeartbeatInterval = DefaultHeartbeatInterval.String()
		} else {
			raw.Agent.HeartbeatInterval = (time.Duration(ms) * time.Millisecond).String()
		}
	}
	return nil
}

func resolve(raw FileConfig) (Config, error) {
	cfg := Config{
		Addr:           strings.TrimSpace(raw.Addr),
		CorsOrigins:    normalizeList(raw.CorsOrigins),
		TrustedProxies: normalizeList(raw.TrustedProxies),
		FrontendDir:    strings.TrimSpace(raw.FrontendDir),
		AdminPassword:  raw.AdminPassword,
		AgentImage:     strings.TrimSpace(raw.AgentImage),
		Diagnostics: DiagnosticsConfig{
			MaxOutputBytes: raw.Diagnostics.MaxOutputBytes,
			Tools:          make(map[diagnostics.Kind]string),
		},
		Agent: AgentConfig{
			PanelURL: strings.TrimSpace(raw.Agent.PanelURL),
			Token:    strings.TrimSpace(raw.Agent.Token),
			Status:   strings.TrimSpace(raw.Agent.Status),
		},
	}
	if cfg.Addr == "" {
		return Config{}, fmt.Errorf("addr is required")
	}
	if cfg.Agent.Status == "" {
		cfg.Agent.Status = "online"
	}

	timeout, err := parseDuration("diagnostics.timeout", raw.Diagnostics.Timeout, DefaultDiagnosticTimeout)
	if err != nil {
		return Config{}, err
	}
	if timeout <= 0 {
		return Config{}, fmt.Errorf("diagnostics.timeout must be positive")
	}
	cfg.Diagnostics.Timeout = timeout
	if cfg.Diagnostics.MaxOutputBytes <= 0 {
		return Config{}, fmt.Errorf("diagnostics.max_output_bytes must be positive")
	}

	for name, path := range raw.Diagnostics.Tools {
		kind, err := diagnostics.ParseKind(strings.TrimSpace(name))
		if err != nil {
			return Config{}, fmt.Errorf("diagnostics.tools: unknown diagnostic %q", name)
		}
		if path = strings.TrimSpace(path); path != "" {
			cfg.Diagnostics.Tools[kind] = path
		}
	}

	interval, err := parseDuration("agent.heartbeat_interval", raw.Agent.HeartbeatInterval, DefaultHeartbeatInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.Agent.HeartbeatInterval = ClampHeartbeatInterval(interval)
	return cfg, nil
}

// ClampHeartbeatInterval bounds d to [MinHeartbeatInterval,
// MaxHeartbeatInterval]; a zero interval means the default.
func ClampHeartbeatInterval(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultHeartbeatInterval
	case d < MinHeartbeatInterval:
		return MinHeartbeatInterval
	case d > MaxHeartbeatInterval:
		return MaxHeartbeatInterval
	default:
		return d
	}
}

func parseDuration(key, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		if v := strings.TrimSpace(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func displayPath(path string) string {
	if strings.TrimSpace(path) == "" {
		return "defaults"
	}
	return path
}
