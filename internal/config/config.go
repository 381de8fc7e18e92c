// Package config handles persistent user configuration for dialctl.
//
// Configuration is stored as JSON at ~/.config/dialctl/config.json (or the
// platform-equivalent path returned by os.UserConfigDir). A handful of
// environment variables override the stored values at runtime.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const (
	appDir   = "dialctl"
	fileName = "config.json"
)

// pathOverride, when non-empty, replaces the default config file path.
// Intended for testing. Use SetPath / ResetPath to manage.
var pathOverride string

// SetPath overrides the config file path. Intended for testing.
func SetPath(p string) { pathOverride = p }

// ResetPath clears the path override, reverting to the default. Intended for testing.
func ResetPath() { pathOverride = "" }

// Defaults applied by Resolve when a value is neither stored nor set in
// the environment.
const (
	DefaultSource     = "api"
	DefaultAPIURL     = "http://localhost:8000"
	DefaultCPSCeiling = 100
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "console"

	streamPath = "/performance/ws"
)

// Environment variables that override stored values.
const (
	EnvSource    = "DIALCTL_SOURCE"
	EnvAPIURL    = "DIALCTL_API_URL"
	EnvStreamURL = "DIALCTL_STREAM_URL"
	EnvLogLevel  = "DIALCTL_LOG_LEVEL"
)

// Config holds user preferences that persist across invocations.
type Config struct {
	Source                string   `json:"source,omitempty"`
	APIURL                string   `json:"api_url,omitempty"`
	StreamURL             string   `json:"stream_url,omitempty"`
	CPSCeiling            int      `json:"cps_ceiling,omitempty"`
	LogLevel              string   `json:"log_level,omitempty"`
	LogFormat             string   `json:"log_format,omitempty"`
	StreamRestrictedHosts []string `json:"stream_restricted_hosts,omitempty"`
}

// Resolve returns a copy of c with environment overrides applied and every
// unset value filled with its default. lookup is usually os.LookupEnv.
func (c *Config) Resolve(lookup func(string) (string, bool)) Config {
	out := *c
	out.StreamRestrictedHosts = append([]string(nil), c.StreamRestrictedHosts...)
	if lookup == nil {
		lookup = os.LookupEnv
	}

	env := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	env(EnvSource, &out.Source)
	env(EnvAPIURL, &out.APIURL)
	env(EnvStreamURL, &out.StreamURL)
	env(EnvLogLevel, &out.LogLevel)

	if out.Source == "" {
		out.Source = DefaultSource
	}
	if out.APIURL == "" {
		out.APIURL = DefaultAPIURL
	}
	if out.StreamURL == "" {
		out.StreamURL = StreamURLFor(out.APIURL)
	}
	if out.CPSCeiling == 0 {
		out.CPSCeiling = DefaultCPSCeiling
	}
	if out.LogLevel == "" {
		out.LogLevel = DefaultLogLevel
	}
	if out.LogFormat == "" {
		out.LogFormat = DefaultLogFormat
	}
	return out
}

// StreamURLFor derives the metrics websocket URL from the REST base URL:
// http becomes ws, https becomes wss, and the stream path is appended.
func StreamURLFor(apiURL string) string {
	u, err := url.Parse(strings.TrimRight(apiURL, "/"))
	if err != nil || u.Host == "" {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += streamPath
	return u.String()
}

// Dir returns the directory holding the config file. Logs and other
// per-user files live next to it.
func Dir() (string, error) {
	p, err := Path()
	if err != nil {
		return "", err
	}
	return filepath.Dir(p), nil
}

// Path returns the absolute path to the config file.
// If SetPath has been called, that value is returned instead.
// Otherwise it uses os.UserConfigDir which resolves to
// ~/Library/Application Support on macOS, ~/.config on Linux, and
// %AppData% on Windows.
func Path() (string, error) {
	if pathOverride != "" {
		return pathOverride, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: unable to determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, fileName), nil
}

// Load reads the config file from disk and returns the parsed Config.
// If the file does not exist, a zero-value Config is returned (not an error).
func Load() (*Config, error) {
	return loadFrom("")
}

// loadFrom reads the config from the given path. If path is empty, the
// default Path() is used. Exported only for testing via LoadFrom.
func loadFrom(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes the config to disk, creating the parent directory if needed.
func (c *Config) Save() error {
	return c.saveTo("")
}

// saveTo writes the config to the given path. If path is empty, the
// default Path() is used.
func (c *Config) saveTo(path string) error {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: failed to marshal config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", path, err)
	}

	return nil
}

// LoadFrom reads the config from the given path. Intended for testing.
func LoadFrom(path string) (*Config, error) {
	return loadFrom(path)
}

// SaveTo writes the config to the given path. Intended for testing.
func (c *Config) SaveTo(path string) error {
	return c.saveTo(path)
}
