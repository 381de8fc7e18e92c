package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"nathanbeddoewebdev/dialctl/internal/util"

	"github.com/rs/zerolog"
)

// KeySpec describes a single configuration key.
type KeySpec struct {
	// Name is the CLI-facing key name (e.g. "api-url").
	Name string

	// Description is a short human-readable explanation shown in help text.
	Description string

	// Get returns the current value for this key from a loaded Config.
	Get func(cfg *Config) string

	// Set applies a value for this key to the given Config (in memory only;
	// the caller is responsible for calling Save).
	Set func(cfg *Config, value string)

	// Validate rejects malformed values before Set. Nil accepts anything.
	Validate func(value string) error

	// Env names the environment variable that overrides the stored value,
	// if any.
	Env string
}

// Keys is the authoritative list of all supported configuration keys.
// To add a new option: add a field to Config and append a KeySpec here.
var Keys = []KeySpec{
	{
		Name:        "source",
		Description: "Data source: api (live backend) or static (offline demo data)",
		Get:         func(cfg *Config) string { return cfg.Source },
		Set:         func(cfg *Config, v string) { cfg.Source = v },
		Env:         EnvSource,
	},
	{
		Name:        "api-url",
		Description: "Base URL of the performance REST API",
		Get:         func(cfg *Config) string { return cfg.APIURL },
		Set:         func(cfg *Config, v string) { cfg.APIURL = v },
		Validate:    validateURL("http", "https"),
		Env:         EnvAPIURL,
	},
	{
		Name:        "stream-url",
		Description: "Websocket URL of the live metrics stream (derived from api-url when unset)",
		Get:         func(cfg *Config) string { return cfg.StreamURL },
		Set:         func(cfg *Config, v string) { cfg.StreamURL = v },
		Validate:    validateURL("ws", "wss"),
		Env:         EnvStreamURL,
	},
	{
		Name:        "cps-ceiling",
		Description: "Maximum target CPS accepted for a load test (50 or 100)",
		Get: func(cfg *Config) string {
			if cfg.CPSCeiling == 0 {
				return ""
			}
			return strconv.Itoa(cfg.CPSCeiling)
		},
		Set: func(cfg *Config, v string) {
			n, _ := strconv.Atoi(v)
			cfg.CPSCeiling = n
		},
		Validate: validateCeiling,
	},
	{
		Name:        "log-level",
		Description: "Log level: trace, debug, info, warn, error",
		Get:         func(cfg *Config) string { return cfg.LogLevel },
		Set:         func(cfg *Config, v string) { cfg.LogLevel = v },
		Validate:    validateLogLevel,
		Env:         EnvLogLevel,
	},
	{
		Name:        "log-format",
		Description: "Log format: console or json",
		Get:         func(cfg *Config) string { return cfg.LogFormat },
		Set:         func(cfg *Config, v string) { cfg.LogFormat = v },
		Validate:    validateOneOf("console", "json"),
	},
	{
		Name:        "stream-restricted-hosts",
		Description: "Comma-separated host patterns where the metrics stream stays off",
		Get:         func(cfg *Config) string { return strings.Join(cfg.StreamRestrictedHosts, ",") },
		Set: func(cfg *Config, v string) {
			cfg.StreamRestrictedHosts = util.SplitList(v)
		},
	},
}

// AllowedCPSCeilings are the accepted cps-ceiling values.
var AllowedCPSCeilings = []int{50, 100}

func validateCeiling(v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("cps-ceiling must be a number, got %q", v)
	}
	for _, allowed := range AllowedCPSCeilings {
		if n == allowed {
			return nil
		}
	}
	return fmt.Errorf("cps-ceiling must be one of %v, got %d", AllowedCPSCeilings, n)
}

func validateLogLevel(v string) error {
	if _, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(v))); err != nil || strings.TrimSpace(v) == "" {
		return fmt.Errorf("invalid log level %q", v)
	}
	return nil
}

func validateOneOf(values ...string) func(string) error {
	return func(v string) error {
		for _, allowed := range values {
			if strings.EqualFold(strings.TrimSpace(v), allowed) {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s, got %q", strings.Join(values, ", "), v)
	}
}

func validateURL(schemes ...string) func(string) error {
	return func(v string) error {
		u, err := url.Parse(strings.TrimSpace(v))
		if err != nil || u.Host == "" {
			return fmt.Errorf("invalid URL %q", v)
		}
		for _, s := range schemes {
			if u.Scheme == s {
				return nil
			}
		}
		return fmt.Errorf("URL scheme must be one of %s, got %q", strings.Join(schemes, ", "), u.Scheme)
	}
}

// Lookup returns the KeySpec for the given name, or nil if not found.
// The name is matched case-insensitively after trimming whitespace.
func Lookup(name string) *KeySpec {
	normalized := util.NormalizeKey(name)
	for i := range Keys {
		if Keys[i].Name == normalized {
			return &Keys[i]
		}
	}
	return nil
}

// KeyNames returns the names of all registered keys.
func KeyNames() []string {
	names := make([]string, len(Keys))
	for i, k := range Keys {
		names[i] = k.Name
	}
	return names
}

// KeysHelp builds a formatted block listing all available keys and their
// descriptions, suitable for inclusion in Cobra Long help text.
func KeysHelp() string {
	if len(Keys) == 0 {
		return ""
	}

	// Find the longest key name for alignment.
	maxLen := 0
	for _, k := range Keys {
		if len(k.Name) > maxLen {
			maxLen = len(k.Name)
		}
	}

	var b strings.Builder
	b.WriteString("Available keys:\n")
	for _, k := range Keys {
		fmt.Fprintf(&b, "  %-*s   %s\n", maxLen, k.Name, k.Description)
	}
	return b.String()
}
