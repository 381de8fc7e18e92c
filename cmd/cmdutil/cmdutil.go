// Package cmdutil holds the helpers shared by the dialctl command groups:
// resolving the data source, output formats, confirmations, and the
// audit annotation that the root command reads back.
package cmdutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"nathanbeddoewebdev/dialctl/internal/auditlog"
	"nathanbeddoewebdev/dialctl/internal/config"
	"nathanbeddoewebdev/dialctl/internal/logging"
	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/perf/providers"
	"nathanbeddoewebdev/dialctl/internal/services/auth"
	"nathanbeddoewebdev/dialctl/internal/swrcache"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// AuditAnnotation marks a command whose runs are written to the audit log.
const AuditAnnotation = "audit"

// Audited returns the annotations for an audited command.
func Audited() map[string]string {
	return map[string]string{AuditAnnotation: "true"}
}

// IsAudited reports whether cmd carries the audit annotation.
func IsAudited(cmd *cobra.Command) bool {
	return cmd != nil && cmd.Annotations[AuditAnnotation] == "true"
}

// Tag attaches audit metadata to the command's context.
func Tag(cmd *cobra.Command, meta auditlog.Metadata) {
	cmd.SetContext(auditlog.WithMetadata(cmd.Context(), meta))
}

// Session is the resolved configuration and data source for one command
// run.
type Session struct {
	Config     config.Config
	SourceName string
	Source     domain.Source
	Store      auth.Store
	Log        zerolog.Logger
}

// storeFactory is swapped by tests so they never touch the OS keychain.
var storeFactory = auth.DefaultStore

// SetStore overrides the credential store used by every command. It
// returns a function restoring the default.
func SetStore(s auth.Store) (restore func()) {
	prev := storeFactory
	storeFactory = func() auth.Store { return s }
	return func() { storeFactory = prev }
}

// Store returns the credential store commands should use.
func Store() auth.Store { return storeFactory() }

// LoadConfig loads the stored config and applies environment overrides,
// defaults and the persistent --source / --api-url flags.
func LoadConfig(cmd *cobra.Command) (config.Config, error) {
	stored, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if f := cmd.Flags().Lookup("api-url"); f != nil && f.Changed {
		stored.APIURL = f.Value.String()
		stored.StreamURL = ""
	}
	if f := cmd.Flags().Lookup("source"); f != nil && f.Changed {
		stored.Source = f.Value.String()
	}
	return stored.Resolve(os.LookupEnv), nil
}

// NewSession resolves the config and builds the selected source.
func NewSession(cmd *cobra.Command) (*Session, error) {
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log := logging.Component("cmd").With().Str("source", cfg.Source).Logger()
	store := Store()

	src, err := providers.Get(cfg.Source, providers.Settings{
		Store:   store,
		BaseURL: cfg.APIURL,
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (registered: %s)", err, strings.Join(providers.List(), ", "))
	}

	Tag(cmd, auditlog.Metadata{Source: cfg.Source})
	return &Session{
		Config:     cfg,
		SourceName: cfg.Source,
		Source:     src,
		Store:      store,
		Log:        log,
	}, nil
}

// --- Cache ---

// cacheFactory is swapped by tests; a nil cache always fetches.
var cacheFactory = swrcache.NewDefault

// SetCache overrides the read cache used by every command. It returns a
// function restoring the default.
func SetCache(c *swrcache.Cache) (restore func()) {
	prev := cacheFactory
	cacheFactory = func() *swrcache.Cache { return c }
	return func() { cacheFactory = prev }
}

// Cache returns the read cache commands should use.
func Cache() *swrcache.Cache { return cacheFactory() }

// AddRefreshFlag registers --refresh on cmd.
func AddRefreshFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("refresh", false, "Bypass the local cache and fetch fresh data")
}

// Cached reads resource for the session's source through the cache.
// --refresh drops the cached copy first.
func Cached[T any](cmd *cobra.Command, sess *Session, resource string, fetch func(context.Context) (T, error)) (T, error) {
	c := Cache()
	key := swrcache.Key(sess.SourceName, resource)
	if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
		_ = c.Invalidate(key)
	}
	if age, ok := c.Age(key); ok {
		sess.Log.Debug().Str("key", key).Dur("age", age).Msg("serving cached read")
	}
	return swrcache.GetOrFetch(c, cmd.Context(), key, fetch)
}

// Invalidate drops the cached copies of resources for the session's
// source after a write.
func (s *Session) Invalidate(resources ...string) {
	c := Cache()
	for _, r := range resources {
		if err := c.Invalidate(swrcache.Key(s.SourceName, r)); err != nil {
			s.Log.Warn().Err(err).Str("resource", r).Msg("cache invalidation failed")
		}
	}
}

// Cached resource names.
const (
	ResourceDtmf = "dtmf"
	ResourceCLIs = "clis"
)

// --- Output ---

const (
	OutputTable = "table"
	OutputJSON  = "json"
)

// AddOutputFlag registers -o/--output on cmd.
func AddOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", OutputTable, "Output format: table or json")
}

// OutputFormat returns the validated --output value.
func OutputFormat(cmd *cobra.Command) (string, error) {
	output, _ := cmd.Flags().GetString("output")
	switch output {
	case "", OutputTable:
		return OutputTable, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unsupported output format %q", output)
}

// PrintJSON encodes v as indented JSON to the command's stdout.
func PrintJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- Interaction ---

// isTerminal is swapped by tests.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

// Interactive reports whether prompts and spinners can be shown.
func Interactive() bool { return isTerminal() }

// SetInteractive forces Interactive to v. It returns a function restoring
// terminal detection. Intended for testing.
func SetInteractive(v bool) (restore func()) {
	prev := isTerminal
	isTerminal = func() bool { return v }
	return func() { isTerminal = prev }
}

// ErrConfirmationRequired is returned by Confirm when there is no terminal
// to prompt on and --yes was not given.
var ErrConfirmationRequired = errors.New("confirmation required: re-run with --yes")

// Confirm returns the ConfirmFunc for a destructive command. --yes approves
// without asking; otherwise a huh confirm is shown on a terminal.
func Confirm(cmd *cobra.Command) domain.ConfirmFunc {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return domain.Confirmed
	}
	return func(prompt string) (bool, error) {
		if !Interactive() {
			return false, ErrConfirmationRequired
		}
		ok := false
		field := huh.NewConfirm().
			Title(prompt).
			Affirmative("Yes").
			Negative("Cancel").
			Value(&ok)
		err := huh.NewForm(huh.NewGroup(field)).
			WithAccessible(os.Getenv("ACCESSIBLE") != "").
			Run()
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return ok, err
	}
}

// AddYesFlag registers -y/--yes on cmd.
func AddYesFlag(cmd *cobra.Command) {
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
}

// WithSpinner runs fn behind a huh spinner on a terminal and directly
// otherwise.
func WithSpinner(cmd *cobra.Command, title string, fn func() error) error {
	if !Interactive() {
		return fn()
	}
	return spinner.New().
		Title(title).
		Accessible(os.Getenv("ACCESSIBLE") != "").
		Output(cmd.ErrOrStderr()).
		ActionWithErr(func(context.Context) error { return fn() }).
		Run()
}

// Cancelled reports whether err is an operator decline.
func Cancelled(err error) bool {
	return errors.Is(err, domain.ErrCancelled)
}

// ParseAge parses a retention age such as "30d" or "72h".
func ParseAge(input string) (time.Duration, error) {
	input = strings.TrimSpace(input)
	if before, ok := strings.CutSuffix(input, "d"); ok {
		days, err := strconv.Atoi(before)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", input)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be positive")
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(input)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", input)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return d, nil
}
