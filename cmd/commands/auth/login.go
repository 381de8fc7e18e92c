package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/perf/providers"
	"nathanbeddoewebdev/dialctl/internal/services/auth"
	"nathanbeddoewebdev/dialctl/internal/tui"

	"golang.org/x/term"

	"github.com/spf13/cobra"
)

const verifyTimeout = 15 * time.Second

func LoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the performance API token",
		Long: `Store the performance API bearer token in the local keychain.

The token is read from --token, from an interactive prompt, or from
standard input when it is piped.

With --verify the token is checked with one authenticated status call
against the configured api-url and is only stored when it is accepted.

Examples:
  dialctl auth login
  dialctl auth login --token "$PERF_TOKEN" --verify
  echo "$PERF_TOKEN" | dialctl auth login`,
		Args:         cobra.NoArgs,
		RunE:         runLogin,
		SilenceUsage: true,
	}

	cmd.Flags().String("token", "", "API token (optional, overrides prompt)")
	cmd.Flags().Bool("verify", false, "Check the token against the API before storing it")
	addAccountFlag(cmd)

	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	account, _ := cmd.Flags().GetString("account")
	account = auth.NormalizeAccount(account)
	if account == "" {
		return errors.New("account is required")
	}

	token, _ := cmd.Flags().GetString("token")
	token = strings.TrimSpace(token)
	store := cmdutil.Store()

	verify, err := verifier(cmd)
	if err != nil {
		return err
	}

	if token == "" && cmdutil.Interactive() {
		result, err := tui.RunAuthLogin(account, store, verify)
		if err != nil {
			return err
		}
		if result == nil || !result.Saved {
			fmt.Fprintln(cmd.ErrOrStderr(), "Login cancelled.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved token for account %s\n", account)
		return nil
	}

	if token == "" {
		token, err = readToken(cmd)
		if err != nil {
			return err
		}
	}
	if token == "" {
		return errors.New("token cannot be empty")
	}
	if verify != nil {
		if err := cmdutil.WithSpinner(cmd, "Checking token...", func() error { return verify(token) }); err != nil {
			return fmt.Errorf("token rejected: %w", err)
		}
	}

	if err := store.SetToken(account, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved token for account %s\n", account)
	return nil
}

// verifier returns the token check for --verify, or nil without it.
func verifier(cmd *cobra.Command) (tui.TokenVerifier, error) {
	if v, _ := cmd.Flags().GetBool("verify"); !v {
		return nil, nil
	}
	cfg, err := cmdutil.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return func(token string) error {
		ctx, cancel := context.WithTimeout(parent, verifyTimeout)
		defer cancel()
		return providers.VerifyToken(ctx, cfg.APIURL, token)
	}, nil
}

// readToken reads a hidden token from a terminal, or the first line of
// piped input.
func readToken(cmd *cobra.Command) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Enter API token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", nil
	}
	return strings.TrimSpace(line), nil
}
