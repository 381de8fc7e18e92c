package dtmf

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/perf/dtmf"

	"github.com/spf13/cobra"
)

// NewCommand returns the "dtmf" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dtmf",
		Short: "Manage per-country DTMF menus",
		Long: `View and edit the DTMF menu played to callers in each country.

A country without a saved override uses its built-in default. Resetting a
country removes the override.`,
	}

	cmd.AddCommand(ListCommand())
	cmd.AddCommand(ShowCommand())
	cmd.AddCommand(SetCommand())
	cmd.AddCommand(ResetCommand())

	return cmd
}

// cachedStore reads overrides through the local cache. Writes go straight
// to the source.
type cachedStore struct {
	domain.DtmfStore
	cmd  *cobra.Command
	sess *cmdutil.Session
}

func (s cachedStore) DtmfConfigs(ctx context.Context) (map[string]domain.DtmfCountryConfig, error) {
	return cmdutil.Cached(s.cmd, s.sess, cmdutil.ResourceDtmf, s.DtmfStore.DtmfConfigs)
}

// loadRegistry builds a registry for the session and loads its overrides.
func loadRegistry(cmd *cobra.Command, sess *cmdutil.Session) (*dtmf.Registry, error) {
	reg := dtmf.New(cachedStore{DtmfStore: sess.Source, cmd: cmd, sess: sess}, dtmf.WithLogger(sess.Log))
	err := cmdutil.WithSpinner(cmd, "Fetching DTMF menus...", func() error {
		return reg.Refresh(cmd.Context())
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// dtmfView is the JSON shape of one country's effective menu.
type dtmfView struct {
	domain.DtmfCountryConfig
	Customized bool `json:"customized"`
}

func viewsFor(reg *dtmf.Registry, countries []string) []dtmfView {
	views := make([]dtmfView, 0, len(countries))
	for _, c := range countries {
		cfg, ok := reg.Effective(c)
		if !ok {
			continue
		}
		views = append(views, dtmfView{DtmfCountryConfig: cfg, Customized: reg.IsCustomized(c)})
	}
	return views
}

func printTable(w io.Writer, views []dtmfView) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COUNTRY\tKEY\tTIMEOUT\tLANGUAGE\tCUSTOMIZED\tMESSAGE")
	fmt.Fprintln(tw, "-------\t---\t-------\t--------\t----------\t-------")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%ds\t%s\t%s\t%s\n",
			strings.ToUpper(v.Country),
			v.DtmfKey,
			v.MenuTimeout,
			v.Language,
			yesNo(v.Customized),
			truncate(v.Message, 48),
		)
	}
	tw.Flush()
}

func printDetail(w io.Writer, v dtmfView) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Country:\t%s\n", strings.ToUpper(v.Country))
	fmt.Fprintf(tw, "DTMF key:\t%s\n", v.DtmfKey)
	fmt.Fprintf(tw, "Menu timeout:\t%ds\n", v.MenuTimeout)
	fmt.Fprintf(tw, "Language:\t%s\n", v.Language)
	fmt.Fprintf(tw, "Customized:\t%s\n", yesNo(v.Customized))
	fmt.Fprintf(tw, "Message:\t%s\n", v.Message)
	fmt.Fprintf(tw, "Instructions:\t%s\n", v.Instructions)
	tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
