package clis

import (
	"context"

	"nathanbeddoewebdev/dialctl/cmd/cmdutil"
	"nathanbeddoewebdev/dialctl/internal/perf/catalog"
	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/perf/quota"

	"github.com/spf13/cobra"
)

// loadCatalog fetches quotas and the (cached) inventory and classifies
// every number against its country's limit.
func loadCatalog(cmd *cobra.Command, sess *cmdutil.Session) (*catalog.Catalog, error) {
	ctx := cmd.Context()
	engine := quota.New(sess.Source, quota.WithLogger(sess.Log))

	var records []domain.CliRecord
	err := cmdutil.WithSpinner(cmd, "Fetching CLI pool...", func() error {
		if err := engine.Refresh(ctx); err != nil {
			return err
		}
		var err error
		records, err = cmdutil.Cached(cmd, sess, cmdutil.ResourceCLIs, func(ctx context.Context) ([]domain.CliRecord, error) {
			return sess.Source.ListCLIs(ctx)
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return catalog.New(records, engine.Limit), nil
}
