package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conecheck/conecheck/pkg/compare"
	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/duration"
	"github.com/conecheck/conecheck/pkg/inspect"
)

func newCompareCmd(a *app) *cobra.Command {
	var (
		asJSON           bool
		failOnRegression bool
	)
	cmd := &cobra.Command{
		Use:   "compare BEFORE AFTER",
		Short: "Compare the databases of two validation runs",
		Long: `compare loads the four status databases from BEFORE and AFTER (directories
or http(s) base URLs) and reports catalogs that changed status, appeared or
disappeared.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([]map[string][]string, 2)
			for i, base := range args {
				r, err := a.loadResults(cmd.Context(), base)
				if err != nil {
					return fmt.Errorf("%s: %w", base, err)
				}
				keys[i] = r.CatKeys()
			}
			res := compare.Compare(keys[0], keys[1])

			var err error
			if asJSON {
				err = writeJSON(cmd.OutOrStdout(), res)
			} else {
				err = res.Write(cmd.OutOrStdout())
			}
			if err != nil {
				return err
			}
			if failOnRegression && len(res.Regressed) > 0 {
				return withExit(defaults.ExitDegraded, fmt.Errorf("%d catalog(s) regressed", len(res.Regressed)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the comparison as JSON")
	cmd.Flags().BoolVar(&failOnRegression, "fail-on-regression", false, "exit 1 if any catalog got a worse status")
	return cmd
}

// loadResults reads the four databases under base.
func (a *app) loadResults(ctx context.Context, base string) (*inspect.ConeSearchResults, error) {
	cfg := a.cfg.Clone()
	cfg.BaseURL = base
	client, err := a.httpClient()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, duration.DatabaseFetch*4)
	defer cancel()
	return inspect.Load(ctx, cfg, client)
}
