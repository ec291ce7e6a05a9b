package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/inspect"
)

func newInspectCmd(a *app) *cobra.Command {
	var base string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarise the databases of a validation run",
		Long: `inspect loads conesearch_good.json, conesearch_warn.json,
conesearch_exception.json and conesearch_error.json from a directory or an
http(s) base URL (--base, default: the configured base URL).`,
	}
	cmd.PersistentFlags().StringVar(&base, "base", "", "directory or URL holding the databases")

	load := func(ctx context.Context, cmd *cobra.Command) (*inspect.ConeSearchResults, error) {
		if cmd.Flags().Changed("base") {
			return a.loadResults(ctx, base)
		}
		return a.loadResults(ctx, a.cfg.BaseURL)
	}

	tally := &cobra.Command{
		Use:   "tally",
		Short: "Count the catalogs of each status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := load(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			return r.Tally(cmd.OutOrStdout())
		},
	}

	var ignoreNoncrit bool
	list := &cobra.Command{
		Use:       "list STATUS",
		Short:     "List the catalogs of one status with their warnings",
		Args:      cobra.ExactArgs(1),
		ValidArgs: defaults.Statuses(),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := load(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			return r.ListCats(cmd.OutOrStdout(), args[0], ignoreNoncrit)
		},
	}
	list.Flags().BoolVar(&ignoreNoncrit, "ignore-noncrit", false, "hide non-critical warnings")

	printCmd := &cobra.Command{
		Use:   "print NAME",
		Short: "Print one catalog record and the status it was filed under",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := load(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			return r.PrintCat(cmd.OutOrStdout(), args[0])
		},
	}

	keys := &cobra.Command{
		Use:   "keys",
		Short: "List catalog names by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := load(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), r.CatKeys())
		},
	}

	cmd.AddCommand(tally, list, printCmd, keys)
	return cmd
}
