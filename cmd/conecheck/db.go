package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conecheck/conecheck/pkg/duration"
	"github.com/conecheck/conecheck/pkg/jsonutil"
	"github.com/conecheck/conecheck/pkg/vos"
)

func newDBCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Work with catalog database files",
		Long: `db reads and writes the JSON catalog databases used by validate and
inspect. FILE arguments may be local paths or http(s) URLs; OUT arguments
are always local paths.`,
	}
	cmd.AddCommand(
		newDBListCmd(a),
		newDBShowCmd(a),
		newDBDeleteCmd(),
		newDBMergeCmd(a),
		newDBImportCmd(a),
	)
	return cmd
}

func (a *app) openDB(ctx context.Context, location string) (*vos.Database, error) {
	client, err := a.httpClient()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, duration.DatabaseFetch)
	defer cancel()
	return vos.Open(ctx, client, location)
}

func writeJSON(w io.Writer, v any) error {
	return jsonutil.WriteIndent(w, v, jsonutil.DatabaseIndent)
}

func newDBListCmd(a *app) *cobra.Command {
	var (
		pattern string
		byURL   bool
	)
	cmd := &cobra.Command{
		Use:   "list FILE",
		Short: "List catalog names (or access URLs) in a database",
		Example: `  conecheck db list conesearch_good.json --pattern 'SDSS*'
  conecheck db list conesearch_warn.json --by-url --pattern '**/vizier/**'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			list := db.ListCatalogs
			if byURL {
				list = db.ListCatalogsByURL
			}
			names, err := list(pattern, true)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, n := range names {
				fmt.Fprintln(w, n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", `glob filter ("*" stops at "/", "**" does not)`)
	cmd.Flags().BoolVar(&byURL, "by-url", false, "list and match access URLs instead of names")
	return cmd
}

func newDBShowCmd(a *app) *cobra.Command {
	var byURL bool
	cmd := &cobra.Command{
		Use:   "show FILE NAME",
		Short: "Print one catalog record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var cat vos.Catalog
			if byURL {
				_, cat, err = db.GetCatalogByURL(args[1])
			} else {
				cat, err = db.GetCatalog(args[1])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cat.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&byURL, "by-url", false, "NAME is an access URL")
	return cmd
}

func newDBDeleteCmd() *cobra.Command {
	var byURL bool
	cmd := &cobra.Command{
		Use:   "delete FILE NAME",
		Short: "Remove a catalog from a local database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := vos.FromJSON(args[0])
			if err != nil {
				return err
			}
			if byURL {
				err = db.DeleteCatalogByURL(args[1])
			} else {
				err = db.DeleteCatalog(args[1])
			}
			if err != nil {
				return err
			}
			return db.ToJSON(args[0], true)
		},
	}
	cmd.Flags().BoolVar(&byURL, "by-url", false, "remove every catalog with this access URL")
	return cmd
}

func newDBMergeCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "merge OUT IN...",
		Short: "Merge databases into one; names and access URLs must not clash",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			merged := vos.CreateEmpty()
			for _, in := range args[1:] {
				db, err := a.openDB(cmd.Context(), in)
				if err != nil {
					return err
				}
				if merged, err = merged.Merge(db); err != nil {
					return fmt.Errorf("merge %s: %w", in, err)
				}
			}
			if err := merged.ToJSON(args[0], force); err != nil {
				return err
			}
			a.logger.Info("merged databases", "out", args[0], "catalogs", merged.Len())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite OUT")
	return cmd
}

func newDBImportCmd(a *app) *cobra.Command {
	var (
		registry string
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "import OUT",
		Short: "Convert a Cone Search registry listing into a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			location := a.cfg.RegistryURL
			if cmd.Flags().Changed("registry") {
				location = registry
			}
			client, err := a.httpClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), duration.RegistryFetch)
			defer cancel()
			db, err := vos.FromRegistry(ctx, client, location, a.logger)
			if err != nil {
				return err
			}
			if err := db.ToJSON(args[0], force); err != nil {
				return err
			}
			a.logger.Info("imported registry", "out", args[0], "catalogs", db.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&registry, "registry", "", "registry URL or VOTable file (default: configured registry)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite OUT")
	return cmd
}
