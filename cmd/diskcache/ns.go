package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/lucasew/diskcache/internal/catalog"
	"github.com/lucasew/diskcache/internal/errutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var nsCmd = &cobra.Command{
	Use:   "ns",
	Short: "Manage the namespace catalog",
}

var nsAddCmd = &cobra.Command{
	Use:   "add <name> <dir>",
	Short: "Register a namespace",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := filepath.Abs(args[1])
		if err != nil {
			return err
		}
		return withCatalog(func(c *catalog.Catalog) error {
			return c.Put(cmd.Context(), catalog.Namespace{
				Name:       args[0],
				Dir:        dir,
				SizeLimit:  viper.GetInt64("max-size"),
				CountLimit: viper.GetInt64("max-count"),
				Strategy:   viper.GetString("strategy"),
			})
		})
	},
}

var nsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered namespaces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(func(c *catalog.Catalog) error {
			namespaces, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDIR\tMAX SIZE\tMAX COUNT\tSTRATEGY")
			for _, ns := range namespaces {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", ns.Name, ns.Dir, ns.SizeLimit, ns.CountLimit, ns.Strategy)
			}
			return w.Flush()
		})
	},
}

var nsRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Unregister a namespace, keeping its files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(func(c *catalog.Catalog) error {
			found, err := c.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("namespace %s not found", args[0])
			}
			return nil
		})
	},
}

func withCatalog(fn func(*catalog.Catalog) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.CatalogPath == "" {
		return fmt.Errorf("no catalog configured: pass --catalog")
	}
	c, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		return err
	}
	defer func() {
		errutil.LogMsg(nil, c.Close(), "Failed to close catalog")
	}()
	return fn(c)
}

func init() {
	rootCmd.AddCommand(nsCmd)
	nsCmd.AddCommand(nsAddCmd, nsListCmd, nsRmCmd)
}
