package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasew/diskcache"
	"github.com/lucasew/diskcache/internal/app"
	"github.com/lucasew/diskcache/internal/errutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "diskcache",
	Short: "Inspect and maintain disk-backed caches",
	Long: `diskcache is a CLI tool to inspect and maintain typed, disk-backed key-value caches.

Namespaces are selected with --dir, with --namespace (looked up in the catalog),
or listed in DISKCACHE_NAMESPACES as a structured field list of directories.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if viper.GetBool("verbose") {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if _, printErr := fmt.Fprintln(os.Stderr, err); printErr != nil {
			errutil.ReportError(nil, printErr, "Failed to print error to stderr")
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("dir", "", "Cache directory to operate on")
	flags.String("namespace", "", "Namespace to operate on")
	flags.String("catalog", defaultCatalogPath(), "Path of the namespace catalog (empty disables it)")
	flags.Int64("max-size", 0, "Max cache size in bytes (0 means unlimited)")
	flags.Int64("max-count", 0, "Max number of entries (0 means unlimited)")
	flags.Int64("min-free", 0, "Min free disk space in bytes to keep")
	flags.String("strategy", "lru", "Eviction strategy to use (lru, fifo)")
	flags.Bool("verbose", false, "Enable debug logging")
	bindFlags(flags)
}

func initConfig() {
	viper.SetEnvPrefix("DISKCACHE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func bindFlags(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		errutil.LogMsg(nil, viper.BindPFlag(f.Name, f), "Failed to bind flag", "flag", f.Name)
	})
}

func defaultCatalogPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "diskcache", "catalog.db")
}

func loadConfig() (app.Config, error) {
	extra, err := app.ParseNamespaceList(viper.GetString("namespaces"))
	if err != nil {
		return app.Config{}, err
	}
	catalogPath := viper.GetString("catalog")
	if catalogPath != "" {
		if err := os.MkdirAll(filepath.Dir(catalogPath), 0755); err != nil {
			return app.Config{}, fmt.Errorf("failed to create catalog dir: %w", err)
		}
	}
	return app.Config{
		Dir:          viper.GetString("dir"),
		Namespace:    viper.GetString("namespace"),
		CatalogPath:  catalogPath,
		ExtraDirs:    extra,
		SizeLimit:    viper.GetInt64("max-size"),
		CountLimit:   viper.GetInt64("max-count"),
		MinFreeSpace: viper.GetInt64("min-free"),
		Strategy:     viper.GetString("strategy"),
		WaitForScan:  true,
		Logger:       slog.Default(),
	}, nil
}

// withStore opens the configured namespaces and runs fn on the selected one.
func withStore(cmd *cobra.Command, fn func(*diskcache.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, cleanup, err := app.NewRegistry(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := app.Select(reg, cfg)
	if err != nil {
		return err
	}
	return fn(store)
}
