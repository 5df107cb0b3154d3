package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/lucasew/diskcache"
	"github.com/lucasew/diskcache/internal/app"
	"github.com/lucasew/diskcache/internal/errutil"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every entry of the namespace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(s *diskcache.Store) error {
			if !s.Clear() {
				return fmt.Errorf("failed to clear %s", s.Dir())
			}
			return nil
		})
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired and broken entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(s *diskcache.Store) error {
			var bar *progressbar.ProgressBar
			removed := s.ClearDueProgress(func(total int) {
				if bar == nil {
					bar = progressbar.NewOptions(
						total,
						progressbar.OptionSetWriter(os.Stderr),
						progressbar.OptionSetDescription("sweeping"),
						progressbar.OptionSetWidth(10),
						progressbar.OptionThrottle(65*time.Millisecond),
						progressbar.OptionOnCompletion(func() {
							if _, err := fmt.Fprint(os.Stderr, "\n"); err != nil {
								errutil.LogMsg(nil, err, "Failed to print newline to stderr")
							}
						}),
					)
				}
				errutil.LogMsg(nil, bar.Add(1), "Failed to update progress bar")
			})
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
			return err
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show size and entry count of every namespace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, cleanup, err := app.NewRegistry(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAMESPACE\tDIR\tENTRIES\tBYTES")
		for _, name := range reg.Names() {
			s, _ := reg.Get(name)
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", name, s.Dir(), s.Count(), s.Size())
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(clearCmd, sweepCmd, statsCmd)
}
