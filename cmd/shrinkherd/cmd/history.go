package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gwlsn/shrinkherd/internal/config"
	"github.com/gwlsn/shrinkherd/internal/store"
	"github.com/gwlsn/shrinkherd/internal/util"
)

var historyLimit int

// historyCmd lists recent encode outcomes from the journal.
var historyCmd = &cobra.Command{
	Use:   "history [video-root]",
	Short: "Show recent encode outcomes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		if len(args) == 1 {
			cfg.VideoRoot = args[0]
		}
		cfg.Normalize()

		st, err := store.Open(cfg.OutputRoot())
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.Recent(historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No history recorded yet.")
			return nil
		}

		w := os.Stdout
		for _, e := range entries {
			fmt.Fprintf(w, "%s  %-9s  %s", e.FinishedAt.Local().Format("2006-01-02 15:04"), e.Status, e.Source)
			if e.Status == "completed" && e.OrigSize > 0 {
				fmt.Fprintf(w, "  (%s -> %s)", util.FormatBytes(e.OrigSize), util.FormatBytes(e.OutputSize))
			}
			if e.Message != "" {
				fmt.Fprintf(w, "  %s", e.Message)
			}
			fmt.Fprintln(w)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "show at most this many entries")
	rootCmd.AddCommand(historyCmd)
}
