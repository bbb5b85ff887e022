package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gwlsn/shrinkherd"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the shrinkherd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("shrinkherd " + shrinkherd.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
