package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/ucrop/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		v, commit, date := version.Info()
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, "ucrop version "+v)
		_, _ = fmt.Fprintln(out, "Commit: "+commit)
		_, _ = fmt.Fprintln(out, "Date: "+date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
