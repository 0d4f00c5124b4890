package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/ucrop/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd groups configuration helpers.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage ucrop configuration",
	Long: `Inspect and generate ucrop configuration files.

Configuration is read from ucrop.yaml in the search paths, from UCROP_*
environment variables (e.g. UCROP_CROP_QUALITY=80) and from flags, in
increasing order of precedence.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write the default configuration as YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		var filename string
		if len(args) == 1 {
			filename = args[0]
		}
		path, err := config.GenerateDefaultFile(filename, force)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(GetConfig())
		if err != nil {
			return fmt.Errorf("error encoding configuration: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show where configuration is loaded from",
	Run: func(cmd *cobra.Command, args []string) {
		GetConfigLoader().PrintConfigInfo()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configInfoCmd)
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}
