package cmd

import (
	"fmt"

	"github.com/newhook/tidybot/internal/config"
	"github.com/newhook/tidybot/internal/report"
	"github.com/spf13/cobra"
)

var flagConfigForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the tidybot configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a documented config file with the current settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		if err := cfg.SaveDocumentedConfig(path, flagConfigForce); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.Success("Wrote "+path))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := cfg.GenerateDocumentedConfig()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), content)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&flagConfigForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func configPath() (string, error) {
	if flagConfig != "" {
		return flagConfig, nil
	}
	dir, err := stateRoot()
	if err != nil {
		return "", err
	}
	return config.DefaultPath(dir), nil
}
