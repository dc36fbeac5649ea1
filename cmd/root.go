package cmd

import (
	"github.com/spf13/cobra"

	"awsinventory/cmd/collect"
	initCmd "awsinventory/cmd/init"
	"awsinventory/cmd/list"
	"awsinventory/cmd/version"
	"awsinventory/internal/config"
	"awsinventory/internal/logging"
)

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "awsinventory",
		Short: "awsinventory - AWS resource inventory tool",
		Long: `awsinventory collects an inventory of AWS resources across services and
regions into a spreadsheet, with a per-region coverage report of what
could and could not be collected.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip config initialization for commands that don't touch AWS
			if skipConfig(cmd) {
				return nil
			}
			return setup(cmd, configFile)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringP("profile", "p", "default", "AWS profile to use (supports SSO profiles)")
	rootCmd.PersistentFlags().Int("max-workers", 8, "Maximum number of units of work collected concurrently")
	rootCmd.PersistentFlags().String("log-format", "text", "Log output format (text or json)")
	rootCmd.PersistentFlags().String("log-level", "INFO", "Set logging level (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(collect.NewCollectCmd())
	rootCmd.AddCommand(list.NewListCmd())
	rootCmd.AddCommand(initCmd.NewInitCmd())
	rootCmd.AddCommand(version.NewVersionCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

func skipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "help", "completion", "init":
			return true
		}
	}
	return false
}

// setup loads the configuration and configures logging for cmd
func setup(cmd *cobra.Command, configFile string) error {
	if err := config.InitConfig(false, cmd); err != nil {
		return err
	}
	if configFile != "" {
		if err := config.SetConfigFile(configFile); err != nil {
			return err
		}
	}
	if err := config.BindFlags(cmd); err != nil {
		return err
	}
	if err := config.Load(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(config.Config.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(config.Config.LogFormat)
	if err != nil {
		return err
	}
	logging.Configure(logging.LogConfig{
		Level:  level,
		Format: format,
	})

	config.LogConfigurationSources(true, cmd)
	return nil
}
