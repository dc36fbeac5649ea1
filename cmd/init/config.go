package init

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"awsinventory/internal/config"
)

// NewConfigCmd creates the config subcommand
func NewConfigCmd() *cobra.Command {
	var force, home bool
	var output string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create a default config.yaml file",
		Long: `Create a default config.yaml file with recommended settings.

The file will be created in the current directory by default.
You can specify a different location using the --output flag, or
use --home to write ~/.awsinventory/config.yaml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if home {
				if output != "" {
					return fmt.Errorf("--home and --output are mutually exclusive")
				}
				path, err := config.HomeConfigPath()
				if err != nil {
					return err
				}
				output = path
			}
			if output == "" {
				output = "config.yaml"
			}

			absPath, err := filepath.Abs(output)
			if err != nil {
				return fmt.Errorf("failed to resolve absolute path: %w", err)
			}

			if err := config.WriteConfig(absPath, force); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", absPath)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (default: ./config.yaml)")
	cmd.Flags().BoolVar(&home, "home", false, "Write the config file under ~/.awsinventory")

	return cmd
}
