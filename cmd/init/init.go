package init

import (
	"github.com/spf13/cobra"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize awsinventory configuration files",
		Long: `Initialize awsinventory configuration files.

This command helps you create a default config.yaml with every supported
setting and its default value.`,
	}

	cmd.AddCommand(NewConfigCmd())

	return cmd
}
