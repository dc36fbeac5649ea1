package list

import (
	"fmt"
	"io"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"awsinventory/internal/aws/adapters"
)

// NewServicesCmd creates and returns the services command
func NewServicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "services",
		Short: "List services that can be collected",
		Long: `List every service identifier accepted by collect --services.
Global services are collected once, from us-east-1.`,
		Example: `  # List all supported services
  awsinventory list services`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runServices(cmd.OutOrStdout())
			return nil
		},
	}

	return cmd
}

func runServices(w io.Writer) {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Service", "Description", "Scope", "Dependencies"})
	for _, info := range adapters.Describe() {
		scope := "Regional"
		if info.Global {
			scope = "Global"
		}
		deps := ""
		if slices.Contains(adapters.DependencyServices, info.Service) {
			deps = "yes"
		}
		tw.AppendRow(table.Row{info.Service, info.Label, scope, deps})
	}
	tw.SetStyle(table.StyleRounded)
	fmt.Fprintln(w, tw.Render())
}
