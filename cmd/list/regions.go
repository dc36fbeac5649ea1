package list

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"awsinventory/internal/aws"
)

// NewRegionsCmd creates and returns the regions command
func NewRegionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regions",
		Short: "List regions enabled for the account",
		Long: `List the regions enabled for the account of the current profile.
Regions collected by default when no --regions flag is given are marked with *.`,
		Example: `  # List enabled regions
  awsinventory list regions`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegions(cmd, cmd.OutOrStdout())
		},
	}

	return cmd
}

func runRegions(cmd *cobra.Command, w io.Writer) error {
	sess, err := newSession()
	if err != nil {
		return err
	}

	regions, err := aws.GetAvailableRegions(cmd.Context(), sess)
	if err != nil {
		return fmt.Errorf("failed to list regions: %w", err)
	}

	fmt.Fprintln(w, "Enabled regions:")
	for _, region := range regions {
		marker := " "
		if slices.Contains(aws.DefaultRegions, region) {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s\n", marker, region)
	}

	return nil
}
