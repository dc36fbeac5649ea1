package list

import (
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/spf13/cobra"

	awsinternal "awsinventory/internal/aws"
	"awsinventory/internal/config"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List AWS profiles, accounts, regions and supported services",
		Long: `List various AWS resources and configurations.
Currently supports listing:
  - AWS accounts in an organization or current account
  - Available AWS credential profiles
  - Regions enabled for the account
  - Services awsinventory can collect`,
	}

	cmd.AddCommand(NewAccountsCmd())
	cmd.AddCommand(NewProfilesCmd())
	cmd.AddCommand(NewRegionsCmd())
	cmd.AddCommand(NewServicesCmd())

	return cmd
}

// newSession builds a session from the loaded configuration
func newSession() (*session.Session, error) {
	return awsinternal.NewInventorySession(awsinternal.SessionConfig{
		Profile:    config.Config.Profile,
		Role:       config.Config.Role,
		MaxRetries: config.MaxRetries(),
		RateLimit:  config.RateLimit(),
	})
}
