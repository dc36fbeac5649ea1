package list

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"awsinventory/internal/aws"
)

// NewAccountsCmd creates and returns the accounts command
func NewAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List available AWS accounts",
		Long: `List the AWS accounts of the organization the profile belongs to.
When the organization cannot be listed, only the current account is shown.`,
		Example: `  # List accounts visible to the default profile
  awsinventory list accounts

  # List accounts after assuming a role in the profile's account
  awsinventory list accounts --role OrganizationAccessRole`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccounts(cmd, cmd.OutOrStdout())
		},
	}

	cmd.Flags().String("role", "", "Role to assume before listing accounts")
	return cmd
}

func runAccounts(cmd *cobra.Command, w io.Writer) error {
	sess, err := newSession()
	if err != nil {
		return err
	}

	accounts, err := aws.ListAccounts(cmd.Context(), sess)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	if len(accounts) == 0 {
		fmt.Fprintln(w, "No accounts found")
		return nil
	}

	fmt.Fprintln(w, "Available accounts:")
	for _, account := range accounts {
		fmt.Fprintf(w, "  %s - %s\n", account.ID, account.Name)
	}

	return nil
}
