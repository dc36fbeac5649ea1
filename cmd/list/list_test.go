package list

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/awstesting/unit"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/undefinedlabs/go-mpatch"

	awspkg "awsinventory/internal/aws"
	"awsinventory/internal/aws/adapters"
)

// executeCommand executes a command and returns its output
func executeCommand(cmd *cobra.Command, args ...string) (string, error) {
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.ReplaceAll(buf.String(), "\r\n", "\n"), err
}

// Helper function to safely unpatch
func safeUnpatch(patch *mpatch.Patch) {
	if err := patch.Unpatch(); err != nil {
		fmt.Fprintf(os.Stderr, "Error unpatching: %v\n", err)
	}
}

// patchSession makes newSession return the offline test session
func patchSession(t *testing.T) {
	t.Helper()
	patch, err := mpatch.PatchMethod(newSession, func() (*session.Session, error) {
		return unit.Session, nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { safeUnpatch(patch) })
}

// TestNewListCmd tests the creation of the list command
func TestNewListCmd(t *testing.T) {
	cmd := NewListCmd()
	assert.NotNil(t, cmd)
	assert.Equal(t, "list", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	expectedSubcommands := []string{
		"accounts",
		"profiles",
		"regions",
		"services",
	}

	subcommands := cmd.Commands()
	assert.Len(t, subcommands, len(expectedSubcommands))
	for _, subcmd := range subcommands {
		assert.Contains(t, expectedSubcommands, subcmd.Name())
		assert.NotEmpty(t, subcmd.Example, subcmd.Name())
	}
}

func TestNewAccountsCmd(t *testing.T) {
	cmd := NewAccountsCmd()
	roleFlag := cmd.Flags().Lookup("role")
	require.NotNil(t, roleFlag)
	assert.Equal(t, "string", roleFlag.Value.Type())
	assert.Equal(t, "", roleFlag.DefValue)
}

func TestRunAccounts(t *testing.T) {
	tests := []struct {
		name           string
		mockAccounts   []awspkg.Account
		mockError      error
		expectedOutput string
		expectError    bool
	}{
		{
			name:           "current account",
			mockAccounts:   []awspkg.Account{{ID: "123456789012", Name: "Current"}},
			expectedOutput: "Available accounts:\n  123456789012 - Current\n",
		},
		{
			name: "organization accounts",
			mockAccounts: []awspkg.Account{
				{ID: "123456789012", Name: "Account1"},
				{ID: "098765432109", Name: "Account2"},
			},
			expectedOutput: "Available accounts:\n  123456789012 - Account1\n  098765432109 - Account2\n",
		},
		{
			name:           "no accounts found",
			mockAccounts:   []awspkg.Account{},
			expectedOutput: "No accounts found\n",
		},
		{
			name:        "error listing accounts",
			mockError:   fmt.Errorf("mock error"),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patchSession(t)
			patch, err := mpatch.PatchMethod(awspkg.ListAccounts, func(ctx context.Context, p client.ConfigProvider) ([]awspkg.Account, error) {
				return tt.mockAccounts, tt.mockError
			})
			require.NoError(t, err)
			defer safeUnpatch(patch)

			output, err := executeCommand(NewAccountsCmd())
			if tt.expectError {
				assert.ErrorContains(t, err, "failed to list accounts")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedOutput, output)
		})
	}
}

func TestRunProfiles(t *testing.T) {
	tests := []struct {
		name           string
		mockProfiles   []string
		mockError      error
		expectedOutput string
		expectError    bool
	}{
		{
			name:           "list available profiles",
			mockProfiles:   []string{"default", "dev", "prod"},
			expectedOutput: "default\ndev\nprod\n",
		},
		{
			name:           "no profiles found",
			mockProfiles:   []string{},
			expectedOutput: "No profiles found\n",
		},
		{
			name:        "error listing profiles",
			mockError:   fmt.Errorf("mock error"),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patch, err := mpatch.PatchMethod(awspkg.ListProfiles, func() ([]string, error) {
				return tt.mockProfiles, tt.mockError
			})
			require.NoError(t, err)
			defer safeUnpatch(patch)

			var buf bytes.Buffer
			err = runProfiles(&buf)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedOutput, buf.String())
		})
	}
}

func TestRunRegions(t *testing.T) {
	patchSession(t)
	patch, err := mpatch.PatchMethod(awspkg.GetAvailableRegions, func(ctx context.Context, p client.ConfigProvider) ([]string, error) {
		return []string{"eu-west-1", "us-east-1"}, nil
	})
	require.NoError(t, err)
	defer safeUnpatch(patch)

	output, err := executeCommand(NewRegionsCmd())
	require.NoError(t, err)
	assert.Equal(t, "Enabled regions:\n  eu-west-1\n* us-east-1\n", output)
}

func TestRunServices(t *testing.T) {
	output, err := executeCommand(NewServicesCmd())
	require.NoError(t, err)

	for _, service := range adapters.Services() {
		assert.Contains(t, output, service)
	}
	assert.Contains(t, output, "Global")
	assert.Contains(t, output, "Regional")
}

func TestListIntegration(t *testing.T) {
	patchSession(t)
	patchAccounts, err := mpatch.PatchMethod(awspkg.ListAccounts, func(ctx context.Context, p client.ConfigProvider) ([]awspkg.Account, error) {
		return []awspkg.Account{{ID: "123456789012", Name: "TestAccount"}}, nil
	})
	require.NoError(t, err)
	defer safeUnpatch(patchAccounts)

	patchProfiles, err := mpatch.PatchMethod(awspkg.ListProfiles, func() ([]string, error) {
		return []string{"default", "test"}, nil
	})
	require.NoError(t, err)
	defer safeUnpatch(patchProfiles)

	testCases := []struct {
		args           []string
		expectedOutput string
	}{
		{args: []string{"accounts"}, expectedOutput: "Available accounts:\n  123456789012 - TestAccount\n"},
		{args: []string{"profiles"}, expectedOutput: "default\ntest\n"},
		{args: []string{"services"}, expectedOutput: "EC2"},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("list %s", tc.args[0]), func(t *testing.T) {
			output, err := executeCommand(NewListCmd(), tc.args...)
			require.NoError(t, err)
			assert.Contains(t, output, tc.expectedOutput)
		})
	}
}
