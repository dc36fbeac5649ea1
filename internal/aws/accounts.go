package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/organizations"
	"github.com/aws/aws-sdk-go/service/organizations/organizationsiface"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"

	"awsinventory/internal/logging"
)

// Account represents an AWS account
type Account struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Status string `json:"status,omitempty"`
}

// Identity is the principal behind a session
type Identity struct {
	AccountID string
	ARN       string
	UserID    string
}

// CallerIdentity resolves the account and principal of a session
func CallerIdentity(p client.ConfigProvider) (*Identity, error) {
	return GetIdentity(context.Background(), sts.New(p))
}

// GetIdentity resolves the account and principal through STS
func GetIdentity(ctx context.Context, svc stsiface.STSAPI) (*Identity, error) {
	out, err := svc.GetCallerIdentityWithContext(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to get caller identity: %w", err)
	}
	return &Identity{
		AccountID: aws.StringValue(out.Account),
		ARN:       aws.StringValue(out.Arn),
		UserID:    aws.StringValue(out.UserId),
	}, nil
}

// ListAccounts lists the accounts of the organization the session belongs
// to, falling back to the session's own account when Organizations is not
// accessible.
func ListAccounts(ctx context.Context, p client.ConfigProvider) ([]Account, error) {
	accounts, err := ListOrganizationAccounts(ctx, organizations.New(p))
	if err == nil {
		return accounts, nil
	}

	logging.Warn("Could not list organization accounts, using current account", map[string]interface{}{
		"error": err.Error(),
	})
	identity, idErr := GetIdentity(ctx, sts.New(p))
	if idErr != nil {
		return nil, idErr
	}
	return []Account{{ID: identity.AccountID, Name: identity.AccountID}}, nil
}

// ListOrganizationAccounts lists every account in the organization
func ListOrganizationAccounts(ctx context.Context, svc organizationsiface.OrganizationsAPI) ([]Account, error) {
	var accounts []Account
	err := svc.ListAccountsPagesWithContext(ctx, &organizations.ListAccountsInput{},
		func(page *organizations.ListAccountsOutput, lastPage bool) bool {
			for _, account := range page.Accounts {
				accounts = append(accounts, Account{
					ID:     aws.StringValue(account.Id),
					Name:   aws.StringValue(account.Name),
					Email:  aws.StringValue(account.Email),
					Status: aws.StringValue(account.Status),
				})
			}
			return !lastPage
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list organization accounts: %w", err)
	}

	logging.Debug("Listed organization accounts", map[string]interface{}{
		"account_count": len(accounts),
	})
	return accounts, nil
}
