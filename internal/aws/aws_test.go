package aws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/aws/aws-sdk-go/service/organizations"
	"github.com/aws/aws-sdk-go/service/organizations/organizationsiface"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEC2API struct {
	mock.Mock
	ec2iface.EC2API
}

func (m *mockEC2API) DescribeRegionsWithContext(ctx aws.Context, input *ec2.DescribeRegionsInput, opts ...request.Option) (*ec2.DescribeRegionsOutput, error) {
	args := m.Called(ctx, input)
	if out := args.Get(0); out != nil {
		return out.(*ec2.DescribeRegionsOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSTSAPI struct {
	mock.Mock
	stsiface.STSAPI
}

func (m *mockSTSAPI) GetCallerIdentityWithContext(ctx aws.Context, input *sts.GetCallerIdentityInput, opts ...request.Option) (*sts.GetCallerIdentityOutput, error) {
	args := m.Called(ctx, input)
	if out := args.Get(0); out != nil {
		return out.(*sts.GetCallerIdentityOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockOrganizationsAPI struct {
	mock.Mock
	organizationsiface.OrganizationsAPI
	pages []*organizations.ListAccountsOutput
}

func (m *mockOrganizationsAPI) ListAccountsPagesWithContext(ctx aws.Context, input *organizations.ListAccountsInput, fn func(*organizations.ListAccountsOutput, bool) bool, opts ...request.Option) error {
	args := m.Called(ctx, input)
	for i, page := range m.pages {
		if !fn(page, i == len(m.pages)-1) {
			break
		}
	}
	return args.Error(0)
}

func TestIsExpectedAbsence(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"opt-in", awserr.New("OptInRequired", "subscribe first", nil), true},
		{"subscription", awserr.New("SubscriptionRequiredException", "", nil), true},
		{"ec2 not found suffix", awserr.New("InvalidGroup.NotFound", "", nil), true},
		{"wrapped not found", fmt.Errorf("describe: %w", awserr.New("ResourceNotFoundException", "", nil)), true},
		{"access denied", awserr.New("AccessDeniedException", "", nil), false},
		{"throttling", awserr.New("ThrottlingException", "", nil), false},
		{"dns not found", awserr.New(request.ErrCodeRequestError, "send request failed",
			&net.DNSError{Err: "no such host", Name: "eks.af-south-1.amazonaws.com", IsNotFound: true}), true},
		{"dns timeout", awserr.New(request.ErrCodeRequestError, "send request failed",
			&net.DNSError{Err: "i/o timeout", IsTimeout: true}), false},
		{"request error message", awserr.New(request.ErrCodeRequestError, "dial tcp: lookup x: no such host", nil), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExpectedAbsence(tt.err))
		})
	}
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsThrottling(awserr.New("RequestLimitExceeded", "", nil)))
	assert.False(t, IsThrottling(errors.New("RequestLimitExceeded")))
	assert.True(t, IsAccessDenied(fmt.Errorf("x: %w", awserr.New("UnauthorizedOperation", "", nil))))
	assert.False(t, IsAccessDenied(awserr.New("OptInRequired", "", nil)))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"throttled", awserr.New("ThrottlingException", "Rate exceeded", nil), CategoryThrottled},
		{"wrapped throttled", fmt.Errorf("list: %w", awserr.New("RequestLimitExceeded", "", nil)), CategoryThrottled},
		{"access denied", awserr.New("AccessDeniedException", "", nil), CategoryAccessDenied},
		{"deadline", fmt.Errorf("unit EC2/us-east-1 abandoned: %w", context.DeadlineExceeded), CategoryTimeout},
		{"other", awserr.New("InternalError", "", nil), CategoryError},
		{"plain", errors.New("boom"), CategoryError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestDescribeEnabledRegions(t *testing.T) {
	svc := &mockEC2API{}
	svc.On("DescribeRegionsWithContext", mock.Anything, mock.MatchedBy(func(in *ec2.DescribeRegionsInput) bool {
		return !aws.BoolValue(in.AllRegions)
	})).Return(&ec2.DescribeRegionsOutput{Regions: []*ec2.Region{
		{RegionName: aws.String("us-west-2")},
		{RegionName: aws.String("eu-west-1")},
		{RegionName: aws.String("us-east-1")},
	}}, nil)

	regions, err := DescribeEnabledRegions(context.Background(), svc)
	require.NoError(t, err)
	assert.Equal(t, []string{"eu-west-1", "us-east-1", "us-west-2"}, regions)
	svc.AssertExpectations(t)

	failing := &mockEC2API{}
	failing.On("DescribeRegionsWithContext", mock.Anything, mock.Anything).Return(nil, awserr.New("AuthFailure", "", nil))
	_, err = DescribeEnabledRegions(context.Background(), failing)
	assert.ErrorContains(t, err, "failed to describe regions")
}

func TestValidateRegions(t *testing.T) {
	available := []string{"us-east-1", "us-west-2"}
	assert.NoError(t, ValidateRegions([]string{"us-west-2"}, available))

	err := ValidateRegions([]string{"us-east-1", "mars-north-1", "ap-east-1"}, available)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mars-north-1, ap-east-1")
}

func TestGetIdentity(t *testing.T) {
	svc := &mockSTSAPI{}
	svc.On("GetCallerIdentityWithContext", mock.Anything, mock.Anything).Return(&sts.GetCallerIdentityOutput{
		Account: aws.String("123456789012"),
		Arn:     aws.String("arn:aws:iam::123456789012:user/inventory"),
		UserId:  aws.String("AIDAEXAMPLE"),
	}, nil)

	identity, err := GetIdentity(context.Background(), svc)
	require.NoError(t, err)
	assert.Equal(t, &Identity{
		AccountID: "123456789012",
		ARN:       "arn:aws:iam::123456789012:user/inventory",
		UserID:    "AIDAEXAMPLE",
	}, identity)
}

func TestListOrganizationAccounts(t *testing.T) {
	svc := &mockOrganizationsAPI{pages: []*organizations.ListAccountsOutput{
		{Accounts: []*organizations.Account{{Id: aws.String("111"), Name: aws.String("prod"), Status: aws.String("ACTIVE")}}},
		{Accounts: []*organizations.Account{{Id: aws.String("222"), Name: aws.String("dev")}}},
	}}
	svc.On("ListAccountsPagesWithContext", mock.Anything, mock.Anything).Return(nil)

	accounts, err := ListOrganizationAccounts(context.Background(), svc)
	require.NoError(t, err)
	assert.Equal(t, []Account{
		{ID: "111", Name: "prod", Status: "ACTIVE"},
		{ID: "222", Name: "dev"},
	}, accounts)

	denied := &mockOrganizationsAPI{}
	denied.On("ListAccountsPagesWithContext", mock.Anything, mock.Anything).Return(awserr.New("AWSOrganizationsNotInUseException", "", nil))
	_, err = ListOrganizationAccounts(context.Background(), denied)
	assert.Error(t, err)
}

func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()
	credsPath := filepath.Join(dir, "credentials")
	configPath := filepath.Join(dir, "config")

	require.NoError(t, os.WriteFile(credsPath, []byte(`[default]
aws_access_key_id = AKIA
aws_secret_access_key = secret

[staging]
aws_access_key_id = AKIA2
aws_secret_access_key = secret2
region = eu-west-1
`), 0600))
	require.NoError(t, os.WriteFile(configPath, []byte(`[default]
region = us-east-1

[profile prod]
region = us-west-2
sso_session = corp

[sso-session corp]
sso_region = us-east-1
`), 0600))

	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", credsPath)
	t.Setenv("AWS_CONFIG_FILE", configPath)

	profiles, err := LoadProfiles()
	require.NoError(t, err)
	assert.Equal(t, []Profile{
		{Name: "default", Region: "us-east-1", Sources: []string{"credentials", "config"}},
		{Name: "prod", Region: "us-west-2", Sources: []string{"config"}},
		{Name: "staging", Region: "eu-west-1", Sources: []string{"credentials"}},
	}, profiles)

	names, err := ListProfiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "prod", "staging"}, names)
	assert.True(t, HasProfile("prod"))
	assert.False(t, HasProfile("corp"))
}

func TestLoadProfiles_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "nope"))
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "nope-either"))

	profiles, err := LoadProfiles()
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestNewInventorySession_UnknownProfile(t *testing.T) {
	dir := t.TempDir()
	credsPath := filepath.Join(dir, "credentials")
	require.NoError(t, os.WriteFile(credsPath, []byte("[audit]\naws_access_key_id = AKIA\naws_secret_access_key = secret\n"), 0600))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", credsPath)
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "missing"))

	_, err := NewInventorySession(SessionConfig{Profile: "typo"})
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.ErrorContains(t, err, "typo")

	assert.NoError(t, CheckProfile("audit"))
	assert.NoError(t, CheckProfile("default"), "default may come from the environment")
	assert.NoError(t, CheckProfile(""))
}
