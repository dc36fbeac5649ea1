package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/eks"
	"github.com/aws/aws-sdk-go/service/eks/eksiface"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/lambda/lambdaiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func (m *mockEC2API) DescribeSubnetsPagesWithContext(ctx aws.Context, input *ec2.DescribeSubnetsInput, fn func(*ec2.DescribeSubnetsOutput, bool) bool, opts ...request.Option) error {
	args := m.Called(ctx, input)
	pages(args.Get(0).([]*ec2.DescribeSubnetsOutput), fn)
	return args.Error(1)
}

func (m *mockEC2API) DescribeVpcsPagesWithContext(ctx aws.Context, input *ec2.DescribeVpcsInput, fn func(*ec2.DescribeVpcsOutput, bool) bool, opts ...request.Option) error {
	args := m.Called(ctx, input)
	pages(args.Get(0).([]*ec2.DescribeVpcsOutput), fn)
	return args.Error(1)
}

func subnets() []*ec2.DescribeSubnetsOutput {
	return []*ec2.DescribeSubnetsOutput{{Subnets: []*ec2.Subnet{
		{
			SubnetId:                aws.String("subnet-1"),
			VpcId:                   aws.String("vpc-1"),
			CidrBlock:               aws.String("10.0.1.0/24"),
			AvailabilityZone:        aws.String("us-east-1a"),
			AvailableIpAddressCount: aws.Int64(250),
			MapPublicIpOnLaunch:     aws.Bool(true),
			Tags:                    []*ec2.Tag{{Key: aws.String("Name"), Value: aws.String("public-a")}},
		},
		{
			SubnetId:         aws.String("subnet-2"),
			VpcId:            aws.String("vpc-1"),
			CidrBlock:        aws.String("10.0.2.0/24"),
			AvailabilityZone: aws.String("us-east-1b"),
		},
	}}}
}

func TestSubnetsAdapter(t *testing.T) {
	svc := &mockEC2API{}
	svc.On("DescribeSubnetsPagesWithContext", mock.Anything, mock.Anything).Return(subnets(), nil)

	out, err := (&SubnetsAdapter{client: ec2For(svc)}).Collect(context.Background(), "us-east-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "subnet-1", out[0].ID)
	assert.Equal(t, "public-a", out[0].Name)
	assert.Equal(t, "vpc-1", out[0].Details["VPC ID"])
	assert.Equal(t, int64(250), out[0].Details["Available IPs"])
	assert.Equal(t, "Yes", out[0].Details["Auto Assign Public IP"])
	assert.Equal(t, "No", out[1].Details["Auto Assign Public IP"])
}

func TestVPCAdapterListsSubnets(t *testing.T) {
	svc := &mockEC2API{}
	svc.On("DescribeSubnetsPagesWithContext", mock.Anything, mock.Anything).Return(subnets(), nil)
	svc.On("DescribeVpcsPagesWithContext", mock.Anything, mock.Anything).Return([]*ec2.DescribeVpcsOutput{
		{Vpcs: []*ec2.Vpc{
			{VpcId: aws.String("vpc-1"), CidrBlock: aws.String("10.0.0.0/16"), IsDefault: aws.Bool(false)},
			{VpcId: aws.String("vpc-2"), CidrBlock: aws.String("172.31.0.0/16"), IsDefault: aws.Bool(true)},
		}},
	}, nil)

	out, err := (&VPCAdapter{client: ec2For(svc)}).Collect(context.Background(), "us-east-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 2, out[0].Details["Subnet Count"])
	assert.Equal(t, []string{
		"subnet-1 public-a (10.0.1.0/24, us-east-1a)",
		"subnet-2  (10.0.2.0/24, us-east-1b)",
	}, out[0].Details["Subnets"])
	assert.Equal(t, 0, out[1].Details["Subnet Count"])
	assert.Equal(t, "Yes", out[1].Details["Is Default"])
}

func TestUnattachedEBSAdapter(t *testing.T) {
	created := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := &mockEC2API{}
	svc.On("DescribeVolumesPagesWithContext", mock.Anything, mock.MatchedBy(func(in *ec2.DescribeVolumesInput) bool {
		return len(in.Filters) == 1 && aws.StringValue(in.Filters[0].Name) == "status" &&
			aws.StringValueSlice(in.Filters[0].Values)[0] == "available"
	})).Return([]*ec2.DescribeVolumesOutput{
		{Volumes: []*ec2.Volume{{
			VolumeId:   aws.String("vol-1"),
			Size:       aws.Int64(100),
			VolumeType: aws.String("gp3"),
			State:      aws.String("available"),
			Encrypted:  aws.Bool(true),
			CreateTime: &created,
			Tags:       []*ec2.Tag{{Key: aws.String("Name"), Value: aws.String("scratch")}},
		}}},
	}, nil)

	out, err := (&UnattachedEBSAdapter{client: ec2For(svc)}).Collect(context.Background(), "us-east-1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "vol-1", out[0].ID)
	assert.Equal(t, "scratch", out[0].Name)
	assert.Equal(t, int64(100), out[0].Details["Size (GiB)"])
	assert.Equal(t, "Yes", out[0].Details["Encrypted"])
	require.NotNil(t, out[0].CreatedAt)
	assert.True(t, created.Equal(*out[0].CreatedAt))
	svc.AssertExpectations(t)
}

func TestUnattachedENIAdapter(t *testing.T) {
	svc := &mockEC2API{}
	svc.On("DescribeNetworkInterfacesPagesWithContext", mock.Anything, mock.MatchedBy(func(in *ec2.DescribeNetworkInterfacesInput) bool {
		return len(in.Filters) == 1
	})).Return([]*ec2.DescribeNetworkInterfacesOutput{
		{NetworkInterfaces: []*ec2.NetworkInterface{{
			NetworkInterfaceId: aws.String("eni-1"),
			Description:        aws.String("leftover"),
			VpcId:              aws.String("vpc-1"),
			Status:             aws.String("available"),
			PrivateIpAddresses: []*ec2.NetworkInterfacePrivateIpAddress{{PrivateIpAddress: aws.String("10.0.0.9")}},
			Groups:             []*ec2.GroupIdentifier{{GroupId: aws.String("sg-1"), GroupName: aws.String("web")}},
		}}},
	}, nil)

	out, err := (&UnattachedENIAdapter{client: ec2For(svc)}).Collect(context.Background(), "us-east-1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "eni-1", out[0].ID)
	assert.Equal(t, "leftover", out[0].Description)
	assert.Equal(t, []string{"10.0.0.9"}, out[0].Details["Private IP Addresses"])
	assert.Equal(t, []string{"sg-1 (web)"}, out[0].Details["Security Groups"])
}

type mockLambdaAPI struct {
	mock.Mock
	lambdaiface.LambdaAPI
}

func (m *mockLambdaAPI) ListFunctionsPagesWithContext(ctx aws.Context, input *lambda.ListFunctionsInput, fn func(*lambda.ListFunctionsOutput, bool) bool, opts ...request.Option) error {
	args := m.Called(ctx, input)
	pages(args.Get(0).([]*lambda.ListFunctionsOutput), fn)
	return args.Error(1)
}

func (m *mockLambdaAPI) ListEventSourceMappingsPagesWithContext(ctx aws.Context, input *lambda.ListEventSourceMappingsInput, fn func(*lambda.ListEventSourceMappingsOutput, bool) bool, opts ...request.Option) error {
	args := m.Called(ctx, aws.StringValue(input.FunctionName))
	pages(args.Get(0).([]*lambda.ListEventSourceMappingsOutput), fn)
	return args.Error(1)
}

func (m *mockLambdaAPI) GetFunctionConcurrencyWithContext(ctx aws.Context, input *lambda.GetFunctionConcurrencyInput, opts ...request.Option) (*lambda.GetFunctionConcurrencyOutput, error) {
	return called[*lambda.GetFunctionConcurrencyOutput](m.Called(ctx, aws.StringValue(input.FunctionName)))
}

func TestLambdaAdapter(t *testing.T) {
	svc := &mockLambdaAPI{}
	svc.On("ListFunctionsPagesWithContext", mock.Anything, mock.Anything).Return([]*lambda.ListFunctionsOutput{
		{Functions: []*lambda.FunctionConfiguration{
			{
				FunctionName: aws.String("resize"),
				FunctionArn:  aws.String("arn:lambda/resize"),
				Runtime:      aws.String("go1.x"),
				MemorySize:   aws.Int64(256),
				CodeSize:     aws.Int64(2 * 1024 * 1024),
				Environment: &lambda.EnvironmentResponse{Variables: map[string]*string{
					"DB_PASSWORD": aws.String("hunter2"),
					"BUCKET":      aws.String("images"),
				}},
				VpcConfig: &lambda.VpcConfigResponse{
					VpcId:            aws.String("vpc-1"),
					SecurityGroupIds: aws.StringSlice([]string{"sg-1"}),
				},
			},
			{FunctionName: aws.String("deleted"), FunctionArn: aws.String("arn:lambda/deleted")},
		}},
	}, nil)
	svc.On("ListEventSourceMappingsPagesWithContext", mock.Anything, "resize").Return([]*lambda.ListEventSourceMappingsOutput{
		{EventSourceMappings: []*lambda.EventSourceMappingConfiguration{{
			EventSourceArn: aws.String("arn:sqs/uploads"),
			State:          aws.String("Enabled"),
		}}},
	}, nil)
	svc.On("ListEventSourceMappingsPagesWithContext", mock.Anything, "deleted").
		Return([]*lambda.ListEventSourceMappingsOutput{}, notFound("ResourceNotFoundException"))
	svc.On("GetFunctionConcurrencyWithContext", mock.Anything, "resize").
		Return(&lambda.GetFunctionConcurrencyOutput{ReservedConcurrentExecutions: aws.Int64(10)}, nil)

	out, err := (&LambdaAdapter{client: func(string) lambdaiface.LambdaAPI { return svc }}).Collect(context.Background(), "us-east-1")
	require.NoError(t, err)
	require.Len(t, out, 1)

	fn := out[0]
	assert.Equal(t, "arn:lambda/resize", fn.ID)
	assert.Equal(t, "resize", fn.Name)
	assert.Equal(t, "2.00 MB", fn.Details["Code Size"])
	assert.Equal(t, "10", fn.Details["Reserved Concurrency"])
	assert.Equal(t, "x86_64", fn.Details["Architecture"])
	assert.Equal(t, []string{"arn:sqs/uploads (Enabled)"}, fn.Details["Triggers"])
	assert.Equal(t, []string{"BUCKET", "DB_PASSWORD"}, fn.Details["Environment Variables"])
	for key, value := range fn.Details {
		assert.NotEqual(t, "hunter2", value, key)
	}
	assert.Equal(t, []string{"sg-1"}, fn.Details["Security Groups"])
	svc.AssertNotCalled(t, "GetFunctionConcurrencyWithContext", mock.Anything, "deleted")
}

type mockEKSAPI struct {
	mock.Mock
	eksiface.EKSAPI
}

func (m *mockEKSAPI) ListClustersPagesWithContext(ctx aws.Context, input *eks.ListClustersInput, fn func(*eks.ListClustersOutput, bool) bool, opts ...request.Option) error {
	args := m.Called(ctx, input)
	pages(args.Get(0).([]*eks.ListClustersOutput), fn)
	return args.Error(1)
}

func (m *mockEKSAPI) DescribeClusterWithContext(ctx aws.Context, input *eks.DescribeClusterInput, opts ...request.Option) (*eks.DescribeClusterOutput, error) {
	return called[*eks.DescribeClusterOutput](m.Called(ctx, aws.StringValue(input.Name)))
}

func (m *mockEKSAPI) ListNodegroupsPagesWithContext(ctx aws.Context, input *eks.ListNodegroupsInput, fn func(*eks.ListNodegroupsOutput, bool) bool, opts ...request.Option) error {
	args := m.Called(ctx, aws.StringValue(input.ClusterName))
	pages(args.Get(0).([]*eks.ListNodegroupsOutput), fn)
	return args.Error(1)
}

func (m *mockEKSAPI) ListFargateProfilesPagesWithContext(ctx aws.Context, input *eks.ListFargateProfilesInput, fn func(*eks.ListFargateProfilesOutput, bool) bool, opts ...request.Option) error {
	args := m.Called(ctx, aws.StringValue(input.ClusterName))
	pages(args.Get(0).([]*eks.ListFargateProfilesOutput), fn)
	return args.Error(1)
}

func TestEKSAdapter(t *testing.T) {
	svc := &mockEKSAPI{}
	svc.On("ListClustersPagesWithContext", mock.Anything, mock.Anything).Return([]*eks.ListClustersOutput{
		{Clusters: aws.StringSlice([]string{"prod"})},
	}, nil)
	svc.On("DescribeClusterWithContext", mock.Anything, "prod").Return(&eks.DescribeClusterOutput{Cluster: &eks.Cluster{
		Name:    aws.String("prod"),
		Arn:     aws.String("arn:eks/prod"),
		Version: aws.String("1.29"),
		Tags:    map[string]*string{"Env": aws.String("prod")},
		ResourcesVpcConfig: &eks.VpcConfigResponse{
			VpcId:            aws.String("vpc-1"),
			SecurityGroupIds: aws.StringSlice([]string{"sg-1"}),
		},
		Logging: &eks.Logging{ClusterLogging: []*eks.LogSetup{
			{Enabled: aws.Bool(true), Types: aws.StringSlice([]string{"api", "audit"})},
			{Enabled: aws.Bool(false), Types: aws.StringSlice([]string{"scheduler"})},
		}},
	}}, nil)
	svc.On("ListNodegroupsPagesWithContext", mock.Anything, "prod").Return([]*eks.ListNodegroupsOutput{
		{Nodegroups: aws.StringSlice([]string{"general"})},
	}, nil)
	// Fargate is not offered in every region
	svc.On("ListFargateProfilesPagesWithContext", mock.Anything, "prod").
		Return([]*eks.ListFargateProfilesOutput{}, notFound("ResourceNotFoundException"))

	out, err := (&EKSAdapter{client: func(string) eksiface.EKSAPI { return svc }}).Collect(context.Background(), "us-east-1")
	require.NoError(t, err)
	require.Len(t, out, 1)

	cluster := out[0]
	assert.Equal(t, "arn:eks/prod", cluster.ID)
	assert.Equal(t, "1.29", cluster.Details["Version"])
	assert.Equal(t, []string{"general"}, cluster.Details["Node Groups"])
	assert.Equal(t, "No", cluster.Details["Fargate Enabled"])
	assert.Equal(t, "vpc-1", cluster.Details["VPC ID"])
	assert.Equal(t, []string{"api", "audit"}, cluster.Details["Logging Types"])
	assert.Equal(t, map[string]string{"Env": "prod"}, cluster.Tags)
}
