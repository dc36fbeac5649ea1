package aws

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
)

// DefaultRegions are collected when no region is selected and discovery is off
var DefaultRegions = []string{
	"us-east-1",
	"us-east-2",
	"sa-east-1",
	"us-west-1",
	"us-west-2",
}

// GetAvailableRegions returns the regions enabled for the account
func GetAvailableRegions(ctx context.Context, p client.ConfigProvider) ([]string, error) {
	// Region discovery always goes through us-east-1
	return DescribeEnabledRegions(ctx, ec2.New(p, aws.NewConfig().WithRegion(HomeRegion)))
}

// DescribeEnabledRegions lists enabled regions, sorted
func DescribeEnabledRegions(ctx context.Context, svc ec2iface.EC2API) ([]string, error) {
	result, err := svc.DescribeRegionsWithContext(ctx, &ec2.DescribeRegionsInput{
		AllRegions: aws.Bool(false), // Only get enabled regions
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe regions: %w", err)
	}

	regions := make([]string, 0, len(result.Regions))
	for _, region := range result.Regions {
		regions = append(regions, aws.StringValue(region.RegionName))
	}
	sort.Strings(regions)
	return regions, nil
}

// ValidateRegions checks that every requested region is in the available set
func ValidateRegions(requested, available []string) error {
	regionMap := make(map[string]bool, len(available))
	for _, region := range available {
		regionMap[region] = true
	}

	var invalid []string
	for _, region := range requested {
		if !regionMap[region] {
			invalid = append(invalid, region)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("region(s) not available in this account: %s. Available regions: %s",
			strings.Join(invalid, ", "), strings.Join(available, ", "))
	}
	return nil
}
