package adapters

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/eks"
	"github.com/aws/aws-sdk-go/service/eks/eksiface"

	"awsinventory/internal/inventory"
)

// EKSAdapter lists EKS clusters with their node groups and Fargate profiles
type EKSAdapter struct {
	client func(region string) eksiface.EKSAPI
}

func init() {
	register(Info{Service: "EKS", Label: "EKS Clusters"}, func(p client.ConfigProvider) inventory.Adapter {
		return &EKSAdapter{client: func(region string) eksiface.EKSAPI {
			return eks.New(p, regional(region))
		}}
	})
}

// Collect implements inventory.Adapter
func (a *EKSAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("EKS", region)
	svc := a.client(region)

	var names []string
	err := svc.ListClustersPagesWithContext(ctx, &eks.ListClustersInput{}, func(page *eks.ListClustersOutput, lastPage bool) bool {
		names = append(names, aws.StringValueSlice(page.Clusters)...)
		return true
	})
	if err != nil {
		return c.finish(err)
	}

	for _, name := range names {
		out, err := svc.DescribeClusterWithContext(ctx, &eks.DescribeClusterInput{Name: aws.String(name)})
		if err != nil {
			if c.skip(name, err) {
				continue
			}
			return c.finish(err)
		}
		cluster := out.Cluster

		var nodeGroups []string
		err = svc.ListNodegroupsPagesWithContext(ctx, &eks.ListNodegroupsInput{ClusterName: aws.String(name)}, func(page *eks.ListNodegroupsOutput, lastPage bool) bool {
			nodeGroups = append(nodeGroups, aws.StringValueSlice(page.Nodegroups)...)
			return true
		})
		if err != nil && !c.skip(name, err) {
			return c.finish(err)
		}

		var fargate []string
		err = svc.ListFargateProfilesPagesWithContext(ctx, &eks.ListFargateProfilesInput{ClusterName: aws.String(name)}, func(page *eks.ListFargateProfilesOutput, lastPage bool) bool {
			fargate = append(fargate, aws.StringValueSlice(page.FargateProfileNames)...)
			return true
		})
		if err != nil && !c.skip(name, err) {
			return c.finish(err)
		}

		details := map[string]interface{}{
			"ARN":              aws.StringValue(cluster.Arn),
			"Version":          aws.StringValue(cluster.Version),
			"Platform Version": aws.StringValue(cluster.PlatformVersion),
			"Status":           aws.StringValue(cluster.Status),
			"Endpoint":         aws.StringValue(cluster.Endpoint),
			"Role ARN":         aws.StringValue(cluster.RoleArn),
			"Node Groups":      nodeGroups,
			"Fargate Profiles": fargate,
			"Fargate Enabled":  yesNo(aws.Bool(len(fargate) > 0)),
		}
		if vpc := cluster.ResourcesVpcConfig; vpc != nil {
			details["VPC ID"] = aws.StringValue(vpc.VpcId)
			details["Subnets"] = aws.StringValueSlice(vpc.SubnetIds)
			details["Security Groups"] = aws.StringValueSlice(vpc.SecurityGroupIds)
			details["Cluster Security Group"] = aws.StringValue(vpc.ClusterSecurityGroupId)
			details["Public Access"] = yesNo(vpc.EndpointPublicAccess)
		}
		if cluster.Logging != nil {
			var enabled []string
			for _, setup := range cluster.Logging.ClusterLogging {
				if aws.BoolValue(setup.Enabled) {
					enabled = append(enabled, aws.StringValueSlice(setup.Types)...)
				}
			}
			details["Logging Types"] = enabled
		}

		c.add(inventory.Resource{
			ID:        aws.StringValue(cluster.Arn),
			Name:      aws.StringValue(cluster.Name),
			CreatedAt: timePtr(cluster.CreatedAt),
			Tags:      stringMap(cluster.Tags),
			Details:   details,
		})
	}
	return c.finish(nil)
}
