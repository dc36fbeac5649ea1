package adapters

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/autoscaling"
	"github.com/aws/aws-sdk-go/service/autoscaling/autoscalingiface"

	"awsinventory/internal/inventory"
)

// AutoScalingAdapter lists Auto Scaling groups with their instances and
// scaling policies
type AutoScalingAdapter struct {
	client func(region string) autoscalingiface.AutoScalingAPI
}

func init() {
	register(Info{Service: "AutoScaling", Label: "Auto Scaling Groups"}, func(p client.ConfigProvider) inventory.Adapter {
		return &AutoScalingAdapter{client: func(region string) autoscalingiface.AutoScalingAPI {
			return autoscaling.New(p, regional(region))
		}}
	})
}

// Collect implements inventory.Adapter
func (a *AutoScalingAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("AutoScaling", region)
	svc := a.client(region)

	var groups []*autoscaling.Group
	err := svc.DescribeAutoScalingGroupsPagesWithContext(ctx, &autoscaling.DescribeAutoScalingGroupsInput{}, func(page *autoscaling.DescribeAutoScalingGroupsOutput, lastPage bool) bool {
		groups = append(groups, page.AutoScalingGroups...)
		return true
	})
	if err != nil {
		return c.finish(err)
	}

	for _, g := range groups {
		name := aws.StringValue(g.AutoScalingGroupName)

		var policies []string
		err := svc.DescribePoliciesPagesWithContext(ctx, &autoscaling.DescribePoliciesInput{AutoScalingGroupName: g.AutoScalingGroupName}, func(page *autoscaling.DescribePoliciesOutput, lastPage bool) bool {
			for _, p := range page.ScalingPolicies {
				policies = append(policies, fmt.Sprintf("%s (%s)", aws.StringValue(p.PolicyName), aws.StringValue(p.PolicyType)))
			}
			return true
		})
		if err != nil {
			if c.skip(name, err) {
				continue
			}
			return c.finish(err)
		}

		var instances []string
		for _, inst := range g.Instances {
			instances = append(instances, fmt.Sprintf("%s %s(%s)", aws.StringValue(inst.InstanceId), aws.StringValue(inst.LifecycleState), aws.StringValue(inst.HealthStatus)))
		}

		details := map[string]interface{}{
			"ARN":                  aws.StringValue(g.AutoScalingGroupARN),
			"Min Size":             aws.Int64Value(g.MinSize),
			"Max Size":             aws.Int64Value(g.MaxSize),
			"Desired Capacity":     aws.Int64Value(g.DesiredCapacity),
			"Health Check Type":    aws.StringValue(g.HealthCheckType),
			"Availability Zones":   aws.StringValueSlice(g.AvailabilityZones),
			"Subnets":              splitNonEmpty(aws.StringValue(g.VPCZoneIdentifier)),
			"Target Group ARNs":    aws.StringValueSlice(g.TargetGroupARNs),
			"Load Balancer Names":  aws.StringValueSlice(g.LoadBalancerNames),
			"Instances":            instances,
			"Scaling Policies":     policies,
			"Launch Configuration": launchSource(g),
		}
		if g.Status != nil {
			details["Status"] = aws.StringValue(g.Status)
		}

		c.add(inventory.Resource{
			ID:        aws.StringValue(g.AutoScalingGroupARN),
			Name:      name,
			CreatedAt: timePtr(g.CreatedTime),
			Tags: keyValueTags(g.Tags, func(t *autoscaling.TagDescription) (*string, *string) {
				return t.Key, t.Value
			}),
			Details: details,
		})
	}
	return c.finish(nil)
}

// launchSource names the launch configuration or template a group uses
func launchSource(g *autoscaling.Group) string {
	switch {
	case g.LaunchConfigurationName != nil:
		return "LaunchConfiguration: " + aws.StringValue(g.LaunchConfigurationName)
	case g.LaunchTemplate != nil:
		return fmt.Sprintf("LaunchTemplate: %s (%s)", aws.StringValue(g.LaunchTemplate.LaunchTemplateName), aws.StringValue(g.LaunchTemplate.Version))
	case g.MixedInstancesPolicy != nil && g.MixedInstancesPolicy.LaunchTemplate != nil &&
		g.MixedInstancesPolicy.LaunchTemplate.LaunchTemplateSpecification != nil:
		spec := g.MixedInstancesPolicy.LaunchTemplate.LaunchTemplateSpecification
		return fmt.Sprintf("MixedInstancesPolicy: %s (%s)", aws.StringValue(spec.LaunchTemplateName), aws.StringValue(spec.Version))
	}
	return "None"
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
