package adapters

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/elb"
	"github.com/aws/aws-sdk-go/service/elb/elbiface"
	"github.com/aws/aws-sdk-go/service/elbv2"
	"github.com/aws/aws-sdk-go/service/elbv2/elbv2iface"

	"awsinventory/internal/inventory"
)

type elbv2Clients func(region string) elbv2iface.ELBV2API

func newELBV2Clients(p client.ConfigProvider) elbv2Clients {
	return func(region string) elbv2iface.ELBV2API {
		return elbv2.New(p, regional(region))
	}
}

// ELBAdapter lists application, network and gateway load balancers plus
// classic load balancers.
type ELBAdapter struct {
	v2      elbv2Clients
	classic func(region string) elbiface.ELBAPI
}

// TargetGroupAdapter lists target groups with the health of their targets
type TargetGroupAdapter struct {
	client elbv2Clients
}

func init() {
	register(Info{Service: "ELB", Label: "Load Balancers"}, func(p client.ConfigProvider) inventory.Adapter {
		return &ELBAdapter{
			v2: newELBV2Clients(p),
			classic: func(region string) elbiface.ELBAPI {
				return elb.New(p, regional(region))
			},
		}
	})
	register(Info{Service: "TargetGroup", Label: "Target Groups"}, func(p client.ConfigProvider) inventory.Adapter {
		return &TargetGroupAdapter{client: newELBV2Clients(p)}
	})
}

// Collect implements inventory.Adapter
func (a *ELBAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("ELB", region)
	svc := a.v2(region)

	var lbs []*elbv2.LoadBalancer
	err := svc.DescribeLoadBalancersPagesWithContext(ctx, &elbv2.DescribeLoadBalancersInput{}, func(page *elbv2.DescribeLoadBalancersOutput, lastPage bool) bool {
		lbs = append(lbs, page.LoadBalancers...)
		return true
	})
	if err != nil {
		return c.finish(err)
	}

	for _, lb := range lbs {
		arn := aws.StringValue(lb.LoadBalancerArn)

		var listeners []string
		err := svc.DescribeListenersPagesWithContext(ctx, &elbv2.DescribeListenersInput{LoadBalancerArn: lb.LoadBalancerArn},
			func(page *elbv2.DescribeListenersOutput, lastPage bool) bool {
				for _, l := range page.Listeners {
					listeners = append(listeners, fmt.Sprintf("%s:%d", aws.StringValue(l.Protocol), aws.Int64Value(l.Port)))
				}
				return true
			})
		if err != nil {
			if c.skip(arn, err) {
				continue
			}
			return c.finish(err)
		}

		var zones []string
		for _, az := range lb.AvailabilityZones {
			zones = append(zones, aws.StringValue(az.ZoneName))
		}
		state := ""
		if lb.State != nil {
			state = aws.StringValue(lb.State.Code)
		}

		c.add(inventory.Resource{
			ID:        arn,
			Name:      aws.StringValue(lb.LoadBalancerName),
			CreatedAt: timePtr(lb.CreatedTime),
			Details: map[string]interface{}{
				"Type":               aws.StringValue(lb.Type),
				"DNS Name":           aws.StringValue(lb.DNSName),
				"Scheme":             aws.StringValue(lb.Scheme),
				"VPC ID":             aws.StringValue(lb.VpcId),
				"State":              state,
				"Security Groups":    aws.StringValueSlice(lb.SecurityGroups),
				"Availability Zones": zones,
				"Listeners":          listeners,
			},
		})
	}

	err = a.classic(region).DescribeLoadBalancersPagesWithContext(ctx, &elb.DescribeLoadBalancersInput{}, func(page *elb.DescribeLoadBalancersOutput, lastPage bool) bool {
		for _, lb := range page.LoadBalancerDescriptions {
			var listeners, instances []string
			for _, l := range lb.ListenerDescriptions {
				if l.Listener != nil {
					listeners = append(listeners, fmt.Sprintf("%s:%d", aws.StringValue(l.Listener.Protocol), aws.Int64Value(l.Listener.LoadBalancerPort)))
				}
			}
			for _, inst := range lb.Instances {
				instances = append(instances, aws.StringValue(inst.InstanceId))
			}
			name := aws.StringValue(lb.LoadBalancerName)
			c.add(inventory.Resource{
				ID:        name,
				Name:      name,
				CreatedAt: timePtr(lb.CreatedTime),
				Details: map[string]interface{}{
					"Type":               "classic",
					"DNS Name":           aws.StringValue(lb.DNSName),
					"Scheme":             aws.StringValue(lb.Scheme),
					"VPC ID":             aws.StringValue(lb.VPCId),
					"Security Groups":    aws.StringValueSlice(lb.SecurityGroups),
					"Availability Zones": aws.StringValueSlice(lb.AvailabilityZones),
					"Listeners":          listeners,
					"Instances":          instances,
				},
			})
		}
		return true
	})
	return c.finish(err)
}

// Collect implements inventory.Adapter
func (a *TargetGroupAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("TargetGroup", region)
	svc := a.client(region)

	var groups []*elbv2.TargetGroup
	err := svc.DescribeTargetGroupsPagesWithContext(ctx, &elbv2.DescribeTargetGroupsInput{}, func(page *elbv2.DescribeTargetGroupsOutput, lastPage bool) bool {
		groups = append(groups, page.TargetGroups...)
		return true
	})
	if err != nil {
		return c.finish(err)
	}

	for _, tg := range groups {
		arn := aws.StringValue(tg.TargetGroupArn)
		health, err := svc.DescribeTargetHealthWithContext(ctx, &elbv2.DescribeTargetHealthInput{TargetGroupArn: tg.TargetGroupArn})
		if err != nil {
			if c.skip(arn, err) {
				continue
			}
			return c.finish(err)
		}

		var targets []string
		for _, desc := range health.TargetHealthDescriptions {
			if desc.Target == nil {
				continue
			}
			state := "unknown"
			if desc.TargetHealth != nil {
				state = aws.StringValue(desc.TargetHealth.State)
			}
			targets = append(targets, fmt.Sprintf("%s:%d (%s)",
				aws.StringValue(desc.Target.Id), aws.Int64Value(desc.Target.Port), state))
		}

		c.add(inventory.Resource{
			ID:   arn,
			Name: aws.StringValue(tg.TargetGroupName),
			Details: map[string]interface{}{
				"Protocol":              aws.StringValue(tg.Protocol),
				"Port":                  aws.Int64Value(tg.Port),
				"VPC ID":                aws.StringValue(tg.VpcId),
				"Health Check Protocol": aws.StringValue(tg.HealthCheckProtocol),
				"Health Check Port":     aws.StringValue(tg.HealthCheckPort),
				"Healthy Threshold":     aws.Int64Value(tg.HealthyThresholdCount),
				"Unhealthy Threshold":   aws.Int64Value(tg.UnhealthyThresholdCount),
				"Target Type":           aws.StringValue(tg.TargetType),
				"Load Balancer ARNs":    aws.StringValueSlice(tg.LoadBalancerArns),
				"Targets":               targets,
			},
		})
	}
	return c.finish(nil)
}
