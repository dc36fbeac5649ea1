package adapters

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/ec2"

	"awsinventory/internal/inventory"
)

// SubnetsAdapter lists VPC subnets
type SubnetsAdapter struct {
	client ec2Clients
}

// VPCAdapter lists VPCs with a summary of their subnets
type VPCAdapter struct {
	client ec2Clients
}

// GatewayAdapter lists internet, NAT and transit gateways
type GatewayAdapter struct {
	client ec2Clients
}

func init() {
	register(Info{Service: "Subnets", Label: "VPC Subnets"}, func(p client.ConfigProvider) inventory.Adapter {
		return &SubnetsAdapter{client: newEC2Clients(p)}
	})
	register(Info{Service: "VPC", Label: "VPCs"}, func(p client.ConfigProvider) inventory.Adapter {
		return &VPCAdapter{client: newEC2Clients(p)}
	})
	register(Info{Service: "Gateway", Label: "Internet, NAT and Transit Gateways"}, func(p client.ConfigProvider) inventory.Adapter {
		return &GatewayAdapter{client: newEC2Clients(p)}
	})
}

// Collect implements inventory.Adapter
func (a *SubnetsAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("Subnets", region)
	err := a.client(region).DescribeSubnetsPagesWithContext(ctx, &ec2.DescribeSubnetsInput{}, func(page *ec2.DescribeSubnetsOutput, lastPage bool) bool {
		for _, subnet := range page.Subnets {
			tags := ec2Tags(subnet.Tags)
			c.add(inventory.Resource{
				ID:   aws.StringValue(subnet.SubnetId),
				Name: tags["Name"],
				Tags: tags,
				Details: map[string]interface{}{
					"VPC ID":                aws.StringValue(subnet.VpcId),
					"CIDR":                  aws.StringValue(subnet.CidrBlock),
					"Available IPs":         aws.Int64Value(subnet.AvailableIpAddressCount),
					"Auto Assign Public IP": yesNo(subnet.MapPublicIpOnLaunch),
					"AZ Name":               aws.StringValue(subnet.AvailabilityZone),
					"AZ ID":                 aws.StringValue(subnet.AvailabilityZoneId),
					"State":                 aws.StringValue(subnet.State),
					"Default For AZ":        yesNo(subnet.DefaultForAz),
				},
			})
		}
		return true
	})
	return c.finish(err)
}

// Collect implements inventory.Adapter
func (a *VPCAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("VPC", region)
	svc := a.client(region)

	subnetsByVPC := make(map[string][]string)
	err := svc.DescribeSubnetsPagesWithContext(ctx, &ec2.DescribeSubnetsInput{}, func(page *ec2.DescribeSubnetsOutput, lastPage bool) bool {
		for _, subnet := range page.Subnets {
			vpcID := aws.StringValue(subnet.VpcId)
			name := ec2Tags(subnet.Tags)["Name"]
			entry := fmt.Sprintf("%s %s (%s, %s)", aws.StringValue(subnet.SubnetId), name,
				aws.StringValue(subnet.CidrBlock), aws.StringValue(subnet.AvailabilityZone))
			subnetsByVPC[vpcID] = append(subnetsByVPC[vpcID], entry)
		}
		return true
	})
	if err != nil {
		return c.finish(err)
	}

	err = svc.DescribeVpcsPagesWithContext(ctx, &ec2.DescribeVpcsInput{}, func(page *ec2.DescribeVpcsOutput, lastPage bool) bool {
		for _, vpc := range page.Vpcs {
			id := aws.StringValue(vpc.VpcId)
			tags := ec2Tags(vpc.Tags)
			c.add(inventory.Resource{
				ID:   id,
				Name: tags["Name"],
				Tags: tags,
				Details: map[string]interface{}{
					"CIDR":         aws.StringValue(vpc.CidrBlock),
					"State":        aws.StringValue(vpc.State),
					"Is Default":   yesNo(vpc.IsDefault),
					"Owner ID":     aws.StringValue(vpc.OwnerId),
					"Subnet Count": len(subnetsByVPC[id]),
					"Subnets":      subnetsByVPC[id],
				},
			})
		}
		return true
	})
	return c.finish(err)
}

// Collect implements inventory.Adapter
func (a *GatewayAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("Gateway", region)
	svc := a.client(region)

	err := svc.DescribeInternetGatewaysPagesWithContext(ctx, &ec2.DescribeInternetGatewaysInput{}, func(page *ec2.DescribeInternetGatewaysOutput, lastPage bool) bool {
		for _, igw := range page.InternetGateways {
			tags := ec2Tags(igw.Tags)
			var vpcs, states []string
			for _, att := range igw.Attachments {
				vpcs = append(vpcs, aws.StringValue(att.VpcId))
				states = append(states, aws.StringValue(att.State))
			}
			vpcID, state := "", "detached"
			if len(vpcs) > 0 {
				vpcID, state = vpcs[0], states[0]
			}
			c.add(inventory.Resource{
				ID:   aws.StringValue(igw.InternetGatewayId),
				Name: tags["Name"],
				Tags: tags,
				Details: map[string]interface{}{
					"Type":            "Internet Gateway",
					"State":           state,
					"VPC ID":          vpcID,
					"VPC Attachments": vpcs,
					"Owner ID":        aws.StringValue(igw.OwnerId),
				},
			})
		}
		return true
	})
	if err != nil {
		return c.finish(err)
	}

	err = svc.DescribeNatGatewaysPagesWithContext(ctx, &ec2.DescribeNatGatewaysInput{}, func(page *ec2.DescribeNatGatewaysOutput, lastPage bool) bool {
		for _, nat := range page.NatGateways {
			tags := ec2Tags(nat.Tags)
			var private, public []string
			for _, addr := range nat.NatGatewayAddresses {
				if ip := aws.StringValue(addr.PrivateIp); ip != "" {
					private = append(private, ip)
				}
				if ip := aws.StringValue(addr.PublicIp); ip != "" {
					public = append(public, ip)
				}
			}
			c.add(inventory.Resource{
				ID:        aws.StringValue(nat.NatGatewayId),
				Name:      tags["Name"],
				CreatedAt: timePtr(nat.CreateTime),
				Tags:      tags,
				Details: map[string]interface{}{
					"Type":              "NAT Gateway",
					"State":             aws.StringValue(nat.State),
					"VPC ID":            aws.StringValue(nat.VpcId),
					"Subnet ID":         aws.StringValue(nat.SubnetId),
					"Connectivity Type": aws.StringValue(nat.ConnectivityType),
					"Private IPs":       private,
					"Public IPs":        public,
				},
			})
		}
		return true
	})
	if err != nil {
		return c.finish(err)
	}

	// Transit gateways are optional per region; absence must not discard
	// the gateways already collected.
	tgw := newCollector("Gateway", region)
	err = svc.DescribeTransitGatewaysPagesWithContext(ctx, &ec2.DescribeTransitGatewaysInput{}, func(page *ec2.DescribeTransitGatewaysOutput, lastPage bool) bool {
		for _, gw := range page.TransitGateways {
			tags := ec2Tags(gw.Tags)
			tgw.add(inventory.Resource{
				ID:          aws.StringValue(gw.TransitGatewayId),
				Name:        tags["Name"],
				Description: aws.StringValue(gw.Description),
				CreatedAt:   timePtr(gw.CreationTime),
				Tags:        tags,
				Details: map[string]interface{}{
					"Type":     "Transit Gateway",
					"State":    aws.StringValue(gw.State),
					"Owner ID": aws.StringValue(gw.OwnerId),
					"ARN":      aws.StringValue(gw.TransitGatewayArn),
				},
			})
		}
		return true
	})
	transit, err := tgw.finish(err)
	if err != nil {
		return nil, err
	}
	for _, res := range transit {
		c.add(res)
	}
	return c.resources, nil
}
