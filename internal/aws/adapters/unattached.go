package adapters

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/ec2"

	"awsinventory/internal/inventory"
)

// UnattachedEBSAdapter lists EBS volumes not attached to any instance
type UnattachedEBSAdapter struct {
	client ec2Clients
}

// UnattachedEIPAdapter lists Elastic IPs without an association
type UnattachedEIPAdapter struct {
	client ec2Clients
}

// UnattachedENIAdapter lists network interfaces in the available state
type UnattachedENIAdapter struct {
	client ec2Clients
}

// UnattachedSGAdapter lists security groups no network interface uses.
// Every consumer inside a VPC (instances, load balancers, databases,
// functions, mount targets) attaches its groups through an ENI.
type UnattachedSGAdapter struct {
	client ec2Clients
}

func init() {
	register(Info{Service: "UnattachedEBS", Label: "Unattached EBS Volumes"}, func(p client.ConfigProvider) inventory.Adapter {
		return &UnattachedEBSAdapter{client: newEC2Clients(p)}
	})
	register(Info{Service: "UnattachedEIP", Label: "Unassociated Elastic IPs"}, func(p client.ConfigProvider) inventory.Adapter {
		return &UnattachedEIPAdapter{client: newEC2Clients(p)}
	})
	register(Info{Service: "UnattachedENI", Label: "Available Network Interfaces"}, func(p client.ConfigProvider) inventory.Adapter {
		return &UnattachedENIAdapter{client: newEC2Clients(p)}
	})
	register(Info{Service: "UnattachedSG", Label: "Unused Security Groups"}, func(p client.ConfigProvider) inventory.Adapter {
		return &UnattachedSGAdapter{client: newEC2Clients(p)}
	})
}

func statusAvailable() []*ec2.Filter {
	return []*ec2.Filter{{
		Name:   aws.String("status"),
		Values: aws.StringSlice([]string{"available"}),
	}}
}

// Collect implements inventory.Adapter
func (a *UnattachedEBSAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("UnattachedEBS", region)
	input := &ec2.DescribeVolumesInput{Filters: statusAvailable()}
	err := a.client(region).DescribeVolumesPagesWithContext(ctx, input, func(page *ec2.DescribeVolumesOutput, lastPage bool) bool {
		for _, vol := range page.Volumes {
			tags := ec2Tags(vol.Tags)
			c.add(inventory.Resource{
				ID:        aws.StringValue(vol.VolumeId),
				Name:      tags["Name"],
				CreatedAt: timePtr(vol.CreateTime),
				Tags:      tags,
				Details: map[string]interface{}{
					"Size (GiB)":           aws.Int64Value(vol.Size),
					"Volume Type":          aws.StringValue(vol.VolumeType),
					"State":                aws.StringValue(vol.State),
					"Availability Zone":    aws.StringValue(vol.AvailabilityZone),
					"Encrypted":            yesNo(vol.Encrypted),
					"KMS Key":              aws.StringValue(vol.KmsKeyId),
					"Snapshot ID":          aws.StringValue(vol.SnapshotId),
					"IOPS":                 aws.Int64Value(vol.Iops),
					"Throughput":           aws.Int64Value(vol.Throughput),
					"Fast Restore Enabled": yesNo(vol.FastRestored),
				},
			})
		}
		return true
	})
	return c.finish(err)
}

// Collect implements inventory.Adapter
func (a *UnattachedEIPAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("UnattachedEIP", region)
	// DescribeAddresses is not paginated
	out, err := a.client(region).DescribeAddressesWithContext(ctx, &ec2.DescribeAddressesInput{})
	if err != nil {
		return c.finish(err)
	}
	for _, addr := range out.Addresses {
		if addr.AssociationId != nil || addr.InstanceId != nil || addr.NetworkInterfaceId != nil {
			continue
		}
		id := aws.StringValue(addr.AllocationId)
		if id == "" {
			id = aws.StringValue(addr.PublicIp)
		}
		tags := ec2Tags(addr.Tags)
		c.add(inventory.Resource{
			ID:   id,
			Name: tags["Name"],
			Tags: tags,
			Details: map[string]interface{}{
				"Public IP":            aws.StringValue(addr.PublicIp),
				"Private IP":           aws.StringValue(addr.PrivateIpAddress),
				"Domain":               aws.StringValue(addr.Domain),
				"Network Border Group": aws.StringValue(addr.NetworkBorderGroup),
				"Carrier IP":           aws.StringValue(addr.CarrierIp),
				"Customer Owned IP":    aws.StringValue(addr.CustomerOwnedIp),
				"Public IPv4 Pool":     aws.StringValue(addr.PublicIpv4Pool),
			},
		})
	}
	return c.finish(nil)
}

// Collect implements inventory.Adapter
func (a *UnattachedENIAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("UnattachedENI", region)
	input := &ec2.DescribeNetworkInterfacesInput{Filters: statusAvailable()}
	err := a.client(region).DescribeNetworkInterfacesPagesWithContext(ctx, input, func(page *ec2.DescribeNetworkInterfacesOutput, lastPage bool) bool {
		for _, eni := range page.NetworkInterfaces {
			tags := ec2Tags(eni.TagSet)
			var ips, groups []string
			for _, ip := range eni.PrivateIpAddresses {
				ips = append(ips, aws.StringValue(ip.PrivateIpAddress))
			}
			for _, g := range eni.Groups {
				groups = append(groups, fmt.Sprintf("%s (%s)", aws.StringValue(g.GroupId), aws.StringValue(g.GroupName)))
			}
			c.add(inventory.Resource{
				ID:          aws.StringValue(eni.NetworkInterfaceId),
				Name:        tags["Name"],
				Description: aws.StringValue(eni.Description),
				Tags:        tags,
				Details: map[string]interface{}{
					"Subnet ID":            aws.StringValue(eni.SubnetId),
					"VPC ID":               aws.StringValue(eni.VpcId),
					"Availability Zone":    aws.StringValue(eni.AvailabilityZone),
					"MAC Address":          aws.StringValue(eni.MacAddress),
					"Private IP Addresses": ips,
					"Private DNS Name":     aws.StringValue(eni.PrivateDnsName),
					"Source/Dest Check":    yesNo(eni.SourceDestCheck),
					"Security Groups":      groups,
					"Interface Type":       aws.StringValue(eni.InterfaceType),
					"Requester ID":         aws.StringValue(eni.RequesterId),
					"Requester Managed":    yesNo(eni.RequesterManaged),
					"Status":               aws.StringValue(eni.Status),
				},
			})
		}
		return true
	})
	return c.finish(err)
}

// Collect implements inventory.Adapter
func (a *UnattachedSGAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("UnattachedSG", region)
	svc := a.client(region)

	inUse := make(map[string]bool)
	err := svc.DescribeNetworkInterfacesPagesWithContext(ctx, &ec2.DescribeNetworkInterfacesInput{}, func(page *ec2.DescribeNetworkInterfacesOutput, lastPage bool) bool {
		for _, eni := range page.NetworkInterfaces {
			for _, g := range eni.Groups {
				inUse[aws.StringValue(g.GroupId)] = true
			}
		}
		return true
	})
	if err != nil {
		return c.finish(err)
	}

	err = svc.DescribeSecurityGroupsPagesWithContext(ctx, &ec2.DescribeSecurityGroupsInput{}, func(page *ec2.DescribeSecurityGroupsOutput, lastPage bool) bool {
		for _, sg := range page.SecurityGroups {
			id := aws.StringValue(sg.GroupId)
			// The default group of a VPC cannot be deleted
			if inUse[id] || aws.StringValue(sg.GroupName) == "default" {
				continue
			}
			c.add(inventory.Resource{
				ID:          id,
				Name:        aws.StringValue(sg.GroupName),
				Description: aws.StringValue(sg.Description),
				Tags:        ec2Tags(sg.Tags),
				Details: map[string]interface{}{
					"VPC ID":         aws.StringValue(sg.VpcId),
					"Owner ID":       aws.StringValue(sg.OwnerId),
					"Inbound Rules":  formatPermissions(sg.IpPermissions),
					"Outbound Rules": formatPermissions(sg.IpPermissionsEgress),
				},
			})
		}
		return true
	})
	return c.finish(err)
}

func formatPermissions(perms []*ec2.IpPermission) []string {
	var rules []string
	for _, p := range perms {
		protocol := aws.StringValue(p.IpProtocol)
		ports := "all"
		if protocol != "-1" {
			ports = fmt.Sprintf("%d-%d", aws.Int64Value(p.FromPort), aws.Int64Value(p.ToPort))
		} else {
			protocol = "all"
		}
		var sources []string
		for _, r := range p.IpRanges {
			sources = append(sources, aws.StringValue(r.CidrIp))
		}
		for _, r := range p.Ipv6Ranges {
			sources = append(sources, aws.StringValue(r.CidrIpv6))
		}
		for _, g := range p.UserIdGroupPairs {
			sources = append(sources, aws.StringValue(g.GroupId))
		}
		for _, pl := range p.PrefixListIds {
			sources = append(sources, aws.StringValue(pl.PrefixListId))
		}
		rules = append(rules, fmt.Sprintf("%s %s from %v", protocol, ports, sources))
	}
	return rules
}
