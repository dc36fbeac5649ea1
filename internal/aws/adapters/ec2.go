package adapters

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"

	"awsinventory/internal/inventory"
)

// ec2Clients builds an EC2 client per region
type ec2Clients func(region string) ec2iface.EC2API

func newEC2Clients(p client.ConfigProvider) ec2Clients {
	return func(region string) ec2iface.EC2API {
		return ec2.New(p, regional(region))
	}
}

// EC2Adapter lists EC2 instances that have not been terminated
type EC2Adapter struct {
	client ec2Clients
}

func init() {
	register(Info{Service: "EC2", Label: "EC2 Instances"}, func(p client.ConfigProvider) inventory.Adapter {
		return &EC2Adapter{client: newEC2Clients(p)}
	})
}

// Collect implements inventory.Adapter
func (a *EC2Adapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("EC2", region)
	input := &ec2.DescribeInstancesInput{
		Filters: []*ec2.Filter{{
			Name:   aws.String("instance-state-name"),
			Values: aws.StringSlice([]string{"pending", "running", "shutting-down", "stopping", "stopped"}),
		}},
	}

	err := a.client(region).DescribeInstancesPagesWithContext(ctx, input, func(page *ec2.DescribeInstancesOutput, lastPage bool) bool {
		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				c.add(instanceResource(instance))
			}
		}
		return true
	})
	return c.finish(err)
}

func instanceResource(instance *ec2.Instance) inventory.Resource {
	tags := ec2Tags(instance.Tags)

	var groups []string
	for _, g := range instance.SecurityGroups {
		groups = append(groups, aws.StringValue(g.GroupId))
	}
	var volumes []string
	for _, m := range instance.BlockDeviceMappings {
		if m.Ebs != nil {
			volumes = append(volumes, aws.StringValue(m.Ebs.VolumeId)+" ("+aws.StringValue(m.DeviceName)+")")
		}
	}

	state := ""
	if instance.State != nil {
		state = aws.StringValue(instance.State.Name)
	}
	az := ""
	if instance.Placement != nil {
		az = aws.StringValue(instance.Placement.AvailabilityZone)
	}

	return inventory.Resource{
		ID:        aws.StringValue(instance.InstanceId),
		Name:      tags["Name"],
		CreatedAt: timePtr(instance.LaunchTime),
		Tags:      tags,
		Details: map[string]interface{}{
			"Instance Type":     aws.StringValue(instance.InstanceType),
			"State":             state,
			"Private IP":        aws.StringValue(instance.PrivateIpAddress),
			"Public IP":         aws.StringValue(instance.PublicIpAddress),
			"Security Groups":   groups,
			"EBS Volumes":       volumes,
			"VPC ID":            aws.StringValue(instance.VpcId),
			"Subnet ID":         aws.StringValue(instance.SubnetId),
			"Availability Zone": az,
			"Image ID":          aws.StringValue(instance.ImageId),
			"Platform":          aws.StringValue(instance.PlatformDetails),
		},
	}
}
