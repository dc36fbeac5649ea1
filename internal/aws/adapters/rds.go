package adapters

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/rds"
	"github.com/aws/aws-sdk-go/service/rds/rdsiface"

	"awsinventory/internal/inventory"
)

// RDSAdapter lists RDS database instances
type RDSAdapter struct {
	client func(region string) rdsiface.RDSAPI
}

func init() {
	register(Info{Service: "RDS", Label: "RDS Instances"}, func(p client.ConfigProvider) inventory.Adapter {
		return &RDSAdapter{client: func(region string) rdsiface.RDSAPI {
			return rds.New(p, regional(region))
		}}
	})
}

// Collect implements inventory.Adapter
func (a *RDSAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("RDS", region)
	err := a.client(region).DescribeDBInstancesPagesWithContext(ctx, &rds.DescribeDBInstancesInput{}, func(page *rds.DescribeDBInstancesOutput, lastPage bool) bool {
		for _, db := range page.DBInstances {
			c.add(dbInstanceResource(db))
		}
		return true
	})
	return c.finish(err)
}

func dbInstanceResource(db *rds.DBInstance) inventory.Resource {
	var groups []string
	for _, g := range db.VpcSecurityGroups {
		groups = append(groups, aws.StringValue(g.VpcSecurityGroupId))
	}

	endpoint, port := "", int64(0)
	if db.Endpoint != nil {
		endpoint = aws.StringValue(db.Endpoint.Address)
		port = aws.Int64Value(db.Endpoint.Port)
	}
	vpcID, subnetGroup := "", ""
	if db.DBSubnetGroup != nil {
		vpcID = aws.StringValue(db.DBSubnetGroup.VpcId)
		subnetGroup = aws.StringValue(db.DBSubnetGroup.DBSubnetGroupName)
	}

	id := aws.StringValue(db.DBInstanceIdentifier)
	return inventory.Resource{
		ID:        id,
		Name:      id,
		CreatedAt: timePtr(db.InstanceCreateTime),
		Tags: keyValueTags(db.TagList, func(t *rds.Tag) (*string, *string) {
			return t.Key, t.Value
		}),
		Details: map[string]interface{}{
			"ARN":                     aws.StringValue(db.DBInstanceArn),
			"Engine":                  aws.StringValue(db.Engine),
			"Engine Version":          aws.StringValue(db.EngineVersion),
			"Instance Class":          aws.StringValue(db.DBInstanceClass),
			"Status":                  aws.StringValue(db.DBInstanceStatus),
			"Storage Type":            aws.StringValue(db.StorageType),
			"Allocated Storage (GiB)": aws.Int64Value(db.AllocatedStorage),
			"Endpoint":                endpoint,
			"Port":                    port,
			"Multi AZ":                yesNo(db.MultiAZ),
			"Publicly Accessible":     yesNo(db.PubliclyAccessible),
			"Encrypted":               yesNo(db.StorageEncrypted),
			"Security Groups":         groups,
			"Read Replicas":           aws.StringValueSlice(db.ReadReplicaDBInstanceIdentifiers),
			"Backup Retention (days)": aws.Int64Value(db.BackupRetentionPeriod),
			"Performance Insights":    yesNo(db.PerformanceInsightsEnabled),
			"VPC ID":                  vpcID,
			"Subnet Group":            subnetGroup,
			"Cluster":                 aws.StringValue(db.DBClusterIdentifier),
		},
	}
}
