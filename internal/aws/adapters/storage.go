package adapters

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/aws/aws-sdk-go/service/efs"
	"github.com/aws/aws-sdk-go/service/efs/efsiface"

	"awsinventory/internal/inventory"
)

// DynamoDBAdapter lists DynamoDB tables
type DynamoDBAdapter struct {
	client func(region string) dynamodbiface.DynamoDBAPI
}

// EFSAdapter lists EFS file systems
type EFSAdapter struct {
	client func(region string) efsiface.EFSAPI
}

func init() {
	register(Info{Service: "DynamoDB", Label: "DynamoDB Tables"}, func(p client.ConfigProvider) inventory.Adapter {
		return &DynamoDBAdapter{client: func(region string) dynamodbiface.DynamoDBAPI {
			return dynamodb.New(p, regional(region))
		}}
	})
	register(Info{Service: "EFS", Label: "EFS File Systems"}, func(p client.ConfigProvider) inventory.Adapter {
		return &EFSAdapter{client: func(region string) efsiface.EFSAPI {
			return efs.New(p, regional(region))
		}}
	})
}

// Collect implements inventory.Adapter
func (a *DynamoDBAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("DynamoDB", region)
	svc := a.client(region)

	var names []string
	err := svc.ListTablesPagesWithContext(ctx, &dynamodb.ListTablesInput{}, func(page *dynamodb.ListTablesOutput, lastPage bool) bool {
		names = append(names, aws.StringValueSlice(page.TableNames)...)
		return true
	})
	if err != nil {
		return c.finish(err)
	}

	for _, name := range names {
		out, err := svc.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
		if err != nil {
			if c.skip(name, err) {
				continue
			}
			return c.finish(err)
		}
		table := out.Table

		var keySchema []string
		for _, k := range table.KeySchema {
			keySchema = append(keySchema, fmt.Sprintf("%s (%s)", aws.StringValue(k.AttributeName), aws.StringValue(k.KeyType)))
		}
		var gsis []string
		for _, idx := range table.GlobalSecondaryIndexes {
			gsis = append(gsis, aws.StringValue(idx.IndexName))
		}
		var lsis []string
		for _, idx := range table.LocalSecondaryIndexes {
			lsis = append(lsis, aws.StringValue(idx.IndexName))
		}

		billing := "PROVISIONED"
		if table.BillingModeSummary != nil && table.BillingModeSummary.BillingMode != nil {
			billing = aws.StringValue(table.BillingModeSummary.BillingMode)
		}
		details := map[string]interface{}{
			"ARN":                      aws.StringValue(table.TableArn),
			"Status":                   aws.StringValue(table.TableStatus),
			"Item Count":               aws.Int64Value(table.ItemCount),
			"Size (Bytes)":             aws.Int64Value(table.TableSizeBytes),
			"Billing Mode":             billing,
			"Primary Key Schema":       keySchema,
			"Global Secondary Indexes": gsis,
			"Local Secondary Indexes":  lsis,
			"Stream Enabled":           "No",
		}
		if tp := table.ProvisionedThroughput; tp != nil {
			details["Provisioned Read Capacity"] = aws.Int64Value(tp.ReadCapacityUnits)
			details["Provisioned Write Capacity"] = aws.Int64Value(tp.WriteCapacityUnits)
		}
		if spec := table.StreamSpecification; spec != nil && aws.BoolValue(spec.StreamEnabled) {
			details["Stream Enabled"] = "Yes"
			details["Stream Type"] = aws.StringValue(spec.StreamViewType)
		}
		var replicas []string
		for _, r := range table.Replicas {
			replicas = append(replicas, aws.StringValue(r.RegionName))
		}
		if len(replicas) > 0 {
			details["Replicas"] = replicas
		}

		c.add(inventory.Resource{
			ID:        aws.StringValue(table.TableArn),
			Name:      aws.StringValue(table.TableName),
			CreatedAt: timePtr(table.CreationDateTime),
			Details:   details,
		})
	}
	return c.finish(nil)
}

// Collect implements inventory.Adapter
func (a *EFSAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("EFS", region)
	err := a.client(region).DescribeFileSystemsPagesWithContext(ctx, &efs.DescribeFileSystemsInput{}, func(page *efs.DescribeFileSystemsOutput, lastPage bool) bool {
		for _, fs := range page.FileSystems {
			size := 0.0
			if fs.SizeInBytes != nil {
				size = float64(aws.Int64Value(fs.SizeInBytes.Value)) / (1 << 30)
			}
			details := map[string]interface{}{
				"ARN":                 aws.StringValue(fs.FileSystemArn),
				"Life Cycle State":    aws.StringValue(fs.LifeCycleState),
				"Size (GB)":           fmt.Sprintf("%.2f", size),
				"Performance Mode":    aws.StringValue(fs.PerformanceMode),
				"Throughput Mode":     aws.StringValue(fs.ThroughputMode),
				"Encrypted":           yesNo(fs.Encrypted),
				"KMS Key ID":          aws.StringValue(fs.KmsKeyId),
				"Mount Targets Count": aws.Int64Value(fs.NumberOfMountTargets),
				"Owner ID":            aws.StringValue(fs.OwnerId),
			}
			if fs.ProvisionedThroughputInMibps != nil {
				details["Provisioned Throughput (MiB/s)"] = aws.Float64Value(fs.ProvisionedThroughputInMibps)
			}
			c.add(inventory.Resource{
				ID:        aws.StringValue(fs.FileSystemId),
				Name:      aws.StringValue(fs.Name),
				CreatedAt: timePtr(fs.CreationTime),
				Tags: keyValueTags(fs.Tags, func(t *efs.Tag) (*string, *string) {
					return t.Key, t.Value
				}),
				Details: details,
			})
		}
		return true
	})
	return c.finish(err)
}
