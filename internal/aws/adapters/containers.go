package adapters

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/ecr"
	"github.com/aws/aws-sdk-go/service/ecr/ecriface"
	"github.com/aws/aws-sdk-go/service/ecs"
	"github.com/aws/aws-sdk-go/service/ecs/ecsiface"

	"awsinventory/internal/inventory"
)

// DescribeClusters accepts at most 100 clusters per call
const ecsDescribeBatch = 100

// ECRAdapter lists ECR repositories
type ECRAdapter struct {
	client func(region string) ecriface.ECRAPI
}

// ECSAdapter lists ECS clusters and their services
type ECSAdapter struct {
	client func(region string) ecsiface.ECSAPI
}

func init() {
	register(Info{Service: "ECR", Label: "ECR Repositories"}, func(p client.ConfigProvider) inventory.Adapter {
		return &ECRAdapter{client: func(region string) ecriface.ECRAPI {
			return ecr.New(p, regional(region))
		}}
	})
	register(Info{Service: "ECS", Label: "ECS Clusters"}, func(p client.ConfigProvider) inventory.Adapter {
		return &ECSAdapter{client: func(region string) ecsiface.ECSAPI {
			return ecs.New(p, regional(region))
		}}
	})
}

// Collect implements inventory.Adapter
func (a *ECRAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("ECR", region)
	err := a.client(region).DescribeRepositoriesPagesWithContext(ctx, &ecr.DescribeRepositoriesInput{}, func(page *ecr.DescribeRepositoriesOutput, lastPage bool) bool {
		for _, repo := range page.Repositories {
			details := map[string]interface{}{
				"ARN":                  aws.StringValue(repo.RepositoryArn),
				"Registry ID":          aws.StringValue(repo.RegistryId),
				"URI":                  aws.StringValue(repo.RepositoryUri),
				"Image Tag Mutability": aws.StringValue(repo.ImageTagMutability),
			}
			if repo.ImageScanningConfiguration != nil {
				details["Scan on Push"] = yesNo(repo.ImageScanningConfiguration.ScanOnPush)
			}
			if repo.EncryptionConfiguration != nil {
				details["Encryption Type"] = aws.StringValue(repo.EncryptionConfiguration.EncryptionType)
			}
			c.add(inventory.Resource{
				ID:        aws.StringValue(repo.RepositoryArn),
				Name:      aws.StringValue(repo.RepositoryName),
				CreatedAt: timePtr(repo.CreatedAt),
				Details:   details,
			})
		}
		return true
	})
	return c.finish(err)
}

// Collect implements inventory.Adapter
func (a *ECSAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("ECS", region)
	svc := a.client(region)

	var arns []*string
	err := svc.ListClustersPagesWithContext(ctx, &ecs.ListClustersInput{}, func(page *ecs.ListClustersOutput, lastPage bool) bool {
		arns = append(arns, page.ClusterArns...)
		return true
	})
	if err != nil {
		return c.finish(err)
	}

	for start := 0; start < len(arns); start += ecsDescribeBatch {
		end := start + ecsDescribeBatch
		if end > len(arns) {
			end = len(arns)
		}
		out, err := svc.DescribeClustersWithContext(ctx, &ecs.DescribeClustersInput{
			Clusters: arns[start:end],
			Include:  aws.StringSlice([]string{ecs.ClusterFieldTags, ecs.ClusterFieldSettings}),
		})
		if err != nil {
			return c.finish(err)
		}

		for _, cluster := range out.Clusters {
			var services []string
			err := svc.ListServicesPagesWithContext(ctx, &ecs.ListServicesInput{Cluster: cluster.ClusterArn}, func(page *ecs.ListServicesOutput, lastPage bool) bool {
				for _, arn := range page.ServiceArns {
					services = append(services, lastSegment(aws.StringValue(arn)))
				}
				return true
			})
			if err != nil {
				if c.skip(aws.StringValue(cluster.ClusterArn), err) {
					continue
				}
				return c.finish(err)
			}

			var settings []string
			for _, s := range cluster.Settings {
				settings = append(settings, aws.StringValue(s.Name)+"="+aws.StringValue(s.Value))
			}

			c.add(inventory.Resource{
				ID:   aws.StringValue(cluster.ClusterArn),
				Name: aws.StringValue(cluster.ClusterName),
				Tags: keyValueTags(cluster.Tags, func(t *ecs.Tag) (*string, *string) {
					return t.Key, t.Value
				}),
				Details: map[string]interface{}{
					"Status":                    aws.StringValue(cluster.Status),
					"Active Services Count":     aws.Int64Value(cluster.ActiveServicesCount),
					"Running Tasks Count":       aws.Int64Value(cluster.RunningTasksCount),
					"Pending Tasks Count":       aws.Int64Value(cluster.PendingTasksCount),
					"Container Instances Count": aws.Int64Value(cluster.RegisteredContainerInstancesCount),
					"Capacity Providers":        aws.StringValueSlice(cluster.CapacityProviders),
					"Services":                  services,
					"Settings":                  settings,
				},
			})
		}
	}
	return c.finish(nil)
}
