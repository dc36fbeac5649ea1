package adapters

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"awsinventory/internal/inventory"
)

// S3Adapter lists the buckets located in a region. Bucket listing is
// account-wide, so each region keeps only the buckets whose location
// matches it.
type S3Adapter struct {
	client func(region string) s3iface.S3API
}

func init() {
	register(Info{Service: "S3", Label: "S3 Buckets"}, func(p client.ConfigProvider) inventory.Adapter {
		return &S3Adapter{client: func(region string) s3iface.S3API {
			return s3.New(p, regional(region))
		}}
	})
}

// Collect implements inventory.Adapter
func (a *S3Adapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("S3", region)
	svc := a.client(region)

	out, err := svc.ListBucketsWithContext(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return c.finish(err)
	}

	for _, bucket := range out.Buckets {
		name := aws.StringValue(bucket.Name)

		loc, err := svc.GetBucketLocationWithContext(ctx, &s3.GetBucketLocationInput{Bucket: bucket.Name})
		if err != nil {
			if c.skip(name, err) {
				continue
			}
			return c.finish(err)
		}
		if s3.NormalizeBucketLocation(aws.StringValue(loc.LocationConstraint)) != region {
			continue
		}

		versioning := "Disabled"
		ver, err := svc.GetBucketVersioningWithContext(ctx, &s3.GetBucketVersioningInput{Bucket: bucket.Name})
		if err != nil {
			if c.skip(name, err) {
				continue
			}
			return c.finish(err)
		}
		if status := aws.StringValue(ver.Status); status != "" {
			versioning = status
		}

		encryption, err := bucketEncryption(ctx, svc, bucket.Name)
		if err != nil {
			if c.skip(name, err) {
				continue
			}
			return c.finish(err)
		}

		c.add(inventory.Resource{
			ID:        name,
			Name:      name,
			CreatedAt: timePtr(bucket.CreationDate),
			Details: map[string]interface{}{
				"Versioning":         versioning,
				"Encryption Enabled": yesNo(aws.Bool(encryption != "")),
				"Encryption Type":    encryption,
			},
		})
	}
	return c.finish(nil)
}

// bucketEncryption returns the default encryption algorithm of a bucket, or
// an empty string when none is configured.
func bucketEncryption(ctx context.Context, svc s3iface.S3API, bucket *string) (string, error) {
	out, err := svc.GetBucketEncryptionWithContext(ctx, &s3.GetBucketEncryptionInput{Bucket: bucket})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == "ServerSideEncryptionConfigurationNotFoundError" {
			return "", nil
		}
		return "", err
	}
	if out.ServerSideEncryptionConfiguration == nil {
		return "", nil
	}
	for _, rule := range out.ServerSideEncryptionConfiguration.Rules {
		if rule.ApplyServerSideEncryptionByDefault != nil {
			return aws.StringValue(rule.ApplyServerSideEncryptionByDefault.SSEAlgorithm), nil
		}
	}
	return "", nil
}
