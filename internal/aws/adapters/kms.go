package adapters

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"

	"awsinventory/internal/inventory"
	"awsinventory/internal/logging"
)

// KMSAdapter lists KMS keys with their aliases and rotation status
type KMSAdapter struct {
	client func(region string) kmsiface.KMSAPI
}

func init() {
	register(Info{Service: "KMS", Label: "KMS Keys"}, func(p client.ConfigProvider) inventory.Adapter {
		return &KMSAdapter{client: func(region string) kmsiface.KMSAPI {
			return kms.New(p, regional(region))
		}}
	})
}

// Collect implements inventory.Adapter
func (a *KMSAdapter) Collect(ctx context.Context, region string) (inventory.Resources, error) {
	c := newCollector("KMS", region)
	svc := a.client(region)

	// Aliases are listed once for the region and joined by target key.
	aliases := make(map[string][]string)
	err := svc.ListAliasesPagesWithContext(ctx, &kms.ListAliasesInput{}, func(page *kms.ListAliasesOutput, lastPage bool) bool {
		for _, alias := range page.Aliases {
			if alias.TargetKeyId == nil {
				continue
			}
			id := aws.StringValue(alias.TargetKeyId)
			aliases[id] = append(aliases[id], aws.StringValue(alias.AliasName))
		}
		return true
	})
	if err != nil {
		return c.finish(err)
	}

	var keyIDs []string
	err = svc.ListKeysPagesWithContext(ctx, &kms.ListKeysInput{}, func(page *kms.ListKeysOutput, lastPage bool) bool {
		for _, key := range page.Keys {
			keyIDs = append(keyIDs, aws.StringValue(key.KeyId))
		}
		return true
	})
	if err != nil {
		return c.finish(err)
	}

	for _, id := range keyIDs {
		out, err := svc.DescribeKeyWithContext(ctx, &kms.DescribeKeyInput{KeyId: aws.String(id)})
		if err != nil {
			if c.skip(id, err) {
				continue
			}
			return c.finish(err)
		}
		meta := out.KeyMetadata
		customer := aws.StringValue(meta.KeyManager) == kms.KeyManagerTypeCustomer

		details := map[string]interface{}{
			"ARN":          aws.StringValue(meta.Arn),
			"Enabled":      yesNo(meta.Enabled),
			"Key State":    aws.StringValue(meta.KeyState),
			"Key Manager":  aws.StringValue(meta.KeyManager),
			"Key Usage":    keyUsage(meta),
			"Key Spec":     aws.StringValue(meta.KeySpec),
			"Origin":       aws.StringValue(meta.Origin),
			"Multi-Region": yesNo(meta.MultiRegion),
			"Aliases":      aliases[id],
			"Key Rotation": "N/A",
		}
		if meta.DeletionDate != nil {
			details["Deletion Date"] = meta.DeletionDate.UTC().Format("2006-01-02 15:04:05")
		}
		if meta.CustomKeyStoreId != nil {
			details["Custom Key Store"] = aws.StringValue(meta.CustomKeyStoreId)
		}

		var tags map[string]string
		if customer {
			// Rotation and tags are supplementary; a key whose policy denies
			// them is still reported.
			rot, err := svc.GetKeyRotationStatusWithContext(ctx, &kms.GetKeyRotationStatusInput{KeyId: aws.String(id)})
			if err == nil {
				details["Key Rotation"] = "Disabled"
				if aws.BoolValue(rot.KeyRotationEnabled) {
					details["Key Rotation"] = "Enabled"
				}
			} else if ctx.Err() != nil {
				return c.finish(ctx.Err())
			} else {
				logging.Debug("Key rotation status unavailable", map[string]interface{}{
					"region": region,
					"key":    id,
					"error":  err.Error(),
				})
			}

			tagOut, err := svc.ListResourceTagsWithContext(ctx, &kms.ListResourceTagsInput{KeyId: aws.String(id)})
			if err == nil {
				tags = keyValueTags(tagOut.Tags, func(t *kms.Tag) (*string, *string) {
					return t.TagKey, t.TagValue
				})
			} else if ctx.Err() != nil {
				return c.finish(ctx.Err())
			}
		}

		name := id
		if len(aliases[id]) > 0 {
			name = aliases[id][0]
		}
		c.add(inventory.Resource{
			ID:          id,
			Name:        name,
			Description: aws.StringValue(meta.Description),
			CreatedAt:   timePtr(meta.CreationDate),
			Tags:        tags,
			Details:     details,
		})
	}
	return c.finish(nil)
}

func keyUsage(meta *kms.KeyMetadata) string {
	usage := aws.StringValue(meta.KeyUsage)
	var algorithms []*string
	switch usage {
	case kms.KeyUsageTypeEncryptDecrypt:
		algorithms = meta.EncryptionAlgorithms
	case kms.KeyUsageTypeSignVerify:
		algorithms = meta.SigningAlgorithms
	}
	if len(algorithms) == 0 {
		return usage
	}
	return fmt.Sprintf("%s (%s)", usage, strings.Join(aws.StringValueSlice(algorithms), ", "))
}
